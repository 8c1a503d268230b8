package vm

import (
	"strings"
	"sync"
)

// List is a shared, mutable sequence of values. Copying a List value copies
// the handle, so every holder observes mutations made through any other.
// Handles may outlive a run (stored in globals), and hosts may read them
// from other goroutines, so access goes through the lock.
type List struct {
	mu    sync.RWMutex
	items []Value
}

// NewList returns a list holding items.
func NewList(items ...Value) *List {
	l := &List{}
	if len(items) > 0 {
		l.items = append(make([]Value, 0, len(items)), items...)
	}
	return l
}

// Len returns the number of elements.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Get returns the element at i; ok is false when i is out of range.
func (l *List) Get(i int64) (Value, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= int64(len(l.items)) {
		return Void, false
	}
	return l.items[i], true
}

// Set replaces the element at i; it never grows the list.
func (l *List) Set(i int64, v Value) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= int64(len(l.items)) {
		return false
	}
	l.items[i] = v
	return true
}

// Append adds v at the end.
func (l *List) Append(v Value) {
	l.mu.Lock()
	l.items = append(l.items, v)
	l.mu.Unlock()
}

// Pop removes and returns the last element.
func (l *List) Pop() (Value, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.items)
	if n == 0 {
		return Void, false
	}
	v := l.items[n-1]
	l.items[n-1] = Void
	l.items = l.items[:n-1]
	return v, true
}

// Snapshot returns a copy of the elements.
func (l *List) Snapshot() []Value {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Value, len(l.items))
	copy(out, l.items)
	return out
}

// String renders the list. A list already being rendered further up the
// path prints as [...], so cycles through any number of lists terminate.
func (l *List) String() string {
	var sb strings.Builder
	l.write(&sb, make(map[*List]bool))
	return sb.String()
}

func (l *List) write(sb *strings.Builder, path map[*List]bool) {
	if path[l] {
		sb.WriteString("[...]")
		return
	}
	path[l] = true
	defer delete(path, l)

	sb.WriteByte('[')
	for i, v := range l.Snapshot() {
		if i > 0 {
			sb.WriteString(", ")
		}
		if inner, ok := v.AsList(); ok {
			inner.write(sb, path)
			continue
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(']')
}
