package vm

import (
	"fmt"
	"sort"
	"strings"
)

// NativeFunc implements a host function. It reads its arguments with
// m.Arg and reports failures with m.Errorf.
type NativeFunc func(m *Machine) (Value, error)

// Native is a registered host function.
type Native struct {
	Name string
	Argc uint8
	Fn   NativeFunc
}

// Natives is the table of host functions visible to compiled code. The
// compiler resolves names to indices; the machine dispatches on indices.
// Register everything before compiling: indices are baked into bytecode.
type Natives struct {
	index map[string]uint32
	table []Native
}

// NewNatives returns an empty table.
func NewNatives() *Natives {
	return &Natives{index: make(map[string]uint32)}
}

// Register adds a native. Registering a name twice is a setup bug and
// panics.
func (n *Natives) Register(name string, argc uint8, fn NativeFunc) {
	if _, exists := n.index[name]; exists {
		panic(fmt.Sprintf("native %q already exists", name))
	}
	n.index[name] = uint32(len(n.table))
	n.table = append(n.table, Native{Name: name, Argc: argc, Fn: fn})
}

// Lookup returns the index of a registered native.
func (n *Natives) Lookup(name string) (uint32, bool) {
	if n == nil {
		return 0, false
	}
	idx, ok := n.index[name]
	return idx, ok
}

// At returns the native at idx.
func (n *Natives) At(idx uint32) (Native, bool) {
	if n == nil || uint64(idx) >= uint64(len(n.table)) {
		return Native{}, false
	}
	return n.table[idx], true
}

// Len returns the number of registered natives.
func (n *Natives) Len() int {
	if n == nil {
		return 0
	}
	return len(n.table)
}

// Names returns the registered names sorted alphabetically.
func (n *Natives) Names() []string {
	names := make([]string, 0, n.Len())
	if n != nil {
		for name := range n.index {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Signature describes the table in registration order. Bytecode compiled
// against one table is only valid against a table with the same signature.
func (n *Natives) Signature() string {
	if n == nil {
		return ""
	}
	parts := make([]string, len(n.table))
	for i, nat := range n.table {
		parts[i] = fmt.Sprintf("%s/%d", nat.Name, nat.Argc)
	}
	return strings.Join(parts, ",")
}
