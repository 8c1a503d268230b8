package vm

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindInteger
	KindReal
	KindPointer
	KindNative
	KindFrame
	KindList
)

var kindNames = map[Kind]string{
	KindVoid:    "void",
	KindBoolean: "boolean",
	KindInteger: "integer",
	KindReal:    "real",
	KindPointer: "pointer",
	KindNative:  "native",
	KindFrame:   "frame",
	KindList:    "list",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a tagged Rill value.
//
// The zero Value is Void. Scalars live in bits; a frame marker keeps the
// return address in bits and the caller's locals base in aux. Frame values
// can only be built by the call logic in this package.
type Value struct {
	kind Kind
	aux  uint32
	bits uint64
	list *List
}

// Void is the unit value.
var Void = Value{}

// Bool returns a Boolean value.
func Bool(b bool) Value {
	if b {
		return Value{kind: KindBoolean, bits: 1}
	}
	return Value{kind: KindBoolean}
}

// Int returns an Integer value.
func Int(i int64) Value {
	return Value{kind: KindInteger, bits: uint64(i)}
}

// Real returns a Real value.
func Real(f float64) Value {
	return Value{kind: KindReal, bits: math.Float64bits(f)}
}

// Pointer returns a reference to the function whose header is at addr.
func Pointer(addr uint32) Value {
	return Value{kind: KindPointer, bits: uint64(addr)}
}

// NativeRef returns a reference to the native at index in the native table.
func NativeRef(index uint32) Value {
	return Value{kind: KindNative, bits: uint64(index)}
}

// ListOf returns a List value wrapping l.
func ListOf(l *List) Value {
	return Value{kind: KindList, list: l}
}

// frame returns the marker written over a callee slot by a call.
func frame(returnPC, locals uint32) Value {
	return Value{kind: KindFrame, bits: uint64(returnPC), aux: locals}
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsVoid reports whether v is Void.
func (v Value) IsVoid() bool { return v.kind == KindVoid }

// AsBool returns the boolean payload; ok is false for other kinds.
func (v Value) AsBool() (b bool, ok bool) {
	return v.bits != 0, v.kind == KindBoolean
}

// AsInt returns the integer payload; ok is false for other kinds.
func (v Value) AsInt() (int64, bool) {
	return int64(v.bits), v.kind == KindInteger
}

// AsReal returns the real payload; ok is false for other kinds.
func (v Value) AsReal() (float64, bool) {
	return math.Float64frombits(v.bits), v.kind == KindReal
}

// AsNumber returns v as a float64 for Integer and Real values.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(int64(v.bits)), true
	case KindReal:
		return math.Float64frombits(v.bits), true
	}
	return 0, false
}

// AsAddress returns the function address held by a Pointer.
func (v Value) AsAddress() (uint32, bool) {
	return uint32(v.bits), v.kind == KindPointer
}

// AsNative returns the native index held by a NativeRef.
func (v Value) AsNative() (uint32, bool) {
	return uint32(v.bits), v.kind == KindNative
}

// AsList returns the list handle; ok is false for other kinds.
func (v Value) AsList() (*List, bool) {
	return v.list, v.kind == KindList
}

// frameParts unpacks a frame marker.
func (v Value) frameParts() (returnPC, locals uint32, ok bool) {
	return uint32(v.bits), v.aux, v.kind == KindFrame
}

// String renders v the way print shows it.
func (v Value) String() string {
	switch v.kind {
	case KindVoid:
		return "()"
	case KindBoolean:
		return strconv.FormatBool(v.bits != 0)
	case KindInteger:
		return strconv.FormatInt(int64(v.bits), 10)
	case KindReal:
		return strconv.FormatFloat(math.Float64frombits(v.bits), 'g', -1, 64)
	case KindPointer:
		return fmt.Sprintf("fn@%d", uint32(v.bits))
	case KindNative:
		return fmt.Sprintf("native#%d", uint32(v.bits))
	case KindFrame:
		return fmt.Sprintf("(PC:%d LC:%d)", uint32(v.bits), v.aux)
	case KindList:
		return v.list.String()
	}
	return fmt.Sprintf("<%s>", v.kind)
}

// Equal reports structural equality. Lists compare element-wise; reals
// follow IEEE equality, so NaN is never equal to itself. A pair of lists
// met again while comparing them is taken as equal, so cyclic lists
// terminate.
func Equal(a, b Value) bool {
	return equal(a, b, make(map[[2]*List]bool))
}

func equal(a, b Value, path map[[2]*List]bool) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindReal:
		return math.Float64frombits(a.bits) == math.Float64frombits(b.bits)
	case KindList:
		if a.list == b.list {
			return true
		}
		pair := [2]*List{a.list, b.list}
		if path[pair] {
			return true
		}
		path[pair] = true
		defer delete(path, pair)

		x, y := a.list.Snapshot(), b.list.Snapshot()
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i], path) {
				return false
			}
		}
		return true
	default:
		return a.bits == b.bits && a.aux == b.aux
	}
}
