// Package stdlib provides the native functions the rill command registers.
package stdlib

import (
	"fmt"
	"io"
	"math"

	"github.com/chazu/rill/vm"
)

// Register adds the standard natives to n. Output from print goes to w.
// Register panics if any of the names is already taken.
func Register(n *vm.Natives, w io.Writer) {
	registerIO(n, w)
	registerListNatives(n)
	registerMathNatives(n)
}

// ---------------------------------------------------------------------------
// I/O
// ---------------------------------------------------------------------------

func registerIO(n *vm.Natives, w io.Writer) {
	n.Register("print", 1, func(m *vm.Machine) (vm.Value, error) {
		if _, err := fmt.Fprintln(w, m.Arg(0)); err != nil {
			return vm.Void, m.Errorf("print: %s", err)
		}
		return vm.Void, nil
	})
}

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

func registerListNatives(n *vm.Natives) {
	n.Register("len", 1, func(m *vm.Machine) (vm.Value, error) {
		l, err := listArg(m, "len")
		if err != nil {
			return vm.Void, err
		}
		return vm.Int(int64(l.Len())), nil
	})

	n.Register("push", 2, func(m *vm.Machine) (vm.Value, error) {
		l, err := listArg(m, "push")
		if err != nil {
			return vm.Void, err
		}
		l.Append(m.Arg(1))
		return m.Arg(0), nil
	})

	n.Register("pop", 1, func(m *vm.Machine) (vm.Value, error) {
		l, err := listArg(m, "pop")
		if err != nil {
			return vm.Void, err
		}
		v, ok := l.Pop()
		if !ok {
			return vm.Void, m.Errorf("Unable to pop from an empty list.")
		}
		return v, nil
	})
}

func listArg(m *vm.Machine, name string) (*vm.List, error) {
	l, ok := m.Arg(0).AsList()
	if !ok {
		return nil, unsupported(m, name)
	}
	return l, nil
}

func unsupported(m *vm.Machine, name string) error {
	return m.Errorf("Unsupported value %s for function \"%s\".", m.Arg(0), name)
}

// ---------------------------------------------------------------------------
// Math
// ---------------------------------------------------------------------------

func registerMathNatives(n *vm.Natives) {
	realFunc := func(name string, fn func(float64) float64) {
		n.Register(name, 1, func(m *vm.Machine) (vm.Value, error) {
			f, ok := m.Arg(0).AsNumber()
			if !ok {
				return vm.Void, unsupported(m, name)
			}
			return vm.Real(fn(f)), nil
		})
	}
	realFunc("cos", math.Cos)
	realFunc("sqrt", math.Sqrt)
	realFunc("real", func(f float64) float64 { return f })

	n.Register("abs", 1, func(m *vm.Machine) (vm.Value, error) {
		arg := m.Arg(0)
		if i, ok := arg.AsInt(); ok {
			if i < 0 {
				i = -i
			}
			return vm.Int(i), nil
		}
		if f, ok := arg.AsReal(); ok {
			return vm.Real(math.Abs(f)), nil
		}
		return vm.Void, unsupported(m, "abs")
	})

	// int truncates toward zero. NaN and values outside the integer range
	// fault rather than producing an arbitrary integer.
	n.Register("int", 1, func(m *vm.Machine) (vm.Value, error) {
		arg := m.Arg(0)
		if _, ok := arg.AsInt(); ok {
			return arg, nil
		}
		f, ok := arg.AsReal()
		if !ok {
			return vm.Void, unsupported(m, "int")
		}
		if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return vm.Void, m.Errorf("Unable to convert %s to an integer.", arg)
		}
		return vm.Int(int64(f)), nil
	})
}
