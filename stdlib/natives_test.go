package stdlib

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chazu/rill/compiler"
	"github.com/chazu/rill/vm"
)

func run(t *testing.T, src string) (vm.Value, string, error) {
	t.Helper()
	var out bytes.Buffer
	natives := vm.NewNatives()
	Register(natives, &out)

	c := compiler.New(natives)
	if err := c.Compile(0, strings.NewReader(src)); err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	v, err := vm.NewMachine(0, natives).Run(c.Chunk().Code())
	return v, out.String(), err
}

func TestNatives(t *testing.T) {
	tests := []struct {
		src  string
		want vm.Value
	}{
		{"len([1, 2, 3])", vm.Int(3)},
		{"let l = [1]; push(l, 2); len(l)", vm.Int(2)},
		{"let l = [1, 2]; pop(l) + len(l) * 10", vm.Int(12)},
		{"cos(0)", vm.Real(1)},
		{"cos(0.0)", vm.Real(1)},
		{"sqrt(16)", vm.Real(4)},
		{"abs(-3)", vm.Int(3)},
		{"abs(-2.5)", vm.Real(2.5)},
		{"int(2.9)", vm.Int(2)},
		{"int(-2.9)", vm.Int(-2)},
		{"int(7)", vm.Int(7)},
		{"real(3)", vm.Real(3)},
	}
	for _, tt := range tests {
		got, _, err := run(t, tt.src)
		if err != nil {
			t.Errorf("%q: %v", tt.src, err)
			continue
		}
		if !vm.Equal(got, tt.want) {
			t.Errorf("%q = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestPrint(t *testing.T) {
	v, out, err := run(t, "print(1 + 1); print([1, 2.5, true]); print(len)")
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsVoid() {
		t.Errorf("result = %v, want ()", v)
	}
	want := "2\n[1, 2.5, true]\nnative#1\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestNativeFaults(t *testing.T) {
	tests := []struct {
		src     string
		message string
	}{
		{"len(1)", "Unsupported value 1 for function \"len\"."},
		{"pop([])", "Unable to pop from an empty list."},
		{"cos(true)", "Unsupported value true for function \"cos\"."},
		{"int(1.0 / 0)", "Unable to convert +Inf to an integer."},
		{"len()", "Expected 1 function call arguments, found 0."},
	}
	for _, tt := range tests {
		_, _, err := run(t, tt.src)
		if err == nil {
			t.Errorf("%q: expected fault", tt.src)
			continue
		}
		if err.Error() != tt.message {
			t.Errorf("%q: message = %q, want %q", tt.src, err.Error(), tt.message)
		}
	}
}

func TestCustomFaultKind(t *testing.T) {
	_, _, err := run(t, "pop([])")
	if !errors.Is(err, vm.ErrCustom) {
		t.Errorf("err = %v, want custom fault", err)
	}
}

func TestIntRejectsNaN(t *testing.T) {
	_, _, err := run(t, "int(0.0 / 0.0)")
	if err == nil {
		t.Fatal("expected fault")
	}
	if v, _, _ := run(t, "real(1) / 0"); !vm.Equal(v, vm.Real(math.Inf(1))) {
		t.Errorf("real(1) / 0 = %v", v)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	n := vm.NewNatives()
	Register(n, &bytes.Buffer{})
	Register(n, &bytes.Buffer{})
}
