package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Fault kinds
// ---------------------------------------------------------------------------

var (
	ErrStackOverflow   = errors.New("stack overflow")
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrOpcodeFetch     = errors.New("read past end of code")
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrArity           = errors.New("argument count mismatch")
	ErrUnexpectedType  = errors.New("unexpected value type")
	ErrBinaryOperation = errors.New("invalid binary operation")
	ErrUnaryOperation  = errors.New("invalid unary operation")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrAddressOverflow = errors.New("address overflow")
	ErrFetchGlobal     = errors.New("global is not set")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrCustom          = errors.New("native error")
)

// Fault is a run-time error. PC is the address of the instruction that
// failed; a chunk's position map resolves it to a source range.
type Fault struct {
	Err     error  // one of the Err* kinds above
	Message string // detail, empty when Err says it all
	PC      uint32
}

func (f *Fault) Error() string {
	if f.Message != "" {
		return f.Message
	}
	return f.Err.Error()
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// AsFault extracts a *Fault from err.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	ok := errors.As(err, &f)
	return f, ok
}

// faultf builds a fault of the given kind at the current instruction.
func (m *Machine) faultf(kind error, format string, args ...interface{}) *Fault {
	return &Fault{Err: kind, Message: fmt.Sprintf(format, args...), PC: m.pc}
}

// Errorf raises a custom fault from inside a native.
func (m *Machine) Errorf(format string, args ...interface{}) error {
	return m.faultf(ErrCustom, format, args...)
}

// fault normalizes any error surfacing from dispatch into a *Fault.
func (m *Machine) fault(err error) *Fault {
	if f, ok := AsFault(err); ok {
		return f
	}
	if isKind(err) {
		return &Fault{Err: err, PC: m.pc}
	}
	return &Fault{Err: ErrCustom, Message: err.Error(), PC: m.pc}
}

func isKind(err error) bool {
	switch err {
	case ErrStackOverflow, ErrStackUnderflow, ErrOpcodeFetch, ErrUnknownOpcode,
		ErrArity, ErrUnexpectedType, ErrBinaryOperation, ErrUnaryOperation,
		ErrDivisionByZero, ErrAddressOverflow, ErrFetchGlobal, ErrIndexOutOfRange,
		ErrCustom:
		return true
	}
	return false
}
