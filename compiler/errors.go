package compiler

import "errors"

// Error is a compile fault: a message and the source range it refers to.
type Error struct {
	Message string
	Pos     Position
	atEnd   bool
}

func (e *Error) Error() string { return e.Message }

// Incomplete reports whether the fault was raised at the end of input, so
// more source could still make the unit valid.
func (e *Error) Incomplete() bool { return e.atEnd }

// AsError extracts a compile fault from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
