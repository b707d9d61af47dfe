package callerr

import (
	"errors"
	"fmt"
)

var (
	ErrSignalingError = errors.New("signaling server error")
	ErrTimeout        = errors.New("timeout")
	ErrLeft           = errors.New("left the room")
)

// Error describes a failed call operation, optionally scoped to one participant session.
type Error struct {
	Op      string
	Session string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Session != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Session, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func NewSessionError(op, session string, err error) *Error {
	return &Error{Op: op, Session: session, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
