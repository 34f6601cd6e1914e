// Package status defines the closed error taxonomy shared by every public
// orchestration operation.
package status

import "fmt"

// Code is a closed set of outcome codes used throughout the orchestration
// core. It intentionally mirrors a small gRPC-style status enum rather than
// Go's open error interface, so callers can switch on it.
type Code int

const (
	OK Code = iota
	Unknown
	NotFound
	AlreadyExists
	FailedPrecondition
	Internal
	DeadlineExceeded
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Unknown:
		return "UNKNOWN"
	case NotFound:
		return "NOT_FOUND"
	case AlreadyExists:
		return "ALREADY_EXISTS"
	case FailedPrecondition:
		return "FAILED_PRECONDITION"
	case Internal:
		return "INTERNAL"
	case DeadlineExceeded:
		return "DEADLINE_EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

// Status is a structured outcome carrying a code and a human-readable
// message. It is never partial: callers receive either success or exactly
// one Status.
type Status struct {
	Code    Code
	Message string
}

// Error implements the error interface, wrapping Status so it can be
// returned and inspected via errors.As.
type Error struct {
	Status Status
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Status.Code, e.Status.Message)
}

// New builds a structured error with the given code and formatted message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Status: Status{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// Wrap re-packages an arbitrary error as UNKNOWN, preserving its message,
// unless it is already a structured *Error, in which case it is returned
// unchanged. This is the Go equivalent of the upstream's
// `_to_status_not_ok_error` decorator.
func Wrap(fnName string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if as(err, &se) {
		return se
	}
	return New(Unknown, "%s error: %s", fnName, err.Error())
}

// as reports whether err is itself a *Error and, if so, stores it in
// target. Unlike errors.As it does not unwrap err, so a *Error wrapped by
// another error (e.g. via fmt.Errorf's %w) is not matched.
func as(err error, target **Error) bool {
	if se, ok := err.(*Error); ok {
		*target = se
		return true
	}
	return false
}

// CodeOf returns the structured code of err, OK if err is nil, or Unknown if err is not a
// structured *Error.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var se *Error
	if as(err, &se) {
		return se.Status.Code
	}
	return Unknown
}

// Is reports whether err is a structured error with the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
