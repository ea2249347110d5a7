// Package errcode holds the stable error kinds surfaced by the sync protocol.
package errcode

import "errors"

// Code is a stable, wire-facing error identifier.
// It is a string newtype, comparable, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

const (
	OK Code = "ok"

	// ValidationClamped: a field was out of range and replaced with a safe value; the write proceeds.
	ValidationClamped Code = "validation_clamped"
	// StorageUnavailable: the transaction could not commit; nothing was written.
	StorageUnavailable Code = "storage_unavailable"
	// UnknownDevice: first contact, auto-provisioned. Informational.
	UnknownDevice Code = "unknown_device"
	// MissingRequiredField: rejected before any write.
	MissingRequiredField Code = "missing_required_field"
	InvalidArgument      Code = "invalid_argument"
	NoData               Code = "no_data"
	// TooLarge: request body over the accepted size, nothing was parsed.
	TooLarge Code = "too_large"

	Error Code = "error" // generic fallback
)

// E keeps the operation and the cause next to the code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.StorageUnavailable) match a wrapped *E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

func New(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

// Cause returns the innermost non-code error text, useful for sql_error fields.
func Cause(err error) string {
	var e *E
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
