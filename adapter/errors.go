package adapter

import (
	"errors"
	"fmt"
	"io"
)

// Code is the error code reported to callers of the engine.
type Code string

const (
	CodeInvalidArgs    Code = "invalid_args"
	CodeConnectFailed  Code = "connect_failed"
	CodeInvalidSession Code = "invalid_session"
	CodeWriteFailed    Code = "write_failed"
)

// Error is a coded transport error. Two errors match under errors.Is when
// the target has the same code and no message.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a bare *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Code == e.Code
}

// Sentinels for errors.Is matching by code.
var (
	ErrInvalidParameters = &Error{Code: CodeInvalidArgs}
	ErrConnectFailed     = &Error{Code: CodeConnectFailed}
	ErrInvalidSession    = &Error{Code: CodeInvalidSession}
	ErrWriteFailed       = &Error{Code: CodeWriteFailed}
)

// Causes wrapped inside coded errors.
var (
	ErrDeviceNotFound      = errors.New("usb device not found")
	ErrNoBulkOutEndpoint   = errors.New("bulk OUT endpoint not found")
	ErrPortNotFound        = errors.New("serial port not found for vendorId/productId")
	ErrUnsupportedPlatform = errors.New("operation not supported on this platform")
	ErrShortWrite          = io.ErrShortWrite
	ErrClosed              = errors.New("channel closed")
)

func invalidArgs(format string, args ...any) error {
	return &Error{Code: CodeInvalidArgs, Msg: fmt.Sprintf(format, args...)}
}

func connectFailed(msg string, err error) error {
	return &Error{Code: CodeConnectFailed, Msg: msg, Err: err}
}

func writeFailed(msg string, err error) error {
	return &Error{Code: CodeWriteFailed, Msg: msg, Err: err}
}

// InvalidArgs builds an invalid_args error.
func InvalidArgs(format string, args ...any) error { return invalidArgs(format, args...) }

// InvalidSession builds an invalid_session error for id.
func InvalidSession(id string) error {
	return &Error{Code: CodeInvalidSession, Msg: fmt.Sprintf("session not found: %s", id)}
}

// CodeOf returns the code carried by err, or "" when err is not a coded error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
