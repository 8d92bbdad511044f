package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure. Callers match on kind, not on type identity.
type ErrorKind int

const (
	KindConnect     ErrorKind = iota + 1 // transport could not be opened
	KindIO                               // transport failed mid-session
	KindTimeout                          // no reply within the command deadline
	KindDevice                           // device rejected the command
	KindOutOfRange                       // value violates the model profile
	KindUnsupported                      // command not available on this model
	KindClosed                           // session torn down
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindIO:
		return "io"
	case KindTimeout:
		return "timeout"
	case KindDevice:
		return "device"
	case KindOutOfRange:
		return "out_of_range"
	case KindUnsupported:
		return "unsupported"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the client.
type Error struct {
	Kind    ErrorKind
	Op      string // command text or operation name, may be empty
	Code    int    // device error code, KindDevice only
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Kind == KindDevice && e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so
// errors.Is(err, ErrTimeout) works for any timeout.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrConnect     = &Error{Kind: KindConnect, Message: "connect failed"}
	ErrIO          = &Error{Kind: KindIO, Message: "i/o failure"}
	ErrTimeout     = &Error{Kind: KindTimeout, Message: "timed out waiting for reply"}
	ErrDevice      = &Error{Kind: KindDevice, Message: "device rejected command"}
	ErrOutOfRange  = &Error{Kind: KindOutOfRange, Message: "value out of range"}
	ErrUnsupported = &Error{Kind: KindUnsupported, Message: "not supported by this model"}
	ErrClosed      = &Error{Kind: KindClosed, Message: "connection closed"}
)

// Error constructors.
var (
	ConnectError = func(addr string, err error) *Error {
		return &Error{Kind: KindConnect, Op: addr, Message: "connect failed", Err: err}
	}
	IOError = func(op string, err error) *Error {
		return &Error{Kind: KindIO, Op: op, Message: "i/o failure", Err: err}
	}
	TimeoutError = func(op string) *Error {
		return &Error{Kind: KindTimeout, Op: op, Message: "timed out waiting for reply"}
	}
	DeviceError = func(op string, code int, msg string) *Error {
		return &Error{Kind: KindDevice, Op: op, Code: code, Message: msg}
	}
	OutOfRangeError = func(op string, format string, args ...any) *Error {
		return &Error{Kind: KindOutOfRange, Op: op, Message: fmt.Sprintf(format, args...)}
	}
	UnsupportedError = func(op, model string) *Error {
		return &Error{Kind: KindUnsupported, Op: op, Message: "not supported by " + model}
	}
	ClosedError = func(cause error) *Error {
		return &Error{Kind: KindClosed, Message: "connection closed", Err: cause}
	}
)

// KindOf returns the kind of err, or 0 if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
