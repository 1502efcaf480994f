package channel

import (
	"errors"
	"fmt"
)

// Channel error values
var (
	ErrNilConn          = errors.New("channel requires a connection to send on")
	ErrEmptyPath        = errors.New("path must not be empty")
	ErrNilHandler       = errors.New("handler must not be nil")
	ErrInvalidHandler   = errors.New("handler must be a function of the form func([context.Context][, T]) ([R][, error])")
	ErrPathExists       = errors.New("a handler is already registered for this path")
	ErrClosed           = errors.New("connection is closed")
	ErrRunning          = errors.New("channel is already running")
	ErrAlreadyCompleted = errors.New("call already completed")
)

// Error codes sent by the channel itself
const (
	CodeError       = "error"
	CodeNoSuchPath  = "no_such_path"
	CodeRateLimited = "rate_limited"
	CodePanic       = "panic"
)

// Coder is implemented by errors that carry an error code.
// When a handler returns such an error, its code is sent
// to the peer instead of CodeError.
type Coder interface {
	ErrorCode() any
}

// Error is an error a handler can return to choose
// the code the peer receives
type Error struct {
	Code    any
	Message string
}

// NewError creates a new Error with the given code and message
func NewError(code any, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) ErrorCode() any { return e.Code }

// RemoteError is returned by calls that the peer failed
type RemoteError struct {
	Message string
	// Code is whatever the peer sent, usually a string
	// or a number. It is not interpreted.
	Code any
}

func (e *RemoteError) Error() string { return e.Message }

// ErrorCode returns the code the peer sent. This means that
// a handler returning a RemoteError passes the code through.
func (e *RemoteError) ErrorCode() any { return e.Code }

// ProtocolErrorKind identifies the kind of a ProtocolError
type ProtocolErrorKind string

const (
	// KindUnknownID means a response arrived for a call that was
	// never made or has already completed. Calls leave the pending
	// table when they complete, so duplicate responses land here.
	KindUnknownID ProtocolErrorKind = "unknown_id"
	// KindNoSuchPath means the peer called a path that is not registered
	KindNoSuchPath ProtocolErrorKind = "no_such_path"
	// KindInvalidResponse means a response could not be decoded
	KindInvalidResponse ProtocolErrorKind = "invalid_response"
	// KindInvalidRequest means a request could not be decoded
	KindInvalidRequest ProtocolErrorKind = "invalid_request"
)

// ProtocolError reports a peer (or local) bug that the channel
// recovered from. It is never returned from a call, only passed
// to the logger, the metrics and the protocol error handler.
type ProtocolError struct {
	Kind ProtocolErrorKind
	ID   any
	Path string
	Err  error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("protocol error (%s): id=%v", e.Kind, e.ID)
	if e.Path != "" {
		msg += " path=" + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// errorInfo returns the message and code to send for err
func errorInfo(err error) (string, any) {
	var coder Coder
	if errors.As(err, &coder) {
		return err.Error(), coder.ErrorCode()
	}
	return err.Error(), CodeError
}
