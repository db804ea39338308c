// Package errs holds the structured error type shared by the root tcmud
// package and internal/manager — split out of the root package so manager
// (which the root package itself imports) can produce these errors too
// without an import cycle.
package errs

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured tcmud error with device context and errno
// mapping.
type Error struct {
	Op      string // operation that failed (e.g., "ADD_DEVICE", "NETLINK_RECV")
	UioName string // device's uio name, empty if not applicable
	Code    ErrorCode
	Errno   syscall.Errno
	Msg     string
	Inner   error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.UioName != "" {
		parts = append(parts, fmt.Sprintf("uio=%s", e.UioName))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("tcmud: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("tcmud: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is the high-level taxonomy: setup-fatal, per-device-fatal,
// control-message-malformed, and worker I/O failures. Per-command-recoverable
// failures never surface as a Go error at all — they turn into CHECK
// CONDITION sense data and stay inside the ring.
type ErrorCode string

const (
	ErrCodeSetupFatal       ErrorCode = "setup fatal"
	ErrCodeDeviceFatal      ErrorCode = "device fatal"
	ErrCodeMalformedControl ErrorCode = "malformed control message"
	ErrCodeWorkerIO         ErrorCode = "worker I/O error"
	ErrCodeDeviceNotFound   ErrorCode = "device not found"
	ErrCodeDeviceExists     ErrorCode = "device already added"
	ErrCodeHandlerNotFound  ErrorCode = "handler not found"
	ErrCodeInvalidCfgString ErrorCode = "invalid cfgstring"
	ErrCodePermissionDenied ErrorCode = "permission denied"
)

func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

func NewDeviceError(op, uioName string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, UioName: uioName, Code: code, Msg: msg}
}

// WrapError wraps an existing error with tcmud context, mapping syscall
// errnos to an ErrorCode.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if te, ok := inner.(*Error); ok {
		return &Error{Op: op, UioName: te.UioName, Code: te.Code, Errno: te.Errno, Msg: te.Msg, Inner: te.Inner}
	}
	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Code: ErrCodeWorkerIO, Msg: inner.Error(), Inner: inner}
}

func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ENOENT:
		return ErrCodeDeviceNotFound
	case syscall.EEXIST:
		return ErrCodeDeviceExists
	case syscall.EINVAL:
		return ErrCodeInvalidCfgString
	case syscall.EPERM, syscall.EACCES:
		return ErrCodePermissionDenied
	default:
		return ErrCodeWorkerIO
	}
}

// IsCode checks whether err carries the given ErrorCode.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
