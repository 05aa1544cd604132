package request

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnsupportedBody   = errors.New(`given "request" body not supported`)
	ErrUnsupportedMethod = errors.New("unsupported request method")
	ErrUnsupportedType   = errors.New("unsupported response type")

	// Default rejections of Await when the terminal carries no error.
	ErrRequestFailed  = errors.New("hub.request:error")
	ErrRequestAborted = errors.New("hub.request:abort")
	ErrRequestTimeout = errors.New("hub.request:timeout")

	// ErrReentrantAwait rejects Await from inside a listener of the same
	// stream, which could never settle.
	ErrReentrantAwait = errors.New("hub.request: await from a listener of the same stream")
)

// StatusError is the error terminal for a response outside the ok range.
type StatusError struct {
	Status     int
	StatusText string
	Loaded     int64
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (%d)", e.StatusText, e.Status)
}

func (e *StatusError) Is(target error) bool { return target == ErrRequestFailed }

// TimeoutError is the timeout terminal's error.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %dms", e.Timeout.Milliseconds())
}

func (e *TimeoutError) Is(target error) bool { return target == ErrRequestTimeout }

// NetworkError wraps a transport level failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return "network error"
	}
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrRequestFailed }
