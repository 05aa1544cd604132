// Package xhr defines the event-emitting request primitive the request engine
// drives, and a net/http implementation of it.
//
// The primitive follows the browser XMLHttpRequest lifecycle: Open, optional
// header and option setters, Send, then a stream of progress events followed
// by exactly one of load, error, abort or timeout, and finally loadend.
package xhr

import (
	"errors"
	"time"
)

type ResponseType string

const (
	ResponseTypeDefault     ResponseType = ""
	ResponseTypeArrayBuffer ResponseType = "arraybuffer"
	ResponseTypeBlob        ResponseType = "blob"
	ResponseTypeDocument    ResponseType = "document"
	ResponseTypeJSON        ResponseType = "json"
	ResponseTypeText        ResponseType = "text"
)

// Valid reports whether t is one of the known response types.
func (t ResponseType) Valid() bool {
	switch t {
	case ResponseTypeDefault, ResponseTypeArrayBuffer, ResponseTypeBlob,
		ResponseTypeDocument, ResponseTypeJSON, ResponseTypeText:
		return true
	}
	return false
}

type EventType string

const (
	EventProgress EventType = "progress"
	EventLoad     EventType = "load"
	EventError    EventType = "error"
	EventAbort    EventType = "abort"
	EventTimeout  EventType = "timeout"
	EventLoadEnd  EventType = "loadend"
)

// Event mirrors a progress event. Err is set on error events.
type Event struct {
	Type             EventType
	LengthComputable bool
	Loaded           int64
	Total            int64
	Err              error
}

type Listener func(Event)

// XHR is a single-use request primitive.
type XHR interface {
	Open(method, url string, async bool) error
	SetRequestHeader(name, value string) error
	SetResponseType(t ResponseType)
	// SetTimeout bounds the whole exchange. Zero disables it. Only honored in
	// asynchronous mode.
	SetTimeout(d time.Duration)
	SetWithCredentials(v bool)
	AddEventListener(t EventType, fn Listener)
	Send(body any) error
	Abort()
	Status() int
	StatusText() string
	Response() any
}

// Factory creates fresh primitives.
type Factory interface {
	New() XHR
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func() XHR

func (f FactoryFunc) New() XHR { return f() }

// Blob is the response for ResponseTypeBlob.
type Blob struct {
	Type string
	Data []byte
}

var (
	ErrInvalidState       = errors.New("xhr: invalid state")
	ErrInvalidHeaderName  = errors.New("xhr: invalid header name")
	ErrInvalidHeaderValue = errors.New("xhr: invalid header value")
	ErrInvalidMethod      = errors.New("xhr: invalid method")
	ErrUnsupportedBody    = errors.New("xhr: unsupported body")
)
