// Package callbag implements the handshake protocol shared by every stream in
// the hub: a source greets a sink with Start, pushes zero or more Data values
// and finishes with at most one End.
package callbag

import (
	"errors"
	"fmt"
)

// Type identifies a protocol message.
type Type int

const (
	TypeStart Type = iota
	TypeData
	TypeEnd
)

func (t Type) String() string {
	switch t {
	case TypeStart:
		return "start"
	case TypeData:
		return "data"
	case TypeEnd:
		return "end"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Signal is sent from a sink back to its source through the talkback.
type Signal int

const (
	// Pull asks the source for the next value. Push sources may ignore it.
	Pull Signal = iota + 1
	// Terminate cancels the subscription.
	Terminate
)

// Talkback is the control channel a source hands to its sink in Start.
type Talkback func(Signal)

// Message is one of Start, Data or End.
type Message[T any] interface {
	Type() Type
	message()
}

type Start[T any] struct {
	Talkback Talkback
}

type Data[T any] struct {
	Value T
}

// End terminates the stream. Err is nil for a normal completion.
type End[T any] struct {
	Err error
}

func (Start[T]) Type() Type { return TypeStart }
func (Data[T]) Type() Type  { return TypeData }
func (End[T]) Type() Type   { return TypeEnd }

func (Start[T]) message() {}
func (Data[T]) message()  {}
func (End[T]) message()   {}

// Sink receives protocol messages.
type Sink[T any] func(Message[T])

// Source is started by handing it a sink.
type Source[T any] func(Sink[T])

// Subscription is a cold, startable stream handle.
type Subscription[T any] interface {
	// Start hands the sink to the stream. Only the first call has an effect.
	Start(sink Sink[T])
	// Unsubscribe detaches the sink. It is idempotent.
	Unsubscribe()
}

// ErrProtocolViolation is the sentinel wrapped by every ProtocolError.
var ErrProtocolViolation = errors.New("callbag: protocol violation")

// ProtocolError reports a message delivered out of order. It is raised as a
// panic: a source that breaks the ordering rules is a programming error.
type ProtocolError struct {
	Type   Type
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s message %s", ErrProtocolViolation, e.Type, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocolViolation }
