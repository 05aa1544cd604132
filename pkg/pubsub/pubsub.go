// Package pubsub provides channel based publish/subscribe on top of an
// in-process event bus.
package pubsub

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"github.com/fgrzl/hubkit/internal/dispatch"
	"github.com/fgrzl/hubkit/pkg/callbag"
	"github.com/fgrzl/hubkit/pkg/logging"
	"github.com/fgrzl/hubkit/pkg/multicast"
	"github.com/google/uuid"
)

// ErrorChannel receives an ErrorInfo whenever a listener panics.
const ErrorChannel = "hub:error"

// PubSub is the messaging capability.
type PubSub interface {
	Publish(channel string, data any)
	Subscribe(channel string) callbag.Subscription[any]
}

// ErrorInfo describes a recovered listener panic.
type ErrorInfo struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// message wraps published data so nil payloads survive the bus.
type message struct {
	Data any
}

// Bus delivers messages published on a channel to every subscriber of that
// channel. Delivery happens on the dispatch queue after the publishing call
// has been queued, so a listener may publish or subscribe reentrantly.
//
// Topics are namespaced by a per-bus realm, which lets several buses share
// one underlying evbus.Bus without seeing each other's traffic.
type Bus struct {
	realm string
	bus   evbus.Bus
	log   logging.Logger
	queue *dispatch.Queue

	mu       sync.Mutex
	channels map[string]*multicast.Registry[any]
}

type Option func(*Bus)

// WithEventBus shares an existing event bus. Buses built this way have their
// own dispatch queues and must not publish into each other from inside a
// listener; use Sibling for that.
func WithEventBus(bus evbus.Bus) Option {
	return func(b *Bus) { b.bus = bus }
}

// WithLogger sets the logger used for listener failures.
func WithLogger(log logging.Logger) Option {
	return func(b *Bus) { b.log = log }
}

func New(opts ...Option) *Bus {
	b := &Bus{
		realm:    uuid.NewString(),
		channels: make(map[string]*multicast.Registry[any]),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.bus == nil {
		b.bus = evbus.New()
	}
	if b.queue == nil {
		b.queue = &dispatch.Queue{}
	}
	if b.log == nil {
		b.log = logging.New(nil)
	}
	return b
}

// Sibling returns a bus in a fresh realm that shares the event bus and the
// dispatch queue of b.
func (b *Bus) Sibling() *Bus {
	return &Bus{
		realm:    uuid.NewString(),
		bus:      b.bus,
		log:      b.log,
		queue:    b.queue,
		channels: make(map[string]*multicast.Registry[any]),
	}
}

// Publish queues data for every current subscriber of channel.
func (b *Bus) Publish(channel string, data any) {
	b.queue.Do(func() {
		b.bus.Publish(b.topic(channel), message{Data: data})
	})
}

// Subscribe returns an unstarted subscription to channel.
func (b *Bus) Subscribe(channel string) callbag.Subscription[any] {
	return &subscription{bus: b, channel: channel}
}

func (b *Bus) topic(channel string) string {
	return b.realm + ":" + channel
}

// registry returns the listeners of channel, wiring the channel to the event
// bus on first use. Only called from the dispatch queue.
func (b *Bus) registry(channel string) (*multicast.Registry[any], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reg, ok := b.channels[channel]; ok {
		return reg, nil
	}
	reg := multicast.New[any]()
	if err := b.bus.Subscribe(b.topic(channel), func(m message) { reg.NotifyAll(m.Data) }); err != nil {
		return nil, fmt.Errorf("pubsub: subscribe %q: %w", channel, err)
	}
	b.channels[channel] = reg
	slog.Debug("pubsub: channel opened", slog.String("channel", channel))
	return reg, nil
}

func (b *Bus) deliver(channel string, sink callbag.Sink[any], data any) {
	defer b.recover(channel)
	sink(callbag.Data[any]{Value: data})
}

func (b *Bus) recover(channel string) {
	r := recover()
	if r == nil {
		return
	}
	var protocolErr *callbag.ProtocolError
	if err, ok := r.(error); ok && errors.As(err, &protocolErr) {
		panic(r)
	}

	info := ErrorInfo{Channel: channel, Message: fmt.Sprint(r), Stack: string(debug.Stack())}
	b.log.Error("pubsub: listener failed", slog.String("channel", channel), slog.String("error", info.Message))
	if channel != ErrorChannel {
		b.Publish(ErrorChannel, info)
	}
}

type subscription struct {
	bus     *Bus
	channel string

	once   sync.Once
	mu     sync.Mutex
	closed bool
	reg    *multicast.Registry[any]
	token  multicast.Token
}

func (s *subscription) Start(sink callbag.Sink[any]) {
	s.once.Do(func() {
		guarded := callbag.Guard(sink)
		s.bus.queue.Do(func() { s.attach(guarded) })
	})
}

func (s *subscription) attach(sink callbag.Sink[any]) {
	sink(callbag.Start[any]{Talkback: s.talkback})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	reg, err := s.bus.registry(s.channel)
	if err != nil {
		s.closed = true
		sink(callbag.End[any]{Err: err})
		return
	}
	s.reg = reg
	s.token = reg.Add(func(data any) {
		if s.isClosed() {
			return
		}
		s.bus.deliver(s.channel, sink, data)
	})
}

func (s *subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *subscription) talkback(sig callbag.Signal) {
	if sig == callbag.Terminate {
		s.Unsubscribe()
	}
}

// Unsubscribe stops delivery immediately, including for messages that are
// already queued. It is idempotent.
func (s *subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	reg, token := s.reg, s.token
	s.mu.Unlock()

	if reg != nil {
		reg.Remove(token)
	}
}
