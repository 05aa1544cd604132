package hubkit

import (
	"sync"

	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/fgrzl/hubkit/pkg/env"
	"github.com/fgrzl/hubkit/pkg/logging"
	"github.com/fgrzl/hubkit/pkg/metrics"
	"github.com/fgrzl/hubkit/pkg/pubsub"
	"github.com/fgrzl/hubkit/pkg/request"
	"github.com/fgrzl/hubkit/pkg/xhr"
)

// Builder collects configuration until Build freezes it into a Hub.
type Builder struct {
	mu        sync.RWMutex
	sandbox   Sandbox
	options   options
	finalized bool
}

func NewBuilder(opts ...Option) *Builder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := &Builder{options: o}
	log := logging.New(o.logger)

	transport := o.transport
	if transport == nil {
		transport = xhr.NewTransport()
	}

	bus := o.bus
	if bus == nil {
		bus = pubsub.New(pubsub.WithLogger(log))
	}

	// The request engine reports setup failures through whatever logger and
	// codec the builder holds at call time, so log and json middleware reach it.
	b.sandbox = Sandbox{
		Env:     env.New(),
		Log:     log,
		JSON:    codec.Default,
		PubSub:  bus,
		Request: request.NewClient(transport, b.staticLog(), lateCodec{b}, o.defaults),
	}
	return b
}

// Config registers plugin configuration. fn sees the sandbox as configured so
// far. The returned Config is validated as a whole before anything is applied.
func (b *Builder) Config(fn func(Sandbox) Config) error {
	b.mu.RLock()
	finalized, snapshot := b.finalized, b.sandbox
	b.mu.RUnlock()
	if finalized {
		return ErrFinalized
	}
	if fn == nil {
		return ErrNoConfiguration
	}

	stages, err := fn(snapshot).validate()
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return ErrFinalized
	}
	for _, apply := range stages {
		apply(&b.sandbox)
	}
	return nil
}

// Build finalizes the builder. Later Config and Build calls fail with
// ErrFinalized.
func (b *Builder) Build() (*Hub, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return nil, ErrFinalized
	}

	if b.options.metrics != nil {
		m, err := metrics.New(b.options.metrics)
		if err != nil {
			return nil, err
		}
		b.sandbox.Request = m.Middleware()(b.sandbox.Request)
	}

	b.finalized = true
	return &Hub{sandbox: b.sandbox, log: b.staticLog()}, nil
}

func (b *Builder) currentLog() logging.Logger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sandbox.Log
}

func (b *Builder) currentJSON() codec.Codec {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sandbox.JSON
}

func (b *Builder) staticLog() logging.Logger {
	return logging.Func{
		LogFn:   func(args ...any) { b.currentLog().Log(args...) },
		ErrorFn: func(args ...any) { b.currentLog().Error(args...) },
	}
}

type lateCodec struct {
	b *Builder
}

func (c lateCodec) FromJSON(text string) (any, error) {
	return c.b.currentJSON().FromJSON(text)
}

func (c lateCodec) ToJSON(value any, indent int) (string, error) {
	return c.b.currentJSON().ToJSON(value, indent)
}
