package hubkit

import (
	"errors"
	"fmt"

	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/fgrzl/hubkit/pkg/env"
	"github.com/fgrzl/hubkit/pkg/logging"
	"github.com/fgrzl/hubkit/pkg/pubsub"
	"github.com/fgrzl/hubkit/pkg/request"
)

var (
	ErrNoConfiguration    = errors.New("hubkit: no configuration")
	ErrUnknownCapability  = errors.New("encountered configuration for unknown middleware")
	ErrMiddlewareMismatch = errors.New("hubkit: middleware does not match capability")
	ErrFinalized          = errors.New("hubkit: hub already built")
)

type (
	EnvMiddleware     func(next *env.Env) *env.Env
	LogMiddleware     func(next logging.Logger) logging.Logger
	JSONMiddleware    func(next codec.Codec) codec.Codec
	PubSubMiddleware  func(next pubsub.PubSub) pubsub.PubSub
	RequestMiddleware func(next request.Client) request.Client
)

// Middleware is one of the *Middleware function types above, or an unnamed
// function with the same signature.
type Middleware any

// Config maps capabilities to the middleware decorating them.
type Config map[Capability]Middleware

// stage is a validated Config entry ready to apply.
type stage func(*Sandbox)

func (c Config) validate() ([]stage, error) {
	if len(c) == 0 {
		return nil, ErrNoConfiguration
	}
	for name := range c {
		if !name.known() {
			return nil, fmt.Errorf("%w '%s'", ErrUnknownCapability, name)
		}
	}

	var stages []stage
	for _, name := range capabilities {
		mw, ok := c[name]
		if !ok {
			continue
		}
		s, err := stageFor(name, mw)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}

func stageFor(name Capability, mw Middleware) (stage, error) {
	mismatch := fmt.Errorf("%w: %s got %T", ErrMiddlewareMismatch, name, mw)

	switch name {
	case CapabilityEnv:
		fn, ok := asEnv(mw)
		if !ok {
			return nil, mismatch
		}
		return func(s *Sandbox) { s.Env = fn(s.Env) }, nil
	case CapabilityJSON:
		fn, ok := asJSON(mw)
		if !ok {
			return nil, mismatch
		}
		return func(s *Sandbox) { s.JSON = fn(s.JSON) }, nil
	case CapabilityLog:
		fn, ok := asLog(mw)
		if !ok {
			return nil, mismatch
		}
		return func(s *Sandbox) { s.Log = fn(s.Log) }, nil
	case CapabilityPubSub:
		fn, ok := asPubSub(mw)
		if !ok {
			return nil, mismatch
		}
		return func(s *Sandbox) { s.PubSub = fn(s.PubSub) }, nil
	case CapabilityRequest:
		fn, ok := asRequest(mw)
		if !ok {
			return nil, mismatch
		}
		return func(s *Sandbox) { s.Request = fn(s.Request) }, nil
	}
	return nil, fmt.Errorf("%w '%s'", ErrUnknownCapability, name)
}

func asEnv(mw Middleware) (EnvMiddleware, bool) {
	switch fn := mw.(type) {
	case EnvMiddleware:
		return fn, fn != nil
	case func(*env.Env) *env.Env:
		return fn, fn != nil
	}
	return nil, false
}

func asJSON(mw Middleware) (JSONMiddleware, bool) {
	switch fn := mw.(type) {
	case JSONMiddleware:
		return fn, fn != nil
	case func(codec.Codec) codec.Codec:
		return fn, fn != nil
	}
	return nil, false
}

func asLog(mw Middleware) (LogMiddleware, bool) {
	switch fn := mw.(type) {
	case LogMiddleware:
		return fn, fn != nil
	case func(logging.Logger) logging.Logger:
		return fn, fn != nil
	}
	return nil, false
}

func asPubSub(mw Middleware) (PubSubMiddleware, bool) {
	switch fn := mw.(type) {
	case PubSubMiddleware:
		return fn, fn != nil
	case func(pubsub.PubSub) pubsub.PubSub:
		return fn, fn != nil
	}
	return nil, false
}

func asRequest(mw Middleware) (RequestMiddleware, bool) {
	switch fn := mw.(type) {
	case RequestMiddleware:
		return fn, fn != nil
	case func(request.Client) request.Client:
		return fn, fn != nil
	}
	return nil, false
}
