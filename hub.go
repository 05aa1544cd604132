package hubkit

import (
	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/fgrzl/hubkit/pkg/env"
	"github.com/fgrzl/hubkit/pkg/logging"
	"github.com/fgrzl/hubkit/pkg/pubsub"
	"github.com/fgrzl/hubkit/pkg/request"
)

// Capability names one extension of the sandbox.
type Capability string

const (
	CapabilityEnv     Capability = "env"
	CapabilityJSON    Capability = "json"
	CapabilityLog     Capability = "log"
	CapabilityPubSub  Capability = "pubsub"
	CapabilityRequest Capability = "request"
)

// capabilities in application order.
var capabilities = []Capability{
	CapabilityEnv,
	CapabilityJSON,
	CapabilityLog,
	CapabilityPubSub,
	CapabilityRequest,
}

func (c Capability) known() bool {
	for _, k := range capabilities {
		if k == c {
			return true
		}
	}
	return false
}

// Sandbox is the capability surface handed to plugins.
type Sandbox struct {
	Env     *env.Env
	Log     logging.Logger
	JSON    codec.Codec
	PubSub  pubsub.PubSub
	Request request.Client
}

// Hub is a finalized sandbox. It is safe for concurrent use.
type Hub struct {
	sandbox Sandbox
	log     logging.Logger
}

// Use runs fn with its own copy of the sandbox. Reassigning fields on the copy
// does not affect the hub or other plugins.
func (h *Hub) Use(fn func(*Sandbox)) {
	sandbox := h.Sandbox()
	fn(&sandbox)
}

// Log is the hub's static logger, decorated by any log middleware.
func (h *Hub) Log() logging.Logger {
	return h.log
}

// Sandbox returns a fresh copy of the sandbox.
func (h *Hub) Sandbox() Sandbox {
	return h.sandbox
}
