package hubkit

import (
	"context"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/hubkit/pkg/callbag"
	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/fgrzl/hubkit/pkg/pubsub"
	"github.com/fgrzl/hubkit/pkg/request"
)

type (
	Event     = request.Event
	EventName = request.EventName
	Options   = request.Options
	Stream    = request.Stream
	Signal    = request.Signal
	ErrorInfo = pubsub.ErrorInfo
	Object    = codec.Object
)

// Events drains stream into an enumerator. It returns once the stream has
// completed, so progress is only visible after the fact; subscribe with
// callbag.ForEach to follow a running request. ctx cancellation unsubscribes
// and surfaces ctx.Err().
func Events(ctx context.Context, stream Stream) enumerators.Enumerator[Event] {
	return callbag.Collect(ctx, callbag.FromSubscription(stream.Subscribe()))
}
