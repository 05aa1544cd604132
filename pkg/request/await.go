package request

import (
	"context"
	"sync"

	"github.com/fgrzl/hubkit/pkg/callbag"
)

// Stream is anything that hands out request subscriptions.
type Stream interface {
	Subscribe() callbag.Subscription[Event]
	Await(ctx context.Context) (*Event, error)
}

// Subscriber is the subset of Stream that Await needs.
type Subscriber interface {
	Subscribe() callbag.Subscription[Event]
}

// Dispatcher is implemented by streams that can tell whether the calling
// goroutine is currently delivering their events.
type Dispatcher interface {
	Dispatching() bool
}

// Await subscribes to s and blocks until the first terminal. An ok event
// resolves with the event; error, abort and timeout reject with the carried
// error or the matching ErrRequest sentinel. The subscription is released as
// soon as the outcome is known.
//
// Called from a listener of the same stream it fails with ErrReentrantAwait
// when the stream implements Dispatcher.
func Await(ctx context.Context, s Subscriber) (*Event, error) {
	if d, ok := s.(Dispatcher); ok && d.Dispatching() {
		return nil, ErrReentrantAwait
	}

	type result struct {
		ev  *Event
		err error
	}

	done := make(chan result, 1)
	sub := s.Subscribe()
	var once sync.Once
	settle := func(ev *Event, err error) {
		once.Do(func() {
			done <- result{ev: ev, err: err}
			sub.Unsubscribe()
		})
	}

	sub.Start(func(msg callbag.Message[Event]) {
		switch m := msg.(type) {
		case callbag.Data[Event]:
			ev := m.Value
			switch ev.Name {
			case EventOK:
				settle(&ev, nil)
			case EventError:
				settle(nil, orDefault(ev.Error, ErrRequestFailed))
			case EventAbort:
				settle(nil, orDefault(ev.Error, ErrRequestAborted))
			case EventTimeout:
				settle(nil, orDefault(ev.Error, ErrRequestTimeout))
			}
		case callbag.End[Event]:
			settle(nil, orDefault(m.Err, ErrRequestAborted))
		}
	})

	select {
	case res := <-done:
		return res.ev, res.err
	case <-ctx.Done():
		settle(nil, ctx.Err())
		res := <-done
		return res.ev, res.err
	}
}

func orDefault(err, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}
