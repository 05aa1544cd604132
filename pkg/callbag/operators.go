package callbag

import (
	"context"
	"sync"

	"github.com/fgrzl/enumerators"
)

// ForEach returns a source consumer that calls fn for every value. It pulls
// once on Start and again after every value.
//
// Panics raised by fn propagate to whoever delivered the value.
func ForEach[T any](fn func(T)) func(Source[T]) {
	return func(source Source[T]) {
		var talkback Talkback
		source(func(msg Message[T]) {
			switch m := msg.(type) {
			case Start[T]:
				talkback = m.Talkback
				pull(talkback)
			case Data[T]:
				fn(m.Value)
				pull(talkback)
			}
		})
	}
}

// Map transforms every value flowing from source.
func Map[T, R any](fn func(T) R) func(Source[T]) Source[R] {
	return func(source Source[T]) Source[R] {
		return func(sink Sink[R]) {
			source(func(msg Message[T]) {
				switch m := msg.(type) {
				case Start[T]:
					sink(Start[R]{Talkback: m.Talkback})
				case Data[T]:
					sink(Data[R]{Value: fn(m.Value)})
				case End[T]:
					sink(End[R]{Err: m.Err})
				}
			})
		}
	}
}

// Filter forwards values for which keep returns true. A dropped value is
// answered with a Pull so pullable sources keep flowing.
func Filter[T any](keep func(T) bool) func(Source[T]) Source[T] {
	return func(source Source[T]) Source[T] {
		return func(sink Sink[T]) {
			var talkback Talkback
			source(func(msg Message[T]) {
				switch m := msg.(type) {
				case Start[T]:
					talkback = m.Talkback
					sink(m)
				case Data[T]:
					if keep(m.Value) {
						sink(m)
						return
					}
					pull(talkback)
				case End[T]:
					sink(m)
				}
			})
		}
	}
}

// Collect starts source and buffers every value until End, then returns
// them as one enumerator; nothing is yielded while the source is running.
// Use ForEach to observe values as they arrive. Cancelling ctx terminates
// the subscription and yields ctx.Err().
func Collect[T any](ctx context.Context, source Source[T]) enumerators.Enumerator[T] {
	type result struct {
		values []T
		err    error
	}

	done := make(chan result, 1)
	var (
		mu       sync.Mutex
		talkback Talkback
		values   []T
	)

	source(func(msg Message[T]) {
		switch m := msg.(type) {
		case Start[T]:
			mu.Lock()
			talkback = m.Talkback
			mu.Unlock()
			pull(m.Talkback)
		case Data[T]:
			values = append(values, m.Value)
			pull(talkback)
		case End[T]:
			done <- result{values: values, err: m.Err}
		}
	})

	select {
	case res := <-done:
		if res.err != nil {
			return enumerators.Error[T](res.err)
		}
		return enumerators.Slice(res.values)
	case <-ctx.Done():
		mu.Lock()
		tb := talkback
		mu.Unlock()
		if tb != nil {
			tb(Terminate)
		}
		return enumerators.Error[T](ctx.Err())
	}
}

// FromSubscription adapts a subscription to a plain source.
func FromSubscription[T any](sub Subscription[T]) Source[T] {
	return sub.Start
}

func pull(talkback Talkback) {
	if talkback != nil {
		talkback(Pull)
	}
}
