package callbag

import "sync"

// Guard wraps sink so that any ordering violation panics with a
// *ProtocolError before the message reaches sink.
//
// Rules: Start is first and happens once, Data only flows between Start and
// End, End happens at most once.
func Guard[T any](sink Sink[T]) Sink[T] {
	var (
		mu      sync.Mutex
		started bool
		ended   bool
	)
	return func(msg Message[T]) {
		mu.Lock()
		violation := check(msg.Type(), &started, &ended)
		mu.Unlock()
		if violation != "" {
			panic(&ProtocolError{Type: msg.Type(), Reason: violation})
		}
		sink(msg)
	}
}

func check(t Type, started, ended *bool) string {
	switch t {
	case TypeStart:
		if *started {
			return "received twice"
		}
		*started = true
	case TypeData:
		if !*started {
			return "received before start"
		}
		if *ended {
			return "received after end"
		}
	case TypeEnd:
		if !*started {
			return "received before start"
		}
		if *ended {
			return "received twice"
		}
		*ended = true
	}
	return ""
}
