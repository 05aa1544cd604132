package request

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fgrzl/hubkit/internal/dispatch"
	"github.com/fgrzl/hubkit/pkg/callbag"
	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/fgrzl/hubkit/pkg/logging"
	"github.com/fgrzl/hubkit/pkg/multicast"
	"github.com/fgrzl/hubkit/pkg/xhr"
)

const jsonContentType = "application/json; charset=utf-8"

type state int

const (
	stateIdle state = iota
	stateSent
	stateTerminal
	stateCompleted
)

// Request is a cold, multicast stream over one transport exchange. Nothing
// is sent until the first subscription starts; every later subscriber shares
// the same exchange, and subscribers arriving after the outcome get a replay.
//
// All state is owned by the dispatch queue: fields below are only touched
// from operations submitted to it.
type Request struct {
	queue     dispatch.Queue
	listeners *multicast.Registry[callbag.Message[Event]]
	log       logging.Logger

	url     string
	method  Method
	timeout time.Duration

	x          xhr.XHR
	body       any
	openErr    error
	stopSignal func()

	state     state
	cancelled bool
	loaded    int64
	status    int
	ok        bool
	terminal  Event
	complete  Event
}

// New opens a transport for url right away; setup errors are held until the
// first subscription and then delivered as its error terminal.
func New(url string, opts *Options, transport xhr.Factory, log logging.Logger, json codec.Codec) *Request {
	return newRequest(url, Defaults{}.apply(opts), transport, log, json)
}

func newRequest(url string, o Options, transport xhr.Factory, log logging.Logger, json codec.Codec) *Request {
	if log == nil {
		log = logging.New(nil)
	}
	if json == nil {
		json = codec.Default
	}
	r := &Request{
		listeners: multicast.New[callbag.Message[Event]](),
		log:       log,
		url:       url,
		method:    o.Method,
		timeout:   o.Timeout,
	}
	r.listeners.OnEmpty(r.abandoned)

	x := transport.New()
	r.x = x
	for _, t := range []xhr.EventType{xhr.EventProgress, xhr.EventLoad, xhr.EventError, xhr.EventAbort, xhr.EventTimeout, xhr.EventLoadEnd} {
		x.AddEventListener(t, func(ev xhr.Event) {
			r.queue.Do(func() { r.handle(ev) })
		})
	}
	r.openErr = r.open(x, url, o, json)
	if r.openErr != nil {
		slog.Debug("request: setup failed", slog.String("url", url), slog.String("error", r.openErr.Error()))
	}

	if o.Signal != nil {
		r.stopSignal = o.Signal.AddAbortListener(func() {
			r.queue.Do(r.signalled)
		})
	}
	return r
}

func (r *Request) open(x xhr.XHR, url string, o Options, json codec.Codec) error {
	if !o.Method.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedMethod, o.Method)
	}
	if !o.ResponseType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, o.ResponseType)
	}
	if err := x.Open(string(o.Method), withParams(url, o.Params), !o.sync); err != nil {
		return err
	}

	hasContentType := false
	for _, name := range headerKeys(o.Headers) {
		if strings.EqualFold(name, "Content-Type") {
			hasContentType = true
		}
		if err := x.SetRequestHeader(name, o.Headers[name]); err != nil {
			return err
		}
	}

	switch kind := classifyBody(o.Body); {
	case kind == bodyNone:
		r.body = nil
	case kind == bodyNative:
		r.body = o.Body
	case kind == bodyScalar && hasContentType:
		// The caller chose the media type, so the value goes out as text.
		r.body = scalarText(o.Body)
	case kind == bodyObject:
		encoded, err := json.ToJSON(o.Body, 0)
		if err != nil {
			return fmt.Errorf("request: encode body: %w", err)
		}
		r.body = encoded
		if !hasContentType {
			if err := x.SetRequestHeader("Content-Type", jsonContentType); err != nil {
				return err
			}
		}
	default:
		err := fmt.Errorf("%w: %T", ErrUnsupportedBody, o.Body)
		r.log.Error(err)
		return err
	}

	x.SetResponseType(o.ResponseType)
	if o.WithCredentials {
		x.SetWithCredentials(true)
	}
	if !o.sync {
		x.SetTimeout(o.Timeout)
	}
	return nil
}

// Subscribe returns a new, unstarted subscription.
func (r *Request) Subscribe() callbag.Subscription[Event] {
	return &subscription{req: r}
}

// Await resolves with the first ok event. See the package level Await.
// Dispatching reports whether the caller is running inside this request's
// event delivery.
func (r *Request) Dispatching() bool {
	return r.queue.Draining()
}

func (r *Request) Await(ctx context.Context) (*Event, error) {
	return Await(ctx, r)
}

func (r *Request) attach(s *subscription) {
	s.sink(callbag.Start[Event]{Talkback: s.talkback})
	if s.closed {
		s.sink(callbag.End[Event]{})
		return
	}

	switch r.state {
	case stateCompleted:
		s.closed = true
		s.sink(callbag.Data[Event]{Value: r.terminal})
		s.sink(callbag.Data[Event]{Value: r.complete})
		s.sink(callbag.End[Event]{})
		return
	case stateTerminal:
		s.sink(callbag.Data[Event]{Value: r.terminal})
	}

	s.token = r.listeners.Add(s.sink)
	s.registered = true
	if r.state == stateIdle {
		r.send()
	}
}

func (r *Request) send() {
	r.state = stateSent
	slog.Debug("request: send", slog.String("method", string(r.method)), slog.String("url", r.url))

	switch {
	case r.cancelled:
		r.settle(Event{Name: EventAbort})
	case r.openErr != nil:
		r.settle(Event{Name: EventError, Error: r.openErr})
	default:
		if err := r.x.Send(r.body); err != nil {
			r.log.Error(err)
			r.settle(Event{Name: EventError, Error: err})
		}
	}
}

// handle processes a transport event. Events that arrive outside the
// matching state lost a race against another terminal and are dropped.
func (r *Request) handle(ev xhr.Event) {
	switch ev.Type {
	case xhr.EventProgress:
		if r.state != stateSent {
			return
		}
		r.progress(ev)
	case xhr.EventLoad:
		if r.state != stateSent {
			return
		}
		r.loaded = ev.Loaded
		r.reach(r.loadOutcome())
	case xhr.EventError:
		if r.state != stateSent {
			return
		}
		r.loaded = ev.Loaded
		r.status = r.x.Status()
		r.reach(Event{
			Name:   EventError,
			Error:  &NetworkError{Err: ev.Err},
			Status: r.status,
			Loaded: r.loaded,
		})
	case xhr.EventAbort:
		if r.state != stateSent {
			return
		}
		r.reach(Event{Name: EventAbort})
	case xhr.EventTimeout:
		if r.state != stateSent {
			return
		}
		r.status = 408
		r.reach(Event{Name: EventTimeout, Error: &TimeoutError{Timeout: r.timeout}, Status: r.status})
	case xhr.EventLoadEnd:
		if r.state != stateTerminal {
			return
		}
		if ev.Loaded > r.loaded {
			r.loaded = ev.Loaded
		}
		r.finish()
	}
}

func (r *Request) progress(ev xhr.Event) {
	if !ev.LengthComputable {
		return
	}
	r.loaded = ev.Loaded
	pct := float64(100)
	if ev.Total > 0 {
		pct = float64(ev.Loaded) / float64(ev.Total) * 100
	}
	r.listeners.NotifyAll(callbag.Data[Event]{Value: Event{
		Name:     EventProgress,
		Loaded:   ev.Loaded,
		Progress: pct,
		Total:    ev.Total,
	}})
}

func (r *Request) loadOutcome() Event {
	r.status = r.x.Status()
	if r.status == 0 || (r.status >= 200 && r.status < 400) {
		r.ok = true
		return Event{
			Name:     EventOK,
			Response: r.x.Response(),
			Status:   r.status,
			Loaded:   r.loaded,
			OK:       true,
		}
	}
	text := r.x.StatusText()
	return Event{
		Name:       EventError,
		Error:      &StatusError{Status: r.status, StatusText: text, Loaded: r.loaded},
		Status:     r.status,
		StatusText: text,
		Loaded:     r.loaded,
	}
}

// reach records the terminal outcome and delivers it.
func (r *Request) reach(ev Event) {
	r.state = stateTerminal
	r.terminal = ev
	slog.Debug("request: terminal", slog.String("url", r.url), slog.String("outcome", string(ev.Name)))
	r.listeners.NotifyAll(callbag.Data[Event]{Value: ev})
}

// settle reaches a terminal and completes without waiting on the transport.
func (r *Request) settle(ev Event) {
	r.reach(ev)
	r.finish()
}

func (r *Request) finish() {
	r.state = stateCompleted
	r.complete = Event{Name: EventComplete, Loaded: r.loaded, OK: r.ok, Status: r.status}
	r.listeners.NotifyAll(callbag.Data[Event]{Value: r.complete})
	r.listeners.NotifyAll(callbag.End[Event]{})
	r.listeners.Clear()

	r.x = nil
	r.body = nil
	if r.stopSignal != nil {
		r.stopSignal()
		r.stopSignal = nil
	}
}

// abandoned runs when the last listener leaves.
func (r *Request) abandoned() {
	if r.state != stateSent {
		return
	}
	r.x.Abort()
	r.settle(Event{Name: EventAbort})
}

func (r *Request) signalled() {
	switch r.state {
	case stateIdle:
		r.cancelled = true
	case stateSent:
		r.x.Abort()
		r.settle(Event{Name: EventAbort})
	}
}

type subscription struct {
	req        *Request
	sink       callbag.Sink[Event]
	started    bool
	closed     bool
	registered bool
	token      multicast.Token
}

func (s *subscription) Start(sink callbag.Sink[Event]) {
	s.req.queue.Do(func() {
		if s.started {
			return
		}
		s.started = true
		s.sink = callbag.Guard(sink)
		s.req.attach(s)
	})
}

func (s *subscription) Unsubscribe() {
	s.req.queue.Do(s.detach)
}

func (s *subscription) talkback(sig callbag.Signal) {
	if sig == callbag.Terminate {
		s.Unsubscribe()
	}
}

func (s *subscription) detach() {
	if s.closed {
		return
	}
	s.closed = true
	if s.registered {
		s.registered = false
		s.req.listeners.Remove(s.token)
	}
}
