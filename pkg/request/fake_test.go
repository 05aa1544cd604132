package request

import (
	"sync"
	"time"

	"github.com/fgrzl/hubkit/pkg/callbag"
	"github.com/fgrzl/hubkit/pkg/xhr"
)

// fakeXHR is a scripted transport. Tests drive its events by hand.
type fakeXHR struct {
	mu              sync.Mutex
	method          string
	url             string
	async           bool
	headers         map[string]string
	responseType    xhr.ResponseType
	timeout         time.Duration
	withCredentials bool
	listeners       map[xhr.EventType][]xhr.Listener

	sends   int
	body    any
	aborts  int
	sendErr error
	onSend  func(f *fakeXHR)

	status     int
	statusText string
	response   any
}

func (f *fakeXHR) Open(method, url string, async bool) error {
	f.method, f.url, f.async = method, url, async
	return nil
}

func (f *fakeXHR) SetRequestHeader(name, value string) error {
	if f.headers == nil {
		f.headers = make(map[string]string)
	}
	f.headers[name] = value
	return nil
}

func (f *fakeXHR) SetResponseType(t xhr.ResponseType) { f.responseType = t }
func (f *fakeXHR) SetTimeout(d time.Duration)         { f.timeout = d }
func (f *fakeXHR) SetWithCredentials(v bool)          { f.withCredentials = v }

func (f *fakeXHR) AddEventListener(t xhr.EventType, fn xhr.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listeners == nil {
		f.listeners = make(map[xhr.EventType][]xhr.Listener)
	}
	f.listeners[t] = append(f.listeners[t], fn)
}

func (f *fakeXHR) Send(body any) error {
	f.sends++
	f.body = body
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.onSend != nil {
		f.onSend(f)
	}
	return nil
}

// Abort behaves like a browser: abort and loadend fire synchronously.
func (f *fakeXHR) Abort() {
	f.aborts++
	f.emit(xhr.EventAbort, 0)
	f.emit(xhr.EventLoadEnd, 0)
}

func (f *fakeXHR) Status() int        { return f.status }
func (f *fakeXHR) StatusText() string { return f.statusText }
func (f *fakeXHR) Response() any      { return f.response }

func (f *fakeXHR) emit(t xhr.EventType, loaded int64) {
	f.emitEvent(xhr.Event{Type: t, Loaded: loaded})
}

func (f *fakeXHR) emitEvent(ev xhr.Event) {
	f.mu.Lock()
	listeners := append([]xhr.Listener(nil), f.listeners[ev.Type]...)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func (f *fakeXHR) progress(loaded, total int64) {
	f.emitEvent(xhr.Event{Type: xhr.EventProgress, LengthComputable: true, Loaded: loaded, Total: total})
}

// load finishes the exchange with status and response.
func (f *fakeXHR) load(status int, statusText string, response any, loaded int64) {
	f.status, f.statusText, f.response = status, statusText, response
	f.emit(xhr.EventLoad, loaded)
	f.emit(xhr.EventLoadEnd, loaded)
}

type fakeFactory struct {
	created []*fakeXHR
	setup   func(*fakeXHR)
}

func (f *fakeFactory) New() xhr.XHR {
	x := &fakeXHR{}
	if f.setup != nil {
		f.setup(x)
	}
	f.created = append(f.created, x)
	return x
}

func (f *fakeFactory) last() *fakeXHR {
	return f.created[len(f.created)-1]
}

// collector records everything a sink receives.
type collector struct {
	mu       sync.Mutex
	types    []callbag.Type
	events   []Event
	talkback callbag.Talkback
}

func (c *collector) sink(msg callbag.Message[Event]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, msg.Type())
	switch m := msg.(type) {
	case callbag.Start[Event]:
		c.talkback = m.Talkback
	case callbag.Data[Event]:
		c.events = append(c.events, m.Value)
	}
}

func (c *collector) names() []EventName {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]EventName, 0, len(c.events))
	for _, ev := range c.events {
		names = append(names, ev.Name)
	}
	return names
}

func (c *collector) ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.types) > 0 && c.types[len(c.types)-1] == callbag.TypeEnd
}

func (c *collector) find(name EventName) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.events {
		if ev.Name == name {
			return ev, true
		}
	}
	return Event{}, false
}
