// Package metrics instruments request streams with prometheus.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/fgrzl/hubkit/pkg/callbag"
	"github.com/fgrzl/hubkit/pkg/request"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the request collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub",
			Name:      "requests_total",
			Help:      "Total number of settled requests by method and outcome.",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hub",
			Name:      "request_duration_seconds",
			Help:      "Time from the first subscription to the terminal outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Middleware decorates a request client. Each stream is counted once, no
// matter how many subscribers it has.
func (m *Metrics) Middleware() func(request.Client) request.Client {
	return func(next request.Client) request.Client {
		return request.ClientFunc(func(url string, opts *request.Options) request.Stream {
			method := request.MethodGet
			if opts != nil && opts.Method != "" {
				method = opts.Method
			}
			return &stream{next: next.Request(url, opts), metrics: m, method: string(method)}
		})
	}
}

type stream struct {
	next    request.Stream
	metrics *Metrics
	method  string

	startOnce   sync.Once
	outcomeOnce sync.Once
	started     time.Time

	mu   sync.Mutex
	live int
}

func (s *stream) Subscribe() callbag.Subscription[request.Event] {
	return &subscription{stream: s, next: s.next.Subscribe()}
}

func (s *stream) Await(ctx context.Context) (*request.Event, error) {
	return request.Await(ctx, s)
}

// Dispatching forwards reentrancy detection to the wrapped stream.
func (s *stream) Dispatching() bool {
	d, ok := s.next.(request.Dispatcher)
	return ok && d.Dispatching()
}

func (s *stream) observe(ev request.Event) {
	if !ev.Terminal() {
		return
	}
	s.record(ev.Name)
}

func (s *stream) record(outcome request.EventName) {
	s.outcomeOnce.Do(func() {
		s.metrics.requests.WithLabelValues(s.method, string(outcome)).Inc()
		s.metrics.duration.WithLabelValues(s.method).Observe(time.Since(s.started).Seconds())
	})
}

// release drops one live subscriber and reports whether it was the last.
func (s *stream) release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live--
	return s.live == 0
}

type subscription struct {
	stream *stream
	next   callbag.Subscription[request.Event]

	mu      sync.Mutex
	started bool
	active  bool
}

func (s *subscription) Start(sink callbag.Sink[request.Event]) {
	s.stream.startOnce.Do(func() { s.stream.started = time.Now() })
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started, s.active = true, true
	s.mu.Unlock()

	s.stream.mu.Lock()
	s.stream.live++
	s.stream.mu.Unlock()

	s.next.Start(func(msg callbag.Message[request.Event]) {
		switch m := msg.(type) {
		case callbag.Data[request.Event]:
			s.stream.observe(m.Value)
		case callbag.End[request.Event]:
			if s.deactivate() {
				s.stream.release()
			}
		}
		sink(msg)
	})
}

// Unsubscribe detaches from the wrapped stream. When the last live subscriber
// leaves before any outcome was seen the engine aborts the exchange without
// telling anyone, so the abort is recorded here.
func (s *subscription) Unsubscribe() {
	s.next.Unsubscribe()
	if s.deactivate() && s.stream.release() {
		s.stream.record(request.EventAbort)
	}
}

func (s *subscription) deactivate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.active
	s.active = false
	return was
}
