package wskit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/fgrzl/hubkit/internal/dispatch"
	"github.com/fgrzl/hubkit/pkg/callbag"
	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/fgrzl/hubkit/pkg/logging"
	"github.com/fgrzl/hubkit/pkg/multicast"
	"github.com/fgrzl/json/polymorphic"
	"github.com/fgrzl/timestamp"
	"golang.org/x/net/websocket"
)

// Client is a PubSub whose channels live on a remote bridge server.
// Delivery is best effort: messages published while disconnected are lost.
type Client struct {
	conn  *Conn
	log   logging.Logger
	queue dispatch.Queue

	// owned by queue
	closed   bool
	channels map[string]*multicast.Registry[callbag.Message[any]]
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	origin string
	log    logging.Logger
}

func WithOrigin(origin string) ClientOption {
	return func(o *clientOptions) { o.origin = origin }
}

func WithLogger(log logging.Logger) ClientOption {
	return func(o *clientOptions) { o.log = log }
}

// Dial connects to a bridge server at addr (ws:// or wss://) with token as
// the bearer credential.
func Dial(ctx context.Context, addr, token string, opts ...ClientOption) (*Client, error) {
	o := clientOptions{origin: "http://localhost"}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := websocket.NewConfig(addr, o.origin)
	if err != nil {
		return nil, err
	}
	cfg.Header = http.Header{}
	if token != "" {
		cfg.Header.Set("Authorization", "Bearer "+token)
	}

	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("wskit: dial %s: %w", addr, err)
	}
	return newClient(ws, o), nil
}

func newClient(ws *websocket.Conn, o clientOptions) *Client {
	ws.PayloadType = websocket.BinaryFrame
	if o.log == nil {
		o.log = logging.New(nil)
	}
	c := &Client{
		conn:     newConn("client", ws),
		log:      o.log,
		channels: make(map[string]*multicast.Registry[callbag.Message[any]]),
	}
	go c.conn.readLoop(c.handle)
	go func() {
		<-c.conn.Done()
		c.queue.Do(c.endAll)
	}()
	return c
}

// Publish sends data to the remote channel. Failures are logged.
func (c *Client) Publish(channel string, data any) {
	encoded, err := codec.ToJSON(data, 0)
	if err != nil {
		c.log.Error(fmt.Errorf("wskit: encode message for %q: %w", channel, err))
		return
	}
	msg := &Publish{Channel: channel, Data: []byte(encoded), Timestamp: timestamp.GetTimestamp()}
	if err := c.conn.Send(msg); err != nil {
		c.log.Error(err)
	}
}

func (c *Client) Subscribe(channel string) callbag.Subscription[any] {
	return &clientSubscription{client: c, channel: channel}
}

// Close drops the connection. Every subscriber receives End with ErrClosed.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.conn.Done()
}

func (c *Client) handle(msg any) {
	switch m := msg.(type) {
	case *Publish:
		data, err := decodeData(m.Data)
		if err != nil {
			c.log.Error(fmt.Errorf("wskit: decode message for %q: %w", m.Channel, err))
			return
		}
		c.queue.Do(func() {
			if reg, ok := c.channels[m.Channel]; ok {
				reg.NotifyAll(callbag.Data[any]{Value: data})
			}
		})
	case *Fault:
		c.log.Error("wskit: bridge fault", slog.String("channel", m.Channel), slog.String("message", m.Message))
	default:
		slog.Warn("wskit: unexpected message", slog.String("type", typeName(msg)))
	}
}

func (c *Client) endAll() {
	c.closed = true
	for channel, reg := range c.channels {
		reg.NotifyAll(callbag.End[any]{Err: ErrClosed})
		reg.Clear()
		delete(c.channels, channel)
	}
}

func (c *Client) send(msg polymorphic.Polymorphic) {
	if err := c.conn.Send(msg); err != nil {
		c.log.Error(err)
	}
}

type clientSubscription struct {
	client  *Client
	channel string

	once       sync.Once
	closed     bool
	registered bool
	token      multicast.Token
}

func (s *clientSubscription) Start(sink callbag.Sink[any]) {
	s.once.Do(func() {
		guarded := callbag.Guard(sink)
		s.client.queue.Do(func() { s.attach(guarded) })
	})
}

func (s *clientSubscription) attach(sink callbag.Sink[any]) {
	c := s.client
	sink(callbag.Start[any]{Talkback: s.talkback})
	if s.closed {
		return
	}
	if c.closed {
		s.closed = true
		sink(callbag.End[any]{Err: ErrClosed})
		return
	}

	reg, ok := c.channels[s.channel]
	if !ok {
		reg = multicast.New[callbag.Message[any]]()
		c.channels[s.channel] = reg
		c.send(&Subscribe{Channel: s.channel})
	}
	s.token = reg.Add(func(msg callbag.Message[any]) { c.deliver(s.channel, sink, msg) })
	s.registered = true
}

func (c *Client) deliver(channel string, sink callbag.Sink[any], msg callbag.Message[any]) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*callbag.ProtocolError); ok {
				panic(r)
			}
			c.log.Error("wskit: listener failed", slog.String("channel", channel), slog.String("error", fmt.Sprint(r)))
		}
	}()
	sink(msg)
}

func (s *clientSubscription) talkback(sig callbag.Signal) {
	if sig == callbag.Terminate {
		s.Unsubscribe()
	}
}

func (s *clientSubscription) Unsubscribe() {
	s.client.queue.Do(func() {
		if s.closed {
			return
		}
		s.closed = true
		if !s.registered {
			return
		}
		c := s.client
		reg, ok := c.channels[s.channel]
		if !ok {
			return
		}
		reg.Remove(s.token)
		if reg.IsEmpty() {
			delete(c.channels, s.channel)
			c.send(&Unsubscribe{Channel: s.channel})
		}
	})
}

func decodeData(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return codec.FromJSON(string(raw))
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
