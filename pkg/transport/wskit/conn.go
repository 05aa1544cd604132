package wskit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fgrzl/json/polymorphic"
	"github.com/golang/snappy"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

var ErrClosed = errors.New("wskit: connection closed")

// Conn frames bridge messages over a websocket. Each frame is a binary
// websocket message holding a snappy compressed polymorphic envelope.
type Conn struct {
	ID   uuid.UUID
	name string
	ws   *websocket.Conn

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(name string, ws *websocket.Conn) *Conn {
	return &Conn{
		ID:   uuid.New(),
		name: name,
		ws:   ws,
		done: make(chan struct{}),
	}
}

// Send writes msg as one frame. Safe for concurrent use.
func (c *Conn) Send(msg polymorphic.Polymorphic) error {
	payload, err := json.Marshal(polymorphic.NewEnvelope(msg))
	if err != nil {
		return fmt.Errorf("wskit: encode %T: %w", msg, err)
	}
	frame := snappy.Encode(nil, payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if err := websocket.Message.Send(c.ws, frame); err != nil {
		return fmt.Errorf("wskit: send: %w", err)
	}
	return nil
}

// readLoop decodes frames until the connection fails and hands each message
// to handle. It closes the connection on return.
func (c *Conn) readLoop(handle func(any)) {
	defer c.Close()
	for {
		var frame []byte
		if err := websocket.Message.Receive(c.ws, &frame); err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("wskit: websocket receive error", slog.String("conn", c.name), slog.String("error", err.Error()))
			}
			return
		}

		payload, err := snappy.Decode(nil, frame)
		if err != nil {
			slog.Warn("wskit: dropping corrupt frame", slog.String("conn", c.name), slog.String("error", err.Error()))
			continue
		}

		envelope := &polymorphic.Envelope{}
		if err := json.Unmarshal(payload, envelope); err != nil {
			slog.Warn("wskit: dropping undecodable frame", slog.String("conn", c.name), slog.String("error", err.Error()))
			continue
		}
		handle(envelope.Content)
	}
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		close(c.done)
		c.writeMu.Unlock()
		err = c.ws.Close()
		slog.Debug("wskit: connection closed", slog.String("conn", c.name), slog.String("id", c.ID.String()))
	})
	return err
}
