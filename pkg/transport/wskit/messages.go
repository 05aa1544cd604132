package wskit

import (
	"encoding/json"

	"github.com/fgrzl/json/polymorphic"
)

func init() {
	polymorphic.Register(func() *Publish { return &Publish{} })
	polymorphic.Register(func() *Subscribe { return &Subscribe{} })
	polymorphic.Register(func() *Unsubscribe { return &Unsubscribe{} })
	polymorphic.Register(func() *Fault { return &Fault{} })
}

// Publish carries one pubsub message in either direction.
type Publish struct {
	Channel   string          `json:"channel"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func (m *Publish) GetDiscriminator() string {
	return "hubkit://bridge/v1/publish"
}

// Subscribe asks the server to forward a channel.
type Subscribe struct {
	Channel string `json:"channel"`
}

func (m *Subscribe) GetDiscriminator() string {
	return "hubkit://bridge/v1/subscribe"
}

type Unsubscribe struct {
	Channel string `json:"channel"`
}

func (m *Unsubscribe) GetDiscriminator() string {
	return "hubkit://bridge/v1/unsubscribe"
}

// Fault reports a rejected frame back to the client.
type Fault struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (m *Fault) GetDiscriminator() string {
	return "hubkit://bridge/v1/fault"
}
