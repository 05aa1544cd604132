package request

import (
	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/fgrzl/hubkit/pkg/logging"
	"github.com/fgrzl/hubkit/pkg/xhr"
)

// Client is the request capability.
type Client interface {
	Request(url string, opts *Options) Stream
	// JSON presets the json response type.
	JSON(url string, opts *Options) Stream
	// Text presets the text response type.
	Text(url string, opts *Options) Stream
}

// NewClient builds a Client over transport. A nil transport uses net/http.
func NewClient(transport xhr.Factory, log logging.Logger, json codec.Codec, defaults Defaults) Client {
	if transport == nil {
		transport = xhr.NewTransport()
	}
	c := &client{transport: transport, log: log, json: json, defaults: defaults}
	return ClientFunc(c.request)
}

type client struct {
	transport xhr.Factory
	log       logging.Logger
	json      codec.Codec
	defaults  Defaults
}

func (c *client) request(url string, opts *Options) Stream {
	return newRequest(url, c.defaults.apply(opts), c.transport, c.log, c.json)
}

// ClientFunc adapts a request function to Client. JSON and Text copy opts
// with the response type preset.
type ClientFunc func(url string, opts *Options) Stream

func (f ClientFunc) Request(url string, opts *Options) Stream {
	return f(url, opts)
}

func (f ClientFunc) JSON(url string, opts *Options) Stream {
	return f(url, withResponseType(opts, xhr.ResponseTypeJSON))
}

func (f ClientFunc) Text(url string, opts *Options) Stream {
	return f(url, withResponseType(opts, xhr.ResponseTypeText))
}

func withResponseType(opts *Options, t ResponseType) *Options {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.ResponseType = t
	return &o
}
