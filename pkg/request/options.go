package request

import (
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/fgrzl/hubkit/pkg/xhr"
)

type Method string

const (
	MethodDelete  Method = "DELETE"
	MethodGet     Method = "GET"
	MethodOptions Method = "OPTIONS"
	MethodPatch   Method = "PATCH"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
)

func (m Method) Valid() bool {
	switch m {
	case MethodDelete, MethodGet, MethodOptions, MethodPatch, MethodPost, MethodPut:
		return true
	}
	return false
}

type ResponseType = xhr.ResponseType

const DefaultTimeout = 10 * time.Second

// Options configures a single request. The zero value is a GET with the
// default timeout.
type Options struct {
	Body            any
	Headers         map[string]string
	Method          Method
	Params          map[string]string
	ResponseType    ResponseType
	Signal          Signal
	Timeout         time.Duration
	WithCredentials bool

	// sync runs the transport on the calling goroutine. Timeouts are ignored
	// in that mode.
	sync bool
}

// Defaults are applied underneath every request's Options.
type Defaults struct {
	Headers         map[string]string
	Timeout         time.Duration
	WithCredentials bool
}

func (d Defaults) apply(opts *Options) Options {
	var o Options
	if opts != nil {
		o = *opts
	}
	headers := maps.Clone(d.Headers)
	if headers == nil {
		headers = make(map[string]string, len(o.Headers))
	}
	for k, v := range o.Headers {
		for dk := range headers {
			if strings.EqualFold(dk, k) {
				delete(headers, dk)
			}
		}
		headers[k] = v
	}
	o.Headers = headers
	if o.Method == "" {
		o.Method = MethodGet
	}
	if o.Timeout == 0 {
		o.Timeout = d.Timeout
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if d.WithCredentials {
		o.WithCredentials = true
	}
	return o
}

// withParams appends params as key=value pairs, keys sorted, values escaped
// like encodeURIComponent.
func withParams(target string, params map[string]string) string {
	if len(params) == 0 {
		return target
	}
	pairs := make([]string, 0, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		pairs = append(pairs, k+"="+escapeComponent(params[k]))
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + strings.Join(pairs, "&")
}

func escapeComponent(v string) string {
	escaped := url.QueryEscape(v)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	for _, keep := range []string{"!", "'", "(", ")", "*"} {
		escaped = strings.ReplaceAll(escaped, url.QueryEscape(keep), keep)
	}
	return escaped
}

func headerKeys(headers map[string]string) []string {
	return slices.Sorted(maps.Keys(headers))
}
