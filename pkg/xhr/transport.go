package xhr

import (
	"net/http"
	"net/http/cookiejar"
)

// Transport creates net/http backed primitives. file:// URLs are served from
// the local filesystem.
type Transport struct {
	client *http.Client
	jar    http.CookieJar
}

type Option func(*Transport)

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithCookieJar sets the jar used for requests that opt into credentials.
// Without it each transport keeps its own in-memory jar.
func WithCookieJar(jar http.CookieJar) Option {
	return func(t *Transport) { t.jar = jar }
}

func NewTransport(opts ...Option) *Transport {
	t := &Transport{}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = defaultClient()
	}
	if t.jar == nil {
		// cookiejar.New only fails on a bad PublicSuffixList.
		t.jar, _ = cookiejar.New(nil)
	}
	return t
}

func (t *Transport) New() XHR {
	return newRequest(t)
}

func (t *Transport) httpClient(withCredentials bool) *http.Client {
	if !withCredentials {
		if t.client.Jar == nil {
			return t.client
		}
		c := *t.client
		c.Jar = nil
		return &c
	}
	c := *t.client
	c.Jar = t.jar
	return &c
}

func defaultClient() *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return &http.Client{Transport: tr}
}
