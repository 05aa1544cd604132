package xhr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fgrzl/hubkit/pkg/codec"
	"golang.org/x/net/html"
	"golang.org/x/net/http/httpguts"
)

type readyState int

const (
	unsent readyState = iota
	opened
	loading
	done
)

var (
	errAborted  = errors.New("xhr: aborted")
	errTimedOut = errors.New("xhr: timed out")
)

type request struct {
	transport *Transport

	mu              sync.Mutex
	state           readyState
	sent            bool
	finished        bool
	method          string
	url             *url.URL
	async           bool
	header          http.Header
	responseType    ResponseType
	timeout         time.Duration
	withCredentials bool
	listeners       map[EventType][]Listener
	cancel          context.CancelCauseFunc

	status     int
	statusText string
	response   any
}

func newRequest(t *Transport) *request {
	return &request{
		transport: t,
		header:    make(http.Header),
		listeners: make(map[EventType][]Listener),
	}
}

func (r *request) Open(method, rawURL string, async bool) error {
	if !httpguts.ValidHeaderFieldName(method) {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("xhr: open: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return ErrInvalidState
	}
	r.method = strings.ToUpper(method)
	r.url = u
	r.async = async
	r.state = opened
	return nil
}

func (r *request) SetRequestHeader(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidHeaderName, name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("%w: %q", ErrInvalidHeaderValue, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != opened || r.sent {
		return ErrInvalidState
	}
	r.header.Add(name, value)
	return nil
}

func (r *request) SetResponseType(t ResponseType) {
	r.mu.Lock()
	r.responseType = t
	r.mu.Unlock()
}

func (r *request) SetTimeout(d time.Duration) {
	r.mu.Lock()
	r.timeout = d
	r.mu.Unlock()
}

func (r *request) SetWithCredentials(v bool) {
	r.mu.Lock()
	r.withCredentials = v
	r.mu.Unlock()
}

func (r *request) AddEventListener(t EventType, fn Listener) {
	r.mu.Lock()
	r.listeners[t] = append(r.listeners[t], fn)
	r.mu.Unlock()
}

func (r *request) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *request) StatusText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusText
}

func (r *request) Response() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

// Send starts the exchange. In asynchronous mode it returns immediately and
// events fire on a worker goroutine; otherwise they fire before Send returns.
func (r *request) Send(body any) error {
	r.mu.Lock()
	if r.state != opened || r.sent {
		r.mu.Unlock()
		return ErrInvalidState
	}
	if r.method == http.MethodGet || r.method == http.MethodHead {
		body = nil
	}
	reader, contentType, err := encodeBody(body)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if contentType != "" && r.header.Get("Content-Type") == "" {
		r.header.Set("Content-Type", contentType)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	req, err := http.NewRequestWithContext(ctx, r.method, r.url.String(), reader)
	if err != nil {
		r.mu.Unlock()
		cancel(err)
		return fmt.Errorf("xhr: send: %w", err)
	}
	req.Header = r.header.Clone()

	r.sent = true
	r.cancel = cancel
	async, timeout := r.async, r.timeout
	client := r.transport.httpClient(r.withCredentials)
	r.mu.Unlock()

	if !async {
		r.run(ctx, client, req)
		return nil
	}
	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() { cancel(errTimedOut) })
		go func() {
			defer timer.Stop()
			r.run(ctx, client, req)
		}()
		return nil
	}
	go r.run(ctx, client, req)
	return nil
}

// Abort cancels an in-flight exchange and fires abort then loadend on the
// calling goroutine. It is a no-op once a terminal event has been chosen.
func (r *request) Abort() {
	r.mu.Lock()
	if !r.sent || r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.state = done
	r.status = 0
	cancel := r.cancel
	r.mu.Unlock()

	cancel(errAborted)
	r.emit(Event{Type: EventAbort})
	r.emit(Event{Type: EventLoadEnd})
}

func (r *request) run(ctx context.Context, client *http.Client, req *http.Request) {
	resp, err := client.Do(req)
	if err != nil {
		r.fail(ctx, err, 0)
		return
	}
	defer resp.Body.Close()

	r.mu.Lock()
	r.state = loading
	r.status = resp.StatusCode
	r.statusText = statusText(resp)
	responseType := r.responseType
	r.mu.Unlock()

	total := resp.ContentLength
	computable := total >= 0
	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if computable && r.active() {
				r.emit(Event{Type: EventProgress, LengthComputable: true, Loaded: int64(buf.Len()), Total: total})
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			r.fail(ctx, readErr, int64(buf.Len()))
			return
		}
	}

	response := decodeResponse(responseType, resp.Header.Get("Content-Type"), buf.Bytes())
	loaded := int64(buf.Len())
	if !computable {
		total = 0
	}

	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.state = done
	r.response = response
	r.mu.Unlock()

	r.emit(Event{Type: EventLoad, LengthComputable: computable, Loaded: loaded, Total: total})
	r.emit(Event{Type: EventLoadEnd, LengthComputable: computable, Loaded: loaded, Total: total})
}

func (r *request) fail(ctx context.Context, err error, loaded int64) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.state = done
	r.status = 0
	r.statusText = ""
	r.mu.Unlock()

	if errors.Is(context.Cause(ctx), errTimedOut) {
		r.emit(Event{Type: EventTimeout, Loaded: loaded})
		r.emit(Event{Type: EventLoadEnd, Loaded: loaded})
		return
	}
	r.emit(Event{Type: EventError, Loaded: loaded, Err: err})
	r.emit(Event{Type: EventLoadEnd, Loaded: loaded})
}

func (r *request) active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.finished
}

func (r *request) emit(ev Event) {
	r.mu.Lock()
	listeners := append([]Listener(nil), r.listeners[ev.Type]...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(b), "text/plain;charset=UTF-8", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case url.Values:
		return strings.NewReader(b.Encode()), "application/x-www-form-urlencoded;charset=UTF-8", nil
	case *html.Node:
		var buf bytes.Buffer
		if err := html.Render(&buf, b); err != nil {
			return nil, "", fmt.Errorf("xhr: render document: %w", err)
		}
		return &buf, "text/html;charset=UTF-8", nil
	case io.Reader:
		return b, "", nil
	default:
		return nil, "", fmt.Errorf("%w: %T", ErrUnsupportedBody, body)
	}
}

func decodeResponse(t ResponseType, contentType string, data []byte) any {
	switch t {
	case ResponseTypeArrayBuffer:
		return data
	case ResponseTypeBlob:
		return &Blob{Type: contentType, Data: data}
	case ResponseTypeDocument:
		doc, err := html.Parse(bytes.NewReader(data))
		if err != nil {
			return nil
		}
		return doc
	case ResponseTypeJSON:
		v, err := codec.FromJSON(string(data))
		if err != nil {
			return nil
		}
		return v
	default:
		return string(data)
	}
}
