package xhr

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
}

func record(x XHR) *recorder {
	rec := &recorder{done: make(chan struct{})}
	for _, t := range []EventType{EventProgress, EventLoad, EventError, EventAbort, EventTimeout, EventLoadEnd} {
		x.AddEventListener(t, func(ev Event) {
			rec.mu.Lock()
			rec.events = append(rec.events, ev)
			rec.mu.Unlock()
			if ev.Type == EventLoadEnd {
				close(rec.done)
			}
		})
	}
	return rec
}

func (r *recorder) wait(t *testing.T) []EventType {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for loadend")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		if ev.Type != EventProgress {
			types = append(types, ev.Type)
		}
	}
	return types
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func TestRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = io.WriteString(w, "hello world")
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"b":1,"a":2}`)
		case "/html":
			_, _ = io.WriteString(w, "<html><body><p>hi</p></body></html>")
		case "/echo":
			body, _ := io.ReadAll(req.Body)
			w.Header().Set("X-Content-Type", req.Header.Get("Content-Type"))
			w.Header().Set("X-Custom", req.Header.Get("X-Custom"))
			_, _ = w.Write(body)
		case "/slow":
			select {
			case <-req.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			http.NotFound(w, req)
		}
	}))
	defer server.Close()

	transport := NewTransport()

	t.Run("should load text and report progress", func(t *testing.T) {
		// Arrange
		x := transport.New()
		rec := record(x)
		require.NoError(t, x.Open("GET", server.URL+"/text", true))

		// Act
		require.NoError(t, x.Send(nil))
		types := rec.wait(t)

		// Assert
		assert.Equal(t, []EventType{EventLoad, EventLoadEnd}, types)
		assert.Equal(t, 200, x.Status())
		assert.Equal(t, "OK", x.StatusText())
		assert.Equal(t, "hello world", x.Response())
		assert.Equal(t, int64(11), rec.last().Loaded)
		assert.Equal(t, EventProgress, rec.events[0].Type)
	})

	t.Run("should decode json responses in order", func(t *testing.T) {
		// Arrange
		x := transport.New()
		rec := record(x)
		require.NoError(t, x.Open("GET", server.URL+"/json", true))
		x.SetResponseType(ResponseTypeJSON)

		// Act
		require.NoError(t, x.Send(nil))
		rec.wait(t)

		// Assert
		obj, ok := x.Response().(*codec.Object)
		require.True(t, ok)
		assert.Equal(t, []string{"b", "a"}, obj.Keys())
	})

	t.Run("should decode blob, arraybuffer and document responses", func(t *testing.T) {
		cases := []struct {
			responseType ResponseType
			path         string
			check        func(t *testing.T, v any)
		}{
			{ResponseTypeBlob, "/text", func(t *testing.T, v any) {
				blob := v.(*Blob)
				assert.Equal(t, "text/plain", blob.Type)
				assert.Equal(t, []byte("hello world"), blob.Data)
			}},
			{ResponseTypeArrayBuffer, "/text", func(t *testing.T, v any) {
				assert.Equal(t, []byte("hello world"), v)
			}},
			{ResponseTypeDocument, "/html", func(t *testing.T, v any) {
				doc, ok := v.(*html.Node)
				require.True(t, ok)
				assert.Equal(t, html.DocumentNode, doc.Type)
			}},
		}
		for _, tc := range cases {
			// Arrange
			x := transport.New()
			rec := record(x)
			require.NoError(t, x.Open("GET", server.URL+tc.path, true))
			x.SetResponseType(tc.responseType)

			// Act
			require.NoError(t, x.Send(nil))
			rec.wait(t)

			// Assert
			tc.check(t, x.Response())
		}
	})

	t.Run("should send bodies with default content types", func(t *testing.T) {
		// Arrange
		x := transport.New()
		rec := record(x)
		require.NoError(t, x.Open("POST", server.URL+"/echo", true))
		require.NoError(t, x.SetRequestHeader("X-Custom", "yes"))

		// Act
		require.NoError(t, x.Send("payload"))
		rec.wait(t)

		// Assert
		assert.Equal(t, "payload", x.Response())
	})

	t.Run("should load with a not found status", func(t *testing.T) {
		// Arrange
		x := transport.New()
		rec := record(x)
		require.NoError(t, x.Open("GET", server.URL+"/missing", true))

		// Act
		require.NoError(t, x.Send(nil))
		types := rec.wait(t)

		// Assert
		assert.Equal(t, []EventType{EventLoad, EventLoadEnd}, types)
		assert.Equal(t, 404, x.Status())
		assert.Equal(t, "Not Found", x.StatusText())
	})

	t.Run("should time out without an error event", func(t *testing.T) {
		// Arrange
		x := transport.New()
		rec := record(x)
		require.NoError(t, x.Open("GET", server.URL+"/slow", true))
		x.SetTimeout(30 * time.Millisecond)

		// Act
		require.NoError(t, x.Send(nil))
		types := rec.wait(t)

		// Assert
		assert.Equal(t, []EventType{EventTimeout, EventLoadEnd}, types)
		assert.Equal(t, 0, x.Status())
	})

	t.Run("should abort an in-flight request once", func(t *testing.T) {
		// Arrange
		x := transport.New()
		rec := record(x)
		require.NoError(t, x.Open("GET", server.URL+"/slow", true))
		require.NoError(t, x.Send(nil))

		// Act
		x.Abort()
		x.Abort()
		types := rec.wait(t)

		// Assert
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, []EventType{EventAbort, EventLoadEnd}, types)
		rec.mu.Lock()
		assert.Len(t, rec.events, 2)
		rec.mu.Unlock()
	})

	t.Run("should run synchronously when not async", func(t *testing.T) {
		// Arrange
		x := transport.New()
		rec := record(x)
		require.NoError(t, x.Open("GET", server.URL+"/text", false))

		// Act
		require.NoError(t, x.Send(nil))

		// Assert
		select {
		case <-rec.done:
		default:
			t.Fatal("expected loadend before send returned")
		}
		assert.Equal(t, "hello world", x.Response())
	})

	t.Run("should read files from the local filesystem", func(t *testing.T) {
		// Arrange
		path, err := filepath.Abs("testdata/plaintext.txt")
		require.NoError(t, err)
		x := transport.New()
		rec := record(x)
		require.NoError(t, x.Open("GET", "file://"+filepath.ToSlash(path), true))

		// Act
		require.NoError(t, x.Send(nil))
		rec.wait(t)

		// Assert
		assert.Equal(t, 200, x.Status())
		assert.Equal(t, "A plain text file\n", x.Response())
	})

	t.Run("should report connection failures as error events", func(t *testing.T) {
		// Arrange
		x := transport.New()
		rec := record(x)
		require.NoError(t, x.Open("GET", "http://127.0.0.1:1/unreachable", true))

		// Act
		require.NoError(t, x.Send(nil))
		types := rec.wait(t)

		// Assert
		assert.Equal(t, []EventType{EventError, EventLoadEnd}, types)
	})
}

func TestRequestValidation(t *testing.T) {
	transport := NewTransport()

	t.Run("should reject invalid headers", func(t *testing.T) {
		// Arrange
		x := transport.New()
		require.NoError(t, x.Open("GET", "http://example.com", true))

		// Act
		nameErr := x.SetRequestHeader("Bad Header", "v")
		valueErr := x.SetRequestHeader("X-Ok", "line\nbreak")

		// Assert
		assert.ErrorIs(t, nameErr, ErrInvalidHeaderName)
		assert.ErrorIs(t, valueErr, ErrInvalidHeaderValue)
	})

	t.Run("should reject setters and send before open", func(t *testing.T) {
		// Arrange
		x := transport.New()

		// Act
		headerErr := x.SetRequestHeader("X-Ok", "v")
		sendErr := x.Send(nil)

		// Assert
		assert.ErrorIs(t, headerErr, ErrInvalidState)
		assert.ErrorIs(t, sendErr, ErrInvalidState)
	})

	t.Run("should reject unsupported bodies", func(t *testing.T) {
		// Arrange
		x := transport.New()
		require.NoError(t, x.Open("POST", "http://example.com", true))

		// Act
		err := x.Send(42)

		// Assert
		assert.ErrorIs(t, err, ErrUnsupportedBody)
	})
}

func TestCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		case "/whoami":
			if c, err := req.Cookie("session"); err == nil {
				_, _ = io.WriteString(w, c.Value)
			}
		}
	}))
	defer server.Close()

	fetch := func(t *testing.T, transport *Transport, path string, withCredentials bool) any {
		t.Helper()
		x := transport.New()
		rec := record(x)
		require.NoError(t, x.Open("GET", server.URL+path, true))
		x.SetWithCredentials(withCredentials)
		require.NoError(t, x.Send(nil))
		rec.wait(t)
		return x.Response()
	}

	t.Run("should keep cookies for credentialed requests", func(t *testing.T) {
		// Arrange
		transport := NewTransport()

		// Act
		fetch(t, transport, "/login", true)
		got := fetch(t, transport, "/whoami", true)

		// Assert
		assert.Equal(t, "abc", got)
	})

	t.Run("should neither store nor send cookies without credentials", func(t *testing.T) {
		// Arrange
		transport := NewTransport()

		// Act
		fetch(t, transport, "/login", false)
		stored := fetch(t, transport, "/whoami", true)
		fetch(t, transport, "/login", true)
		sent := fetch(t, transport, "/whoami", false)

		// Assert
		assert.Equal(t, "", stored)
		assert.Equal(t, "", sent)
	})

	t.Run("should use the supplied cookie jar", func(t *testing.T) {
		// Arrange
		jar, err := cookiejar.New(nil)
		require.NoError(t, err)
		transport := NewTransport(WithCookieJar(jar))

		// Act
		fetch(t, transport, "/login", true)

		// Assert
		u, err := url.Parse(server.URL)
		require.NoError(t, err)
		require.Len(t, jar.Cookies(u), 1)
		assert.Equal(t, "abc", jar.Cookies(u)[0].Value)
	})
}
