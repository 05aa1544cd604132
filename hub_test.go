package hubkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/hubkit/pkg/callbag"
	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/fgrzl/hubkit/pkg/env"
	"github.com/fgrzl/hubkit/pkg/logging"
	"github.com/fgrzl/hubkit/pkg/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.FileServer(http.Dir("testdata")))
	t.Cleanup(server.Close)
	return server
}

type recorder struct {
	mu     sync.Mutex
	lines  []string
	errors []string
}

func (r *recorder) middleware(prefix string) LogMiddleware {
	return func(next logging.Logger) logging.Logger {
		return logging.Func{
			LogFn: func(args ...any) {
				r.mu.Lock()
				r.lines = append(r.lines, prefix)
				r.mu.Unlock()
				next.Log(args...)
			},
			ErrorFn: func(args ...any) {
				r.mu.Lock()
				r.errors = append(r.errors, prefix)
				r.mu.Unlock()
				next.Error(args...)
			},
		}
	}
}

func TestBuilderConfig(t *testing.T) {
	t.Run("should reject an empty configuration", func(t *testing.T) {
		// Arrange
		b := NewBuilder()

		// Act
		err := b.Config(func(Sandbox) Config { return nil })

		// Assert
		assert.ErrorIs(t, err, ErrNoConfiguration)
	})

	t.Run("should reject unknown capabilities by name", func(t *testing.T) {
		// Arrange
		b := NewBuilder()

		// Act
		err := b.Config(func(Sandbox) Config {
			return Config{"storage": func(any) any { return nil }}
		})

		// Assert
		assert.ErrorIs(t, err, ErrUnknownCapability)
		assert.EqualError(t, err, "encountered configuration for unknown middleware 'storage'")
	})

	t.Run("should reject middleware of the wrong kind", func(t *testing.T) {
		// Arrange
		b := NewBuilder()

		// Act
		err := b.Config(func(Sandbox) Config {
			return Config{CapabilityLog: JSONMiddleware(func(next codec.Codec) codec.Codec { return next })}
		})

		// Assert
		assert.ErrorIs(t, err, ErrMiddlewareMismatch)
	})

	t.Run("should apply nothing when any entry is invalid", func(t *testing.T) {
		// Arrange
		b := NewBuilder()
		replacement := env.New()

		// Act
		err := b.Config(func(Sandbox) Config {
			return Config{
				CapabilityEnv: func(*env.Env) *env.Env { return replacement },
				"bogus":       nil,
			}
		})
		hub, buildErr := b.Build()

		// Assert
		require.Error(t, err)
		require.NoError(t, buildErr)
		assert.NotSame(t, replacement, hub.Sandbox().Env)
	})

	t.Run("should chain middleware in registration order", func(t *testing.T) {
		// Arrange
		rec := &recorder{}
		b := NewBuilder(WithLogger(nil))
		require.NoError(t, b.Config(func(Sandbox) Config { return Config{CapabilityLog: rec.middleware("inner")} }))
		require.NoError(t, b.Config(func(Sandbox) Config { return Config{CapabilityLog: rec.middleware("outer")} }))
		hub, err := b.Build()
		require.NoError(t, err)

		// Act
		hub.Sandbox().Log.Log("hello")

		// Assert
		assert.Equal(t, []string{"outer", "inner"}, rec.lines)
	})

	t.Run("should decorate the static logger", func(t *testing.T) {
		// Arrange
		rec := &recorder{}
		b := NewBuilder()
		require.NoError(t, b.Config(func(Sandbox) Config { return Config{CapabilityLog: rec.middleware("plugin")} }))
		hub, err := b.Build()
		require.NoError(t, err)

		// Act
		hub.Log().Error("boom")

		// Assert
		assert.Equal(t, []string{"plugin"}, rec.errors)
	})

	t.Run("should pass the configured sandbox to later configuration", func(t *testing.T) {
		// Arrange
		b := NewBuilder()
		require.NoError(t, b.Config(func(s Sandbox) Config {
			return Config{CapabilityEnv: func(next *env.Env) *env.Env {
				require.NoError(t, next.Define("app.name", "hub"))
				return next
			}}
		}))
		var seen any

		// Act
		err := b.Config(func(s Sandbox) Config {
			seen, _ = s.Env.Lookup("app.name")
			return Config{CapabilityEnv: func(next *env.Env) *env.Env { return next }}
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "hub", seen)
	})

	t.Run("should refuse configuration after build", func(t *testing.T) {
		// Arrange
		b := NewBuilder()
		_, err := b.Build()
		require.NoError(t, err)

		// Act
		configErr := b.Config(func(Sandbox) Config { return Config{} })
		_, buildErr := b.Build()

		// Assert
		assert.ErrorIs(t, configErr, ErrFinalized)
		assert.ErrorIs(t, buildErr, ErrFinalized)
	})
}

func TestHub(t *testing.T) {
	t.Run("should hand each plugin its own sandbox copy", func(t *testing.T) {
		// Arrange
		hub, err := NewBuilder().Build()
		require.NoError(t, err)

		// Act
		hub.Use(func(s *Sandbox) { s.Log = logging.Discard })

		// Assert
		hub.Use(func(s *Sandbox) { assert.NotEqual(t, logging.Discard, s.Log) })
	})

	t.Run("should route unsupported bodies through the decorated logger", func(t *testing.T) {
		// Arrange
		rec := &recorder{}
		b := NewBuilder()
		require.NoError(t, b.Config(func(Sandbox) Config { return Config{CapabilityLog: rec.middleware("plugin")} }))
		hub, err := b.Build()
		require.NoError(t, err)

		// Act
		_, awaitErr := hub.Sandbox().Request.Request("http://127.0.0.1:1/", &Options{Method: request.MethodPost, Body: 42}).Await(context.Background())

		// Assert
		assert.ErrorIs(t, awaitErr, request.ErrUnsupportedBody)
		assert.Equal(t, []string{"plugin"}, rec.errors)
	})

	t.Run("should publish and subscribe through the sandbox bus", func(t *testing.T) {
		// Arrange
		hub, err := NewBuilder().Build()
		require.NoError(t, err)
		var got []any
		hub.Use(func(s *Sandbox) {
			callbag.ForEach(func(v any) { got = append(got, v) })(s.PubSub.Subscribe("greetings").Start)
		})

		// Act
		hub.Use(func(s *Sandbox) { s.PubSub.Publish("greetings", "hi") })

		// Assert
		assert.Equal(t, []any{"hi"}, got)
	})

	t.Run("should count requests when metrics are enabled", func(t *testing.T) {
		// Arrange
		server := newFixtureServer(t)
		reg := prometheus.NewRegistry()
		hub, err := NewBuilder(WithMetrics(reg)).Build()
		require.NoError(t, err)

		// Act
		_, err = hub.Sandbox().Request.Text(server.URL+"/plaintext.txt", nil).Await(context.Background())

		// Assert
		require.NoError(t, err)
		count, err := testutil.GatherAndCount(reg, "hub_requests_total")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestEvents(t *testing.T) {
	t.Run("should enumerate the full event sequence", func(t *testing.T) {
		// Arrange
		server := newFixtureServer(t)
		hub, err := NewBuilder().Build()
		require.NoError(t, err)
		stream := hub.Sandbox().Request.Text(server.URL+"/plaintext.txt", nil)

		// Act
		events, err := enumerators.ToSlice(Events(context.Background(), stream))

		// Assert
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(events), 2)
		ok := events[len(events)-2]
		assert.Equal(t, request.EventOK, ok.Name)
		assert.Equal(t, "A plain text file\n", ok.Response)
		assert.Equal(t, request.EventComplete, events[len(events)-1].Name)
	})
}
