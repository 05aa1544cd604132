package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/fgrzl/hubkit/pkg/logging"
	"github.com/fgrzl/hubkit/pkg/request"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestOptions(t *testing.T) {
	t.Run("should parse headers and params", func(t *testing.T) {
		// Arrange
		getFlags.Method = "post"
		getFlags.Headers = []string{"X-App: hub", "Accept:text/plain"}
		getFlags.Params = []string{"q=a b", "page=2"}
		getFlags.Data = ""
		t.Cleanup(func() { getFlags.Headers, getFlags.Params = nil, nil })

		// Act
		opts, err := requestOptions()

		// Assert
		require.NoError(t, err)
		assert.Equal(t, request.MethodPost, opts.Method)
		assert.Equal(t, map[string]string{"X-App": "hub", "Accept": "text/plain"}, opts.Headers)
		assert.Equal(t, map[string]string{"q": "a b", "page": "2"}, opts.Params)
		assert.Nil(t, opts.Body)
	})

	t.Run("should reject malformed headers", func(t *testing.T) {
		// Arrange
		getFlags.Headers = []string{"no-colon"}
		t.Cleanup(func() { getFlags.Headers = nil })

		// Act
		_, err := requestOptions()

		// Assert
		assert.Error(t, err)
	})
}

func TestParseBody(t *testing.T) {
	t.Run("should keep json objects structured", func(t *testing.T) {
		body := parseBody(`{"b":1,"a":2}`)

		obj, ok := body.(*codec.Object)
		require.True(t, ok)
		assert.Equal(t, []string{"b", "a"}, obj.Keys())
	})

	t.Run("should send everything else as text", func(t *testing.T) {
		assert.Equal(t, "hello", parseBody("hello"))
		assert.Equal(t, "{broken", parseBody("{broken"))
	})
}

func TestPrintEvents(t *testing.T) {
	t.Run("should print every event through complete", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "hello")
		}))
		defer server.Close()
		client := request.NewClient(nil, logging.Discard, codec.Default, request.Defaults{})
		var out bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&out)

		// Act
		err := printEvents(cmd, context.Background(), client.Text(server.URL, nil))

		// Assert
		require.NoError(t, err)
		text := out.String()
		okAt := strings.Index(text, `"name": "ok"`)
		completeAt := strings.Index(text, `"name": "complete"`)
		require.GreaterOrEqual(t, okAt, 0)
		assert.Greater(t, completeAt, okAt)
	})
}
