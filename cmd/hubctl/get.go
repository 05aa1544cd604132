package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fgrzl/hubkit"
	"github.com/fgrzl/hubkit/pkg/callbag"
	"github.com/fgrzl/hubkit/pkg/codec"
	"github.com/fgrzl/hubkit/pkg/request"
	"github.com/spf13/cobra"
)

var getFlags struct {
	Method  string
	Headers []string
	Params  []string
	Data    string
	JSON    bool
	Text    bool
	Timeout time.Duration
	Events  bool
}

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Send one request and print the response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := requestOptions()
		if err != nil {
			return err
		}

		hub, err := hubkit.NewBuilder(hubkit.WithConfig(cfg)).Build()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		opts.Signal = request.SignalFromContext(ctx)

		client := hub.Sandbox().Request
		var stream request.Stream
		switch {
		case getFlags.JSON:
			stream = client.JSON(args[0], opts)
		case getFlags.Text:
			stream = client.Text(args[0], opts)
		default:
			stream = client.Request(args[0], opts)
		}

		if getFlags.Events {
			return printEvents(cmd, ctx, stream)
		}

		ev, err := stream.Await(ctx)
		if err != nil {
			return err
		}
		return printValue(cmd, ev.Response)
	},
}

func init() {
	getCmd.Flags().StringVarP(&getFlags.Method, "method", "X", "GET", "request method")
	getCmd.Flags().StringArrayVarP(&getFlags.Headers, "header", "H", nil, "header as 'Name: value' (repeatable)")
	getCmd.Flags().StringArrayVarP(&getFlags.Params, "param", "p", nil, "query parameter as key=value (repeatable)")
	getCmd.Flags().StringVarP(&getFlags.Data, "data", "d", "", "request body; JSON objects and arrays are sent as application/json")
	getCmd.Flags().BoolVar(&getFlags.JSON, "json", false, "decode the response as json")
	getCmd.Flags().BoolVar(&getFlags.Text, "text", false, "decode the response as text")
	getCmd.Flags().DurationVar(&getFlags.Timeout, "timeout", 0, "request timeout (default from config)")
	getCmd.Flags().BoolVar(&getFlags.Events, "events", false, "print every stream event instead of the response")
	getCmd.MarkFlagsMutuallyExclusive("json", "text")
}

func requestOptions() (*request.Options, error) {
	opts := &request.Options{
		Method:  request.Method(strings.ToUpper(getFlags.Method)),
		Timeout: getFlags.Timeout,
	}

	if len(getFlags.Headers) > 0 {
		opts.Headers = make(map[string]string, len(getFlags.Headers))
		for _, h := range getFlags.Headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok {
				return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", h)
			}
			opts.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	if len(getFlags.Params) > 0 {
		opts.Params = make(map[string]string, len(getFlags.Params))
		for _, p := range getFlags.Params {
			key, value, ok := strings.Cut(p, "=")
			if !ok {
				return nil, fmt.Errorf("invalid param %q: expected key=value", p)
			}
			opts.Params[key] = value
		}
	}

	if getFlags.Data != "" {
		opts.Body = parseBody(getFlags.Data)
	}
	return opts, nil
}

// parseBody keeps JSON objects and arrays structured so the engine encodes
// them with a JSON content type. Anything else goes out as text.
func parseBody(data string) any {
	trimmed := strings.TrimSpace(data)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if v, err := codec.FromJSON(trimmed); err == nil {
			return v
		}
	}
	return data
}

// printEvents writes each event as it arrives and returns once the stream
// has ended or ctx is done.
func printEvents(cmd *cobra.Command, ctx context.Context, stream request.Stream) error {
	var printErr error
	done := make(chan struct{})
	sub := stream.Subscribe()
	sub.Start(func(msg callbag.Message[request.Event]) {
		switch m := msg.(type) {
		case callbag.Start[request.Event]:
			m.Talkback(callbag.Pull)
		case callbag.Data[request.Event]:
			if printErr == nil {
				printErr = printValue(cmd, eventObject(m.Value))
			}
		case callbag.End[request.Event]:
			close(done)
		}
	})

	select {
	case <-done:
		return printErr
	case <-ctx.Done():
		sub.Unsubscribe()
		return ctx.Err()
	}
}

func eventObject(ev request.Event) *codec.Object {
	obj := codec.NewObject().Set("name", string(ev.Name))
	switch ev.Name {
	case request.EventProgress:
		obj.Set("loaded", ev.Loaded).Set("total", ev.Total).Set("progress", ev.Progress).Set("indeterminate", ev.Indeterminate)
	case request.EventOK:
		obj.Set("status", ev.Status).Set("loaded", ev.Loaded)
	case request.EventError, request.EventTimeout:
		obj.Set("status", ev.Status).Set("statusText", ev.StatusText)
		if ev.Error != nil {
			obj.Set("error", ev.Error.Error())
		}
	case request.EventComplete:
		obj.Set("status", ev.Status).Set("ok", ev.OK).Set("loaded", ev.Loaded)
	}
	return obj
}

func printValue(cmd *cobra.Command, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprint(cmd.OutOrStdout(), s)
		return err
	}
	if b, ok := v.([]byte); ok {
		_, err := cmd.OutOrStdout().Write(b)
		return err
	}
	out, err := codec.ToJSON(v, 2)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
