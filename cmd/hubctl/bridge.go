package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fgrzl/hubkit/pkg/auth/jwtkit"
	"github.com/fgrzl/hubkit/pkg/callbag"
	"github.com/fgrzl/hubkit/pkg/logging"
	"github.com/fgrzl/hubkit/pkg/pubsub"
	"github.com/fgrzl/hubkit/pkg/transport/wskit"
	"github.com/fgrzl/mux"
	"github.com/spf13/cobra"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run or talk to a pubsub bridge",
}

var bridgeServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a pubsub bridge over websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Bridge.Secret == "" {
			return errors.New("bridge secret not configured (bridge.secret or HUB_BRIDGE_SECRET)")
		}

		bus := pubsub.New(pubsub.WithLogger(logging.New(slog.Default())))
		server := wskit.NewServer(bus, &jwtkit.HMAC256Validator{Secret: []byte(cfg.Bridge.Secret)})

		router := mux.NewRouter(nil)
		router.Healthz().AllowAnonymous()
		wskit.ConfigureWebSocketServer(router, server)

		httpServer := &http.Server{Addr: cfg.Bridge.Listen, Handler: router}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdown)
		}()

		slog.Info("bridge listening", slog.String("addr", cfg.Bridge.Listen), slog.String("path", wskit.DefaultPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

var bridgeTailCmd = &cobra.Command{
	Use:   "tail <channel>",
	Short: "Print messages published on a bridge channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Bridge.Address == "" {
			return errors.New("bridge address not configured (bridge.address or HUB_BRIDGE_ADDR)")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, err := wskit.Dial(ctx, cfg.Bridge.Address, cfg.Bridge.Token)
		if err != nil {
			return err
		}
		defer client.Close()

		callbag.ForEach(func(v any) {
			if err := printValue(cmd, v); err != nil {
				slog.Warn("print failed", slog.String("error", err.Error()))
			}
		})(client.Subscribe(args[0]).Start)

		select {
		case <-ctx.Done():
			return nil
		case <-client.Done():
			return fmt.Errorf("bridge %s: %w", cfg.Bridge.Address, wskit.ErrClosed)
		}
	},
}

var bridgePublishCmd = &cobra.Command{
	Use:   "publish <channel> <data>",
	Short: "Publish one message to a bridge channel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Bridge.Address == "" {
			return errors.New("bridge address not configured (bridge.address or HUB_BRIDGE_ADDR)")
		}
		client, err := wskit.Dial(cmd.Context(), cfg.Bridge.Address, cfg.Bridge.Token)
		if err != nil {
			return err
		}
		defer client.Close()
		client.Publish(args[0], parseBody(args[1]))
		return nil
	},
}

func init() {
	bridgeCmd.AddCommand(bridgeServeCmd)
	bridgeCmd.AddCommand(bridgeTailCmd)
	bridgeCmd.AddCommand(bridgePublishCmd)
}
