package hubkit

import (
	"log/slog"
	"os"

	"github.com/fgrzl/hubkit/pkg/config"
	"github.com/fgrzl/hubkit/pkg/pubsub"
	"github.com/fgrzl/hubkit/pkg/request"
	"github.com/fgrzl/hubkit/pkg/xhr"
	"github.com/prometheus/client_golang/prometheus"
)

type Option func(*options)

type options struct {
	logger    *slog.Logger
	transport xhr.Factory
	bus       pubsub.PubSub
	defaults  request.Defaults
	metrics   prometheus.Registerer
}

func defaultOptions() options {
	return options{defaults: request.Defaults{Timeout: request.DefaultTimeout}}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithTransport(t xhr.Factory) Option {
	return func(o *options) { o.transport = t }
}

func WithBus(bus pubsub.PubSub) Option {
	return func(o *options) { o.bus = bus }
}

func WithRequestDefaults(d request.Defaults) Option {
	return func(o *options) { o.defaults = d }
}

// WithConfig takes the logger and request defaults from cfg. Logs go to
// stderr.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.logger = cfg.Logger(os.Stderr)
		o.defaults = cfg.RequestDefaults()
	}
}

// WithMetrics records request outcomes on reg when the hub is built.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.metrics = reg }
}
