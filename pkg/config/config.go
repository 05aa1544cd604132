// Package config loads hub settings from YAML files and the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fgrzl/hubkit/pkg/logging"
	"github.com/fgrzl/hubkit/pkg/request"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are tried in order when no explicit path is given.
var DefaultPaths = []string{
	"hub.yaml",
	"configs/hub.yaml",
}

type Config struct {
	Request RequestConfig
	Log     LogConfig
	Bridge  BridgeConfig
}

type RequestConfig struct {
	Timeout         time.Duration
	Headers         map[string]string
	WithCredentials bool
}

type LogConfig struct {
	Level  string
	Format string
}

// BridgeConfig configures the websocket pubsub bridge.
type BridgeConfig struct {
	// Address is the remote bridge endpoint a client dials.
	Address string
	// Listen is the address a bridge server binds.
	Listen string
	Token  string
	Secret string
}

func Default() Config {
	return Config{
		Request: RequestConfig{Timeout: request.DefaultTimeout},
		Log:     LogConfig{Level: "info", Format: "text"},
		Bridge:  BridgeConfig{Listen: ":8080"},
	}
}

type fileConfig struct {
	Request struct {
		Timeout         time.Duration     `yaml:"timeout"`
		Headers         map[string]string `yaml:"headers"`
		WithCredentials *bool             `yaml:"withCredentials"`
	} `yaml:"request"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Bridge struct {
		Address string `yaml:"address"`
		Listen  string `yaml:"listen"`
		Token   string `yaml:"token"`
		Secret  string `yaml:"secret"`
	} `yaml:"bridge"`
}

// LoadFromPath reads path, or the first readable entry of DefaultPaths when
// path is empty, merges it over Default and applies environment overrides.
// A missing default file is not an error; a missing or malformed explicit
// file is.
func LoadFromPath(path string) (Config, error) {
	cfg := Default()

	candidates := DefaultPaths
	if path != "" {
		candidates = []string{path}
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			if path != "" {
				return cfg, fmt.Errorf("config: read %s: %w", candidate, err)
			}
			continue
		}
		if err := Parse(&cfg, data); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", candidate, err)
		}
		slog.Debug("config: loaded", slog.String("path", candidate))
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

// Parse merges the YAML document data into cfg.
func Parse(cfg *Config, data []byte) error {
	var parsed fileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return err
	}
	merge(cfg, parsed)
	return nil
}

// merge copies the fields present in src over dst.
func merge(dst *Config, src fileConfig) {
	if src.Request.Timeout != 0 {
		dst.Request.Timeout = src.Request.Timeout
	}
	if src.Request.Headers != nil {
		dst.Request.Headers = src.Request.Headers
	}
	if src.Request.WithCredentials != nil {
		dst.Request.WithCredentials = *src.Request.WithCredentials
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
	if src.Bridge.Address != "" {
		dst.Bridge.Address = src.Bridge.Address
	}
	if src.Bridge.Listen != "" {
		dst.Bridge.Listen = src.Bridge.Listen
	}
	if src.Bridge.Token != "" {
		dst.Bridge.Token = src.Bridge.Token
	}
	if src.Bridge.Secret != "" {
		dst.Bridge.Secret = src.Bridge.Secret
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if raw := env("HUB_REQUEST_TIMEOUT"); raw != "" {
		if d, err := parseTimeout(raw); err == nil {
			cfg.Request.Timeout = d
		} else {
			slog.Warn("config: ignoring invalid HUB_REQUEST_TIMEOUT", slog.String("value", raw))
		}
	}
	if v := env("HUB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := env("HUB_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := env("HUB_BRIDGE_ADDR"); v != "" {
		cfg.Bridge.Address = v
	}
	if v := env("HUB_BRIDGE_LISTEN"); v != "" {
		cfg.Bridge.Listen = v
	}
	if v := env("HUB_BRIDGE_TOKEN"); v != "" {
		cfg.Bridge.Token = v
	}
	if v := env("HUB_BRIDGE_SECRET"); v != "" {
		cfg.Bridge.Secret = v
	}
}

// RequestDefaults converts the request section for request.NewClient.
func (c Config) RequestDefaults() request.Defaults {
	return request.Defaults{
		Headers:         c.Request.Headers,
		Timeout:         c.Request.Timeout,
		WithCredentials: c.Request.WithCredentials,
	}
}

// Logger builds a slog logger from the log section.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(logging.NewHandler(c.Log.Format, c.Log.Level, w))
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// parseTimeout accepts Go durations ("2s") or plain milliseconds ("2000").
func parseTimeout(raw string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(raw)
}
