package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"depthbook/internal/book"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "DEPTHBOOK_"

var ErrInvalidConfig = errors.New("invalid config")

// Config is the depthbookd configuration. Values are layered: defaults,
// then the YAML file, then DEPTHBOOK_* environment variables (a .env file is
// loaded into the environment first).
type Config struct {
	Log     LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Metrics MetricsConfig  `yaml:"metrics" envPrefix:"METRICS_"`
	Query   QueryConfig    `yaml:"query" envPrefix:"QUERY_"`
	Stream  StreamConfig   `yaml:"stream" envPrefix:"STREAM_"`
	NATS    NATSConfig     `yaml:"nats" envPrefix:"NATS_"`
	Symbols []SymbolConfig `yaml:"symbols"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Pretty bool   `yaml:"pretty" env:"PRETTY"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
	Path string `yaml:"path" env:"PATH"`
}

type QueryConfig struct {
	Address string `yaml:"address" env:"ADDRESS"`
	Port    int    `yaml:"port" env:"PORT"`
	Workers int    `yaml:"workers" env:"WORKERS"`
}

type StreamConfig struct {
	MaxPending       int           `yaml:"max_pending" env:"MAX_PENDING"`
	QueueSize        int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF"`
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff" env:"RECONNECT_BACKOFF"`
}

// NATSConfig configures the NATS connection. An empty URL disables NATS
// sources.
type NATSConfig struct {
	URL  string `yaml:"url" env:"URL"`
	Name string `yaml:"name" env:"NAME"`
}

// SymbolConfig describes one book. Updates come from StreamURL (JSON over
// websocket), Subject (protobuf over NATS) or both.
type SymbolConfig struct {
	Name        string `yaml:"name"`
	SnapshotURL string `yaml:"snapshot_url"`
	StreamURL   string `yaml:"stream_url"`
	Subject     string `yaml:"subject"`
	// Semantics names the delta strategy: replace (default) or aggregate.
	Semantics string `yaml:"semantics"`
}

// Strategy is the parsed Semantics.
func (s SymbolConfig) Strategy() (book.Strategy, error) {
	if s.Semantics == "" {
		return book.ReplaceOrRemove, nil
	}
	return book.ParseStrategy(s.Semantics)
}

func Default() *Config {
	var c Config
	c.Log.Level = "info"
	c.Metrics.Addr = ":9090"
	c.Metrics.Path = "/metrics"
	c.Query.Address = "0.0.0.0"
	c.Query.Port = 9001
	c.Query.Workers = 10
	c.Stream.MaxPending = 1000
	c.Stream.QueueSize = 1024
	c.Stream.RetryBackoff = time.Second
	c.Stream.ReconnectBackoff = time.Second
	c.NATS.Name = "depthbookd"
	return &c
}

// Load reads the configuration. An empty path skips the YAML layer.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Load .env file if it exists
	_ = godotenv.Load()

	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Log.Level)
	}
	if c.Query.Port < 0 || c.Query.Port > 65535 {
		return fmt.Errorf("%w: query port %d", ErrInvalidConfig, c.Query.Port)
	}
	if c.Stream.MaxPending <= 0 {
		return fmt.Errorf("%w: max_pending must be positive", ErrInvalidConfig)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: no symbols configured", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		name := strings.ToUpper(s.Name)
		switch {
		case name == "":
			return fmt.Errorf("%w: symbol without a name", ErrInvalidConfig)
		case seen[name]:
			return fmt.Errorf("%w: duplicate symbol %s", ErrInvalidConfig, name)
		case s.SnapshotURL == "":
			return fmt.Errorf("%w: %s: snapshot_url is required", ErrInvalidConfig, name)
		case s.StreamURL == "" && s.Subject == "":
			return fmt.Errorf("%w: %s: needs a stream_url or a subject", ErrInvalidConfig, name)
		case s.Subject != "" && c.NATS.URL == "":
			return fmt.Errorf("%w: %s: subject set without nats.url", ErrInvalidConfig, name)
		}
		if _, err := s.Strategy(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
		}
		seen[name] = true
	}
	return nil
}
