package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "RELAY"

type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Session   SessionConfig   `mapstructure:"session"`
	Alarm     AlarmConfig     `mapstructure:"alarm"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// LogLevel is shared with the logger and follows config file reloads.
	LogLevel *slog.LevelVar `mapstructure:"-"`
}

type ServiceConfig struct {
	ID string `mapstructure:"id"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	PublicURL      string        `mapstructure:"public_url"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
	OTel   bool   `mapstructure:"otel"`
}

type StoreConfig struct {
	Driver  string        `mapstructure:"driver"` // "memory" or "sqlite"
	Path    string        `mapstructure:"path"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Failures    uint32        `mapstructure:"failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRequests uint32        `mapstructure:"max_requests"`
}

type SessionConfig struct {
	// ExpiryTTL is the pre-join lifetime of a freshly initialized session.
	ExpiryTTL time.Duration `mapstructure:"expiry_ttl"`
	// KeepAlive is the alarm interval once a satellite joined.
	KeepAlive   time.Duration `mapstructure:"keep_alive"`
	MaxResident int           `mapstructure:"max_resident"`
	IdleTTL     time.Duration `mapstructure:"idle_ttl"`
}

type AlarmConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
}

type PubSubConfig struct {
	Driver       string `mapstructure:"driver"` // "gochannel" or "amqp"
	AMQPURL      string `mapstructure:"amqp_url"`
	EventsTopic  string `mapstructure:"events_topic"`
	ControlTopic string `mapstructure:"control_topic"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// defaults doubles as the flag table: every key is also a --flag.
var defaults = []struct {
	key   string
	value any
	usage string
}{
	{"service.id", "im-relay-1", "Instance identifier"},
	{"http.addr", ":8080", "HTTP listen address"},
	{"http.public_url", "ws://localhost:8080", "Base URL handed to clients"},
	{"http.allowed_origins", []string{}, "Allowed WebSocket origins (empty = any)"},
	{"http.read_limit", int64(64 * 1024), "Max inbound frame size in bytes"},
	{"http.write_timeout", 5 * time.Second, "Per-frame write deadline"},
	{"grpc.enabled", true, "Serve the gRPC health service"},
	{"grpc.addr", ":9090", "gRPC listen address"},
	{"log.level", "info", "Log level (debug, info, warn, error)"},
	{"log.format", "json", "Log format (json, text)"},
	{"log.otel", false, "Route logs through the OpenTelemetry bridge"},
	{"store.driver", "memory", "Durable store driver (memory, sqlite)"},
	{"store.path", "data/relay.db", "SQLite database path"},
	{"store.breaker.enabled", true, "Guard the store with a circuit breaker"},
	{"store.breaker.failures", uint32(5), "Consecutive failures that open the circuit"},
	{"store.breaker.timeout", 10 * time.Second, "Open circuit duration"},
	{"store.breaker.max_requests", uint32(1), "Probes allowed while half-open"},
	{"session.expiry_ttl", 5 * time.Minute, "Lifetime of a session nobody joined"},
	{"session.keep_alive", 30 * time.Second, "Keep-alive alarm interval"},
	{"session.max_resident", 4096, "Max awake session actors"},
	{"session.idle_ttl", 10 * time.Minute, "Idle time before an actor hibernates"},
	{"alarm.poll_interval", time.Second, "Alarm scheduler poll interval"},
	{"alarm.concurrency", 16, "Alarms fired in parallel"},
	{"pubsub.driver", "gochannel", "Event bus driver (gochannel, amqp)"},
	{"pubsub.amqp_url", "", "AMQP broker URL"},
	{"pubsub.events_topic", "relay.session.events", "Lifecycle events topic"},
	{"pubsub.control_topic", "relay.session.control", "Control commands topic"},
	{"telemetry.enabled", false, "Install the OpenTelemetry tracer provider"},
	{"telemetry.sample_ratio", 1.0, "Trace sampling ratio"},
}

// Flags returns the flag set understood by LoadConfig.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	fs.String("config_file", "", "Path to the configuration file")

	for _, d := range defaults {
		switch v := d.value.(type) {
		case string:
			fs.String(d.key, v, d.usage)
		case bool:
			fs.Bool(d.key, v, d.usage)
		case int:
			fs.Int(d.key, v, d.usage)
		case int64:
			fs.Int64(d.key, v, d.usage)
		case uint32:
			fs.Uint32(d.key, v, d.usage)
		case float64:
			fs.Float64(d.key, v, d.usage)
		case time.Duration:
			fs.Duration(d.key, v, d.usage)
		case []string:
			fs.StringSlice(d.key, v, d.usage)
		}
	}
	return fs
}

// LoadConfig resolves configuration from flags, env (RELAY_*), an optional
// config file and defaults, in that order of precedence.
func LoadConfig(args []string) (*Config, error) {
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}

	v := viper.New()
	for _, d := range defaults {
		v.SetDefault(d.key, d.value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}

	path := v.GetString("config_file")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{LogLevel: new(slog.LevelVar)}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.LogLevel.Set(ParseLevel(cfg.Log.Level))

	if path != "" {
		// [HOT_RELOAD] Only the log level is applied live; everything else
		// requires a restart.
		v.OnConfigChange(func(e fsnotify.Event) {
			level := ParseLevel(v.GetString("log.level"))
			cfg.LogLevel.Set(level)
			slog.Info("[CONFIG] reloaded", slog.String("file", e.Name), slog.String("log_level", level.String()))
		})
		v.WatchConfig()
	}

	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unsupported %q", c.Store.Driver))
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		errs = append(errs, errors.New("store.path: required for sqlite"))
	}

	switch c.PubSub.Driver {
	case "gochannel":
	case "amqp":
		if c.PubSub.AMQPURL == "" {
			errs = append(errs, errors.New("pubsub.amqp_url: required for amqp"))
		}
	default:
		errs = append(errs, fmt.Errorf("pubsub.driver: unsupported %q", c.PubSub.Driver))
	}

	if c.Session.ExpiryTTL <= 0 {
		errs = append(errs, errors.New("session.expiry_ttl: must be positive"))
	}
	if c.Session.KeepAlive <= 0 {
		errs = append(errs, errors.New("session.keep_alive: must be positive"))
	}
	if c.Alarm.PollInterval <= 0 {
		errs = append(errs, errors.New("alarm.poll_interval: must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// ParseLevel maps a textual level to slog, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
