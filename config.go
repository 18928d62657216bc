package graphqllink

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.trai.ch/zerr"
)

// Config holds the two fixed endpoints and the transport settings. It is read
// once at startup.
type Config struct {
	HTTPEndpoint      string `mapstructure:"http_endpoint"`
	WebSocketEndpoint string `mapstructure:"websocket_endpoint"`

	// Reconnect restores the websocket after an unplanned disconnect.
	Reconnect            bool          `mapstructure:"reconnect"`
	ReconnectInterval    time.Duration `mapstructure:"reconnect_interval"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`

	// Timeout bounds each HTTP round trip; zero means none.
	Timeout time.Duration `mapstructure:"timeout"`

	// Headers are sent with every HTTP request and websocket handshake.
	Headers map[string]string `mapstructure:"headers"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`
	// Rotation applies to file outputs.
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// DefaultConfig points both transports at a local server on port 8080.
func DefaultConfig() Config {
	return Config{
		HTTPEndpoint:      "http://localhost:8080/query",
		WebSocketEndpoint: "ws://localhost:8080/query",
		Reconnect:         true,
		ReconnectInterval: defaultReconnectInterval,
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// LoadConfig reads a YAML file (when path is non-empty) over the defaults.
// Environment variables prefixed GRAPHQLLINK_ override both, with "." replaced
// by "_", e.g. GRAPHQLLINK_LOG_LEVEL=debug.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("GRAPHQLLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_endpoint", cfg.HTTPEndpoint)
	v.SetDefault("websocket_endpoint", cfg.WebSocketEndpoint)
	v.SetDefault("reconnect", cfg.Reconnect)
	v.SetDefault("reconnect_interval", cfg.ReconnectInterval)
	v.SetDefault("max_reconnect_attempts", cfg.MaxReconnectAttempts)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, zerr.With(zerr.Wrap(err, "failed to read config file"), "path", path)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, zerr.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that both endpoints are absolute URLs with a scheme matching
// their transport.
func (c Config) Validate() error {
	if err := validateEndpoint("http_endpoint", c.HTTPEndpoint, "http", "https"); err != nil {
		return err
	}
	if err := validateEndpoint("websocket_endpoint", c.WebSocketEndpoint, "ws", "wss"); err != nil {
		return err
	}
	if c.MaxReconnectAttempts < 0 {
		return errors.Join(ErrInvalidConfig,
			zerr.With(zerr.New("max_reconnect_attempts must not be negative"), "value", c.MaxReconnectAttempts))
	}
	return nil
}

func validateEndpoint(field, raw string, schemes ...string) error {
	if raw == "" {
		return errors.Join(ErrInvalidConfig, zerr.With(zerr.New("endpoint is required"), "field", field))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Join(ErrInvalidConfig, zerr.With(zerr.Wrap(err, "malformed endpoint"), "field", field))
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return errors.Join(ErrInvalidConfig,
		zerr.With(zerr.With(zerr.New("unsupported endpoint scheme"), "field", field), "scheme", u.Scheme))
}
