// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Health    HealthConfig    `mapstructure:"health"`
	Anomaly   struct {
		Rules map[string]Rule `mapstructure:"rules"`
	} `mapstructure:"anomaly"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type TelemetryConfig struct {
	Source    string          `mapstructure:"source"` // "websocket" or "kafka"
	StreamURL string          `mapstructure:"stream_url"`
	ReadLimit int64           `mapstructure:"read_limit"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// ReconnectConfig is off unless explicitly enabled: a dropped stream stays
// dropped by default.
type ReconnectConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MinBackoff time.Duration `mapstructure:"min_backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type GeneratorConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	ConfigurePath string        `mapstructure:"configure_path"`
	AnomalyPath   string        `mapstructure:"anomaly_path"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type HealthConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	HealthPath  string        `mapstructure:"health_path"`
	MetricsPath string        `mapstructure:"metrics_path"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Locale      string        `mapstructure:"locale"`
}

type Rule struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

type AuthConfig struct {
	JWTSecret     string   `mapstructure:"jwt_secret"`
	JWTExpiration int      `mapstructure:"jwt_expiration"` // in minutes
	APIKeys       []string `mapstructure:"api_keys"`
	Users         []User   `mapstructure:"users"`
}

type User struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load reads config.yaml from path. A missing file is not an error; the
// defaults and CONSOLE_* environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix("console")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Warn("No config file found, using defaults", "path", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)

	v.SetDefault("telemetry.source", "websocket")
	v.SetDefault("telemetry.stream_url", "ws://localhost:30080/ws")
	v.SetDefault("telemetry.read_limit", 64*1024)
	v.SetDefault("telemetry.reconnect.enabled", false)
	v.SetDefault("telemetry.reconnect.min_backoff", time.Second)
	v.SetDefault("telemetry.reconnect.max_backoff", 30*time.Second)
	v.SetDefault("telemetry.kafka.brokers", "localhost:9092")
	v.SetDefault("telemetry.kafka.topic", "raw-sensor-data")
	v.SetDefault("telemetry.kafka.group_id", "iot-console")

	v.SetDefault("generator.base_url", "http://localhost:30080")
	v.SetDefault("generator.configure_path", "/api/configure")
	v.SetDefault("generator.anomaly_path", "/api/inject-anomaly")
	v.SetDefault("generator.timeout", 10*time.Second)

	v.SetDefault("health.base_url", "http://localhost:8000")
	v.SetDefault("health.health_path", "/api/health")
	v.SetDefault("health.metrics_path", "/api/metrics")
	v.SetDefault("health.interval", 5*time.Second)
	v.SetDefault("health.timeout", 3*time.Second)
	v.SetDefault("health.locale", "en")

	v.SetDefault("auth.jwt_expiration", 60)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks the fields the rest of the console relies on.
func (c *Config) Validate() error {
	switch c.Telemetry.Source {
	case "websocket":
		if c.Telemetry.StreamURL == "" {
			return fmt.Errorf("telemetry stream_url is required")
		}
	case "kafka":
		if c.Telemetry.Kafka.Brokers == "" || c.Telemetry.Kafka.Topic == "" {
			return fmt.Errorf("telemetry kafka brokers and topic are required")
		}
	default:
		return fmt.Errorf("unsupported telemetry source: %s", c.Telemetry.Source)
	}
	if c.Telemetry.Reconnect.Enabled && c.Telemetry.Reconnect.MinBackoff <= 0 {
		return fmt.Errorf("telemetry reconnect min_backoff must be positive")
	}
	if c.Health.Interval <= 0 {
		return fmt.Errorf("health interval must be positive")
	}
	for metric, rule := range c.Anomaly.Rules {
		if rule.Min > rule.Max {
			return fmt.Errorf("anomaly rule %s: min %.2f > max %.2f", metric, rule.Min, rule.Max)
		}
	}
	if len(c.Auth.Users) > 0 && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required when users are configured")
	}
	return nil
}
