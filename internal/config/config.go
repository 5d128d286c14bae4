package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// FLOWPROBE_RECEIVER_REPORT_EVERY=10.
const EnvPrefix = "FLOWPROBE"

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Receiver ReceiverConfig `mapstructure:"receiver"`
	Sender   SenderConfig   `mapstructure:"sender"`
	Sink     SinkConfig     `mapstructure:"sink"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// MetricsConfig controls the admin HTTP endpoint (metrics, health, stats).
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

type ReceiverConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	ReportEvery    uint64 `mapstructure:"report_every"`     // latency sample decimation per flow
	ReadBufferSize int    `mapstructure:"read_buffer_size"` // SO_RCVBUF, 0 keeps the OS default
	ReuseAddr      bool   `mapstructure:"reuse_addr"`
	// PollInterval bounds how long a blocking read waits before the loop
	// re-checks for cancellation.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// RestartThreshold is how far a sequence number may fall behind the
	// highest seen before it is treated as a new sender run.
	RestartThreshold uint64 `mapstructure:"restart_threshold"`
}

type SenderConfig struct {
	ControlTOS      int `mapstructure:"control_tos"`
	LoggingTOS      int `mapstructure:"logging_tos"`
	WriteBufferSize int `mapstructure:"write_buffer_size"`
}

type SinkConfig struct {
	Redis RedisSinkConfig `mapstructure:"redis"`
}

// RedisSinkConfig configures publishing of reported samples to a Redis stream.
type RedisSinkConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Stream       string        `mapstructure:"stream"`
	MaxLen       int64         `mapstructure:"max_len"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Load reads configuration from configPath, environment overrides and
// defaults. An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Logging defaults. Diagnostics go to stderr so stdout stays
	// reserved for measurement lines.
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Receiver defaults
	v.SetDefault("receiver.listen_addr", "0.0.0.0")
	v.SetDefault("receiver.report_every", 100)
	v.SetDefault("receiver.read_buffer_size", 0)
	v.SetDefault("receiver.reuse_addr", true)
	v.SetDefault("receiver.poll_interval", "250ms")
	v.SetDefault("receiver.restart_threshold", 1000)

	// Sender defaults
	v.SetDefault("sender.control_tos", 0x10)
	v.SetDefault("sender.logging_tos", 0)
	v.SetDefault("sender.write_buffer_size", 0)

	// Redis sink defaults
	v.SetDefault("sink.redis.enabled", false)
	v.SetDefault("sink.redis.addr", "localhost:6379")
	v.SetDefault("sink.redis.db", 0)
	v.SetDefault("sink.redis.stream", "flowprobe:samples")
	v.SetDefault("sink.redis.max_len", 100000)
	v.SetDefault("sink.redis.dial_timeout", "5s")
	v.SetDefault("sink.redis.write_timeout", "1s")
}
