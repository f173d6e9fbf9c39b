package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway" mapstructure:"gateway"`
	Dispatch DispatchConfig `yaml:"dispatch" mapstructure:"dispatch"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Resolve  ResolveConfig  `yaml:"resolve" mapstructure:"resolve"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GatewayConfig holds dashboard API endpoint and credentials.
type GatewayConfig struct {
	Endpoint  string  `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// DispatchConfig configures the score-result dispatcher.
type DispatchConfig struct {
	BatchSize        int    `yaml:"batch_size" mapstructure:"batch_size"`
	BatchTimeoutMS   int    `yaml:"batch_timeout_ms" mapstructure:"batch_timeout_ms"`
	PollIntervalMS   int    `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	QueueCapacity    int    `yaml:"queue_capacity" mapstructure:"queue_capacity"`
	SpoolPath        string `yaml:"spool_path" mapstructure:"spool_path"`
	JoinTimeoutSecs  int    `yaml:"join_timeout_secs" mapstructure:"join_timeout_secs"`
}

// BatchTimeout returns the configured per-batch flush deadline.
func (c DispatchConfig) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutMS) * time.Millisecond
}

// PollInterval returns the worker's bounded wait for new items.
func (c DispatchConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// JoinTimeout returns how long shutdown waits for the worker.
func (c DispatchConfig) JoinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutSecs) * time.Second
}

// BatchConfig configures batch job assignment.
type BatchConfig struct {
	MaxBatchSize int `yaml:"max_batch_size" mapstructure:"max_batch_size"`
}

// ResolveConfig configures the identifier cache.
type ResolveConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// TTL returns the identifier cache entry lifetime.
func (c ResolveConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLEXUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key gets one so AutomaticEnv can override it.
	v.SetDefault("gateway.endpoint", "")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.rate_limit", 10.0)
	v.SetDefault("dispatch.batch_size", 10)
	v.SetDefault("dispatch.batch_timeout_ms", 1000)
	v.SetDefault("dispatch.poll_interval_ms", 1000)
	v.SetDefault("dispatch.queue_capacity", 10000)
	v.SetDefault("dispatch.spool_path", "plexus-spool.db")
	v.SetDefault("dispatch.join_timeout_secs", 30)
	v.SetDefault("batch.max_batch_size", 20)
	v.SetDefault("resolve.ttl_minutes", 15)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
