// Package config loads service configuration from an optional yaml file and
// the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates all service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig governs the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SchedulerConfig governs the sharded operation engine.
type SchedulerConfig struct {
	Shards int `mapstructure:"shards"`
}

// GatewayConfig governs the external withdrawal gateway and the simulated
// custody service.
type GatewayConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MinDelay     time.Duration `mapstructure:"min_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig reads configuration, applying defaults, an optional config.yaml
// in the working directory, and LEDGER_-prefixed environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("scheduler.shards", 8)
	v.SetDefault("gateway.poll_interval", 250*time.Millisecond)
	v.SetDefault("gateway.min_delay", 1*time.Second)
	v.SetDefault("gateway.max_delay", 10*time.Second)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Scheduler.Shards <= 0 {
		return fmt.Errorf("scheduler.shards must be positive, got %d", c.Scheduler.Shards)
	}
	if c.Gateway.PollInterval <= 0 {
		return fmt.Errorf("gateway.poll_interval must be positive, got %s", c.Gateway.PollInterval)
	}
	if c.Gateway.MinDelay < 0 || c.Gateway.MaxDelay < c.Gateway.MinDelay {
		return fmt.Errorf("gateway delays invalid: min %s, max %s", c.Gateway.MinDelay, c.Gateway.MaxDelay)
	}
	return nil
}
