package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// LogFile enables rotated file logging when set.
	LogFile string `mapstructure:"log_file"`

	PollInterval          time.Duration `mapstructure:"poll_interval"`
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxConnectionsPerCall int           `mapstructure:"max_connections_per_call"`
	EventBuffer           int           `mapstructure:"event_buffer"`

	// SimAutoAnswer makes the simulated radio answer dialed legs by
	// itself; zero disables it.
	SimAutoAnswer time.Duration `mapstructure:"sim_auto_answer"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("poll_interval", "500ms")
	v.SetDefault("max_connections", 8)
	v.SetDefault("max_connections_per_call", 5)
	v.SetDefault("event_buffer", 32)
	v.SetDefault("sim_auto_answer", "0s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
