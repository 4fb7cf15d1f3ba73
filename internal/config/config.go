package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	APIBaseURL       string        `mapstructure:"api_base_url"`
	APIKey           string        `mapstructure:"api_key"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	SignalQueueSize  int           `mapstructure:"signal_queue_size"`
	MaxReconnects    int           `mapstructure:"max_reconnects"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	DevServerPort    int           `mapstructure:"dev_server_port"`
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

	v.SetDefault("api_base_url", "https://sip-gw.c-icare.cc:8443")
	v.SetDefault("api_key", "")
	v.SetDefault("request_timeout", "15s")
	v.SetDefault("signal_queue_size", 32)
	v.SetDefault("max_reconnects", 5)
	v.SetDefault("reconnect_backoff", "500ms")
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("dev_server_port", 8443)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
