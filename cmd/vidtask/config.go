package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/feitianbubu/vidtask"
	redisstore "github.com/feitianbubu/vidtask/store/redis"
)

// appConfig is the CLI configuration file shape.
type appConfig struct {
	DefaultProviderID     string `mapstructure:"default_provider_id"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	PollIntervalSeconds   int    `mapstructure:"poll_interval_seconds"`
	MaxPollAttempts       int    `mapstructure:"max_poll_attempts"`
	Debug                 bool   `mapstructure:"debug_mode"`

	Log   logConfig          `mapstructure:"log"`
	Redis *redisstore.Config `mapstructure:"redis"`

	Providers []vidtask.ProviderRecord `mapstructure:"providers"`
}

type logConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
}

// loadConfig reads configuration from path when given, otherwise it searches
// the working directory and ~/.vidtask for vidtask.yaml. Environment
// variables override file values with the prefix VIDTASK, for example
// VIDTASK_DEFAULT_PROVIDER_ID=sora.
func loadConfig(path string) (*appConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("VIDTASK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("request_timeout_seconds", 45)
	v.SetDefault("poll_interval_seconds", 6)
	v.SetDefault("max_poll_attempts", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if path == "" {
		path = os.Getenv("VIDTASK_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("vidtask")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".vidtask"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var config appConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return &config, nil
}

func (c *appConfig) clientConfig() *vidtask.ClientConfig {
	config := vidtask.DefaultClientConfig()
	if c.RequestTimeoutSeconds > 0 {
		config.Timeout = time.Duration(c.RequestTimeoutSeconds) * time.Second
	}
	config.Debug = c.Debug
	return config
}

func (c *appConfig) pollConfig() *vidtask.PollConfig {
	return &vidtask.PollConfig{
		Interval:    time.Duration(c.PollIntervalSeconds) * time.Second,
		MaxAttempts: c.MaxPollAttempts,
	}
}
