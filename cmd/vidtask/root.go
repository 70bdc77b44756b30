package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feitianbubu/vidtask"
	redisstore "github.com/feitianbubu/vidtask/store/redis"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "vidtask",
	Short:         "Submit and track video generation tasks on any configured provider",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the configuration file")
	rootCmd.AddCommand(providersCmd, genCmd, statusCmd)
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// buildService assembles a service from the discovered configuration. The
// returned cleanup releases the transport and, when Redis is configured, the
// store connection.
func buildService(cmd *cobra.Command) (*vidtask.Service, *zap.Logger, func(), error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := setupLogger(config.Log, config.Debug)
	if err != nil {
		return nil, nil, nil, err
	}

	registry := vidtask.LoadProviders(config.Providers, logger)
	if registry.Len() == 0 {
		logger.Warn("no valid providers configured")
	}

	var store vidtask.Store
	var closeStore func()
	if config.Redis != nil && config.Redis.Addr != "" {
		redisStore, err := redisstore.New(*config.Redis, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		store = redisStore
		closeStore = func() { _ = redisStore.Close() }
	} else {
		store = vidtask.NewMemoryStore()
	}

	service := vidtask.NewService(registry, store, &vidtask.ServiceConfig{
		DefaultProviderID: config.DefaultProviderID,
		Client:            config.clientConfig(),
		Poll:              config.pollConfig(),
	}, logger)

	cleanup := func() {
		_ = service.Close()
		if closeStore != nil {
			closeStore()
		}
		_ = logger.Sync()
	}
	return service, logger, cleanup, nil
}
