package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"statuswatch/internal/config"
	"statuswatch/internal/storage"
	"statuswatch/pkg/logx"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "statuswatch",
		Short: "Watch public status pages and post incidents to Telegram chats",
		// bare invocation runs the bot
		RunE: runBot,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yaml", "path to the config file (.yaml, .yml or .json)")

	root.AddCommand(
		newRunCmd(),
		newChannelsCmd(),
		newServicesCmd(),
		newProbeCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.NewManager(configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, logx.NewConsole("warn"))
}
