package main

import (
	"os"

	errors "github.com/Laisky/errors/v2"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ai-studio/internal/config"
	"github.com/suPer8Hu/ai-studio/internal/log"
)

var rootCMD = &cobra.Command{
	Use:           "studio",
	Short:         "studio",
	Long:          `AI studio backend: chat relay, projects and provider keys`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCMD.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.env, yaml, toml or json)")
}

// initialize loads configuration and the process logger.
func initialize() (config.Config, error) {
	if configPath != "" {
		if err := os.Setenv("STUDIO_CONFIG", configPath); err != nil {
			return config.Config{}, errors.Wrap(err, "set config path")
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, errors.Wrap(err, "load config")
	}
	if _, err := log.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return config.Config{}, errors.Wrap(err, "init logger")
	}
	return cfg, nil
}
