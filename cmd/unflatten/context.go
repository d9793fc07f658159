package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"unflatten/internal/config"
	"unflatten/internal/logging"
)

// skipConfigAnnotation marks commands that must work without a loadable
// configuration file.
const skipConfigAnnotation = "unflatten/skip-config"

// commandContext loads the configuration at most once per process and hands
// it to every subcommand.
type commandContext struct {
	configFlag string

	once       sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		cfg, path, exists, err := config.Load(strings.TrimSpace(c.configFlag))
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		if err != nil {
			c.configErr = err
			return
		}
		c.config, c.configPath, c.configSeen = cfg, path, exists
	})
	return c.config, c.configErr
}

// logger returns the configured logger, or a plain stderr logger plus a
// warning when the configured one cannot be built.
func (c *commandContext) logger(cfg *config.Config) *slog.Logger {
	logger, err := logging.NewFromConfig(cfg)
	if err == nil {
		return logger
	}
	fallback, _ := logging.New(logging.Options{})
	fallback.Warn("configured logger unavailable, using stderr", logging.Error(err))
	return fallback
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
