package main

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/slipstream/mediabridge/internal/config"
	"github.com/slipstream/mediabridge/internal/fetch"
	"github.com/slipstream/mediabridge/internal/logger"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// newLogger builds the process logger. A non-nil out replaces stdout, which
// keeps stdout clean for JSON output.
func newLogger(cfg *config.Config, out io.Writer) *logger.Logger {
	return logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		BufferSize: cfg.Logging.BufferSize,
		Output:     out,
	})
}

// newExecutor builds the shared outbound executor. Per-attempt timeouts come
// from the retry policy, so the client itself has none. The executor tags
// its own component.
func newExecutor(cfg *config.Config, log *logger.Logger) *fetch.Executor {
	client := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 16,
		},
	}
	return fetch.NewExecutor(client, fetch.PolicyFromConfig(cfg.Retry), log.Logger,
		fetch.WithMaxBodyBytes(cfg.Retry.MaxBodyBytes))
}
