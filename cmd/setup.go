package cmd

import (
	"context"

	"github.com/google/uuid"

	"github.com/tickwise/tickwise/internal/config"
	"github.com/tickwise/tickwise/internal/logger"
)

// setup loads the configuration, builds the logger from it, and returns a
// context carrying the logger tagged with a fresh run ID.
func setup(ctx context.Context) (context.Context, *config.Config, error) {
	var opts []config.LoaderOption
	if cfgFile != "" {
		opts = append(opts, config.WithConfigFile(cfgFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return ctx, nil, err
	}

	var logOpts []logger.Option
	if cfg.Debug {
		logOpts = append(logOpts, logger.WithDebug())
	}
	if cfg.Quiet {
		logOpts = append(logOpts, logger.WithQuiet())
	}
	logOpts = append(logOpts, logger.WithFormat(cfg.LogFormat))

	ctx = logger.WithLogger(ctx, logger.NewLogger(logOpts...))
	ctx = logger.WithValues(ctx, "runId", uuid.New().String())

	for _, warning := range cfg.Warnings {
		logger.Warn(ctx, warning)
	}

	return ctx, cfg, nil
}
