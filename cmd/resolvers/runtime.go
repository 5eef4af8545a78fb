package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/open-sspm/resolvers/internal/config"
	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/logging"
)

// runtime is what every connector-facing command needs: app config, the
// registry and the shared connector dependencies.
type runtime struct {
	cfg    config.Config
	reg    *registry.ConnectorRegistry
	deps   registry.Deps
	logger *slog.Logger
}

func loadRuntime(ctx context.Context, command string, logWriter io.Writer) (*runtime, error) {
	logger, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: command, Writer: logWriter})
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	env, err := config.BuildEnv(ctx, cfg)
	if err != nil {
		return nil, err
	}
	reg, err := buildConnectorRegistry()
	if err != nil {
		return nil, err
	}
	env.Load(ctx, reg.Kinds()...)

	return &runtime{
		cfg: cfg,
		reg: reg,
		deps: registry.Deps{
			Env:                  env,
			Logger:               logger,
			PollIntervalOverride: cfg.PollIntervalOverride,
		},
		logger: logger,
	}, nil
}
