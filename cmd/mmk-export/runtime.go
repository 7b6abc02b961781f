package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/target/mmk-export/internal/bootstrap"
)

type runtimeOptions struct {
	// Services builds the export client and the services around it.
	Services    bool
	MetricsAddr string
}

// runtime is everything one command invocation opened.
type runtime struct {
	cmd      *commandContext
	infra    *bootstrap.Infra
	services *bootstrap.ServiceContainer
	metrics  *http.Server
}

func openRuntime(ctx context.Context, cmdCtx *commandContext, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{cmd: cmdCtx}

	infra, err := bootstrap.ConnectInfra(ctx, &cmdCtx.Config, cmdCtx.Logger)
	if err != nil {
		return nil, err
	}
	rt.infra = infra

	if !opts.Services {
		return rt, nil
	}

	svcs, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:      &cmdCtx.Config,
		DB:          infra.DB,
		RedisClient: infra.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	rt.services = svcs

	server, err := bootstrap.StartMetricsServer(bootstrap.MetricsServerConfig{
		Addr:     opts.MetricsAddr,
		Gatherer: svcs.Observability.Registry,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("start metrics server: %w", err)
	}
	rt.metrics = server

	return rt, nil
}

// Close stops the metrics listener, the poller and the stores, logging failures.
func (r *runtime) Close(ctx context.Context) {
	logger := r.cmd.Logger
	if err := bootstrap.ShutdownHTTPServer(ctx, r.metrics, logger); err != nil {
		logger.Warn("metrics server shutdown failed", "error", err)
	}
	r.services.Close(logger)
	if err := r.infra.Close(); err != nil {
		logger.Warn("close infrastructure failed", "error", err)
	}
}
