package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/701789262a/backend-dailychat/bootstrap"
	"github.com/701789262a/backend-dailychat/discovery"
	"github.com/701789262a/backend-dailychat/internal/node"
	"github.com/701789262a/backend-dailychat/internal/prober"
	"github.com/701789262a/backend-dailychat/internal/registryapi"
	"github.com/701789262a/backend-dailychat/internal/settings"
	"github.com/701789262a/backend-dailychat/observability"
	"github.com/701789262a/backend-dailychat/server"
)

func newRegistryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "registry",
		Short: "Probe worker nodes and serve the live node map",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg settings.RegistryConfig
			if err := ctx.load("registry", &cfg); err != nil {
				return err
			}
			return runRegistry(cmd.Context(), &cfg)
		},
	}
}

func runRegistry(ctx context.Context, cfg *settings.RegistryConfig) error {
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	obs := observability.NewComponent(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment, app.Logger)
	disc := discovery.NewComponent(cfg.Discovery, app.Logger)
	if err := registerAll(app, obs, disc); err != nil {
		return err
	}

	registry := node.NewRegistry()
	// The probe loop outlives the /start request that launches it and
	// ends with the service.
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	var p *prober.Prober
	app.OnStop(func(stopCtx context.Context) error {
		cancel()
		if p == nil || !p.Running() {
			return nil
		}
		select {
		case <-p.Done():
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
		return nil
	})

	app.OnConfigure(func(ctx context.Context, app *bootstrap.App[*settings.RegistryConfig]) error {
		p, err = prober.New(cfg.Probe.Prober(), registry, observability.NewMetricsOrNop(), app.Logger)
		if err != nil {
			return err
		}
		h, err := registryapi.NewHandler(base, registry, p, cfg.Dispatcher.Resolver(disc.Client()), app.Logger)
		if err != nil {
			return err
		}
		srv := server.New(cfg.Server, app.Logger)
		srv.ApplyDefaults(cfg.Name, app.Components.HealthAll)
		h.Register(srv.Engine())

		if cfg.AutoStart {
			p.Start(base)
		}
		table := registryapi.NewTableLogger(registry, cfg.Table.Interval, cfg.Table.Window, app.Logger)
		return app.Launch(ctx, table, server.NewComponent(srv))
	})
	return app.Run(ctx)
}
