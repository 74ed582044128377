package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/701789262a/backend-dailychat/bootstrap"
	"github.com/701789262a/backend-dailychat/component"
	"github.com/701789262a/backend-dailychat/database"
	"github.com/701789262a/backend-dailychat/discovery"
	"github.com/701789262a/backend-dailychat/internal/dispatch"
	"github.com/701789262a/backend-dailychat/internal/node"
	"github.com/701789262a/backend-dailychat/internal/settings"
	"github.com/701789262a/backend-dailychat/internal/speaker"
	"github.com/701789262a/backend-dailychat/internal/speakerapi"
	"github.com/701789262a/backend-dailychat/observability"
	"github.com/701789262a/backend-dailychat/redis"
	"github.com/701789262a/backend-dailychat/server"
	"github.com/701789262a/backend-dailychat/storage"
)

func newDispatcherCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatcher",
		Short: "Accept clips and forward each to an idle worker node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg settings.DispatcherConfig
			if err := ctx.load("dispatcher", &cfg); err != nil {
				return err
			}
			return runDispatcher(cmd.Context(), &cfg)
		},
	}
}

func runDispatcher(ctx context.Context, cfg *settings.DispatcherConfig) error {
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	obs := observability.NewComponent(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment, app.Logger)
	disc := discovery.NewComponent(cfg.Discovery, app.Logger)
	db := database.NewComponent(cfg.Database, app.Logger).WithMigrations(speaker.Migrations, speaker.MigrationsPath)
	store := storage.NewComponent(cfg.Storage, app.Logger)
	comps := []component.Component{obs, disc, db, store}

	var rdb *redis.Component
	if cfg.BusySet.Backend == settings.BusySetRedis {
		rdb = redis.NewComponent(cfg.BusySet.Redis, app.Logger)
		comps = append(comps, rdb)
	}
	if err := registerAll(app, comps...); err != nil {
		return err
	}

	app.OnConfigure(func(ctx context.Context, app *bootstrap.App[*settings.DispatcherConfig]) error {
		var busy dispatch.BusySet = dispatch.NewMemoryBusySet()
		if rdb != nil {
			busy = dispatch.NewRedisBusySet(rdb.Client())
		}
		source, err := node.NewRemote(cfg.Registry.Resolver(disc.Client()), cfg.Registry.Timeout)
		if err != nil {
			return err
		}
		forwarder, err := dispatch.NewHTTPForwarder(cfg.NodePort, cfg.ForwardTimeout)
		if err != nil {
			return err
		}
		d := dispatch.New(source, busy, forwarder, app.Logger,
			dispatch.WithStaleness(cfg.Staleness),
			dispatch.WithMetrics(observability.NewMetricsOrNop()),
		)

		srv := server.New(cfg.Server, app.Logger)
		srv.ApplyDefaults(cfg.Name, app.Components.HealthAll)
		dispatch.NewHandler(d).Register(srv.Engine())
		speakerapi.NewHandler(speaker.NewRepository(db.DB()), store.Blobs(), app.Logger).Register(srv.Engine())
		return app.Launch(ctx, server.NewComponent(srv))
	})
	return app.Run(ctx)
}
