package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/701789262a/backend-dailychat/bootstrap"
	"github.com/701789262a/backend-dailychat/component"
	"github.com/701789262a/backend-dailychat/database"
	"github.com/701789262a/backend-dailychat/discovery"
	"github.com/701789262a/backend-dailychat/internal/identify"
	"github.com/701789262a/backend-dailychat/internal/notify"
	"github.com/701789262a/backend-dailychat/internal/segment"
	"github.com/701789262a/backend-dailychat/internal/settings"
	"github.com/701789262a/backend-dailychat/internal/speaker"
	"github.com/701789262a/backend-dailychat/internal/verify"
	"github.com/701789262a/backend-dailychat/internal/worker"
	"github.com/701789262a/backend-dailychat/kafka"
	"github.com/701789262a/backend-dailychat/kafka/producer"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/observability"
	"github.com/701789262a/backend-dailychat/provider"
	"github.com/701789262a/backend-dailychat/resilience"
	"github.com/701789262a/backend-dailychat/server"
	"github.com/701789262a/backend-dailychat/storage"
	"github.com/701789262a/backend-dailychat/transcription"
	"github.com/701789262a/backend-dailychat/transcription/whisper"
)

func newNodeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "node",
		Short: "Run a worker node: segment clips and identify their speakers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg settings.NodeConfig
			if err := ctx.load("node", &cfg); err != nil {
				return err
			}
			return runNode(cmd.Context(), &cfg)
		},
	}
}

func runNode(ctx context.Context, cfg *settings.NodeConfig) error {
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	obs := observability.NewComponent(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment, app.Logger)
	disc := discovery.NewComponent(cfg.Discovery, app.Logger)
	store := storage.NewComponent(cfg.Storage, app.Logger)
	db := database.NewComponent(cfg.Database, app.Logger).WithMigrations(speaker.Migrations, speaker.MigrationsPath)
	comps := []component.Component{obs, disc, store, db}

	var sinks []provider.Sink[notify.Event]
	if cfg.Notify.Kafka.Enabled {
		p, err := producer.NewProducer(cfg.Notify.Kafka.Config, app.Logger)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		comps = append(comps, kafka.NewComponent(cfg.Notify.Kafka.Config, p, app.Logger))
		sinks = append(sinks, notify.NewKafkaSink(p, cfg.Notify.Kafka.Topic))
	}
	if cfg.Notify.Ntfy.Enabled {
		sink, err := notify.NewNtfySink(cfg.Notify.Ntfy.NtfyConfig)
		if err != nil {
			return err
		}
		sinks = append(sinks, sink)
	}
	if err := registerAll(app, comps...); err != nil {
		return err
	}

	app.OnConfigure(func(ctx context.Context, app *bootstrap.App[*settings.NodeConfig]) error {
		metrics := observability.NewMetricsOrNop()
		blobs := store.Blobs()
		repo := speaker.NewRepository(db.DB())

		transcriber, err := newTranscriber(cfg.Transcription, app.Logger)
		if err != nil {
			return err
		}
		comparer, err := newComparer(cfg.Verify, app.Logger)
		if err != nil {
			return err
		}
		engine := identify.New(cfg.Identify, identify.Deps{
			Strategy:   cfg.Strategy(repo),
			Fetcher:    identify.BlobFetcher(blobs),
			Comparator: comparer,
			Recorder:   repo,
			Metrics:    metrics,
		}, app.Logger)
		pipeline := worker.NewPipeline(blobs, segment.New(cfg.Segment, transcriber, blobs, app.Logger), engine)

		releaser, err := worker.NewHTTPReleaser(cfg.Release.Resolver(disc.Client()), cfg.AdvertiseAddress, cfg.Release.Timeout)
		if err != nil {
			return err
		}
		name := cfg.AdvertiseAddress
		if name == "" {
			name = cfg.Name
		}
		queue := worker.NewQueue(cfg.Queue.Capacity)
		loop := worker.NewLoop(queue, pipeline, releaser, app.Logger,
			worker.WithNotifier(notify.New(app.Logger, sinks...)),
			worker.WithMetrics(metrics),
			worker.WithNodeName(name),
		)

		srv := server.New(cfg.Server, app.Logger)
		srv.ApplyDefaults(cfg.Name, app.Components.HealthAll)
		worker.NewHandler(queue, blobs, app.Logger).Register(srv.Engine())
		return app.Launch(ctx, loop, server.NewComponent(srv))
	})
	return app.Run(ctx)
}

// newTranscriber builds the segmentation sidecar client. A circuit
// breaker fails jobs fast while the sidecar is down.
func newTranscriber(cfg settings.TranscriptionConfig, log *logger.Logger) (transcription.Provider, error) {
	reg := transcription.NewRegistry()
	reg.RegisterFactory(whisper.ProviderName, whisper.Factory())
	tp, err := reg.Create(cfg.Provider, map[string]any{
		"url":      cfg.Whisper.URL,
		"model":    cfg.Whisper.Model,
		"language": cfg.Whisper.Language,
		"device":   cfg.Whisper.Device,
		"timeout":  cfg.Whisper.Timeout,
	})
	if err != nil {
		return nil, err
	}
	breaker := resilience.DefaultCircuitBreakerConfig(tp.Name())
	rr := provider.Chain(
		provider.WithLogging[transcription.Request, *transcription.Response](log),
		provider.WithTracing[transcription.Request, *transcription.Response]("transcription.transcribe"),
		provider.WithResilience[transcription.Request, *transcription.Response](provider.ResilienceConfig{CircuitBreaker: &breaker}),
	)(transcription.AsRequestResponse(tp))
	return transcription.FromRequestResponse(rr), nil
}

func newComparer(cfg verify.Config, log *logger.Logger) (*verify.Comparer, error) {
	reg := provider.NewRegistry[provider.RequestResponse[verify.Pair, verify.Result]]()
	reg.RegisterFactory(verify.ProviderName, verify.Factory())
	rr, err := reg.Create(verify.ProviderName, map[string]any{
		"url":     cfg.URL,
		"device":  cfg.Device,
		"timeout": cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	rr = provider.Chain(
		provider.WithLogging[verify.Pair, verify.Result](log),
		provider.WithTracing[verify.Pair, verify.Result]("verify.compare"),
	)(rr)
	return verify.NewComparer(rr), nil
}
