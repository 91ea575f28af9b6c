package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"occupancy/internal/archive"
	"occupancy/internal/blob"
	"occupancy/internal/config"
	"occupancy/internal/core"
	"occupancy/internal/events"
	"occupancy/internal/platform/logger"
	"occupancy/internal/platform/metrics"
	"occupancy/internal/platform/tracing"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// app holds every wired component of one process run.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	svc      *core.Service
	blobs    blob.Store
	exporter *archive.Exporter
	closers  []func() error
}

func buildApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (_ *app, err error) {
	log, err := logger.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log.With("service", cfg.ServiceName)}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	scope, err := core.ParseDuplicateScope(cfg.DuplicateScope)
	if err != nil {
		return nil, err
	}
	driver, err := core.ParseStorageDriver(cfg.Storage.Driver)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	store, closeStore, err := core.OpenPersistentStore(ctx, core.StorageConfig{
		Driver:      driver,
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
		Location:    loc,
	}, core.NewDefaultRulesEngine(scope))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, closeStore)

	a.registry = metrics.NewRegistry()
	recorder, err := metrics.NewRecorder(a.registry)
	if err != nil {
		return nil, err
	}
	provider := tracing.NewProvider(cfg.ServiceName)
	a.closers = append(a.closers, func() error { return shutdownTracing(provider) })

	publisher, err := a.openPublisher(ctx)
	if err != nil {
		return nil, err
	}

	a.svc = core.NewService(store,
		core.WithLogger(a.log),
		core.WithMetricsRecorder(recorder),
		core.WithTracer(tracing.New(provider)),
		core.WithPublisher(publisher),
		core.WithDuplicateScope(scope),
	)
	if cfg.TopologyFile != "" {
		topo, err := core.LoadTopology(cfg.TopologyFile)
		if err != nil {
			return nil, err
		}
		a.svc = a.svc.WithTopology(topo)
	}

	blobDriver, err := blob.ParseDriver(cfg.Blob.Driver)
	if err != nil {
		return nil, err
	}
	a.blobs, err = blob.Open(ctx, blob.Config{
		Driver: blobDriver,
		FSRoot: cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          cfg.Blob.S3Bucket,
			Region:          cfg.Blob.S3Region,
			Endpoint:        cfg.Blob.S3Endpoint,
			PathStyle:       cfg.Blob.S3PathStyle,
			AccessKeyID:     cfg.Blob.S3AccessKeyID,
			SecretAccessKey: cfg.Blob.S3SecretAccessKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	a.exporter = archive.NewExporter(a.svc.Coordinator(), a.blobs)
	return a, nil
}

// openPublisher returns the configured broker publisher fanned out with the
// event log.
func (a *app) openPublisher(ctx context.Context) (events.Publisher, error) {
	sinks := events.Fanout{eventLog{log: a.log}}
	switch a.cfg.Events.Driver {
	case "redis":
		p, err := events.NewRedisPublisher(ctx, a.cfg.Events.RedisURL, a.cfg.Events.RedisChannel)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		sinks = append(sinks, p)
	case "kafka":
		p, err := events.NewKafkaPublisher(a.cfg.Events.KafkaBrokers, a.cfg.Events.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		sinks = append(sinks, p)
	}
	return sinks, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func shutdownTracing(p *sdktrace.TracerProvider) error {
	return p.Shutdown(context.Background())
}

// eventLog records every published event at debug level.
type eventLog struct {
	log *logger.Logger
}

func (l eventLog) Publish(_ context.Context, evt events.Event) error {
	l.log.Debug("event published", "topic", string(evt.Topic), "operation", evt.Operation, "refs", len(evt.Refs))
	return nil
}
