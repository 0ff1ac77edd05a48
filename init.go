package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/swiftcart/fulfillment/internal/config"
	"github.com/swiftcart/fulfillment/internal/events"
	"github.com/swiftcart/fulfillment/internal/server"
	"github.com/swiftcart/fulfillment/internal/shipment"
	"github.com/swiftcart/fulfillment/internal/store"
	"github.com/swiftcart/fulfillment/internal/telemetry"
	"github.com/swiftcart/fulfillment/internal/tracking"
	"github.com/swiftcart/fulfillment/pkg/courier"
	"github.com/swiftcart/fulfillment/pkg/courier/shipx"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
	return shutdown, err
}

// dependencies bundles the wired services and everything that needs
// closing on shutdown.
type dependencies struct {
	Orchestrator *shipment.Orchestrator
	Tracking     *tracking.Service
	Queue        *shipment.Queue
	Verifier     server.Verifier

	closers []func() error
}

func (d *dependencies) Close() {
	for _, close := range d.closers {
		close()
	}
}

func initDependencies(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (*dependencies, error) {
	deps := &dependencies{}

	var tracer trace.Tracer
	// tracer would be initialized from otel.GetTracerProvider().Tracer(cfg.ServiceName)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	registry := courier.NewRegistry()
	registry.Register(shipx.New(shipx.Config{
		APIKey:  cfg.ShipXAPIKey,
		BaseURL: cfg.ShipXBaseURL,
		Timeout: cfg.CarrierTimeout,
		UseMock: cfg.ShipXUseMock,
	}, logger, tracer))

	st, err := initStore(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	cache, err := initCache(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	publisher := initPublisher(cfg, deps)

	deps.Orchestrator = shipment.NewOrchestrator(st, registry, publisher, shipment.Config{
		DefaultCourier: cfg.DefaultCourier,
		MaxAttempts:    cfg.MaxLabelAttempts,
		LockTimeout:    cfg.LockTimeout,
		CarrierTimeout: cfg.CarrierTimeout,
	}, logger, metrics)

	deps.Tracking = tracking.NewService(st, registry, cache, tracking.Config{
		TTL:            cfg.TrackingTTL,
		CarrierTimeout: cfg.CarrierTimeout,
	}, logger, metrics)

	deps.Queue = shipment.NewQueue(st)
	deps.Verifier = server.NewStaticVerifier(cfg.AdminTokens, cfg.UserTokens)

	return deps, nil
}

func initStore(ctx context.Context, cfg *config.Config, deps *dependencies) (store.Store, error) {
	if cfg.StoreBackend == "postgres" {
		pg, err := store.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, pg.Close)
		return pg, nil
	}
	return store.NewMemoryStore(), nil
}

func initCache(ctx context.Context, cfg *config.Config, deps *dependencies) (tracking.Cache, error) {
	if cfg.CacheBackend == "redis" {
		rc, err := tracking.NewRedisCache(ctx, tracking.RedisCacheConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, rc.Close)
		return rc, nil
	}
	return tracking.NewMemoryCache(), nil
}

func initPublisher(cfg *config.Config, deps *dependencies) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	deps.closers = append(deps.closers, kp.Close)
	return kp
}
