package tracking

import (
	"context"
	"time"

	"github.com/swiftcart/fulfillment/internal/store"
	"github.com/swiftcart/fulfillment/internal/telemetry"
	"github.com/swiftcart/fulfillment/pkg/courier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DataSource tags where a tracking answer came from. Exactly one
// variant applies per response, so illegal combinations (live and
// unavailable at once) cannot be expressed.
type DataSource string

const (
	// SourceLive means the snapshot was fetched from the courier for
	// this request.
	SourceLive DataSource = "live"

	// SourceCached means a previously live-fetched snapshot was reused.
	SourceCached DataSource = "cached"

	// SourceUnavailable means there is nothing to serve: no label yet,
	// or the courier is down and no snapshot exists.
	SourceUnavailable DataSource = "unavailable"
)

// Result is the answer to a tracking query.
type Result struct {
	AWBNo    string
	Snapshot *Snapshot
	Source   DataSource
}

// Config holds tracking service settings.
type Config struct {
	// TTL is the maximum age at which a cached snapshot is still served
	// without re-querying the courier.
	TTL time.Duration

	// CarrierTimeout bounds each live fetch.
	CarrierTimeout time.Duration
}

// Service arbitrates between live courier calls and cached snapshots.
type Service struct {
	store    store.Store
	couriers *courier.Registry
	cache    Cache
	cfg      Config
	logger   *otelzap.Logger
	metrics  *telemetry.Metrics

	// group deduplicates concurrent live fetches per AWB.
	group singleflight.Group
}

// NewService creates a tracking service.
func NewService(st store.Store, couriers *courier.Registry, cache Cache, cfg Config, logger *otelzap.Logger, metrics *telemetry.Metrics) *Service {
	if cfg.TTL == 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.CarrierTimeout == 0 {
		cfg.CarrierTimeout = 10 * time.Second
	}
	return &Service{
		store:    st,
		couriers: couriers,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// GetTracking answers "where is this package?" for an order.
//
// Policy, evaluated in order: no generated label means unavailable; a
// cache entry younger than the TTL is served as cached without any
// network call (unless forceRefresh); otherwise one time-bounded live
// fetch is attempted, deduplicated per AWB, falling back to any cached
// snapshot regardless of age. Courier failures never surface as errors
// here; the only error returned is an unknown order/shipment.
func (s *Service) GetTracking(ctx context.Context, orderID string, forceRefresh bool) (*Result, error) {
	shipment, err := s.store.GetShipment(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if shipment.Status != store.LabelGenerated {
		s.metrics.RecordTracking(string(SourceUnavailable))
		return &Result{Source: SourceUnavailable}, nil
	}
	awbNo := shipment.AWBNo

	now := time.Now()
	if !forceRefresh {
		cached, cacheErr := s.cache.Get(ctx, awbNo)
		if cacheErr != nil {
			s.logger.Warn("Tracking cache read failed", zap.String("awb_no", awbNo), zap.Error(cacheErr))
		}
		if cached != nil && cached.Age(now) < s.cfg.TTL {
			s.metrics.RecordTracking(string(SourceCached))
			return &Result{AWBNo: awbNo, Snapshot: cached, Source: SourceCached}, nil
		}
	}

	snapshot, fetchErr := s.refresh(ctx, shipment)
	if fetchErr == nil {
		s.metrics.RecordTracking(string(SourceLive))
		return &Result{AWBNo: awbNo, Snapshot: snapshot, Source: SourceLive}, nil
	}

	if courier.IsAuth(fetchErr) {
		// Credential failures are operational, not per-request noise.
		s.logger.Error("Courier credentials rejected during tracking fetch",
			zap.String("courier", shipment.Courier),
			zap.String("awb_no", awbNo),
			zap.Error(fetchErr),
		)
	} else {
		s.logger.Warn("Live tracking fetch failed, degrading",
			zap.String("awb_no", awbNo),
			zap.Error(fetchErr),
		)
	}
	s.metrics.RecordCourierError(shipment.Courier, string(courier.KindOf(fetchErr)))

	// Degraded path: stale data beats no data.
	cached, cacheErr := s.cache.Get(ctx, awbNo)
	if cacheErr != nil {
		s.logger.Warn("Tracking cache read failed", zap.String("awb_no", awbNo), zap.Error(cacheErr))
	}
	if cached != nil {
		s.metrics.RecordTracking(string(SourceCached))
		return &Result{AWBNo: awbNo, Snapshot: cached, Source: SourceCached}, nil
	}

	s.metrics.RecordTracking(string(SourceUnavailable))
	return &Result{AWBNo: awbNo, Source: SourceUnavailable}, nil
}

// refresh performs the single-flight live fetch for an AWB and updates
// the cache and the shipment's derived shipping status.
func (s *Service) refresh(ctx context.Context, shipment *store.Shipment) (*Snapshot, error) {
	v, err, _ := s.group.Do(shipment.AWBNo, func() (interface{}, error) {
		// Detached from the initiating request so one caller's
		// cancellation cannot fail the shared fetch.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CarrierTimeout)
		defer cancel()

		client, err := s.couriers.Get(shipment.Courier)
		if err != nil {
			return nil, err
		}

		update, err := client.FetchTracking(fetchCtx, shipment.AWBNo)
		if err != nil {
			return nil, err
		}

		// The fetch may have used its whole deadline; the local writes
		// get their own budget so a live answer is never dropped.
		writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancelWrite()

		snapshot := &Snapshot{
			AWBNo:         update.AWBNo,
			Status:        update.Status,
			CarrierStatus: update.CarrierStatus,
			Description:   update.Description,
			City:          update.City,
			State:         update.State,
			LastSyncedAt:  time.Now(),
		}
		if err := s.cache.Put(writeCtx, snapshot); err != nil {
			s.logger.Warn("Tracking cache write failed", zap.String("awb_no", snapshot.AWBNo), zap.Error(err))
		}

		s.syncShippingStatus(writeCtx, shipment, update.Status)
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// syncShippingStatus persists the derived shipping status when the
// courier reports a change. Best effort: the tracking answer stands
// even if the write fails.
func (s *Service) syncShippingStatus(ctx context.Context, shipment *store.Shipment, status courier.ShippingStatus) {
	if shipment.ShippingStatus == status {
		return
	}
	updated := *shipment
	updated.ShippingStatus = status
	updated.UpdatedAt = time.Now()
	if err := s.store.UpdateShipment(ctx, &updated); err != nil {
		s.logger.Warn("Failed to persist shipping status",
			zap.String("order_id", shipment.OrderID),
			zap.String("shipping_status", string(status)),
			zap.Error(err),
		)
	}
}
