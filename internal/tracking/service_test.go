package tracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftcart/fulfillment/internal/store"
	"github.com/swiftcart/fulfillment/internal/telemetry"
	"github.com/swiftcart/fulfillment/pkg/courier"
	"github.com/swiftcart/fulfillment/pkg/courier/mock"
)

type serviceFixture struct {
	service *Service
	store   *store.MemoryStore
	cache   *MemoryCache
	courier *mock.Client
}

func newServiceFixture(t *testing.T) *serviceFixture {
	return newServiceFixtureWithConfig(t, Config{
		TTL:            15 * time.Minute,
		CarrierTimeout: time.Second,
	})
}

func newServiceFixtureWithConfig(t *testing.T, cfg Config) *serviceFixture {
	t.Helper()

	st := store.NewMemoryStore()
	courierMock := mock.New("shipx")
	registry := courier.NewRegistry()
	registry.Register(courierMock)
	cache := NewMemoryCache()

	service := NewService(st, registry, cache, cfg,
		telemetry.NewNopLogger(), telemetry.NewMetrics(prometheus.NewRegistry()))

	return &serviceFixture{service: service, store: st, cache: cache, courier: courierMock}
}

func (f *serviceFixture) seedGeneratedShipment(t *testing.T, orderID, awbNo string) {
	t.Helper()
	now := time.Now()
	sh := store.NewShipment(orderID)
	sh.Status = store.LabelGenerated
	sh.AWBNo = awbNo
	sh.Courier = "shipx"
	sh.GeneratedAt = &now
	require.NoError(t, f.store.CreateShipment(context.Background(), sh))
}

func (f *serviceFixture) seedSnapshot(t *testing.T, awbNo string, age time.Duration) *Snapshot {
	t.Helper()
	snapshot := &Snapshot{
		AWBNo:        awbNo,
		Status:       courier.ShippingInTransit,
		Description:  "In transit",
		City:         "Nagpur",
		LastSyncedAt: time.Now().Add(-age),
	}
	require.NoError(t, f.cache.Put(context.Background(), snapshot))
	return snapshot
}

func TestGetTrackingUnknownOrder(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.GetTracking(context.Background(), "ghost", false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetTrackingBeforeLabelGenerated(t *testing.T) {
	f := newServiceFixture(t)
	require.NoError(t, f.store.CreateShipment(context.Background(), store.NewShipment("ord-1")))

	result, err := f.service.GetTracking(context.Background(), "ord-1", false)
	require.NoError(t, err)
	assert.Equal(t, SourceUnavailable, result.Source)
	assert.Nil(t, result.Snapshot)
	assert.Equal(t, 0, f.courier.FetchTrackingCalls())
}

func TestGetTrackingFreshCacheSkipsCourier(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGeneratedShipment(t, "ord-1", "SX1")
	f.seedSnapshot(t, "SX1", time.Minute)

	result, err := f.service.GetTracking(context.Background(), "ord-1", false)
	require.NoError(t, err)
	assert.Equal(t, SourceCached, result.Source)
	require.NotNil(t, result.Snapshot)
	assert.Equal(t, "Nagpur", result.Snapshot.City)
	assert.Equal(t, 0, f.courier.FetchTrackingCalls(), "fresh cache must not hit the courier")
}

func TestGetTrackingExpiredCacheFetchesLive(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGeneratedShipment(t, "ord-1", "SX1")
	f.seedSnapshot(t, "SX1", 20*time.Minute)

	f.courier.OnFetchTracking = func(ctx context.Context, awbNo string) (*courier.TrackingUpdate, error) {
		return &courier.TrackingUpdate{
			AWBNo:       awbNo,
			Status:      courier.ShippingOutForDelivery,
			Description: "Out for delivery",
			City:        "Pune",
			CheckedAt:   time.Now(),
		}, nil
	}

	result, err := f.service.GetTracking(context.Background(), "ord-1", false)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, result.Source)
	assert.Equal(t, courier.ShippingOutForDelivery, result.Snapshot.Status)
	assert.Equal(t, 1, f.courier.FetchTrackingCalls())

	// The live answer replaces the stale snapshot.
	cached, err := f.cache.Get(context.Background(), "SX1")
	require.NoError(t, err)
	assert.Equal(t, "Pune", cached.City)
	assert.Less(t, cached.Age(time.Now()), time.Minute)
}

func TestGetTrackingSyncsShippingStatus(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGeneratedShipment(t, "ord-1", "SX1")

	f.courier.OnFetchTracking = func(ctx context.Context, awbNo string) (*courier.TrackingUpdate, error) {
		return &courier.TrackingUpdate{AWBNo: awbNo, Status: courier.ShippingDelivered}, nil
	}

	_, err := f.service.GetTracking(context.Background(), "ord-1", false)
	require.NoError(t, err)

	sh, err := f.store.GetShipment(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, courier.ShippingDelivered, sh.ShippingStatus)
	assert.Equal(t, store.LabelGenerated, sh.Status, "label status never changes from tracking")
}

func TestGetTrackingForceRefreshBypassesFreshCache(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGeneratedShipment(t, "ord-1", "SX1")
	f.seedSnapshot(t, "SX1", time.Minute)

	result, err := f.service.GetTracking(context.Background(), "ord-1", true)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, result.Source)
	assert.Equal(t, 1, f.courier.FetchTrackingCalls())
}

func TestGetTrackingFallsBackToStaleCache(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGeneratedShipment(t, "ord-1", "SX1")
	stale := f.seedSnapshot(t, "SX1", time.Hour)

	f.courier.OnFetchTracking = func(ctx context.Context, awbNo string) (*courier.TrackingUpdate, error) {
		return nil, courier.NewError("shipx", courier.KindTransient, "SERVER_ERROR", "down")
	}

	result, err := f.service.GetTracking(context.Background(), "ord-1", false)
	require.NoError(t, err, "courier failures degrade, they do not propagate")
	assert.Equal(t, SourceCached, result.Source)
	require.NotNil(t, result.Snapshot)
	assert.Equal(t, stale.City, result.Snapshot.City)
}

func TestGetTrackingUnavailableWhenCourierDownAndNoCache(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGeneratedShipment(t, "ord-1", "SX1")

	f.courier.OnFetchTracking = func(ctx context.Context, awbNo string) (*courier.TrackingUpdate, error) {
		return nil, courier.NewError("shipx", courier.KindTransient, "SERVER_ERROR", "down")
	}

	result, err := f.service.GetTracking(context.Background(), "ord-1", false)
	require.NoError(t, err)
	assert.Equal(t, SourceUnavailable, result.Source)
	assert.Nil(t, result.Snapshot)
	assert.Equal(t, "SX1", result.AWBNo)
}

func TestGetTrackingAuthFailureDegrades(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGeneratedShipment(t, "ord-1", "SX1")

	f.courier.OnFetchTracking = func(ctx context.Context, awbNo string) (*courier.TrackingUpdate, error) {
		return nil, courier.NewError("shipx", courier.KindAuth, "UNAUTHORIZED", "bad api key")
	}

	result, err := f.service.GetTracking(context.Background(), "ord-1", false)
	require.NoError(t, err)
	assert.Equal(t, SourceUnavailable, result.Source)
}

func TestGetTrackingPersistsSlowLiveAnswer(t *testing.T) {
	f := newServiceFixtureWithConfig(t, Config{
		TTL:            15 * time.Minute,
		CarrierTimeout: 30 * time.Millisecond,
	})
	f.seedGeneratedShipment(t, "ord-1", "SX1")

	f.courier.OnFetchTracking = func(ctx context.Context, awbNo string) (*courier.TrackingUpdate, error) {
		// The courier answers only once the fetch deadline has elapsed.
		<-ctx.Done()
		return &courier.TrackingUpdate{AWBNo: awbNo, Status: courier.ShippingDelivered, City: "Pune"}, nil
	}

	result, err := f.service.GetTracking(context.Background(), "ord-1", false)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, result.Source)

	// The answer still lands in the cache and on the shipment.
	cached, err := f.cache.Get(context.Background(), "SX1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "Pune", cached.City)

	sh, err := f.store.GetShipment(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, courier.ShippingDelivered, sh.ShippingStatus)
}

func TestGetTrackingConcurrentCallersShareOneFetch(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGeneratedShipment(t, "ord-1", "SX1")

	f.courier.OnFetchTracking = func(ctx context.Context, awbNo string) (*courier.TrackingUpdate, error) {
		time.Sleep(100 * time.Millisecond)
		return &courier.TrackingUpdate{AWBNo: awbNo, Status: courier.ShippingInTransit, City: "Nagpur"}, nil
	}

	const callers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			result, err := f.service.GetTracking(context.Background(), "ord-1", false)
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, f.courier.FetchTrackingCalls(), "concurrent misses share one courier call")
	for _, result := range results {
		require.NotNil(t, result)
		assert.Equal(t, SourceLive, result.Source)
		assert.Equal(t, "Nagpur", result.Snapshot.City)
	}
}

func TestGetTrackingCallerCancellationDoesNotPoisonFlight(t *testing.T) {
	f := newServiceFixture(t)
	f.seedGeneratedShipment(t, "ord-1", "SX1")

	fetched := make(chan struct{})
	f.courier.OnFetchTracking = func(ctx context.Context, awbNo string) (*courier.TrackingUpdate, error) {
		close(fetched)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return &courier.TrackingUpdate{AWBNo: awbNo, Status: courier.ShippingInTransit}, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-fetched
		cancel()
	}()

	// The fetch runs on a detached context, so the initiating caller's
	// cancellation does not abort it.
	result, err := f.service.GetTracking(ctx, "ord-1", false)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, result.Source)
}
