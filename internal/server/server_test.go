package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftcart/fulfillment/internal/events"
	"github.com/swiftcart/fulfillment/internal/shipment"
	"github.com/swiftcart/fulfillment/internal/store"
	"github.com/swiftcart/fulfillment/internal/telemetry"
	"github.com/swiftcart/fulfillment/internal/tracking"
	"github.com/swiftcart/fulfillment/pkg/courier"
	"github.com/swiftcart/fulfillment/pkg/courier/mock"
)

const (
	adminToken = "admin-secret"
	userToken  = "user-secret"
)

type serverFixture struct {
	handler http.Handler
	store   *store.MemoryStore
	courier *mock.Client
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	st := store.NewMemoryStore()
	courierMock := mock.New("shipx")
	registry := courier.NewRegistry()
	registry.Register(courierMock)
	logger := telemetry.NewNopLogger()
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	orchestrator := shipment.NewOrchestrator(st, registry, events.NopPublisher{}, shipment.Config{
		DefaultCourier: "shipx",
		MaxAttempts:    3,
		LockTimeout:    50 * time.Millisecond,
		CarrierTimeout: time.Second,
	}, logger, metrics)

	trackingSvc := tracking.NewService(st, registry, tracking.NewMemoryCache(), tracking.Config{
		TTL:            15 * time.Minute,
		CarrierTimeout: time.Second,
	}, logger, metrics)

	verifier := NewStaticVerifier(
		map[string]string{adminToken: "ops-1"},
		map[string]string{userToken: "cust-1"},
	)

	srv := New(Config{Port: 0}, orchestrator, trackingSvc, shipment.NewQueue(st), verifier, logger)

	return &serverFixture{handler: srv.Handler(), store: st, courier: courierMock}
}

func (f *serverFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader([]byte("{}"))
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) confirmOrder(t *testing.T, orderID string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/internal/order/"+orderID+"/confirmed", adminToken, map[string]any{
		"paymentConfirmed": true,
		"shippingAddress": map[string]string{
			"line1":      "12 MG Road",
			"city":       "Bengaluru",
			"state":      "KA",
			"postalCode": "560001",
			"country":    "IN",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func validLabelBody() map[string]any {
	return map[string]any{
		"consigneeName":  "Asha Patel",
		"consigneePhone": "+919900112233",
		"weight":         1.5,
	}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	f := newServerFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejections(t *testing.T) {
	f := newServerFixture(t)

	// No token at all.
	rec := f.do(t, http.MethodPost, "/admin/shipment/ord-1/generate-awb", "", validLabelBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown token.
	rec = f.do(t, http.MethodPost, "/admin/shipment/ord-1/generate-awb", "nope", validLabelBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid user token on an admin endpoint.
	rec = f.do(t, http.MethodPost, "/admin/shipment/ord-1/generate-awb", userToken, validLabelBody())
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/shipment/pending", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminTokenPassesUserEndpoints(t *testing.T) {
	f := newServerFixture(t)
	f.confirmOrder(t, "ord-1")

	rec := f.do(t, http.MethodGet, "/shipment/ord-1", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateAWBEndToEnd(t *testing.T) {
	f := newServerFixture(t)
	f.confirmOrder(t, "ord-1")

	rec := f.do(t, http.MethodPost, "/admin/shipment/ord-1/generate-awb", adminToken, validLabelBody())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success    bool   `json:"success"`
		AWBNo      string `json:"awbNo"`
		TrackingID string `json:"trackingId"`
	}
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.AWBNo)
	assert.NotEmpty(t, resp.TrackingID)

	// Shipment is visible on the read side with its address.
	rec = f.do(t, http.MethodGet, "/shipment/ord-1", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var shipmentResp struct {
		Success  bool `json:"success"`
		Shipment struct {
			Status string `json:"status"`
			AWBNo  string `json:"awbNo"`
		} `json:"shipment"`
		ShippingAddress struct {
			City string `json:"city"`
		} `json:"shippingAddress"`
	}
	decodeBody(t, rec, &shipmentResp)
	assert.True(t, shipmentResp.Success)
	assert.Equal(t, "generated", shipmentResp.Shipment.Status)
	assert.Equal(t, resp.AWBNo, shipmentResp.Shipment.AWBNo)
	assert.Equal(t, "Bengaluru", shipmentResp.ShippingAddress.City)
}

func TestGenerateAWBValidationError(t *testing.T) {
	f := newServerFixture(t)
	f.confirmOrder(t, "ord-1")

	rec := f.do(t, http.MethodPost, "/admin/shipment/ord-1/generate-awb", adminToken, map[string]any{
		"consigneePhone": "+919900112233",
		"weight":         1.5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateAWBUnknownOrder(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/shipment/ghost/generate-awb", adminToken, validLabelBody())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateAWBCourierFailureIsDefiniteOutcome(t *testing.T) {
	f := newServerFixture(t)
	f.confirmOrder(t, "ord-1")

	f.courier.OnCreateLabel = func(ctx context.Context, req *courier.CreateLabelRequest) (*courier.CreateLabelResponse, error) {
		return nil, courier.NewError("shipx", courier.KindTransient, "SERVER_ERROR", "down")
	}

	rec := f.do(t, http.MethodPost, "/admin/shipment/ord-1/generate-awb", adminToken, validLabelBody())
	require.Equal(t, http.StatusOK, rec.Code, "a failed purchase is a result, not a server error")

	var resp struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		Retryable *bool  `json:"retryable"`
	}
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Retryable)
	assert.True(t, *resp.Retryable)
}

func TestGenerateAWBAuthOutageIsBadGateway(t *testing.T) {
	f := newServerFixture(t)
	f.confirmOrder(t, "ord-1")

	f.courier.OnCreateLabel = func(ctx context.Context, req *courier.CreateLabelRequest) (*courier.CreateLabelResponse, error) {
		return nil, courier.NewError("shipx", courier.KindAuth, "UNAUTHORIZED", "bad api key")
	}

	rec := f.do(t, http.MethodPost, "/admin/shipment/ord-1/generate-awb", adminToken, validLabelBody())
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRetryWithoutFailureConflicts(t *testing.T) {
	f := newServerFixture(t)
	f.confirmOrder(t, "ord-1")

	rec := f.do(t, http.MethodPost, "/admin/shipment/ord-1/retry", adminToken, validLabelBody())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPendingListPagination(t *testing.T) {
	f := newServerFixture(t)
	for i := 0; i < 3; i++ {
		f.confirmOrder(t, fmt.Sprintf("ord-%d", i))
	}

	rec := f.do(t, http.MethodGet, "/admin/shipment/pending?page=1&limit=2", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success    bool `json:"success"`
		Data       []struct {
			Order struct {
				OrderID string `json:"orderId"`
			} `json:"order"`
			Shipment struct {
				Status string `json:"status"`
			} `json:"shipment"`
		} `json:"data"`
		Pagination struct {
			Page  int `json:"page"`
			Pages int `json:"pages"`
			Total int `json:"total"`
		} `json:"pagination"`
	}
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 1, resp.Pagination.Page)
	assert.Equal(t, 2, resp.Pagination.Pages)
	assert.Equal(t, 3, resp.Pagination.Total)
	assert.Equal(t, "not_created", resp.Data[0].Shipment.Status)

	// Page past the end stays a 200 with an empty list.
	rec = f.do(t, http.MethodGet, "/admin/shipment/pending?page=9&limit=2", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Empty(t, resp.Data)
	assert.Equal(t, 3, resp.Pagination.Total)
}

func TestTrackEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.confirmOrder(t, "ord-1")

	rec := f.do(t, http.MethodPost, "/admin/shipment/ord-1/generate-awb", adminToken, validLabelBody())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/shipment/ord-1/track", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success  bool   `json:"success"`
		AWBNo    string `json:"awbNo"`
		Tracking *struct {
			Status   string `json:"status"`
			Location struct {
				City string `json:"city"`
			} `json:"location"`
		} `json:"tracking"`
		DataSource struct {
			IsLive      bool `json:"isLive"`
			IsCached    bool `json:"isCached"`
			Unavailable bool `json:"unavailable"`
		} `json:"dataSource"`
	}
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.AWBNo)
	require.NotNil(t, resp.Tracking)
	assert.Equal(t, "in_transit", resp.Tracking.Status)
	assert.True(t, resp.DataSource.IsLive)
	assert.Equal(t, 1, f.courier.FetchTrackingCalls())

	// Second query inside the TTL is answered from cache.
	rec = f.do(t, http.MethodGet, "/shipment/ord-1/track", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.True(t, resp.DataSource.IsCached)
	assert.Equal(t, 1, f.courier.FetchTrackingCalls())

	// forceRefresh goes back to the courier.
	rec = f.do(t, http.MethodGet, "/shipment/ord-1/track?forceRefresh=true", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.True(t, resp.DataSource.IsLive)
	assert.Equal(t, 2, f.courier.FetchTrackingCalls())
}

func TestTrackBeforeLabelIsUnavailable(t *testing.T) {
	f := newServerFixture(t)
	f.confirmOrder(t, "ord-1")

	rec := f.do(t, http.MethodGet, "/shipment/ord-1/track", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tracking   *json.RawMessage `json:"tracking"`
		DataSource struct {
			Unavailable bool `json:"unavailable"`
		} `json:"dataSource"`
	}
	decodeBody(t, rec, &resp)
	assert.True(t, resp.DataSource.Unavailable)
	assert.Nil(t, resp.Tracking)
}

func TestTrackUnknownOrder(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/shipment/ghost/track", userToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetShipmentUnknownOrder(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/shipment/ghost", userToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		Success bool `json:"success"`
	}
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Success)
}
