// Package shipx provides integration with the ShipX courier API.
package shipx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/swiftcart/fulfillment/pkg/courier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const courierName = "shipx"

// Config holds ShipX configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration // Per-call deadline for each HTTP attempt
	MaxRetries uint          // Max HTTP attempts per logical call
	UseMock    bool          // When true, uses mock API client
}

// Client is the ShipX courier client.
// It implements the courier.Courier interface and delegates API calls
// to the underlying APIClient (mock or HTTP). Transient API failures
// are retried with exponential backoff and jitter; the same unique_id
// is sent on every attempt of one call so ShipX can dedupe.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new ShipX client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
	}

	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// NewWithAPIClient creates a new ShipX client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the courier name.
func (c *Client) Name() string {
	return courierName
}

// CreateLabel purchases an air waybill with ShipX.
func (c *Client) CreateLabel(ctx context.Context, req *courier.CreateLabelRequest) (*courier.CreateLabelResponse, error) {
	c.logger.Info("Creating ShipX AWB",
		zap.String("order_id", req.OrderID),
		zap.String("consignee", req.Consignee.Name),
	)

	apiReq := &AWBRequest{
		UniqueID: req.IdempotencyKey,
		OrderID:  req.OrderID,
		Contact: Contact{
			Name:  req.Consignee.Name,
			Phone: req.Consignee.Phone,
			Email: req.Consignee.Email,
		},
		Delivery: Location{
			Address1:   req.Address.Line1,
			City:       req.Address.City,
			State:      req.Address.State,
			PostalCode: req.Address.PostalCode,
			Country:    req.Address.Country,
		},
		WeightKg: req.WeightKg,
	}

	apiResp, err := withRetry(ctx, c.config, func() (*AWBResponse, error) {
		return c.apiClient.CreateAWB(ctx, apiReq)
	})
	if err != nil {
		c.logger.Error("ShipX API error", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, err
	}

	return &courier.CreateLabelResponse{
		AWBNo:      apiResp.AWBNo,
		TrackingID: apiResp.TrackingID,
		Courier:    courierName,
		LabelURL:   apiResp.LabelURL,
	}, nil
}

// FetchTracking retrieves the latest tracking state from ShipX.
func (c *Client) FetchTracking(ctx context.Context, awbNo string) (*courier.TrackingUpdate, error) {
	c.logger.Debug("Fetching ShipX tracking", zap.String("awb_no", awbNo))

	apiResp, err := withRetry(ctx, c.config, func() (*TrackingResponse, error) {
		return c.apiClient.GetTracking(ctx, awbNo)
	})
	if err != nil {
		c.logger.Warn("ShipX tracking error", zap.String("awb_no", awbNo), zap.Error(err))
		return nil, err
	}

	checkedAt, parseErr := time.Parse(time.RFC3339, apiResp.CheckedAt)
	if parseErr != nil {
		checkedAt = time.Now()
	}

	return &courier.TrackingUpdate{
		AWBNo:         apiResp.AWBNo,
		Status:        mapStatus(apiResp.Status),
		CarrierStatus: apiResp.Status,
		Description:   apiResp.Description,
		City:          apiResp.Location.City,
		State:         apiResp.Location.State,
		CheckedAt:     checkedAt,
	}, nil
}

// withRetry runs one logical API call with bounded retry. Only
// transient failures are retried; permanent, auth and not-found
// classifications stop immediately.
func withRetry[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	maxTries := cfg.MaxRetries
	if maxTries == 0 {
		maxTries = 3
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 200 * time.Millisecond
	expo.MaxInterval = 2 * time.Second

	return backoff.Retry(ctx, func() (T, error) {
		resp, err := op()
		if err != nil {
			classified := classify(err)
			if courier.IsTransient(classified) {
				return resp, classified
			}
			return resp, backoff.Permanent(classified)
		}
		return resp, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(maxTries))
}

// classify maps raw API errors onto the courier error taxonomy.
func classify(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		kind := courier.KindTransient
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			kind = courier.KindAuth
		case apiErr.StatusCode == http.StatusNotFound:
			kind = courier.KindNotFound
		case apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusTooManyRequests:
			kind = courier.KindTransient
		case apiErr.StatusCode >= 500 || apiErr.StatusCode == 0:
			kind = courier.KindTransient
		case apiErr.StatusCode >= 400:
			kind = courier.KindPermanent
		}
		return courier.NewError(courierName, kind, apiErr.Code, apiErr.Message).
			WithStatusCode(apiErr.StatusCode).
			WithCause(err)
	}

	// Network faults and exceeded deadlines count as transient.
	return courier.NewError(courierName, courier.KindTransient, "NETWORK", "request failed").WithCause(err)
}

func mapStatus(status string) courier.ShippingStatus {
	switch status {
	case "manifested", "label_created", "pickup_scheduled":
		return courier.ShippingNotShipped
	case "picked_up", "in_transit", "reached_hub":
		return courier.ShippingInTransit
	case "out_for_delivery":
		return courier.ShippingOutForDelivery
	case "delivered":
		return courier.ShippingDelivered
	case "rto", "undelivered", "exception", "failed":
		return courier.ShippingFailed
	default:
		return courier.ShippingInTransit
	}
}

var _ courier.Courier = (*Client)(nil)
