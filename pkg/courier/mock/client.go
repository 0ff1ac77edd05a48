// Package mock provides a mock courier implementation for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swiftcart/fulfillment/pkg/courier"
)

// Client is a scriptable mock courier for testing. The On* hooks
// override default canned behavior; call counts are tracked so tests
// can assert how many outbound calls were actually made.
type Client struct {
	name string

	OnCreateLabel   func(ctx context.Context, req *courier.CreateLabelRequest) (*courier.CreateLabelResponse, error)
	OnFetchTracking func(ctx context.Context, awbNo string) (*courier.TrackingUpdate, error)

	mu                 sync.Mutex
	createLabelCalls   int
	fetchTrackingCalls int
}

// New creates a new mock courier.
func New(name string) *Client {
	return &Client{name: name}
}

// Name returns the courier name.
func (c *Client) Name() string {
	return c.name
}

// CreateLabel purchases a mock air waybill.
func (c *Client) CreateLabel(ctx context.Context, req *courier.CreateLabelRequest) (*courier.CreateLabelResponse, error) {
	c.mu.Lock()
	c.createLabelCalls++
	c.mu.Unlock()

	if c.OnCreateLabel != nil {
		return c.OnCreateLabel(ctx, req)
	}

	now := time.Now()
	awb := fmt.Sprintf("AWB%d", now.UnixNano()%1000000000)
	return &courier.CreateLabelResponse{
		AWBNo:      awb,
		TrackingID: fmt.Sprintf("%s-trk-%d", c.name, now.UnixNano()%1000000),
		Courier:    c.name,
		LabelURL:   fmt.Sprintf("https://labels.%s.example/%s.pdf", c.name, awb),
	}, nil
}

// FetchTracking returns mock tracking state.
func (c *Client) FetchTracking(ctx context.Context, awbNo string) (*courier.TrackingUpdate, error) {
	c.mu.Lock()
	c.fetchTrackingCalls++
	c.mu.Unlock()

	if c.OnFetchTracking != nil {
		return c.OnFetchTracking(ctx, awbNo)
	}

	return &courier.TrackingUpdate{
		AWBNo:         awbNo,
		Status:        courier.ShippingInTransit,
		CarrierStatus: "IT",
		Description:   "In transit to destination",
		City:          "Mumbai",
		State:         "MH",
		CheckedAt:     time.Now(),
	}, nil
}

// CreateLabelCalls returns how many times CreateLabel was invoked.
func (c *Client) CreateLabelCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createLabelCalls
}

// FetchTrackingCalls returns how many times FetchTracking was invoked.
func (c *Client) FetchTrackingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchTrackingCalls
}

var _ courier.Courier = (*Client)(nil)
