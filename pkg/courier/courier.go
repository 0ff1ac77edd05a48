// Package courier provides an abstraction layer for shipping couriers.
package courier

import (
	"context"
)

// Courier defines the interface that all courier integrations must implement.
type Courier interface {
	// Name returns the courier identifier (e.g., "shipx").
	Name() string

	// CreateLabel purchases an air waybill for a shipment.
	CreateLabel(ctx context.Context, req *CreateLabelRequest) (*CreateLabelResponse, error)

	// FetchTracking retrieves the latest tracking state for an AWB.
	FetchTracking(ctx context.Context, awbNo string) (*TrackingUpdate, error)
}
