package shipx

import (
	"context"
)

// APIClient defines the interface for ShipX API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// CreateAWB purchases an air waybill for a shipment
	CreateAWB(ctx context.Context, req *AWBRequest) (*AWBResponse, error)

	// GetTracking retrieves the latest tracking state for an AWB
	GetTracking(ctx context.Context, awbNo string) (*TrackingResponse, error)
}

// ============================================================================
// API Request/Response Types (match ShipX REST API v1 structure)
// ============================================================================

// AWBRequest represents a ShipX air-waybill purchase request.
// POST /v1/awb endpoint
type AWBRequest struct {
	UniqueID string   `json:"unique_id"` // Max 128 chars, lets ShipX dedupe repeats
	OrderID  string   `json:"order_id"`
	Contact  Contact  `json:"consignee"`
	Delivery Location `json:"delivery_address"`
	WeightKg float64  `json:"weight_kg"`
}

// Contact represents consignee contact info.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Location represents a delivery address.
type Location struct {
	Address1   string `json:"address_1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"` // ISO 3166-1 alpha-2 code
}

// AWBResponse represents the ShipX air-waybill purchase response.
type AWBResponse struct {
	AWBNo             string `json:"awb_no"`
	TrackingID        string `json:"tracking_id"`
	CourierCode       string `json:"courier_code"`
	Status            string `json:"status"`
	LabelURL          string `json:"label_url,omitempty"`
	PreviouslyCreated bool   `json:"previously_created"`
}

// TrackingResponse represents tracking information.
// GET /v1/track/{awb_no}
type TrackingResponse struct {
	AWBNo       string           `json:"awb_no"`
	Status      string           `json:"status"`
	Description string           `json:"description"`
	Location    TrackingLocation `json:"location"`
	CheckedAt   string           `json:"checked_at"` // RFC3339
}

// TrackingLocation is the last reported package location.
type TrackingLocation struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// APIError represents an error from the ShipX API.
type APIError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors,omitempty"` // Field-level errors
	StatusCode int               `json:"-"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
