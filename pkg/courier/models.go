package courier

import (
	"time"
)

// ShippingStatus represents the normalized physical status of a shipment.
type ShippingStatus string

const (
	ShippingNotShipped     ShippingStatus = "not_shipped"
	ShippingInTransit      ShippingStatus = "in_transit"
	ShippingOutForDelivery ShippingStatus = "out_for_delivery"
	ShippingDelivered      ShippingStatus = "delivered"
	ShippingFailed         ShippingStatus = "failed"
)

// Consignee is the shipment recipient and their contact details.
type Consignee struct {
	Name  string
	Phone string
	Email string
}

// Address is the delivery address for a shipment.
type Address struct {
	Line1      string
	City       string
	State      string
	PostalCode string
	Country    string // ISO 3166-1 alpha-2, e.g., "IN", "CA"
}

// CreateLabelRequest is the request for purchasing an air waybill.
type CreateLabelRequest struct {
	OrderID   string
	Consignee Consignee
	Address   Address
	WeightKg  float64

	// IdempotencyKey lets the courier dedupe a repeated purchase for the
	// same order attempt. Derived from orderId+attemptCount by the caller.
	IdempotencyKey string
}

// CreateLabelResponse is the response from purchasing an air waybill.
type CreateLabelResponse struct {
	AWBNo      string
	TrackingID string
	Courier    string
	LabelURL   string
}

// TrackingUpdate is the latest tracking state reported by a courier.
type TrackingUpdate struct {
	AWBNo         string
	Status        ShippingStatus
	CarrierStatus string // raw courier status code, for audit
	Description   string
	City          string
	State         string
	CheckedAt     time.Time
}
