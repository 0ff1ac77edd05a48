package store

import (
	"time"

	"github.com/swiftcart/fulfillment/pkg/courier"
)

// LabelStatus represents the label-issuance state of a shipment.
type LabelStatus string

const (
	LabelNotCreated LabelStatus = "not_created"
	LabelPending    LabelStatus = "pending"
	LabelGenerated  LabelStatus = "generated"
	LabelFailed     LabelStatus = "failed"
)

// transitionAllowed reports whether a shipment row may move between
// label statuses. Same-status rewrites are always allowed (consignee
// edits on a resumed attempt, shipping-status sync on a generated
// shipment); generated has no other outgoing edges.
func transitionAllowed(from, to LabelStatus) bool {
	if from == to {
		return true
	}
	switch to {
	case LabelPending:
		return from == LabelNotCreated || from == LabelFailed
	case LabelGenerated, LabelFailed, LabelNotCreated:
		return from == LabelPending
	}
	return false
}

// ShippingAddress is the delivery address snapshot kept with an order.
type ShippingAddress struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Order is the collaborator-owned order record. This service only
// reads it; order CRUD and payment capture live elsewhere.
type Order struct {
	OrderID          string          `json:"orderId"`
	PaymentConfirmed bool            `json:"paymentConfirmed"`
	ShippingAddress  ShippingAddress `json:"shippingAddress"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Shipment is the label-issuance record, exactly one per order.
// Mutated only by the orchestrator; never deleted, retained for audit.
type Shipment struct {
	OrderID        string                 `json:"orderId"`
	AWBNo          string                 `json:"awbNo,omitempty"` // assigned at most once
	TrackingID     string                 `json:"trackingId,omitempty"`
	Courier        string                 `json:"courier,omitempty"`
	Status         LabelStatus            `json:"status"`
	ShippingStatus courier.ShippingStatus `json:"shippingStatus"`

	ConsigneeName  string  `json:"consigneeName,omitempty"`
	ConsigneePhone string  `json:"consigneePhone,omitempty"`
	ConsigneeEmail string  `json:"consigneeEmail,omitempty"`
	WeightKg       float64 `json:"weight,omitempty"`

	AttemptCount int        `json:"attemptCount"`
	LastError    string     `json:"lastError,omitempty"`
	GeneratedAt  *time.Time `json:"generatedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewShipment creates the initial record for a confirmed order.
func NewShipment(orderID string) *Shipment {
	now := time.Now()
	return &Shipment{
		OrderID:        orderID,
		Status:         LabelNotCreated,
		ShippingStatus: courier.ShippingNotShipped,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// PendingShipment pairs an order awaiting a label with its shipment
// record, for admin triage.
type PendingShipment struct {
	Order    Order    `json:"order"`
	Shipment Shipment `json:"shipment"`
}
