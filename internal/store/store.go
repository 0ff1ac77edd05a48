// Package store defines the persistence layer for orders and shipments.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a conflicting record already exists.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrConflict indicates a shipment write would make an illegal
	// label-status transition, i.e. it raced with another writer.
	ErrConflict = errors.New("conflicting shipment state")
)

// Store defines the storage operations this service needs. Any durable
// keyed store works; memory and postgres implementations are provided.
type Store interface {
	// GetOrder returns the order with the given id, or ErrNotFound.
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// PutOrder records an order snapshot received from the order system.
	PutOrder(ctx context.Context, order *Order) error

	// GetShipment returns the shipment for an order, or ErrNotFound.
	GetShipment(ctx context.Context, orderID string) (*Shipment, error)

	// CreateShipment inserts the shipment record for an order.
	// Returns ErrAlreadyExists when one already exists.
	CreateShipment(ctx context.Context, shipment *Shipment) error

	// UpdateShipment overwrites the shipment record for its order.
	// The caller holds the per-order lock; the store does not arbitrate
	// concurrent writers beyond its own isolation.
	UpdateShipment(ctx context.Context, shipment *Shipment) error

	// ListPendingShipments returns orders whose shipment is not yet
	// successfully labeled (status not_created or failed), oldest order
	// first, as one snapshot read. The second result is the total count
	// of pending shipments at the time of the snapshot.
	ListPendingShipments(ctx context.Context, offset, limit int) ([]PendingShipment, int, error)
}
