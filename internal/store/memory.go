package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	orders    map[string]Order
	shipments map[string]Shipment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    make(map[string]Order),
		shipments: make(map[string]Shipment),
	}
}

func (s *MemoryStore) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &order, nil
}

func (s *MemoryStore) PutOrder(ctx context.Context, order *Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.OrderID] = *order
	return nil
}

func (s *MemoryStore) GetShipment(ctx context.Context, orderID string) (*Shipment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	shipment, ok := s.shipments[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &shipment, nil
}

func (s *MemoryStore) CreateShipment(ctx context.Context, shipment *Shipment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shipments[shipment.OrderID]; ok {
		return ErrAlreadyExists
	}
	s.shipments[shipment.OrderID] = *shipment
	return nil
}

func (s *MemoryStore) UpdateShipment(ctx context.Context, shipment *Shipment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shipments[shipment.OrderID]; !ok {
		return ErrNotFound
	}
	s.shipments[shipment.OrderID] = *shipment
	return nil
}

// ListPendingShipments selects shipments still awaiting a label, joined
// with their orders, oldest order first. Holding the read lock for the
// whole scan gives the snapshot semantics the queue needs.
func (s *MemoryStore) ListPendingShipments(ctx context.Context, offset, limit int) ([]PendingShipment, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []PendingShipment
	for orderID, shipment := range s.shipments {
		if shipment.Status != LabelNotCreated && shipment.Status != LabelFailed {
			continue
		}
		order, ok := s.orders[orderID]
		if !ok {
			continue
		}
		pending = append(pending, PendingShipment{Order: order, Shipment: shipment})
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Order.CreatedAt.Before(pending[j].Order.CreatedAt)
	})

	total := len(pending)
	if offset >= total {
		return []PendingShipment{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return pending[offset:end], total, nil
}

var _ Store = (*MemoryStore)(nil)
