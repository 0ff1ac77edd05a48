package shipment

import (
	"context"

	"github.com/swiftcart/fulfillment/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PendingPage is one page of orders awaiting shipment, oldest first.
type PendingPage struct {
	Items      []store.PendingShipment
	Page       int
	PageSize   int
	TotalCount int
	TotalPages int
}

// Queue is the admin triage view over orders not yet labeled.
type Queue struct {
	store store.Store
}

// NewQueue creates a pending-shipment queue over the given store.
func NewQueue(st store.Store) *Queue {
	return &Queue{store: st}
}

// ListPending returns one page of pending shipments. Pages are
// 1-indexed; a page past the end returns an empty item list, not an
// error. The page and total come from a single snapshot read so
// boundaries are stable under concurrent writes.
func (q *Queue) ListPending(ctx context.Context, page, pageSize int) (*PendingPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset := (page - 1) * pageSize
	items, total, err := q.store.ListPendingShipments(ctx, offset, pageSize)
	if err != nil {
		return nil, err
	}

	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}

	return &PendingPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}
