package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, s Store, orderID string, createdAt time.Time) {
	t.Helper()
	err := s.PutOrder(context.Background(), &Order{
		OrderID:          orderID,
		PaymentConfirmed: true,
		ShippingAddress:  ShippingAddress{Line1: "12 MG Road", City: "Bengaluru", Country: "IN"},
		CreatedAt:        createdAt,
	})
	require.NoError(t, err)
}

func TestMemoryStoreOrderRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetOrder(ctx, "ord-1")
	assert.ErrorIs(t, err, ErrNotFound)

	seedOrder(t, s, "ord-1", time.Now())

	order, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.OrderID)
	assert.True(t, order.PaymentConfirmed)

	// Returned value is a copy; mutating it does not touch the store.
	order.PaymentConfirmed = false
	again, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, again.PaymentConfirmed)
}

func TestMemoryStoreShipmentLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sh := NewShipment("ord-1")
	require.NoError(t, s.CreateShipment(ctx, sh))
	assert.ErrorIs(t, s.CreateShipment(ctx, NewShipment("ord-1")), ErrAlreadyExists)

	got, err := s.GetShipment(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, LabelNotCreated, got.Status)

	got.Status = LabelGenerated
	got.AWBNo = "SX100"
	require.NoError(t, s.UpdateShipment(ctx, got))

	updated, err := s.GetShipment(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, LabelGenerated, updated.Status)
	assert.Equal(t, "SX100", updated.AWBNo)

	assert.ErrorIs(t, s.UpdateShipment(ctx, NewShipment("ghost")), ErrNotFound)
}

func TestMemoryStoreListPendingShipments(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		orderID := fmt.Sprintf("ord-%d", i)
		seedOrder(t, s, orderID, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.CreateShipment(ctx, NewShipment(orderID)))
	}

	// ord-2 got its label; it must drop out of the pending view.
	sh, err := s.GetShipment(ctx, "ord-2")
	require.NoError(t, err)
	sh.Status = LabelGenerated
	require.NoError(t, s.UpdateShipment(ctx, sh))

	// ord-3 failed; still pending.
	sh, err = s.GetShipment(ctx, "ord-3")
	require.NoError(t, err)
	sh.Status = LabelFailed
	require.NoError(t, s.UpdateShipment(ctx, sh))

	items, total, err := s.ListPendingShipments(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, items, 4)

	// Oldest order first.
	assert.Equal(t, "ord-0", items[0].Order.OrderID)
	assert.Equal(t, "ord-1", items[1].Order.OrderID)
	assert.Equal(t, "ord-3", items[2].Order.OrderID)
	assert.Equal(t, "ord-4", items[3].Order.OrderID)
}

func TestMemoryStoreListPendingShipmentsPaging(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		orderID := fmt.Sprintf("ord-%d", i)
		seedOrder(t, s, orderID, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.CreateShipment(ctx, NewShipment(orderID)))
	}

	items, total, err := s.ListPendingShipments(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, items, 3)

	items, total, err = s.ListPendingShipments(ctx, 6, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, items, 1)
	assert.Equal(t, "ord-6", items[0].Order.OrderID)

	// Past the end: empty page, total still reported.
	items, total, err = s.ListPendingShipments(ctx, 9, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Empty(t, items)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetOrder(ctx, "ord-1")
	assert.ErrorIs(t, err, context.Canceled)
	_, _, err = s.ListPendingShipments(ctx, 0, 10)
	assert.ErrorIs(t, err, context.Canceled)
}
