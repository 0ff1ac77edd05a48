// Package shipment owns the AWB generation state machine and the
// pending-shipment queue.
package shipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swiftcart/fulfillment/internal/events"
	"github.com/swiftcart/fulfillment/internal/store"
	"github.com/swiftcart/fulfillment/internal/telemetry"
	"github.com/swiftcart/fulfillment/pkg/courier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyInProgress means another label generation attempt for
	// the same order holds the order lock right now.
	ErrAlreadyInProgress = errors.New("label generation already in progress")

	// ErrRetryNotAllowed means the shipment is not in a retryable state
	// or the attempt cap was reached.
	ErrRetryNotAllowed = errors.New("retry not allowed")
)

// ValidationError rejects bad label form input. No state changes.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid label request: " + e.Reason
}

// LabelForm is the admin-supplied input for label generation.
type LabelForm struct {
	ConsigneeName  string
	ConsigneePhone string
	ConsigneeEmail string
	WeightKg       float64
}

func (f *LabelForm) validate() error {
	if f.ConsigneeName == "" {
		return &ValidationError{Reason: "consignee name is required"}
	}
	if f.ConsigneePhone == "" {
		return &ValidationError{Reason: "consignee phone is required"}
	}
	if f.WeightKg <= 0 {
		return &ValidationError{Reason: "weight must be greater than zero"}
	}
	return nil
}

// Config holds orchestrator settings.
type Config struct {
	// DefaultCourier is the courier code assigned to new shipments.
	DefaultCourier string

	// MaxAttempts caps label generation attempts per order.
	MaxAttempts int

	// LockTimeout bounds how long a request waits for the order lock.
	LockTimeout time.Duration

	// CarrierTimeout bounds the outbound CreateLabel call.
	CarrierTimeout time.Duration
}

// Orchestrator drives the per-shipment label state machine. It is the
// only writer of label state; per-order locks guarantee at most one
// in-flight generation attempt and at most one label purchase.
type Orchestrator struct {
	store     store.Store
	couriers  *courier.Registry
	publisher events.Publisher
	locks     *lockTable
	cfg       Config
	logger    *otelzap.Logger
	metrics   *telemetry.Metrics
}

// NewOrchestrator creates a shipment orchestrator.
func NewOrchestrator(st store.Store, couriers *courier.Registry, publisher events.Publisher, cfg Config, logger *otelzap.Logger, metrics *telemetry.Metrics) *Orchestrator {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = 2 * time.Second
	}
	if cfg.CarrierTimeout == 0 {
		cfg.CarrierTimeout = 10 * time.Second
	}
	return &Orchestrator{
		store:     st,
		couriers:  couriers,
		publisher: publisher,
		locks:     newLockTable(),
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// CreateForOrder records a confirmed order and materializes its
// not_created shipment. Idempotent.
func (o *Orchestrator) CreateForOrder(ctx context.Context, order *store.Order) error {
	if err := o.store.PutOrder(ctx, order); err != nil {
		return err
	}
	err := o.store.CreateShipment(ctx, store.NewShipment(order.OrderID))
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	return err
}

// GetShipment returns the shipment record for an order.
func (o *Orchestrator) GetShipment(ctx context.Context, orderID string) (*store.Shipment, error) {
	return o.store.GetShipment(ctx, orderID)
}

// GetOrder returns the recorded order snapshot.
func (o *Orchestrator) GetOrder(ctx context.Context, orderID string) (*store.Order, error) {
	return o.store.GetOrder(ctx, orderID)
}

// CanRetry reports whether a failed shipment may be retried.
func (o *Orchestrator) CanRetry(shipment *store.Shipment) bool {
	return shipment.Status == store.LabelFailed && shipment.AttemptCount < o.cfg.MaxAttempts
}

// GenerateAWB purchases a label for an order that has none yet, or
// whose last attempt failed. When the shipment is already generated it
// returns the existing record unchanged.
func (o *Orchestrator) GenerateAWB(ctx context.Context, orderID string, form LabelForm) (*store.Shipment, error) {
	return o.run(ctx, "generate_awb", orderID, form, false)
}

// Retry re-attempts label generation for a failed shipment, subject to
// the attempt cap.
func (o *Orchestrator) Retry(ctx context.Context, orderID string, form LabelForm) (*store.Shipment, error) {
	return o.run(ctx, "retry", orderID, form, true)
}

func (o *Orchestrator) run(ctx context.Context, operation, orderID string, form LabelForm, isRetry bool) (*store.Shipment, error) {
	if err := form.validate(); err != nil {
		return nil, err
	}

	release, err := o.locks.acquire(ctx, orderID, o.cfg.LockTimeout)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			return nil, ErrAlreadyInProgress
		}
		return nil, err
	}
	defer release()

	start := time.Now()
	shipment, err := o.generateLocked(ctx, orderID, form, isRetry)

	courierCode := o.cfg.DefaultCourier
	if shipment != nil && shipment.Courier != "" {
		courierCode = shipment.Courier
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	o.metrics.RecordLabelRequest(operation, courierCode, outcome, time.Since(start).Seconds())

	return shipment, err
}

// generateLocked runs the state machine body. The caller holds the
// order lock.
func (o *Orchestrator) generateLocked(ctx context.Context, orderID string, form LabelForm, isRetry bool) (*store.Shipment, error) {
	order, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	shipment, err := o.store.GetShipment(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		if isRetry {
			return nil, ErrRetryNotAllowed
		}
		shipment = store.NewShipment(orderID)
		if createErr := o.store.CreateShipment(ctx, shipment); createErr != nil && !errors.Is(createErr, store.ErrAlreadyExists) {
			return nil, createErr
		}
	} else if err != nil {
		return nil, err
	}

	resume := false
	switch shipment.Status {
	case store.LabelGenerated:
		if isRetry {
			return nil, ErrRetryNotAllowed
		}
		// Lost a race with a finished attempt: the label exists, hand
		// back the generated record instead of buying a second one.
		return shipment, nil
	case store.LabelPending:
		// We hold the order lock, so nothing is actually in flight: a
		// previous attempt crashed between purchase and persist. Resume
		// it under the same attempt number; the idempotency key matches,
		// so the courier hands back the original label if one was bought.
		resume = true
	case store.LabelNotCreated:
		if isRetry {
			return nil, ErrRetryNotAllowed
		}
	case store.LabelFailed:
		// Retryable from either entry point.
	}

	if !resume && shipment.AttemptCount >= o.cfg.MaxAttempts {
		return nil, ErrRetryNotAllowed
	}

	prevStatus := shipment.Status
	prevAttempts := shipment.AttemptCount

	if shipment.Courier == "" {
		shipment.Courier = o.cfg.DefaultCourier
	}
	shipment.Status = store.LabelPending
	if !resume {
		shipment.AttemptCount++
	}
	shipment.ConsigneeName = form.ConsigneeName
	shipment.ConsigneePhone = form.ConsigneePhone
	shipment.ConsigneeEmail = form.ConsigneeEmail
	shipment.WeightKg = form.WeightKg
	shipment.UpdatedAt = time.Now()
	if err := o.store.UpdateShipment(ctx, shipment); err != nil {
		return nil, err
	}

	client, err := o.couriers.Get(shipment.Courier)
	if err != nil {
		return o.recordFailure(ctx, shipment, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CarrierTimeout)
	defer cancel()

	resp, err := client.CreateLabel(callCtx, &courier.CreateLabelRequest{
		OrderID: orderID,
		Consignee: courier.Consignee{
			Name:  form.ConsigneeName,
			Phone: form.ConsigneePhone,
			Email: form.ConsigneeEmail,
		},
		Address: courier.Address{
			Line1:      order.ShippingAddress.Line1,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		WeightKg: form.WeightKg,
		// One key per order attempt: the courier dedupes inner HTTP
		// retries, the lock dedupes concurrent admin actions.
		IdempotencyKey: fmt.Sprintf("%s-%d", orderID, shipment.AttemptCount),
	})

	// From here on the courier may already have taken our money, so
	// state writes must survive the caller hanging up mid-request.
	persistCtx := context.WithoutCancel(ctx)

	if err != nil {
		if courier.IsAuth(err) {
			// Credential failure is an integration outage, not shipment
			// state. Roll the attempt back and surface it unmodified.
			shipment.Status = prevStatus
			shipment.AttemptCount = prevAttempts
			shipment.UpdatedAt = time.Now()
			if rbErr := o.store.UpdateShipment(persistCtx, shipment); rbErr != nil {
				o.logger.Error("Failed to roll back shipment after auth error",
					zap.String("order_id", orderID), zap.Error(rbErr))
			}
			o.logger.Error("Courier credentials rejected during label purchase",
				zap.String("order_id", orderID),
				zap.String("courier", shipment.Courier),
				zap.Error(err),
			)
			o.metrics.RecordCourierError(shipment.Courier, string(courier.KindAuth))
			return nil, err
		}
		return o.recordFailure(persistCtx, shipment, err)
	}

	now := time.Now()
	shipment.AWBNo = resp.AWBNo
	shipment.TrackingID = resp.TrackingID
	shipment.Status = store.LabelGenerated
	shipment.ShippingStatus = courier.ShippingNotShipped
	shipment.GeneratedAt = &now
	shipment.LastError = ""
	shipment.UpdatedAt = now
	if err := o.store.UpdateShipment(persistCtx, shipment); err != nil {
		return nil, err
	}

	o.logger.Info("AWB generated",
		zap.String("order_id", orderID),
		zap.String("awb_no", shipment.AWBNo),
		zap.String("courier", shipment.Courier),
		zap.Int("attempt", shipment.AttemptCount),
	)
	o.publish(persistCtx, shipment)

	return shipment, nil
}

// recordFailure persists a failed attempt and returns the courier
// error as a definite outcome, not an exception. The write runs on a
// detached context: a terminal outcome must not be lost because the
// caller went away.
func (o *Orchestrator) recordFailure(ctx context.Context, shipment *store.Shipment, cause error) (*store.Shipment, error) {
	ctx = context.WithoutCancel(ctx)
	shipment.Status = store.LabelFailed
	shipment.LastError = cause.Error()
	shipment.UpdatedAt = time.Now()
	if err := o.store.UpdateShipment(ctx, shipment); err != nil {
		o.logger.Error("Failed to persist failed shipment",
			zap.String("order_id", shipment.OrderID), zap.Error(err))
	}

	o.logger.Warn("Label generation failed",
		zap.String("order_id", shipment.OrderID),
		zap.String("courier", shipment.Courier),
		zap.Int("attempt", shipment.AttemptCount),
		zap.Error(cause),
	)
	o.metrics.RecordCourierError(shipment.Courier, string(courier.KindOf(cause)))
	o.publish(ctx, shipment)

	return shipment, cause
}

func (o *Orchestrator) publish(ctx context.Context, shipment *store.Shipment) {
	event := events.ShipmentEvent{
		OrderID:    shipment.OrderID,
		AWBNo:      shipment.AWBNo,
		Courier:    shipment.Courier,
		Status:     string(shipment.Status),
		Attempt:    shipment.AttemptCount,
		OccurredAt: time.Now(),
	}
	if err := o.publisher.PublishShipmentEvent(ctx, event); err != nil {
		o.logger.Warn("Failed to publish shipment event",
			zap.String("order_id", shipment.OrderID), zap.Error(err))
	}
}
