package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/swiftcart/fulfillment/internal/shipment"
	"github.com/swiftcart/fulfillment/internal/store"
	"github.com/swiftcart/fulfillment/internal/tracking"
	"github.com/swiftcart/fulfillment/pkg/courier"
	"go.uber.org/zap"
)

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type labelRequest struct {
	ConsigneeName  string  `json:"consigneeName"`
	ConsigneePhone string  `json:"consigneePhone"`
	ConsigneeEmail string  `json:"consigneeEmail,omitempty"`
	Weight         float64 `json:"weight"`
}

type labelResponse struct {
	Success    bool   `json:"success"`
	AWBNo      string `json:"awbNo,omitempty"`
	TrackingID string `json:"trackingId,omitempty"`
	Message    string `json:"message"`
	Retryable  *bool  `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleGenerateAWB(w http.ResponseWriter, r *http.Request) {
	s.handleLabelOperation(w, r, s.orchestrator.GenerateAWB)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.handleLabelOperation(w, r, s.orchestrator.Retry)
}

func (s *Server) handleLabelOperation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, orderID string, form shipment.LabelForm) (*store.Shipment, error)) {
	orderID := r.PathValue("orderId")

	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid JSON: " + err.Error()})
		return
	}

	sh, err := op(r.Context(), orderID, shipment.LabelForm{
		ConsigneeName:  req.ConsigneeName,
		ConsigneePhone: req.ConsigneePhone,
		ConsigneeEmail: req.ConsigneeEmail,
		WeightKg:       req.Weight,
	})
	if err != nil {
		s.writeLabelError(w, orderID, sh, err)
		return
	}

	writeJSON(w, http.StatusOK, labelResponse{
		Success:    true,
		AWBNo:      sh.AWBNo,
		TrackingID: sh.TrackingID,
		Message:    "label generated",
	})
}

// writeLabelError maps orchestrator outcomes onto the HTTP contract.
// Carrier failures are definite outcomes, not server errors: the
// shipment is marked failed and the admin gets a retry affordance.
func (s *Server) writeLabelError(w http.ResponseWriter, orderID string, sh *store.Shipment, err error) {
	var validationErr *shipment.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: validationErr.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "order not found"})
	case errors.Is(err, shipment.ErrAlreadyInProgress):
		writeJSON(w, http.StatusConflict, messageResponse{Message: "label generation already in progress"})
	case errors.Is(err, shipment.ErrRetryNotAllowed):
		writeJSON(w, http.StatusConflict, messageResponse{Message: "retry not allowed"})
	case courier.IsAuth(err):
		writeJSON(w, http.StatusBadGateway, messageResponse{Message: "courier authentication failed, contact operations"})
	case sh != nil && sh.Status == store.LabelFailed:
		retryable := courier.IsTransient(err) && s.orchestrator.CanRetry(sh)
		writeJSON(w, http.StatusOK, labelResponse{
			Success:   false,
			Message:   "label generation failed: " + sh.LastError,
			Retryable: &retryable,
		})
	default:
		s.logger.Error("Label operation failed", zap.String("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "internal error"})
	}
}

type paginationJSON struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

type pendingResponse struct {
	Success    bool                    `json:"success"`
	Data       []store.PendingShipment `json:"data"`
	Pagination paginationJSON          `json:"pagination"`
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := s.queue.ListPending(r.Context(), page, limit)
	if err != nil {
		s.logger.Error("Listing pending shipments failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, pendingResponse{
		Success: true,
		Data:    result.Items,
		Pagination: paginationJSON{
			Page:  result.Page,
			Pages: result.TotalPages,
			Total: result.TotalCount,
		},
	})
}

type shipmentResponse struct {
	Success         bool                   `json:"success"`
	Shipment        *store.Shipment        `json:"shipment"`
	ShippingAddress *store.ShippingAddress `json:"shippingAddress,omitempty"`
}

func (s *Server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")

	sh, err := s.orchestrator.GetShipment(r.Context(), orderID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "no shipment for order"})
		return
	}
	if err != nil {
		s.logger.Error("Shipment lookup failed", zap.String("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "internal error"})
		return
	}

	resp := shipmentResponse{Success: true, Shipment: sh}
	if order, orderErr := s.orchestrator.GetOrder(r.Context(), orderID); orderErr == nil {
		resp.ShippingAddress = &order.ShippingAddress
	}
	writeJSON(w, http.StatusOK, resp)
}

type locationJSON struct {
	City  string `json:"city"`
	State string `json:"state"`
}

type trackingJSON struct {
	Status       string       `json:"status"`
	Description  string       `json:"description"`
	Location     locationJSON `json:"location"`
	LastSyncedAt time.Time    `json:"lastSyncedAt"`
}

type dataSourceJSON struct {
	IsLive      bool `json:"isLive"`
	IsCached    bool `json:"isCached"`
	Unavailable bool `json:"unavailable"`
}

type trackResponse struct {
	Success    bool           `json:"success"`
	AWBNo      string         `json:"awbNo,omitempty"`
	Tracking   *trackingJSON  `json:"tracking"`
	DataSource dataSourceJSON `json:"dataSource"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")
	forceRefresh := r.URL.Query().Get("forceRefresh") == "true"

	result, err := s.tracking.GetTracking(r.Context(), orderID, forceRefresh)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "no shipment for order"})
		return
	}
	if err != nil {
		s.logger.Error("Tracking lookup failed", zap.String("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "internal error"})
		return
	}

	resp := trackResponse{
		Success: true,
		AWBNo:   result.AWBNo,
		DataSource: dataSourceJSON{
			IsLive:      result.Source == tracking.SourceLive,
			IsCached:    result.Source == tracking.SourceCached,
			Unavailable: result.Source == tracking.SourceUnavailable,
		},
	}
	if result.Snapshot != nil {
		resp.Tracking = &trackingJSON{
			Status:      string(result.Snapshot.Status),
			Description: result.Snapshot.Description,
			Location: locationJSON{
				City:  result.Snapshot.City,
				State: result.Snapshot.State,
			},
			LastSyncedAt: result.Snapshot.LastSyncedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type orderConfirmedRequest struct {
	PaymentConfirmed bool                  `json:"paymentConfirmed"`
	ShippingAddress  store.ShippingAddress `json:"shippingAddress"`
	CreatedAt        *time.Time            `json:"createdAt,omitempty"`
}

func (s *Server) handleOrderConfirmed(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")

	var req orderConfirmedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid JSON: " + err.Error()})
		return
	}

	createdAt := time.Now()
	if req.CreatedAt != nil {
		createdAt = *req.CreatedAt
	}

	err := s.orchestrator.CreateForOrder(r.Context(), &store.Order{
		OrderID:          orderID,
		PaymentConfirmed: req.PaymentConfirmed,
		ShippingAddress:  req.ShippingAddress,
		CreatedAt:        createdAt,
	})
	if err != nil {
		s.logger.Error("Order confirmation failed", zap.String("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "shipment created"})
}
