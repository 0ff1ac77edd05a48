// Package server exposes the fulfillment subsystem over REST JSON.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swiftcart/fulfillment/internal/shipment"
	"github.com/swiftcart/fulfillment/internal/tracking"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP server for the fulfillment service.
type Server struct {
	port         int
	orchestrator *shipment.Orchestrator
	tracking     *tracking.Service
	queue        *shipment.Queue
	verifier     Verifier
	logger       *otelzap.Logger
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance.
func New(cfg Config, orchestrator *shipment.Orchestrator, trackingSvc *tracking.Service, queue *shipment.Queue, verifier Verifier, logger *otelzap.Logger) *Server {
	return &Server{
		port:         cfg.Port,
		orchestrator: orchestrator,
		tracking:     trackingSvc,
		queue:        queue,
		verifier:     verifier,
		logger:       logger,
	}
}

// Handler returns the routed HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	// Admin label issuance and triage
	mux.HandleFunc("POST /admin/shipment/{orderId}/generate-awb", s.requireRole(RoleAdmin, s.handleGenerateAWB))
	mux.HandleFunc("POST /admin/shipment/{orderId}/retry", s.requireRole(RoleAdmin, s.handleRetry))
	mux.HandleFunc("GET /admin/shipment/pending", s.requireRole(RoleAdmin, s.handleListPending))

	// Order-confirmation hook from the order system
	mux.HandleFunc("POST /internal/order/{orderId}/confirmed", s.requireRole(RoleAdmin, s.handleOrderConfirmed))

	// Shipment lookup and tracking
	mux.HandleFunc("GET /shipment/{orderId}", s.requireRole(RoleUser, s.handleGetShipment))
	mux.HandleFunc("GET /shipment/{orderId}/track", s.requireRole(RoleUser, s.handleTrack))

	return mux
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
