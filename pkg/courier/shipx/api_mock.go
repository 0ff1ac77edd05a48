package shipx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateAWB   func(ctx context.Context, req *AWBRequest) (*AWBResponse, error)
	OnGetTracking func(ctx context.Context, awbNo string) (*TrackingResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// CreateAWB purchases a mock air waybill.
func (m *MockAPIClient) CreateAWB(ctx context.Context, req *AWBRequest) (*AWBResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK_ERROR", Message: "Simulated API error", StatusCode: http.StatusServiceUnavailable}
	}

	if m.OnCreateAWB != nil {
		return m.OnCreateAWB(ctx, req)
	}

	awb := fmt.Sprintf("SX%d", 100000000+time.Now().UnixNano()%900000000)
	return &AWBResponse{
		AWBNo:       awb,
		TrackingID:  "sx-trk-" + uuid.New().String()[:8],
		CourierCode: "shipx",
		Status:      "manifested",
		LabelURL:    fmt.Sprintf("https://api.shipx.example/v1/awb/%s/label.pdf", awb),
	}, nil
}

// GetTracking retrieves mock tracking information.
func (m *MockAPIClient) GetTracking(ctx context.Context, awbNo string) (*TrackingResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK_ERROR", Message: "Simulated API error", StatusCode: http.StatusServiceUnavailable}
	}

	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, awbNo)
	}

	return &TrackingResponse{
		AWBNo:       awbNo,
		Status:      "in_transit",
		Description: "In transit to destination",
		Location: TrackingLocation{
			City:  "Nagpur",
			State: "MH",
		},
		CheckedAt: time.Now().Format(time.RFC3339),
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
