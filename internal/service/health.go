package service

import (
	"context"
	"time"

	"contractapi/internal/codec"
	"contractapi/internal/model"
)

// HealthMessage is reported by a running service.
const HealthMessage = "Service is running normally"

// HealthService reports whether the process is serving requests.
type HealthService interface {
	Health(ctx context.Context) (*model.HealthResponse, error)
}

type healthService struct {
	now func() time.Time
}

// NewHealthService constructs a new HealthService.
func NewHealthService() HealthService {
	return &healthService{now: time.Now}
}

// Health always reports UP: answering at all means the process is alive.
// Dependency state is reported separately by the readiness endpoint.
func (s *healthService) Health(ctx context.Context) (*model.HealthResponse, error) {
	return &model.HealthResponse{
		Status:    model.HealthStatusUp,
		Timestamp: codec.NewDateTime(s.now()),
		Message:   HealthMessage,
	}, nil
}
