package model

import "contractapi/internal/codec"

// Health statuses reported by getHealth.
const (
	HealthStatusUp   = "UP"
	HealthStatusDown = "DOWN"
)

// HealthResponse is the body of getHealth.
type HealthResponse struct {
	Status    string         `json:"status" validate:"required,oneof=UP DOWN"`
	Timestamp codec.DateTime `json:"timestamp"`
	Message   string         `json:"message"`
}
