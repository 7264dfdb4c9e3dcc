package model

import "contractapi/internal/codec"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	RequestID string         `json:"request_id"`
	Timestamp codec.DateTime `json:"timestamp"`
	Error     ErrorBody      `json:"error"`
}

// ErrorBody carries the machine-readable code and a client-safe message.
type ErrorBody struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Field   string           `json:"field,omitempty"`
	Details []ErrorViolation `json:"details,omitempty"`
}

// ErrorViolation describes one failed field constraint.
type ErrorViolation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}
