package handler

import (
	"errors"

	"contractapi/internal/apierror"
	"contractapi/internal/service"
)

// serviceError translates service sentinels into client-facing errors.
// Anything unrecognised is returned as is and rendered as an unhandled
// failure.
func serviceError(err error) error {
	switch {
	case errors.Is(err, service.ErrNameRequired):
		return apierror.Validation("name", "required", "name must not be blank")
	default:
		return err
	}
}
