package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"contractapi/internal/apierror"
)

// statusOf returns the status the response will carry once the global
// error handler has rendered err.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var ae *apierror.Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// routeOf returns the route pattern for metric labels: the contract path
// template when the adapter resolved one, otherwise fiber's route path.
func routeOf(c *fiber.Ctx) string {
	if r, ok := c.Locals(RouteLocalKey).(string); ok && r != "" {
		return r
	}
	if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
		return utils.CopyString(r.Path)
	}
	return "unmatched"
}
