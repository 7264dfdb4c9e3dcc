package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"contractapi/internal/apierror"
	"contractapi/internal/readiness"
)

// Liveness answers 200 while the process is serving.
func Liveness() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Readiness serves the aggregate of monitor: 200 with every component
// status unless a component is unhealthy, which yields 503 naming the
// failing components.
func Readiness(monitor *readiness.Monitor, system string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := monitor.Aggregate(system)
		if !status.IsUnhealthy() {
			return c.Status(fiber.StatusOK).JSON(status)
		}

		var vs []apierror.Violation
		for _, sub := range status.SubStatuses {
			if sub.IsUnhealthy() {
				vs = append(vs, apierror.Violation{Field: sub.Component, Constraint: sub.Status, Message: sub.Message})
			}
		}
		ae := apierror.Unavailable("one or more dependencies are unavailable", nil)
		ae.Violations = vs
		return ae
	}
}

// OpenAPIDocument serves the contract as loaded.
func OpenAPIDocument(raw []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(raw)
	}
}

// OpenAPIJSON serves the contract re-encoded as JSON.
func OpenAPIJSON(data []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(data)
	}
}

// Metrics exposes gatherer in the Prometheus text format.
func Metrics(gatherer prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
