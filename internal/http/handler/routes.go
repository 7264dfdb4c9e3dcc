package handler

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"

	"contractapi/docs"
	"contractapi/internal/http/adapter"
	"contractapi/internal/readiness"
	"contractapi/internal/service"
)

// Deps are the collaborators RegisterRoutes wires into the app.
type Deps struct {
	Adapter   *adapter.Adapter
	Greetings service.GreetingService
	Health    service.HealthService
	Monitor   *readiness.Monitor
	// ServiceName labels the readiness aggregate.
	ServiceName string
	// Contract is the loaded document; ContractRaw its bytes as read.
	Contract    *openapi3.T
	ContractRaw []byte
	Gatherer    prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Out-of-contract routes (health, metrics, docs) are registered first; the
// contract dispatcher is mounted last and owns every other path.
func RegisterRoutes(app *fiber.App, d Deps) error {
	if d.Adapter == nil || d.Contract == nil {
		return fmt.Errorf("register routes: adapter and contract are required")
	}

	contractJSON, err := d.Contract.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode contract: %w", err)
	}
	docs.Contract.Set(contractJSON)

	app.Get("/healthz", Liveness())
	if d.Monitor != nil {
		app.Get("/readyz", Readiness(d.Monitor, d.ServiceName))
	}
	if d.Gatherer != nil {
		app.Get("/metrics", Metrics(d.Gatherer))
	}
	app.Get("/openapi.yaml", OpenAPIDocument(d.ContractRaw))
	app.Get("/openapi.json", OpenAPIJSON(contractJSON))
	app.Get("/swagger/*", swagger.HandlerDefault)

	if err := BindOperations(d.Adapter, d.Greetings, d.Health); err != nil {
		return err
	}
	app.Use(d.Adapter.Handler())
	return nil
}
