package handler

import (
	"context"
	"fmt"

	"contractapi/internal/http/adapter"
	"contractapi/internal/model"
	"contractapi/internal/service"
)

// Operation ids declared by api/openapi.yaml.
const (
	OpGetHello       = "getHello"
	OpGetHelloByName = "getHelloByName"
	OpCreateGreeting = "createGreeting"
	OpGetHealth      = "getHealth"
)

// GetHello returns the binding for getHello.
func GetHello(svc service.GreetingService) adapter.Binding {
	return adapter.Bind(func(ctx context.Context, _ adapter.Request[adapter.None, adapter.None]) (*model.HelloResponse, error) {
		res, err := svc.Hello(ctx)
		if err != nil {
			return nil, serviceError(err)
		}
		return res, nil
	})
}

// GetHelloByName returns the binding for getHelloByName.
func GetHelloByName(svc service.GreetingService) adapter.Binding {
	return adapter.Bind(func(ctx context.Context, req adapter.Request[model.HelloParams, adapter.None]) (*model.HelloResponse, error) {
		shout := req.Params.Shout != nil && *req.Params.Shout
		res, err := svc.HelloTo(ctx, req.Params.Name, shout)
		if err != nil {
			return nil, serviceError(err)
		}
		return res, nil
	})
}

// CreateGreeting returns the binding for createGreeting.
func CreateGreeting(svc service.GreetingService) adapter.Binding {
	return adapter.Bind(func(ctx context.Context, req adapter.Request[adapter.None, model.GreetingRequest]) (*model.GreetingResponse, error) {
		res, err := svc.Greet(ctx, req.Body)
		if err != nil {
			return nil, serviceError(err)
		}
		return res, nil
	})
}

// GetHealth returns the binding for getHealth.
func GetHealth(svc service.HealthService) adapter.Binding {
	return adapter.Bind(func(ctx context.Context, _ adapter.Request[adapter.None, adapter.None]) (*model.HealthResponse, error) {
		return svc.Health(ctx)
	})
}

// BindOperations registers a handler for every operation of the contract
// and fails if any declared operation is left without one.
func BindOperations(a *adapter.Adapter, greetings service.GreetingService, health service.HealthService) error {
	bindings := []struct {
		id string
		b  adapter.Binding
	}{
		{OpGetHello, GetHello(greetings)},
		{OpGetHelloByName, GetHelloByName(greetings)},
		{OpCreateGreeting, CreateGreeting(greetings)},
		{OpGetHealth, GetHealth(health)},
	}
	for _, op := range bindings {
		if err := a.Register(op.id, op.b); err != nil {
			return fmt.Errorf("bind %s: %w", op.id, err)
		}
	}
	return a.Verify()
}
