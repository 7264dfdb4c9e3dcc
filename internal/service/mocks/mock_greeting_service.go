package mocks

import (
	"context"

	"contractapi/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockGreetingService struct {
	mock.Mock
}

func (m *MockGreetingService) Hello(ctx context.Context) (*model.HelloResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HelloResponse), args.Error(1)
}

func (m *MockGreetingService) HelloTo(ctx context.Context, name string, shout bool) (*model.HelloResponse, error) {
	args := m.Called(ctx, name, shout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HelloResponse), args.Error(1)
}

func (m *MockGreetingService) Greet(ctx context.Context, req model.GreetingRequest) (*model.GreetingResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GreetingResponse), args.Error(1)
}
