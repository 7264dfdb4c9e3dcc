package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"contractapi/internal/codec"
	"contractapi/internal/model"
)

// DefaultLocale is used when a greeting request carries no locale.
const DefaultLocale = "en"

// ErrNameRequired is returned when a name is empty after trimming.
var ErrNameRequired = errors.New("name is required")

// GreetingService defines the use cases behind the hello operations.
type GreetingService interface {
	// Hello greets the world.
	Hello(ctx context.Context) (*model.HelloResponse, error)

	// HelloTo greets name, upper-cased when shout is set.
	HelloTo(ctx context.Context, name string, shout bool) (*model.HelloResponse, error)

	// Greet creates a personalised greeting with a fresh id.
	Greet(ctx context.Context, req model.GreetingRequest) (*model.GreetingResponse, error)
}

// greetingService is a concrete implementation of GreetingService.
type greetingService struct {
	now   func() time.Time
	newID func() string
}

// NewGreetingService constructs a new GreetingService.
func NewGreetingService() GreetingService {
	return &greetingService{now: time.Now, newID: uuid.NewString}
}

func (s *greetingService) Hello(ctx context.Context) (*model.HelloResponse, error) {
	return &model.HelloResponse{Message: "world"}, nil
}

func (s *greetingService) HelloTo(ctx context.Context, name string, shout bool) (*model.HelloResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	msg := fmt.Sprintf("Hello, %s!", name)
	if shout {
		msg = strings.ToUpper(msg)
	}
	return &model.HelloResponse{Message: msg}, nil
}

func (s *greetingService) Greet(ctx context.Context, req model.GreetingRequest) (*model.GreetingResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	locale := DefaultLocale
	if req.Locale != nil && *req.Locale != "" {
		locale = *req.Locale
	}

	return &model.GreetingResponse{
		ID:          s.newID(),
		Message:     fmt.Sprintf("Hello, %s!", name),
		Locale:      locale,
		GreetedAt:   codec.NewDateTime(s.now()),
		RequestedAt: req.RequestedAt,
	}, nil
}
