package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultCheckTimeout bounds a single check when the Checker has none.
const DefaultCheckTimeout = 5 * time.Second

// Dependency is one component the service needs to be ready.
type Dependency interface {
	Name() string
	Check(ctx context.Context) error
}

type dependencyFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (p dependencyFunc) Name() string                    { return p.name }
func (p dependencyFunc) Check(ctx context.Context) error { return p.fn(ctx) }

// NewDependency adapts fn into a Dependency called name.
func NewDependency(name string, fn func(ctx context.Context) error) Dependency {
	return dependencyFunc{name: name, fn: fn}
}

// Checker checks dependencies and records their outcome in a Monitor.
type Checker struct {
	monitor *Monitor
	deps    []Dependency
	timeout time.Duration
	log     *zap.Logger
}

// NewChecker creates a Checker. Every dependency is registered as unhealthy
// until its first successful run.
func NewChecker(monitor *Monitor, log *zap.Logger, timeout time.Duration, deps ...Dependency) *Checker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	for _, p := range deps {
		monitor.UpdateUnhealthy(p.Name(), "not checked yet")
	}
	return &Checker{monitor: monitor, deps: deps, timeout: timeout, log: log}
}

// Run checks every dependency once. It returns the joined failures; a
// panicking check counts as failed.
func (c *Checker) Run(ctx context.Context) error {
	var errs []error
	for _, p := range c.deps {
		if err := c.check(ctx, p); err != nil {
			c.monitor.UpdateUnhealthy(p.Name(), err.Error())
			c.log.Warn("readiness check failed", zap.String("dependency", p.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		c.monitor.UpdateHealthy(p.Name(), "ok")
	}
	return errors.Join(errs...)
}

func (c *Checker) check(ctx context.Context, p Dependency) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check panicked: %v", r)
		}
	}()
	return p.Check(ctx)
}
