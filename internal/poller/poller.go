// Package poller runs a task on a fixed-rate schedule. A failing or
// panicking run is logged and counted; the schedule keeps going until its
// context is cancelled.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Defaults for the schedule.
const (
	DefaultInterval     = 30 * time.Second
	DefaultInitialDelay = 10 * time.Second
)

// Run outcomes, used as the result label of poller_runs_total.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultPanic = "panic"
)

// Task is one unit of polling work.
type Task func(ctx context.Context) error

// Options configures a Poller.
type Options struct {
	Interval     time.Duration
	InitialDelay time.Duration
	Logger       *zap.Logger
	// Registerer receives poller_runs_total. Nil disables metrics.
	Registerer prometheus.Registerer
}

// Poller executes a Task at a fixed rate after an initial delay.
type Poller struct {
	task         Task
	interval     time.Duration
	initialDelay time.Duration
	log          *zap.Logger
	runs         *prometheus.CounterVec
}

// New creates a Poller for task.
func New(task Task, opts Options) (*Poller, error) {
	if task == nil {
		return nil, errors.New("poller: task is nil")
	}
	p := &Poller{
		task:         task,
		interval:     opts.Interval,
		initialDelay: opts.InitialDelay,
		log:          opts.Logger,
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poller_runs_total",
				Help: "Scheduled polling runs by result.",
			},
			[]string{"result"},
		),
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.initialDelay < 0 {
		p.initialDelay = 0
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if opts.Registerer != nil {
		if err := opts.Registerer.Register(p.runs); err != nil {
			return nil, fmt.Errorf("poller: register metrics: %w", err)
		}
	}
	return p, nil
}

// Run blocks, executing the task after the initial delay and then every
// interval, until ctx is cancelled. Runs never overlap: a run that
// overruns the interval delays the next tick rather than stacking.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("poller started",
		zap.Duration("interval", p.interval),
		zap.Duration("initial_delay", p.initialDelay),
	)
	defer p.log.Info("poller stopped")

	delay := time.NewTimer(p.initialDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll executes the task once and reports the outcome.
func (p *Poller) Poll(ctx context.Context) string {
	started := time.Now()
	result := p.safeRun(ctx)
	p.runs.WithLabelValues(result).Inc()

	p.log.Info("scheduled polling executed",
		zap.Time("at", started),
		zap.String("result", result),
		zap.Duration("took", time.Since(started)),
	)
	return result
}

func (p *Poller) safeRun(ctx context.Context) (result string) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("scheduled polling panicked", zap.Any("panic", r), zap.Stack("stack"))
			result = ResultPanic
		}
	}()

	if err := p.task(ctx); err != nil {
		p.log.Error("error during scheduled polling", zap.Error(err))
		return ResultError
	}
	return ResultOK
}
