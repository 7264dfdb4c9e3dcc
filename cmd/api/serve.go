package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contractapi/internal/codec"
	"contractapi/internal/config"
	"contractapi/internal/database"
	"contractapi/internal/http/adapter"
	handlers "contractapi/internal/http/handler"
	"contractapi/internal/http/middleware"
	"contractapi/internal/logger"
	"contractapi/internal/otel"
	"contractapi/internal/poller"
	"contractapi/internal/readiness"
	"contractapi/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, cfg.ServiceName, log)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	srv, err := newServer(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer srv.close()

	err = srv.run(ctx)

	tctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if terr := shutdownTracing(tctx); terr != nil {
		log.Warn("tracing shutdown", zap.Error(terr))
	}
	return err
}

// server is the assembled HTTP service and its background work.
type server struct {
	cfg     *config.AppConfig
	log     *zap.Logger
	app     *fiber.App
	checker *readiness.Checker
	poller  *poller.Poller
	db      *sql.DB
}

// newServer loads the contract, connects optional dependencies and builds
// the fiber app. Every contract operation must be bound or this fails.
func newServer(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*server, error) {
	s := &server{cfg: cfg, log: log}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	c, err := loadContract(ctx, cfg.ContractSource, store)
	if err != nil {
		return nil, fmt.Errorf("contract: %w", err)
	}
	log.Info("contract loaded",
		zap.String("source", cfg.ContractSource),
		zap.String("title", c.doc.Info.Title),
		zap.String("version", c.doc.Info.Version),
		zap.Int("operations", c.table.Len()),
	)

	if cfg.Database.Enabled() {
		if s.db, err = database.Open(cfg.Database); err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
	}

	monitor := readiness.NewMonitor()
	deps := []readiness.Dependency{
		readiness.NewDependency("contract", func(context.Context) error {
			if c.table.Len() == 0 {
				return errors.New("no operations loaded")
			}
			return nil
		}),
	}
	if s.db != nil {
		db := s.db
		deps = append(deps, readiness.NewDependency("database", func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}))
	}
	if store != nil {
		deps = append(deps, readiness.NewDependency("storage", store.Ping))
	}
	s.checker = readiness.NewChecker(monitor, log, 0, deps...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMiddleware, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	if cfg.Poll.Enabled {
		p, err := poller.New(s.checker.Run, poller.Options{
			Interval:     cfg.Poll.Interval,
			InitialDelay: cfg.Poll.InitialDelay,
			Logger:       log.Named("poller"),
			Registerer:   registry,
		})
		if err != nil {
			return nil, err
		}
		s.poller = p
	}

	s.app = fiber.New(fiber.Config{
		AppName:               cfg.ServiceName,
		ErrorHandler:          adapter.ErrorHandler(log),
		JSONEncoder:           codec.Marshal,
		JSONDecoder:           codec.Unmarshal,
		DisableStartupMessage: true,
	})

	// Register global middleware
	s.app.Use(middleware.Recover(log))
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	s.app.Use(middleware.RequestID())
	s.app.Use(otelfiber.Middleware())
	// JSON Logger middleware for structured request logs
	s.app.Use(middleware.Logger(log))
	s.app.Use(promMiddleware.Handler())

	a := adapter.New(c.table, adapter.Options{
		Timeout:           cfg.RequestTimeout,
		ValidateResponses: cfg.ValidateResponses,
		Logger:            log,
	})
	err = handlers.RegisterRoutes(s.app, handlers.Deps{
		Adapter:     a,
		Greetings:   service.NewGreetingService(),
		Health:      service.NewHealthService(),
		Monitor:     monitor,
		ServiceName: cfg.ServiceName,
		Contract:    c.doc,
		ContractRaw: c.raw,
		Gatherer:    registry,
	})
	if err != nil {
		return nil, err
	}

	// First readiness check runs now; the poller keeps it current.
	if err := s.checker.Run(ctx); err != nil {
		log.Warn("service not ready at startup", zap.Error(err))
	}

	return s, nil
}

// run serves until ctx is cancelled, then shuts down gracefully. The
// readiness poller runs for as long as ctx does.
func (s *server) run(ctx context.Context) error {
	if s.poller != nil {
		go s.poller.Run(ctx)
	}

	addr := ":" + s.cfg.Port
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()

	s.log.Info("http server listening",
		zap.String("addr", addr),
		zap.String("swagger", "http://"+s.cfg.AppHost+"/swagger/index.html"),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
	}

	if err := s.app.ShutdownWithTimeout(s.cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func (s *server) close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("close database", zap.Error(err))
		}
	}
}
