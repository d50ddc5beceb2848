package api

import (
	"context"
	"time"

	"github.com/gmsas95/doclens/internal/config"
	"github.com/gmsas95/doclens/internal/metrics"
	"github.com/gmsas95/doclens/internal/pipeline"
	"github.com/gmsas95/doclens/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Version is reported by the health endpoint
var Version = "0.1.0"

// Processor runs one upload through the pipeline
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) pipeline.Outcome
}

// History lists recorded processing runs
type History interface {
	Recent(ctx context.Context, limit int) ([]store.ProcessingRun, error)
}

// Server handles the upload form and processing endpoints
type Server struct {
	app       *fiber.App
	config    *config.Config
	processor Processor
	history   History
	metrics   *metrics.Metrics
	logger    *zap.Logger
	started   time.Time
}

// New creates a new HTTP server
func New(cfg *config.Config, processor Processor, history History, m *metrics.Metrics, logger *zap.Logger) *Server {
	if m == nil {
		m = metrics.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "DocLens",
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:           120 * time.Second,
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:       app,
		config:    cfg,
		processor: processor,
		history:   history,
		metrics:   m,
		logger:    logger,
		started:   time.Now(),
	}

	s.setupRoutes()
	return s
}

// App exposes the fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks serving on the configured address
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.config.ListenAddr()))
	return s.app.Listen(s.config.ListenAddr())
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	return s.app.ShutdownWithContext(ctx)
}
