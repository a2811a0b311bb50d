/**
 * HTTP API for the DocExtract service
 *
 * Fiber application exposing the processing pipeline: synchronous
 * process/batch/export endpoints, health probes, and (when a queue and
 * store are attached) async job submission and lookup.
 */

package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/formlens/docextract/internal/config"
	"github.com/formlens/docextract/internal/logging"
	"github.com/formlens/docextract/internal/processor"
	"github.com/formlens/docextract/internal/queue"
	"github.com/formlens/docextract/internal/storage"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server wraps the fiber app and its collaborators.
type Server struct {
	app       *fiber.App
	config    *config.Config
	processor processor.DocumentProcessorInterface
	producer  *queue.Producer
	store     *storage.PostgresClient
	logger    *logging.Logger
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithProducer enables async job submission via POST /jobs.
func WithProducer(p *queue.Producer) Option {
	return func(s *Server) { s.producer = p }
}

// WithStore enables job lookup via GET /jobs/:id.
func WithStore(store *storage.PostgresClient) Option {
	return func(s *Server) { s.store = store }
}

// New builds the API server around a processor.
func New(cfg *config.Config, proc processor.DocumentProcessorInterface, opts ...Option) *Server {
	s := &Server{
		config:    cfg,
		processor: proc,
		logger:    logging.NewLogger("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "docextract",
		BodyLimit:             cfg.MaxUploadMB * 1024 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(fiberrecover.New())
	app.Use(cors.New())

	s.app = app
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/ready", s.handleReady)
	s.app.Get("/live", s.handleLive)

	s.app.Post("/process", s.handleProcess)
	s.app.Post("/process-pdf", s.handleProcessPDF)
	s.app.Post("/batch", s.handleBatch)
	s.app.Post("/export/:format", s.handleExport)

	if s.producer != nil {
		s.app.Post("/jobs", s.handleSubmitJob)
	}
	if s.store != nil {
		s.app.Get("/jobs/:id", s.handleGetJob)
	}
}

// Start initializes the processor and serves until Shutdown. An
// initialization failure is logged, not fatal: /ready keeps answering 503
// and the first processing request retries implicitly.
func (s *Server) Start(addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := s.processor.Initialize(ctx); err != nil {
		s.logger.Error("Processor initialization failed", "error", err)
	} else {
		s.logger.Info("Document processor initialized")
	}

	s.logger.Info("API listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
