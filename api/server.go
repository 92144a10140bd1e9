// Package api exposes companies, workflows and reviews over HTTP.
package api

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/hitl"
	"github.com/sicko7947/hrflow/orchestrator"
	"github.com/sicko7947/hrflow/telemetry"
)

// Version is reported by the health and root endpoints
const Version = "1.0.0"

// Server holds the collaborators shared by the handlers
type Server struct {
	store   hrflow.Store
	pub     hrflow.Publisher
	reviews *hitl.Manager
	logger  zerolog.Logger
	config  hrflow.Config
	metrics *telemetry.Metrics
	now     func() time.Time

	orchestratorOpts []orchestrator.Option
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithConfig sets the tunables
func WithConfig(cfg hrflow.Config) Option {
	return func(s *Server) {
		s.config = cfg.WithDefaults()
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithMetrics sets the counters handed to orchestrators
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithOrchestratorOptions adds options used for every workflow
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(s *Server) {
		s.orchestratorOpts = append(s.orchestratorOpts, opts...)
	}
}

// NewServer creates the HTTP handlers. Decisions submitted through reviews
// are published on pub and applied to workflows by the worker.
func NewServer(store hrflow.Store, pub hrflow.Publisher, reviews *hitl.Manager, opts ...Option) *Server {
	s := &Server{
		store:   store,
		pub:     pub,
		reviews: reviews,
		logger:  hrflow.DefaultLogger(),
		config:  hrflow.DefaultConfig,
		metrics: telemetry.DefaultMetrics(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "api").Logger()
	return s
}

// App builds the fiber application with every route registered
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "hrflow",
		ErrorHandler: s.handleError,
	})
	app.Use(recover.New())
	app.Use(s.logRequests)

	s.registerRoutes(app)
	return app
}

func (s *Server) registerRoutes(app *fiber.App) {
	app.Get("/health", s.handleHealth)
	app.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "hrflow",
			"version": Version,
			"endpoints": fiber.Map{
				"health":         "GET /health",
				"createCompany":  "POST /api/v1/companies",
				"startWorkflow":  "POST /api/v1/policies/workflows",
				"getWorkflow":    "GET /api/v1/policies/workflows/:workflowId",
				"getOutput":      "GET /api/v1/policies/workflows/:workflowId/output",
				"retryStep":      "POST /api/v1/policies/workflows/:workflowId/steps/:stepId/retry",
				"pendingReviews": "GET /api/v1/reviews/pending/:companyId",
				"submitDecision": "POST /api/v1/reviews/:requestId/decision",
				"listGates":      "GET /api/v1/gates",
			},
		})
	})

	v1 := app.Group("/api/v1")

	companies := v1.Group("/companies")
	companies.Post("/", s.handleCreateCompany)
	companies.Get("/:companyId", s.handleGetCompany)
	companies.Delete("/:companyId", s.handleDeleteCompany)

	workflows := v1.Group("/policies/workflows")
	workflows.Post("/", s.handleStartWorkflow)
	workflows.Get("/:workflowId", s.handleGetWorkflow)
	workflows.Get("/:workflowId/output", s.handleGetOutput)
	workflows.Post("/:workflowId/steps/:stepId/retry", s.handleRetryStep)

	reviews := v1.Group("/reviews")
	reviews.Get("/pending/:companyId", s.handlePendingReviews)
	reviews.Get("/:requestId", s.handleGetReview)
	reviews.Post("/:requestId/decision", s.handleSubmitDecision)
	reviews.Post("/:requestId/cancel", s.handleCancelReview)

	gates := v1.Group("/gates")
	gates.Get("/", s.handleListGates)
	gates.Get("/:gateId", s.handleGetGate)
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	if err := s.store.Ping(c.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Store ping failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"service": "hrflow",
			"version": Version,
		})
	}
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "hrflow",
		"version": Version,
	})
}

// logRequests writes one line per request
func (s *Server) logRequests(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusOf(err)
	}

	event := s.logger.Info()
	if status >= fiber.StatusInternalServerError {
		event = s.logger.Error().Err(err)
	}
	event.
		Str("event", hrflow.EventHTTPRequest).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Msg("Request handled")
	return err
}

func (s *Server) loadWorkflow(c fiber.Ctx, workflowID string) (*orchestrator.Orchestrator, error) {
	return orchestrator.Load(c.Context(), s.store, s.pub, workflowID, s.workflowOptions()...)
}

func (s *Server) workflowOptions(extra ...orchestrator.Option) []orchestrator.Option {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(s.logger),
		orchestrator.WithConfig(s.config),
		orchestrator.WithClock(s.now),
		orchestrator.WithMetrics(s.metrics),
	}
	opts = append(opts, s.orchestratorOpts...)
	return append(opts, extra...)
}
