package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aescanero/dagflow/internal/application/orchestrator"
	"github.com/aescanero/dagflow/internal/application/workers"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultMaxBatch = 100

// Server represents the HTTP API server
type Server struct {
	router       *gin.Engine
	server       *http.Server
	orchestrator *orchestrator.Manager
	workers      *workers.Pool
	gatherer     prometheus.Gatherer
	maxBatch     int
	logger       *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port         int
	Orchestrator *orchestrator.Manager
	// Workers is optional; when set /health reports pool status
	Workers *workers.Pool
	// Gatherer is optional; nil serves the default Prometheus registry
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	MaxBatch       int
	Logger         *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	maxBatch := cfg.MaxBatch
	if maxBatch < 1 {
		maxBatch = defaultMaxBatch
	}

	s := &Server{
		router:       router,
		orchestrator: cfg.Orchestrator,
		workers:      cfg.Workers,
		gatherer:     cfg.Gatherer,
		maxBatch:     maxBatch,
		logger:       cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handlePing)
	s.router.GET("/health", s.handleHealth)

	// Metrics
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	} else {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Route kept for frontends that post snapshots to the bare path
	s.router.POST("/pipelines/parse", s.handleValidatePipeline)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/node-types", s.handleListNodeTypes)

		// Stateless validation
		v1.POST("/pipelines/validate", s.handleValidatePipeline)
		v1.POST("/pipelines/validate/batch", s.handleValidateBatch)
		v1.POST("/validations", s.handleSubmitValidation)
		v1.GET("/validations/:id", s.handleGetValidation)

		// Saved pipelines
		v1.GET("/pipelines", s.handleListPipelines)
		v1.GET("/pipelines/:id", s.handleGetPipeline)
		v1.DELETE("/pipelines/:id", s.handleDeletePipeline)

		// Editing sessions
		v1.POST("/sessions", s.handleCreateSession)
		v1.GET("/sessions/:id", s.handleGetSession)
		v1.DELETE("/sessions/:id", s.handleCloseSession)
		v1.POST("/sessions/:id/nodes", s.handleAddNode)
		v1.PATCH("/sessions/:id/nodes/:nodeId/data", s.handleUpdateNodeData)
		v1.PUT("/sessions/:id/nodes/:nodeId/position", s.handleMoveNode)
		v1.DELETE("/sessions/:id/nodes/:nodeId", s.handleRemoveNode)
		v1.POST("/sessions/:id/edges", s.handleConnect)
		v1.DELETE("/sessions/:id/edges/:edgeId", s.handleRemoveEdge)
		v1.GET("/sessions/:id/snapshot", s.handleSnapshot)
		v1.POST("/sessions/:id/submit", s.handleSubmitSession)
		v1.POST("/sessions/:id/save", s.handleSaveSession)
	}
}

// SetupWebSocket adds the session change stream to the server
func (s *Server) SetupWebSocket(handler interface {
	HandleSessionStream(*gin.Context)
}) {
	s.router.GET("/api/v1/sessions/:id/ws", handler.HandleSessionStream)
}

// Handler returns the underlying router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
