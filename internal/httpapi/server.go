// Package httpapi exposes the steward services over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/agent"
	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/heartbeat"
	"github.com/fyrsmithlabs/steward/internal/knowledge"
	"github.com/fyrsmithlabs/steward/internal/learning"
)

// Agent is the chat and approval surface the API fronts.
type Agent interface {
	Chat(ctx context.Context, req *agent.ChatRequest) (*agent.ChatResponse, error)
	ApproveTask(ctx context.Context, userID, taskID string) (*knowledge.Task, string, error)
	RejectTask(ctx context.Context, userID, taskID string) (*knowledge.Task, error)
}

// Sweeper triggers an on-demand heartbeat sweep.
type Sweeper interface {
	RunSweep(ctx context.Context, userID string) (*heartbeat.Summary, error)
}

// Learner is the learning pipeline surface.
type Learner interface {
	RecordCorrection(ctx context.Context, in *learning.CorrectionInput) (string, error)
	ClassifyAndLearn(ctx context.Context, in *learning.LearnInput) (*learning.Result, error)
	ProcessFeedback(ctx context.Context, userID, decisionID string, feedback knowledge.Feedback, category autonomy.Category) error
}

// Store is the slice of the knowledge store the API reads and writes.
type Store interface {
	ListTasks(ctx context.Context, userID string, status knowledge.TaskStatus, category autonomy.Category, limit int) ([]*knowledge.Task, error)
	GetAutonomyConfig(ctx context.Context, userID string) (*autonomy.Config, error)
	PutAutonomyConfig(ctx context.Context, cfg *autonomy.Config) error
	Stats(ctx context.Context) (*knowledge.Stats, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// SchedulerSecret authorizes the heartbeat trigger endpoint. Owner
	// credentials never do. Empty disables the endpoint entirely.
	SchedulerSecret string
}

// Server provides the HTTP endpoints for steward.
type Server struct {
	echo    *echo.Echo
	agent   Agent
	sweeper Sweeper
	learner Learner
	store   Store
	logger  *zap.Logger
	config  *Config
}

// NewServer creates a new HTTP server.
func NewServer(ag Agent, sweeper Sweeper, learner Learner, store Store, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ag == nil {
		return nil, fmt.Errorf("agent cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8787,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(metricsMiddleware())

	s := &Server{
		echo:    e,
		agent:   ag,
		sweeper: sweeper,
		learner: learner,
		store:   store,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/agent/chat", s.handleChat, s.requireUser)
	v1.POST("/agent/heartbeat", s.handleHeartbeat, s.requireScheduler)
	v1.POST("/agent/learning", s.handleLearning, s.requireUser)
	v1.GET("/tasks", s.handleListTasks, s.requireUser)
	v1.POST("/tasks/:id/approve", s.handleApproveTask, s.requireUser)
	v1.POST("/tasks/:id/reject", s.handleRejectTask, s.requireUser)
	v1.GET("/autonomy", s.handleGetAutonomy, s.requireUser)
	v1.PUT("/autonomy", s.handlePutAutonomy, s.requireUser)
	v1.GET("/ops/stats", s.handleOpsStats, s.requireOperator)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
