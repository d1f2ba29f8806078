package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	coreErrors "github.com/hashcurator/hashcurator/internal/core/errors"
	"github.com/hashcurator/hashcurator/internal/runner"
)

// HealthChecker is an interface for components that can report their health status.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// StatusProvider exposes the most recent run.
type StatusProvider interface {
	LastResult() (runner.Result, bool)
}

// Server is the operations endpoint of the scheduled job.
type Server struct {
	Engine *gin.Engine
	Addr   string
	db     HealthChecker
	status StatusProvider
	logger *slog.Logger
}

func New(addr string, db HealthChecker, status StatusProvider, mode string, logger *slog.Logger) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Engine: r,
		Addr:   addr,
		db:     db,
		status: status,
		logger: logger,
	}

	r.GET("/health", s.healthHandler)
	r.GET("/status", s.statusHandler)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, coreErrors.ErrorResponse{
			ErrorType: coreErrors.HttpRouteNotFound,
			Message:   "no such endpoint",
			Details:   c.Request.URL.Path,
		})
	})

	return s
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Error("[Server] Health check failed: database unreachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, coreErrors.ErrorResponse{
				ErrorType: coreErrors.HttpDatabaseUnavailable,
				Message:   "database unreachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}

func (s *Server) statusHandler(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusOK, gin.H{"status": "idle"})
		return
	}

	res, ok := s.status.LastResult()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "idle"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ran",
		"outcome":        res.Outcome.String(),
		"exit_code":      res.Outcome.ExitCode(),
		"aggregation":    res.Aggregation.String(),
		"classification": res.Classification.String(),
		"run":            res,
	})
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("[Server] Starting HTTP server", "address", s.Addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("[Server] Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("[Server] HTTP server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
