// Package server exposes the admin API: scheduler status, a manual run
// trigger, health, and prometheus metrics. It is the only surface external
// callers see; everything is read-only except the run trigger.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rcollins/quotesync/internal/logger"
	"github.com/rcollins/quotesync/internal/refresh"
)

// Server is the admin HTTP server.
type Server struct {
	addr     string
	reporter *refresh.StatusReporter
	orch     *refresh.Orchestrator
	gatherer prometheus.Gatherer
	log      *logger.Logger

	engine  *gin.Engine
	httpSrv *http.Server
}

// New builds the server and its routes. gatherer may be nil to use the
// default prometheus registry.
func New(addr string, reporter *refresh.StatusReporter, orch *refresh.Orchestrator, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		addr:     addr,
		reporter: reporter,
		orch:     orch,
		gatherer: gatherer,
		log:      log,
		engine:   engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/run", s.handleRun)
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("admin server listening", logger.Field{Key: "addr", Value: s.addr})
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.reporter.Status())
}

// handleRun triggers a manual refresh. A run already in flight yields 409;
// the trigger itself always returns immediately.
func (s *Server) handleRun(c *gin.Context) {
	if s.orch.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "a refresh run is already in progress"})
		return
	}

	go s.orch.Execute(context.Background(), refresh.TriggerManual)

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
