// Package api is the orchestrator's control surface: a gin REST API plus
// a WebSocket broadcaster, serving node, agent, task, metrics and policy
// endpoints under /api/v1 plus /health and /metrics/prometheus.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stevross-git/orchestrator/internal/config"
	"github.com/stevross-git/orchestrator/internal/logging"
	"github.com/stevross-git/orchestrator/internal/orchestrator"
)

// Server is the HTTP+WebSocket control surface over an
// *orchestrator.Orchestrator.
type Server struct {
	cfg    *config.Config
	orch   *orchestrator.Orchestrator
	router *gin.Engine
	server *http.Server
	hub    *WSHub
	log    *logrus.Entry

	stopHub chan struct{}
}

// New builds a Server and wires its routes; call Start to listen.
func New(cfg *config.Config, orch *orchestrator.Orchestrator, logger *logrus.Logger) *Server {
	if gin.Mode() != gin.ReleaseMode && cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		orch:    orch,
		hub:     NewWSHub(),
		log:     logging.Component(logger, "api"),
		stopHub: make(chan struct{}),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/health", s.getHealth)

	v1 := router.Group("/api/v1")
	v1.Use(rateLimitMiddleware(s.cfg.Security))
	v1.Use(authMiddleware(s.cfg.Security))
	{
		v1.POST("/nodes", s.registerNode)
		v1.GET("/nodes", s.listNodes)
		v1.GET("/nodes/:id", s.getNode)
		v1.POST("/nodes/:id/heartbeat", s.postHeartbeat)
		v1.POST("/nodes/:id/status", s.setNodeStatus)
		v1.DELETE("/nodes/:id", s.unregisterNode)
		v1.POST("/nodes/:id/agents", s.registerAgent)
		v1.GET("/nodes/:id/agents", s.listAgents)

		v1.POST("/tasks", s.submitTask)
		v1.GET("/tasks/:id", s.getTask)
		v1.POST("/tasks/:id/result", s.reportTaskResult)

		v1.GET("/metrics", s.getMetrics)
		v1.GET("/policies", s.listPolicies)

		v1.GET("/ws", s.handleWebSocket)
	}

	router.GET("/metrics/prometheus", gin.WrapH(s.orch.Prometheus.Handler()))

	s.router = router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("handled request")
	}
}

// Start runs the hub and the HTTP server, blocking until ctx is
// cancelled or ListenAndServe returns a non-shutdown error.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(s.stopHub)

	s.server = &http.Server{Addr: s.cfg.Listen, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts down the HTTP server and hub.
func (s *Server) Stop() error {
	close(s.stopHub)
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Scheduler.ShutdownGrace)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
