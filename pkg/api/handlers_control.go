package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"node_count":  s.orch.Registry.NodeCount(),
		"task_counts": s.orch.Tasks.Counts(),
	})
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.Metrics.Latest())
}

func (s *Server) listPolicies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"policies": s.orch.Balancer.Policies()})
}
