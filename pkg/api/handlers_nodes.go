package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stevross-git/orchestrator/internal/domain"
	"github.com/stevross-git/orchestrator/internal/registry"
)

type registerNodeRequest struct {
	NodeID       string         `json:"node_id" binding:"required"`
	Host         string         `json:"host" binding:"required"`
	Port         int            `json:"port" binding:"required"`
	NodeType     string         `json:"node_type"`
	Capabilities []string       `json:"capabilities"`
	Version      string         `json:"version"`
	Location     string         `json:"location"`
	Metadata     map[string]any `json:"metadata"`
}

func (s *Server) registerNode(c *gin.Context) {
	var req registerNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	node, err := s.orch.Registry.RegisterNode(registry.NodeSpec{
		NodeID:       req.NodeID,
		Host:         req.Host,
		Port:         req.Port,
		NodeType:     req.NodeType,
		Capabilities: req.Capabilities,
		Version:      req.Version,
		Location:     req.Location,
		Metadata:     req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	s.hub.Broadcast("nodes", gin.H{"event": "node_registered", "node": node})
	c.JSON(http.StatusCreated, node)
}

func (s *Server) listNodes(c *gin.Context) {
	snap := s.orch.Registry.Snapshot()
	c.JSON(http.StatusOK, gin.H{"nodes": snap.Nodes})
}

func (s *Server) getNode(c *gin.Context) {
	node, err := s.orch.Registry.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

func (s *Server) unregisterNode(c *gin.Context) {
	if err := s.orch.Registry.UnregisterNode(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	s.hub.Broadcast("nodes", gin.H{"event": "node_unregistered", "node_id": c.Param("id")})
	c.Status(http.StatusNoContent)
}

type heartbeatRequest struct {
	CPUUsage         float64          `json:"cpu_usage"`
	MemoryUsage      float64          `json:"memory_usage"`
	GPUUsage         float64          `json:"gpu_usage"`
	NetworkLatencyMS float64          `json:"network_latency_ms"`
	LoadScore        float64          `json:"load_score"`
	Status           domain.NodeStatus `json:"status"`
}

func (s *Server) postHeartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.orch.Registry.UpdateHeartbeat(c.Param("id"), registry.HeartbeatMetrics{
		CPUUsage:         req.CPUUsage,
		MemoryUsage:      req.MemoryUsage,
		GPUUsage:         req.GPUUsage,
		NetworkLatencyMS: req.NetworkLatencyMS,
		LoadScore:        req.LoadScore,
		Status:           req.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setStatusRequest struct {
	Status domain.NodeStatus `json:"status" binding:"required"`
}

func (s *Server) setNodeStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.orch.Registry.SetStatus(c.Param("id"), req.Status); err != nil {
		writeError(c, err)
		return
	}
	s.hub.Broadcast("nodes", gin.H{"event": "node_status", "node_id": c.Param("id"), "status": req.Status})
	c.Status(http.StatusNoContent)
}

type registerAgentRequest struct {
	AgentID           string   `json:"agent_id" binding:"required"`
	AgentType         string   `json:"agent_type"`
	Capabilities      []string `json:"capabilities"`
	SpecializedModels []string `json:"specialized_models"`
}

func (s *Server) registerAgent(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	agent, err := s.orch.Registry.RegisterAgent(registry.AgentSpec{
		AgentID:           req.AgentID,
		AgentType:         req.AgentType,
		Capabilities:      req.Capabilities,
		SpecializedModels: req.SpecializedModels,
	}, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

func (s *Server) listAgents(c *gin.Context) {
	agents := s.orch.Registry.AgentsForNode(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}
