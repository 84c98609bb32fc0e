package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stevross-git/orchestrator/internal/domain"
)

type submitTaskRequest struct {
	TaskType     string              `json:"task_type" binding:"required"`
	Priority     string              `json:"priority"`
	Requirements requirementsRequest `json:"requirements"`
	InputData    map[string]any      `json:"input_data"`
	TimeoutSec   int                 `json:"timeout_sec"`
	MaxRetries   int                 `json:"max_retries"`
	CallbackURL  string              `json:"callback_url"`
	Metadata     map[string]any      `json:"metadata"`
}

type requirementsRequest struct {
	Capabilities      []string `json:"capabilities"`
	MinCPUHeadroom    float64  `json:"min_cpu_headroom"`
	MinMemoryHeadroom float64  `json:"min_memory_headroom"`
	MaxLoad           float64  `json:"max_load"`
	Redundancy        int      `json:"redundancy"`
}

var priorityByName = map[string]domain.Priority{
	"critical":   domain.PriorityCritical,
	"high":       domain.PriorityHigh,
	"normal":     domain.PriorityNormal,
	"low":        domain.PriorityLow,
	"background": domain.PriorityBackground,
}

func (s *Server) submitTask(c *gin.Context) {
	var req submitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	priority, ok := priorityByName[req.Priority]
	if req.Priority == "" {
		priority = domain.PriorityNormal
	} else if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown priority " + req.Priority})
		return
	}

	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = s.cfg.Scheduler.MaxRetriesDefault
	}
	timeoutSec := req.TimeoutSec
	if timeoutSec == 0 {
		timeoutSec = int(s.cfg.Scheduler.TaskTimeoutDefault.Seconds())
	}

	task := &domain.Task{
		TaskID:   uuid.NewString(),
		TaskType: req.TaskType,
		Priority: priority,
		Requirements: domain.Requirements{
			Capabilities:      req.Requirements.Capabilities,
			MinCPUHeadroom:    req.Requirements.MinCPUHeadroom,
			MinMemoryHeadroom: req.Requirements.MinMemoryHeadroom,
			MaxLoad:           req.Requirements.MaxLoad,
			Redundancy:        req.Requirements.Redundancy,
		},
		InputData:   req.InputData,
		TimeoutSec:  timeoutSec,
		MaxRetries:  maxRetries,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
		Status:      domain.TaskPending,
	}

	if err := s.orch.Tasks.Enqueue(task); err != nil {
		writeError(c, err)
		return
	}

	s.hub.Broadcast("tasks", gin.H{"event": "task_submitted", "task_id": task.TaskID})
	c.JSON(http.StatusAccepted, gin.H{"task_id": task.TaskID, "status": task.Status})
}

func (s *Server) getTask(c *gin.Context) {
	bucket, task, err := s.orch.Tasks.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bucket": bucket, "task": task})
}

type reportResultRequest struct {
	NodeID        string         `json:"node_id" binding:"required"`
	AgentID       string         `json:"agent_id"`
	Success       bool           `json:"success"`
	ResultData    map[string]any `json:"result_data"`
	ErrorMessage  string         `json:"error_message"`
	ExecutionTime float64        `json:"execution_time"`
	Transient     bool           `json:"transient"`
}

// reportTaskResult lets a node report a result out of band from the
// scheduler's own dispatch path — used when a node completes work after
// its HTTP response to the initial dispatch already timed out.
func (s *Server) reportTaskResult(c *gin.Context) {
	var req reportResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.orch.Scheduler.ReportTaskResult(c.Param("id"), domain.TaskResult{
		NodeID:        req.NodeID,
		AgentID:       req.AgentID,
		Success:       req.Success,
		ResultData:    req.ResultData,
		ErrorMessage:  req.ErrorMessage,
		ExecutionTime: time.Duration(req.ExecutionTime * float64(time.Second)),
		Transient:     req.Transient,
	})

	s.hub.Broadcast("tasks", gin.H{"event": "task_result", "task_id": c.Param("id"), "node_id": req.NodeID, "success": req.Success})
	c.Status(http.StatusNoContent)
}
