package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stevross-git/orchestrator/internal/domain"
)

// NodeExecutor dispatches a task to a node and returns its result. The
// default implementation (HTTPExecutor) speaks the Node-Executor HTTP
// contract from spec.md §6; tests substitute a fake.
type NodeExecutor interface {
	Dispatch(ctx context.Context, node *domain.Node, task *domain.Task) (domain.TaskResult, error)
}

// dispatchPayload is the body posted to a node's /api/tasks endpoint.
type dispatchPayload struct {
	TaskID     string         `json:"task_id"`
	TaskType   string         `json:"task_type"`
	InputData  any            `json:"input_data"`
	TimeoutSec int            `json:"timeout_sec"`
}

// dispatchResponse is the JSON body a node is expected to return.
type dispatchResponse struct {
	Success       bool           `json:"success"`
	AgentID       string         `json:"agent_id"`
	ResultData    map[string]any `json:"result_data"`
	ErrorMessage  string         `json:"error_message"`
	ExecutionTime float64        `json:"execution_time"`
	Transient     bool           `json:"transient"`
}

// HTTPExecutor is the default NodeExecutor: a bounded-timeout HTTP POST to
// the node's advertised host:port.
type HTTPExecutor struct {
	Client *http.Client
}

// NewHTTPExecutor builds an HTTPExecutor with the given per-request
// timeout ceiling (the context passed to Dispatch, which the scheduler
// bounds by its DispatchTimeout, can end the request sooner).
func NewHTTPExecutor(timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{Client: &http.Client{Timeout: timeout}}
}

func (e *HTTPExecutor) Dispatch(ctx context.Context, node *domain.Node, task *domain.Task) (domain.TaskResult, error) {
	body, err := json.Marshal(dispatchPayload{
		TaskID:     task.TaskID,
		TaskType:   task.TaskType,
		InputData:  task.InputData,
		TimeoutSec: task.TimeoutSec,
	})
	if err != nil {
		return domain.TaskResult{}, fmt.Errorf("marshal dispatch payload: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d/api/tasks", node.Host, node.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.TaskResult{}, fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return domain.TaskResult{NodeID: node.NodeID, Transient: true}, fmt.Errorf("dispatch to %s: %w", node.NodeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return domain.TaskResult{NodeID: node.NodeID, Transient: true}, fmt.Errorf("node %s returned %d", node.NodeID, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return domain.TaskResult{NodeID: node.NodeID}, fmt.Errorf("node %s returned %d", node.NodeID, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TaskResult{NodeID: node.NodeID, Transient: true}, fmt.Errorf("read dispatch response: %w", err)
	}
	var parsed dispatchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.TaskResult{NodeID: node.NodeID, Transient: true}, fmt.Errorf("decode dispatch response: %w", err)
	}

	return domain.TaskResult{
		NodeID:        node.NodeID,
		AgentID:       parsed.AgentID,
		Success:       parsed.Success,
		ResultData:    parsed.ResultData,
		ErrorMessage:  parsed.ErrorMessage,
		ExecutionTime: time.Duration(parsed.ExecutionTime * float64(time.Second)),
		Transient:     parsed.Transient,
	}, nil
}
