package domain

import (
	"strconv"
	"strings"
	"time"
)

// Priority orders tasks for scheduling; lower value wins.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityBackground
)

// Priorities lists every band in scheduling order, for code that needs to
// iterate them deterministically (the task store's priority queue, tests).
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow, PriorityBackground}

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// TaskStatus is the terminal or in-flight disposition of a Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Requirements constrains which nodes are eligible to run a Task.
type Requirements struct {
	Capabilities      []string `json:"capabilities,omitempty"`
	MinCPUHeadroom    float64  `json:"min_cpu_headroom"`
	MinMemoryHeadroom float64  `json:"min_memory_headroom"`
	MaxLoad           float64  `json:"max_load"`
	Redundancy        int      `json:"redundancy,omitempty"`
}

// DefaultMaxLoad is applied when a Requirements value leaves MaxLoad unset (zero).
const DefaultMaxLoad = 0.9

// EffectiveMaxLoad returns r.MaxLoad, substituting DefaultMaxLoad when unset.
func (r Requirements) EffectiveMaxLoad() float64 {
	if r.MaxLoad <= 0 {
		return DefaultMaxLoad
	}
	return r.MaxLoad
}

// Task is a unit of work submitted by a client.
type Task struct {
	TaskID       string       `json:"task_id"`
	TaskType     string       `json:"task_type"`
	Priority     Priority     `json:"priority"`
	Requirements Requirements `json:"requirements"`
	InputData    any          `json:"input_data,omitempty"`

	TimeoutSec int     `json:"timeout_sec"`
	RetryCount int     `json:"retry_count"`
	MaxRetries int     `json:"max_retries"`

	AssignedNodes []string `json:"assigned_nodes,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CallbackURL string     `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	// Terminal fields, populated once the task leaves active.
	Status       TaskStatus `json:"status"`
	ResultData   any        `json:"result_data,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ExecutionTime time.Duration `json:"execution_time,omitempty"`
	NodeID       string     `json:"node_id,omitempty"`
	AgentID      string     `json:"agent_id,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	// reportedNodes records which nodes have already delivered a result for
	// each dispatch attempt of this task (keyed "<retry_count>/<node_id>"),
	// so redundant dispatch (Requirements.Redundancy > 1) can discard every
	// report after the first idempotently.
	reportedNodes map[string]struct{} `json:"-"`
}

// MarkReported records that nodeID has delivered a result for this task's
// current attempt, returning true for the first report of that attempt
// (from any node) and false for every later one — used to make
// first-result-wins redundancy idempotent. A retry (higher RetryCount)
// starts a fresh attempt.
func (t *Task) MarkReported(nodeID string) bool {
	if t.reportedNodes == nil {
		t.reportedNodes = make(map[string]struct{})
	}
	prefix := strconv.Itoa(t.RetryCount) + "/"
	first := true
	for key := range t.reportedNodes {
		if strings.HasPrefix(key, prefix) {
			first = false
			break
		}
	}
	t.reportedNodes[prefix+nodeID] = struct{}{}
	return first
}

// Clone returns a deep-enough copy of t safe to hand to a caller outside the task store's lock.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Requirements.Capabilities = append([]string(nil), t.Requirements.Capabilities...)
	c.AssignedNodes = append([]string(nil), t.AssignedNodes...)
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	if t.Deadline != nil {
		d := *t.Deadline
		c.Deadline = &d
	}
	if t.CompletedAt != nil {
		ca := *t.CompletedAt
		c.CompletedAt = &ca
	}
	return &c
}

// TaskResult is the outcome reported for a dispatched task.
type TaskResult struct {
	NodeID        string
	AgentID       string
	Success       bool
	ResultData    any
	ErrorMessage  string
	ExecutionTime time.Duration
	// Transient marks a failure as retryable (vs. PermanentDispatch).
	Transient bool
}
