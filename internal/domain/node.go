// Package domain defines the core entities of the network orchestrator:
// nodes, agents, and tasks.
package domain

import "time"

// NodeStatus is the operational state of a Node.
type NodeStatus string

const (
	NodeActive      NodeStatus = "active"
	NodeDegraded    NodeStatus = "degraded"
	NodeMaintenance NodeStatus = "maintenance"
	NodeOffline     NodeStatus = "offline"
	NodeError       NodeStatus = "error"
)

// Node is a remote host that can execute tasks via one or more agents.
type Node struct {
	NodeID      string     `json:"node_id"`
	Host        string     `json:"host"`
	Port        int        `json:"port"`
	NodeType    string     `json:"node_type"`
	Status      NodeStatus `json:"status"`
	Capabilities []string  `json:"capabilities"`

	AgentsCount int `json:"agents_count"`

	CPUUsage     float64 `json:"cpu_usage"`
	MemoryUsage  float64 `json:"memory_usage"`
	GPUUsage     float64 `json:"gpu_usage"`

	NetworkLatencyMS float64 `json:"network_latency_ms"`
	LoadScore        float64 `json:"load_score"`
	ReliabilityScore float64 `json:"reliability_score"`

	LastHeartbeat time.Time `json:"last_heartbeat"`
	Version       string    `json:"version"`
	Location      string    `json:"location,omitempty"`

	TasksCompleted int64 `json:"tasks_completed"`
	TasksFailed    int64 `json:"tasks_failed"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep-enough copy of n safe to hand to a caller outside the registry's lock.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Capabilities = append([]string(nil), n.Capabilities...)
	if n.Metadata != nil {
		c.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// HasCapabilities reports whether n has every capability in want.
func (n *Node) HasCapabilities(want []string) bool {
	if len(want) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(n.Capabilities))
	for _, c := range n.Capabilities {
		have[c] = struct{}{}
	}
	for _, w := range want {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}

// Agent is a worker instance running within a Node.
type Agent struct {
	AgentID            string    `json:"agent_id"`
	NodeID             string    `json:"node_id"`
	AgentType          string    `json:"agent_type"`
	Status             string    `json:"status"`
	Capabilities       []string  `json:"capabilities"`
	TasksRunning       int       `json:"tasks_running"`
	TasksCompleted     int64     `json:"tasks_completed"`
	EfficiencyScore    float64   `json:"efficiency_score"`
	SpecializedModels  []string  `json:"specialized_models,omitempty"`
	LastActivity       time.Time `json:"last_activity"`
	ResourceUsage      map[string]float64 `json:"resource_usage,omitempty"`
}

// Clone returns a copy of a safe to hand outside the registry's lock.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	c := *a
	c.Capabilities = append([]string(nil), a.Capabilities...)
	c.SpecializedModels = append([]string(nil), a.SpecializedModels...)
	if a.ResourceUsage != nil {
		c.ResourceUsage = make(map[string]float64, len(a.ResourceUsage))
		for k, v := range a.ResourceUsage {
			c.ResourceUsage[k] = v
		}
	}
	return &c
}
