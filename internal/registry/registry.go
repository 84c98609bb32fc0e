// Package registry is the authoritative, concurrency-safe store of Nodes
// and Agents. It produces consistent snapshots for the scheduler, load
// balancer, and metrics aggregator.
package registry

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stevross-git/orchestrator/internal/domain"
	"github.com/stevross-git/orchestrator/internal/logging"
	"github.com/stevross-git/orchestrator/internal/orcherr"
)

// NodeSpec is the caller-supplied description of a node to register.
type NodeSpec struct {
	NodeID       string
	Host         string
	Port         int
	NodeType     string
	Capabilities []string
	Version      string
	Location     string
	Metadata     map[string]any
}

// HeartbeatMetrics carries the payload of a node heartbeat.
type HeartbeatMetrics struct {
	CPUUsage         float64
	MemoryUsage      float64
	GPUUsage         float64
	NetworkLatencyMS float64
	LoadScore        float64
	// Status, when non-empty, requests an explicit status transition
	// (e.g. an agent reporting itself Degraded).
	Status domain.NodeStatus
}

// AgentSpec is the caller-supplied description of an agent to register.
type AgentSpec struct {
	AgentID           string
	AgentType         string
	Capabilities      []string
	SpecializedModels []string
}

// Snapshot is an immutable view of the registry at a point in time, safe to
// read without holding any lock.
type Snapshot struct {
	Nodes  []*domain.Node
	Agents []*domain.Agent
}

// Registry is the single source of truth for nodes and agents.
type Registry struct {
	mu         sync.RWMutex
	nodes      map[string]*domain.Node
	agents     map[string]*domain.Agent
	nodeAgents map[string]map[string]struct{}

	log *logrus.Entry
}

// New creates an empty Registry.
func New(logger *logrus.Logger) *Registry {
	return &Registry{
		nodes:      make(map[string]*domain.Node),
		agents:     make(map[string]*domain.Agent),
		nodeAgents: make(map[string]map[string]struct{}),
		log:        logging.Component(logger, "registry"),
	}
}

// RegisterNode registers spec, or rebinds an existing node whose identity
// (host:port) differs from what is stored, logging the rebind. Idempotent
// when the spec is identical to the stored entry.
func (r *Registry) RegisterNode(spec NodeSpec) (*domain.Node, error) {
	if spec.NodeID == "" || spec.Host == "" || spec.Port <= 0 {
		return nil, orcherr.New(orcherr.InvalidInput, "node_id, host and port are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.nodes[spec.NodeID]; ok {
		if existing.Host == spec.Host && existing.Port == spec.Port {
			return existing.Clone(), nil
		}
		r.log.WithFields(logrus.Fields{
			"node_id":   spec.NodeID,
			"old_host":  existing.Host,
			"old_port":  existing.Port,
			"new_host":  spec.Host,
			"new_port":  spec.Port,
		}).Info("rebinding node to new address")
	}

	node := &domain.Node{
		NodeID:           spec.NodeID,
		Host:             spec.Host,
		Port:             spec.Port,
		NodeType:         spec.NodeType,
		Status:           domain.NodeActive,
		Capabilities:     append([]string(nil), spec.Capabilities...),
		ReliabilityScore: 1.0,
		LastHeartbeat:    time.Now(),
		Version:          spec.Version,
		Location:         spec.Location,
		Metadata:         spec.Metadata,
	}
	r.nodes[spec.NodeID] = node
	if _, ok := r.nodeAgents[spec.NodeID]; !ok {
		r.nodeAgents[spec.NodeID] = make(map[string]struct{})
	}

	return node.Clone(), nil
}

// RegisterAgent attaches a new agent to nodeID.
func (r *Registry) RegisterAgent(spec AgentSpec, nodeID string) (*domain.Agent, error) {
	if spec.AgentID == "" {
		return nil, orcherr.New(orcherr.InvalidInput, "agent_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		return nil, orcherr.NotFound("node", nodeID)
	}
	if _, dup := r.agents[spec.AgentID]; dup {
		return nil, orcherr.New(orcherr.Conflict, "agent %q already registered", spec.AgentID).WithNode(nodeID)
	}

	agent := &domain.Agent{
		AgentID:           spec.AgentID,
		NodeID:            nodeID,
		AgentType:         spec.AgentType,
		Status:            "active",
		Capabilities:      append([]string(nil), spec.Capabilities...),
		SpecializedModels: append([]string(nil), spec.SpecializedModels...),
		EfficiencyScore:   1.0,
		LastActivity:      time.Now(),
	}
	r.agents[spec.AgentID] = agent
	r.nodeAgents[nodeID][spec.AgentID] = struct{}{}
	node.AgentsCount = len(r.nodeAgents[nodeID])

	return agent.Clone(), nil
}

// UnregisterNode removes a node and every agent attached to it.
func (r *Registry) UnregisterNode(nodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[nodeID]; !ok {
		return orcherr.NotFound("node", nodeID)
	}

	for agentID := range r.nodeAgents[nodeID] {
		delete(r.agents, agentID)
	}
	delete(r.nodeAgents, nodeID)
	delete(r.nodes, nodeID)

	return nil
}

// statusTransitionAllowed implements the status table from spec.md §4.1:
// Active<->Degraded freely; ->Offline only via heartbeat timeout (fault
// detector, which calls SetStatus directly, not UpdateHeartbeat);
// Offline->Active on a fresh heartbeat; Maintenance/Error are operator- or
// dispatch-driven and never silently overridden by a heartbeat.
func statusTransitionAllowed(from, to domain.NodeStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case domain.NodeMaintenance, domain.NodeError:
		return false
	}
	switch to {
	case domain.NodeActive, domain.NodeDegraded, domain.NodeOffline:
		return true
	}
	return false
}

// UpdateHeartbeat refreshes liveness and resource metrics for nodeID. If
// metrics.Status is non-empty, applies the requested status transition per
// the table in spec.md §4.1. Idempotent under identical input.
func (r *Registry) UpdateHeartbeat(nodeID string, metrics HeartbeatMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		return orcherr.NotFound("node", nodeID)
	}

	node.LastHeartbeat = time.Now()
	node.CPUUsage = metrics.CPUUsage
	node.MemoryUsage = metrics.MemoryUsage
	node.GPUUsage = metrics.GPUUsage
	node.NetworkLatencyMS = metrics.NetworkLatencyMS
	node.LoadScore = clamp01(metrics.LoadScore)

	if metrics.Status != "" && metrics.Status != node.Status {
		if !statusTransitionAllowed(node.Status, metrics.Status) {
			return orcherr.New(orcherr.Conflict, "illegal status transition %s -> %s", node.Status, metrics.Status).WithNode(nodeID)
		}
		node.Status = metrics.Status
	} else if node.Status == domain.NodeOffline {
		// A fresh heartbeat from an Offline node always brings it back.
		node.Status = domain.NodeActive
	}

	return nil
}

// SetStatus applies an operator- or detector-driven status transition
// directly, bypassing the heartbeat path. Used by the fault detector
// (->Offline/->Degraded) and the operator status-override endpoint.
func (r *Registry) SetStatus(nodeID string, status domain.NodeStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		return orcherr.NotFound("node", nodeID)
	}
	node.Status = status
	return nil
}

// AdjustReliability nudges nodeID's reliability score by delta, clamped to
// [0.1, 1] per spec.md §4.3 ("lower by 0.1 (min 0.1)") — unlike load_score,
// reliability never bottoms out at 0. The scheduler calls it with the delta
// returned by the load balancer's UpdatePerformance (see internal/scheduler).
func (r *Registry) AdjustReliability(nodeID string, delta float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		return orcherr.NotFound("node", nodeID)
	}
	node.ReliabilityScore = clampReliability(node.ReliabilityScore + delta)
	return nil
}

// RecordTaskOutcome increments a node's completed/failed counters.
func (r *Registry) RecordTaskOutcome(nodeID string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		return orcherr.NotFound("node", nodeID)
	}
	if success {
		node.TasksCompleted++
	} else {
		node.TasksFailed++
	}
	return nil
}

// Get returns a clone of the node identified by nodeID.
func (r *Registry) Get(nodeID string) (*domain.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		return nil, orcherr.NotFound("node", nodeID)
	}
	return node.Clone(), nil
}

// AgentsForNode returns clones of every agent attached to nodeID.
func (r *Registry) AgentsForNode(nodeID string) []*domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.nodeAgents[nodeID]
	out := make([]*domain.Agent, 0, len(ids))
	for id := range ids {
		out = append(out, r.agents[id].Clone())
	}
	return out
}

// Snapshot returns an immutable, deep-cloned view of every node and agent,
// suitable for the scheduler's eligibility pass or the metrics aggregator.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]*domain.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		nodes = append(nodes, n.Clone())
	}
	agents := make([]*domain.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a.Clone())
	}
	return Snapshot{Nodes: nodes, Agents: agents}
}

// NodeCount returns the total number of registered nodes.
func (r *Registry) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampReliability(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	if v > 1 {
		return 1
	}
	return v
}
