// Package faultdetector turns registry snapshots and a clock into status
// transitions. It is deliberately free of goroutines and I/O (spec.md
// §4.4): its only state is the per-node failure history that
// RecordFailure/Reset maintain, and it is called by the scheduler's
// heartbeat monitor on a timer.
package faultdetector

import (
	"sync"
	"time"

	"github.com/stevross-git/orchestrator/internal/domain"
)

// Config holds the thresholds spec.md §4.4 names.
type Config struct {
	// HeartbeatTimeout is how long a node may go without a heartbeat
	// before it is considered Offline.
	HeartbeatTimeout time.Duration
	// DegradeAfterFailures is the number of dispatch failures within
	// FailureWindow that demotes a node from Active to Degraded.
	DegradeAfterFailures int
	// FailureWindow is the sliding window RecordFailure/FailureRate look
	// back over.
	FailureWindow time.Duration
}

// DefaultConfig matches the figures in spec.md §4.4: 30s heartbeat
// timeout, degrade after 3 failures within 5 minutes.
func DefaultConfig() Config {
	return Config{
		HeartbeatTimeout:     30 * time.Second,
		DegradeAfterFailures: 3,
		FailureWindow:        5 * time.Minute,
	}
}

// Detector holds per-node failure timestamps; everything else it needs
// (heartbeat age, status) is read fresh from the registry snapshot handed
// to IsFailed/Evaluate at call time.
type Detector struct {
	mu       sync.Mutex
	cfg      Config
	failures map[string][]time.Time
}

// New builds a Detector with cfg's thresholds.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg, failures: make(map[string][]time.Time)}
}

// IsFailed reports whether node has exceeded the heartbeat timeout as of
// now. Maintenance nodes are never considered failed by heartbeat age.
func (d *Detector) IsFailed(node *domain.Node, now time.Time) bool {
	if node.Status == domain.NodeMaintenance {
		return false
	}
	return now.Sub(node.LastHeartbeat) > d.cfg.HeartbeatTimeout
}

// RecordFailure appends a dispatch-failure timestamp for nodeID, pruning
// entries older than FailureWindow.
func (d *Detector) RecordFailure(nodeID string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	hist := append(d.failures[nodeID], at)
	d.failures[nodeID] = prune(hist, at.Add(-d.cfg.FailureWindow))
}

// FailureRate returns the number of failures recorded for nodeID within
// the trailing FailureWindow as of now.
func (d *Detector) FailureRate(nodeID string, now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	hist := prune(d.failures[nodeID], now.Add(-d.cfg.FailureWindow))
	d.failures[nodeID] = hist
	return len(hist)
}

// ShouldDegrade reports whether nodeID has accumulated enough recent
// failures to be demoted from Active to Degraded.
func (d *Detector) ShouldDegrade(nodeID string, now time.Time) bool {
	return d.FailureRate(nodeID, now) >= d.cfg.DegradeAfterFailures
}

// Reset clears nodeID's failure history, used when a node is unregistered
// or an operator clears its status manually.
func (d *Detector) Reset(nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.failures, nodeID)
}

func prune(hist []time.Time, cutoff time.Time) []time.Time {
	kept := hist[:0]
	for _, t := range hist {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Transition is the status change Evaluate recommends for a node, or the
// zero value if none is needed.
type Transition struct {
	NodeID string
	From   domain.NodeStatus
	To     domain.NodeStatus
}

// Evaluate walks every node in snapshot and returns the transitions the
// heartbeat monitor should apply via registry.SetStatus: any non-Offline,
// non-Maintenance node (Error included) -> Offline on heartbeat timeout,
// Active -> Degraded on failure-rate threshold breach. It never recommends
// leaving Offline or Maintenance; UpdateHeartbeat already revives an
// Offline node on its next successful heartbeat.
func (d *Detector) Evaluate(nodes []*domain.Node, now time.Time) []Transition {
	var out []Transition
	for _, n := range nodes {
		if d.IsFailed(n, now) {
			if n.Status != domain.NodeOffline {
				out = append(out, Transition{NodeID: n.NodeID, From: n.Status, To: domain.NodeOffline})
			}
			continue
		}
		if n.Status == domain.NodeActive && d.ShouldDegrade(n.NodeID, now) {
			out = append(out, Transition{NodeID: n.NodeID, From: n.Status, To: domain.NodeDegraded})
		}
	}
	return out
}
