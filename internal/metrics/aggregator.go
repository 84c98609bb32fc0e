// Package metrics derives the orchestrator's fleet-level statistics
// (spec.md §4.7) on a timer and on demand, and mirrors them onto a
// dedicated Prometheus registry for scrape-based consumers.
package metrics

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stevross-git/orchestrator/internal/logging"
	"github.com/stevross-git/orchestrator/internal/registry"
	"github.com/stevross-git/orchestrator/internal/taskstore"
)

// Snapshot is the set of derived metrics spec.md §4.7 names.
type Snapshot struct {
	Timestamp              time.Time `json:"timestamp"`
	TotalNodes             int       `json:"total_nodes"`
	ActiveNodes            int       `json:"active_nodes"`
	TotalAgents            int       `json:"total_agents"`
	TasksCompleted         int64     `json:"tasks_completed"`
	TasksFailed            int64     `json:"tasks_failed"`
	SuccessRate            float64   `json:"success_rate"`
	NetworkUtilization     float64   `json:"network_utilization"`
	AverageResponseTimeSec float64   `json:"average_response_time"`
	ThroughputPerMinute    float64   `json:"throughput_per_minute"`
}

// Aggregator computes Snapshot from the registry and task store, caching
// the last computed value for cheap concurrent reads between ticks.
type Aggregator struct {
	registry *registry.Registry
	store    *taskstore.Store
	log      *logrus.Entry

	mu   sync.RWMutex
	last Snapshot

	windowStart time.Time
	windowCount int64
}

// New builds an Aggregator. Call Refresh once before the first Latest
// call, or rely on the periodic refresher started by orchestrator.Start.
func New(reg *registry.Registry, store *taskstore.Store, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		registry:    reg,
		store:       store,
		log:         logging.Component(logger, "metrics"),
		windowStart: time.Now(),
	}
}

// Refresh recomputes the snapshot from the registry and task store and
// caches it for Latest.
func (a *Aggregator) Refresh() Snapshot {
	snap := a.compute()
	a.mu.Lock()
	a.last = snap
	a.mu.Unlock()
	return snap
}

// Latest returns the most recently computed snapshot without recomputing.
func (a *Aggregator) Latest() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

func (a *Aggregator) compute() Snapshot {
	now := time.Now()
	regSnap := a.registry.Snapshot()
	counts := a.store.Counts()

	var activeNodes int
	var totalLoad float64
	for _, n := range regSnap.Nodes {
		if n.Status == "active" {
			activeNodes++
		}
		totalLoad += n.LoadScore
	}
	var networkUtil float64
	if len(regSnap.Nodes) > 0 {
		networkUtil = totalLoad / float64(len(regSnap.Nodes))
	}

	completed := int64(counts.Completed)
	failed := int64(counts.Failed)

	var successRate float64
	if total := completed + failed; total > 0 {
		successRate = float64(completed) / float64(total)
	}

	history := a.store.History()
	var avgResponse float64
	if len(history) > 0 {
		var sum float64
		for _, t := range history {
			sum += t.ExecutionTime.Seconds()
		}
		avgResponse = sum / float64(len(history))
	}

	throughput := a.throughputPerMinute(now, int64(counts.Completed)+int64(counts.Failed))

	return Snapshot{
		Timestamp:              now,
		TotalNodes:             len(regSnap.Nodes),
		ActiveNodes:            activeNodes,
		TotalAgents:            len(regSnap.Agents),
		TasksCompleted:         completed,
		TasksFailed:            failed,
		SuccessRate:            successRate,
		NetworkUtilization:     networkUtil,
		AverageResponseTimeSec: avgResponse,
		ThroughputPerMinute:    throughput,
	}
}

// throughputPerMinute tracks terminal-task count over a rolling minute
// window, resetting the window once it elapses.
func (a *Aggregator) throughputPerMinute(now time.Time, terminalCount int64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	elapsed := now.Sub(a.windowStart)
	if elapsed <= 0 {
		return 0
	}
	delta := terminalCount - a.windowCount
	rate := float64(delta) / elapsed.Minutes()

	if elapsed >= time.Minute {
		a.windowStart = now
		a.windowCount = terminalCount
	}
	return rate
}
