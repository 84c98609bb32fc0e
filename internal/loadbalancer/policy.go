// Package loadbalancer selects, among the nodes eligible for a task, the
// one (or N, for redundant dispatch) that should receive it. It never
// talks to the network; it operates purely on a registry.Snapshot plus a
// node's recent outcome history gathered via UpdatePerformance.
package loadbalancer

import (
	"math"
	"sort"

	"github.com/stevross-git/orchestrator/internal/domain"
)

// Policy picks a single node out of a pre-filtered, non-empty candidate
// slice. Implementations must be deterministic given the same candidates
// and internal state, except WeightedRoundRobin which draws from an
// injected source of randomness.
type Policy interface {
	Name() string
	Select(candidates []*domain.Node) *domain.Node
}

// Eligible filters nodes against a task's requirements per spec.md §4.3:
// the node must be Active, advertise every required capability, and have
// enough CPU/memory headroom and low enough load.
func Eligible(nodes []*domain.Node, req domain.Requirements) []*domain.Node {
	maxLoad := req.EffectiveMaxLoad()
	out := make([]*domain.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Status != domain.NodeActive {
			continue
		}
		if !n.HasCapabilities(req.Capabilities) {
			continue
		}
		cpuHeadroom := (100.0 - n.CPUUsage) / 100.0
		memHeadroom := (100.0 - n.MemoryUsage) / 100.0
		if cpuHeadroom < req.MinCPUHeadroom || memHeadroom < req.MinMemoryHeadroom {
			continue
		}
		if n.LoadScore > maxLoad {
			continue
		}
		out = append(out, n)
	}
	// Stable, deterministic ordering by node_id before any policy sees the
	// slice, so round-robin's index and tie-breaks are reproducible.
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// weight implements the (1-load)*reliability formula from spec.md §4.3
// and original_source/web4ai_orchestrator.py, floored at 0.1 so a node
// never reaches zero selection probability.
func weight(n *domain.Node) float64 {
	w := (1 - n.LoadScore) * n.ReliabilityScore
	return math.Max(w, 0.1)
}
