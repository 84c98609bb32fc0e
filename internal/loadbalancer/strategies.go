package loadbalancer

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/stevross-git/orchestrator/internal/domain"
)

// RoundRobin cycles through candidates in node_id order, independent of
// load or reliability.
type RoundRobin struct {
	counter uint64
}

func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (p *RoundRobin) Name() string { return "round_robin" }

func (p *RoundRobin) Select(candidates []*domain.Node) *domain.Node {
	if len(candidates) == 0 {
		return nil
	}
	i := atomic.AddUint64(&p.counter, 1) - 1
	return candidates[int(i)%len(candidates)]
}

// WeightedRoundRobin draws candidates with probability proportional to
// weight(n) = max((1-load_score)*reliability_score, 0.1), matching
// original_source/web4ai_orchestrator.py's node-selection formula. This
// is the default policy (spec.md §4.3).
type WeightedRoundRobin struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWeightedRoundRobin builds a policy seeded from seed; tests pass a
// fixed seed for determinism, production wiring seeds from time.
func NewWeightedRoundRobin(seed int64) *WeightedRoundRobin {
	return &WeightedRoundRobin{rng: rand.New(rand.NewSource(seed))}
}

func (p *WeightedRoundRobin) Name() string { return "weighted_round_robin" }

func (p *WeightedRoundRobin) Select(candidates []*domain.Node) *domain.Node {
	if len(candidates) == 0 {
		return nil
	}
	weights := make([]float64, len(candidates))
	total := 0.0
	for i, n := range candidates {
		weights[i] = weight(n)
		total += weights[i]
	}

	p.mu.Lock()
	draw := p.rng.Float64() * total
	p.mu.Unlock()

	acc := 0.0
	for i, w := range weights {
		acc += w
		if draw <= acc {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// LeastConnections minimizes agents_count + load_score, the cheapest
// proxy for "how busy is this node right now" available without a live
// connection count.
type LeastConnections struct{}

func NewLeastConnections() *LeastConnections { return &LeastConnections{} }

func (p *LeastConnections) Name() string { return "least_connections" }

func (p *LeastConnections) Select(candidates []*domain.Node) *domain.Node {
	return bestBy(candidates, func(n *domain.Node) float64 {
		return float64(n.AgentsCount) + n.LoadScore
	})
}

// ResourceAware maximizes the average remaining headroom across CPU,
// memory, and GPU. A node reporting zero GPU usage is treated as having
// full GPU headroom (no GPU contention to account for).
type ResourceAware struct{}

func NewResourceAware() *ResourceAware { return &ResourceAware{} }

func (p *ResourceAware) Name() string { return "resource_aware" }

func (p *ResourceAware) Select(candidates []*domain.Node) *domain.Node {
	return bestBy(candidates, func(n *domain.Node) float64 {
		gpuHeadroom := 1.0
		if n.GPUUsage > 0 {
			gpuHeadroom = 1 - n.GPUUsage/100
		}
		cpuHeadroom := 1 - n.CPUUsage/100
		memHeadroom := 1 - n.MemoryUsage/100
		return -(cpuHeadroom + memHeadroom + gpuHeadroom) / 3 // negate: bestBy minimizes
	})
}

// LatencyOptimized minimizes network_latency_ms, breaking ties on
// load_score.
type LatencyOptimized struct{}

func NewLatencyOptimized() *LatencyOptimized { return &LatencyOptimized{} }

func (p *LatencyOptimized) Name() string { return "latency_optimized" }

func (p *LatencyOptimized) Select(candidates []*domain.Node) *domain.Node {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, n := range candidates[1:] {
		if n.NetworkLatencyMS < best.NetworkLatencyMS ||
			(n.NetworkLatencyMS == best.NetworkLatencyMS && n.LoadScore < best.LoadScore) {
			best = n
		}
	}
	return best
}

// bestBy returns the candidate with the minimum score(n), breaking ties
// by the candidates' existing (node_id-sorted) order.
func bestBy(candidates []*domain.Node, score func(*domain.Node) float64) *domain.Node {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	bestScore := score(best)
	for _, n := range candidates[1:] {
		if s := score(n); s < bestScore {
			best, bestScore = n, s
		}
	}
	return best
}
