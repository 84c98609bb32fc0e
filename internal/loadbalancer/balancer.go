package loadbalancer

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/stevross-git/orchestrator/internal/domain"
	"github.com/stevross-git/orchestrator/internal/logging"
	"github.com/stevross-git/orchestrator/internal/orcherr"
)

// outcomeHistoryLimit bounds the per-node recent-outcome ring used to
// derive a short-term failure signal independent of the fault detector's
// longer window, per spec.md §4.3's "last 100 outcomes per node".
const outcomeHistoryLimit = 100

// Balancer wraps the registered Policy implementations and per-node
// outcome bookkeeping used to adjust registry.ReliabilityScore.
type Balancer struct {
	mu            sync.Mutex
	policies      map[string]Policy
	defaultPolicy string
	outcomes      map[string][]bool
	log           *logrus.Entry
}

// New builds a Balancer with the five policies named in spec.md §4.3
// registered, defaulting to weighted_round_robin.
func New(logger *logrus.Logger, seed int64) *Balancer {
	b := &Balancer{
		policies:      make(map[string]Policy),
		defaultPolicy: "weighted_round_robin",
		outcomes:      make(map[string][]bool),
		log:           logging.Component(logger, "loadbalancer"),
	}
	for _, p := range []Policy{
		NewRoundRobin(),
		NewWeightedRoundRobin(seed),
		NewLeastConnections(),
		NewResourceAware(),
		NewLatencyOptimized(),
	} {
		b.policies[p.Name()] = p
	}
	return b
}

// SetDefault changes which registered policy Select uses when policyName
// is empty.
func (b *Balancer) SetDefault(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.policies[name]; !ok {
		return orcherr.New(orcherr.InvalidInput, "unknown load balancing policy %q", name)
	}
	b.defaultPolicy = name
	return nil
}

// Select returns the single best node for task req out of nodes, using
// policyName (or the configured default if empty). Returns
// orcherr.NodeFailure if no node is eligible.
func (b *Balancer) Select(nodes []*domain.Node, req domain.Requirements, policyName string) (*domain.Node, error) {
	picked, err := b.SelectN(nodes, req, policyName, 1)
	if err != nil {
		return nil, err
	}
	return picked[0], nil
}

// SelectN returns up to n distinct eligible nodes for redundant dispatch
// (spec.md §4.3's Requirements.Redundancy), chosen by successive policy
// draws from the shrinking eligible set. Returns orcherr.NodeFailure if
// zero nodes are eligible; returns fewer than n nodes (with no error) if
// fewer than n are eligible.
func (b *Balancer) SelectN(nodes []*domain.Node, req domain.Requirements, policyName string, n int) ([]*domain.Node, error) {
	if n < 1 {
		n = 1
	}
	candidates := Eligible(nodes, req)
	if len(candidates) == 0 {
		return nil, orcherr.New(orcherr.NodeFailure, "no eligible node for task requirements")
	}

	b.mu.Lock()
	policy := b.policies[policyName]
	if policy == nil {
		policy = b.policies[b.defaultPolicy]
	}
	b.mu.Unlock()

	var picked []*domain.Node
	remaining := append([]*domain.Node(nil), candidates...)
	for i := 0; i < n && len(remaining) > 0; i++ {
		chosen := policy.Select(remaining)
		if chosen == nil {
			break
		}
		picked = append(picked, chosen)
		remaining = removeNode(remaining, chosen.NodeID)
	}
	return picked, nil
}

func removeNode(nodes []*domain.Node, nodeID string) []*domain.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.NodeID != nodeID {
			out = append(out, n)
		}
	}
	return out
}

// UpdatePerformance records a task outcome for nodeID and returns the
// reliability_score delta the caller (the recovery/outcome path) should
// apply via registry.AdjustReliability: +0.1 toward 1.0 on success, -0.1
// on failure (floored at 0.1 by the registry), per spec.md §4.3.
func (b *Balancer) UpdatePerformance(nodeID string, success bool) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	hist := append(b.outcomes[nodeID], success)
	if len(hist) > outcomeHistoryLimit {
		hist = hist[len(hist)-outcomeHistoryLimit:]
	}
	b.outcomes[nodeID] = hist

	if success {
		return 0.1
	}
	return -0.1
}

// RecentFailureRate returns the fraction of failures in nodeID's bounded
// outcome history, or 0 if no outcomes have been recorded yet.
func (b *Balancer) RecentFailureRate(nodeID string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	hist := b.outcomes[nodeID]
	if len(hist) == 0 {
		return 0
	}
	failures := 0
	for _, ok := range hist {
		if !ok {
			failures++
		}
	}
	return float64(failures) / float64(len(hist))
}

// Policies lists the registered policy names, sorted for stable display.
func (b *Balancer) Policies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.policies))
	for name := range b.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
