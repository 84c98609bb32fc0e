package loadbalancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevross-git/orchestrator/internal/domain"
)

func activeNode(id string, load, reliability float64) *domain.Node {
	return &domain.Node{
		NodeID:           id,
		Status:           domain.NodeActive,
		LoadScore:        load,
		ReliabilityScore: reliability,
	}
}

func TestEligibleFiltersByStatusAndCapability(t *testing.T) {
	gpuNode := activeNode("a", 0.1, 1)
	gpuNode.Capabilities = []string{"gpu"}
	nodes := []*domain.Node{
		gpuNode,
		{NodeID: "b", Status: domain.NodeOffline},
		{NodeID: "c", Status: domain.NodeActive, Capabilities: []string{"cpu"}},
	}
	req := domain.Requirements{Capabilities: []string{"gpu"}}
	got := Eligible(nodes, req)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].NodeID)
}

func TestEligibleFiltersByLoadAndHeadroom(t *testing.T) {
	nodes := []*domain.Node{
		{NodeID: "a", Status: domain.NodeActive, LoadScore: 0.95, CPUUsage: 10, MemoryUsage: 10},
		{NodeID: "b", Status: domain.NodeActive, LoadScore: 0.2, CPUUsage: 99, MemoryUsage: 10},
	}
	req := domain.Requirements{MinCPUHeadroom: 0.5}
	got := Eligible(nodes, req)
	assert.Empty(t, got)
}

func TestRoundRobinCyclesDeterministically(t *testing.T) {
	p := NewRoundRobin()
	candidates := []*domain.Node{activeNode("a", 0, 1), activeNode("b", 0, 1)}
	first := p.Select(candidates)
	second := p.Select(candidates)
	third := p.Select(candidates)
	assert.NotEqual(t, first.NodeID, second.NodeID)
	assert.Equal(t, first.NodeID, third.NodeID)
}

func TestLeastConnectionsPrefersFewestAgentsAndLoad(t *testing.T) {
	p := NewLeastConnections()
	busy := activeNode("busy", 0.8, 1)
	busy.AgentsCount = 5
	idle := activeNode("idle", 0.1, 1)
	idle.AgentsCount = 0
	got := p.Select([]*domain.Node{busy, idle})
	assert.Equal(t, "idle", got.NodeID)
}

func TestResourceAwarePrefersMostHeadroom(t *testing.T) {
	p := NewResourceAware()
	loaded := &domain.Node{NodeID: "loaded", Status: domain.NodeActive, CPUUsage: 90, MemoryUsage: 90}
	fresh := &domain.Node{NodeID: "fresh", Status: domain.NodeActive, CPUUsage: 5, MemoryUsage: 5}
	got := p.Select([]*domain.Node{loaded, fresh})
	assert.Equal(t, "fresh", got.NodeID)
}

func TestLatencyOptimizedPrefersLowestLatencyThenLoad(t *testing.T) {
	p := NewLatencyOptimized()
	slow := &domain.Node{NodeID: "slow", NetworkLatencyMS: 100}
	fast := &domain.Node{NodeID: "fast", NetworkLatencyMS: 10}
	got := p.Select([]*domain.Node{slow, fast})
	assert.Equal(t, "fast", got.NodeID)
}

func TestWeightedRoundRobinIsDeterministicForFixedSeed(t *testing.T) {
	p1 := NewWeightedRoundRobin(42)
	p2 := NewWeightedRoundRobin(42)
	candidates := []*domain.Node{
		activeNode("a", 0.1, 0.9),
		activeNode("b", 0.5, 0.5),
		activeNode("c", 0.9, 0.2),
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, p1.Select(candidates).NodeID, p2.Select(candidates).NodeID)
	}
}

func TestSelectReturnsNodeFailureWhenNoneEligible(t *testing.T) {
	b := New(nil, 1)
	_, err := b.Select(nil, domain.Requirements{}, "")
	require.Error(t, err)
}

func TestSelectNReturnsDistinctNodesForRedundancy(t *testing.T) {
	b := New(nil, 1)
	nodes := []*domain.Node{
		activeNode("a", 0.1, 1),
		activeNode("b", 0.2, 1),
		activeNode("c", 0.3, 1),
	}
	picked, err := b.SelectN(nodes, domain.Requirements{}, "round_robin", 2)
	require.NoError(t, err)
	require.Len(t, picked, 2)
	assert.NotEqual(t, picked[0].NodeID, picked[1].NodeID)
}

func TestUpdatePerformanceTracksFailureRate(t *testing.T) {
	b := New(nil, 1)
	delta := b.UpdatePerformance("n1", true)
	assert.Equal(t, 0.1, delta)
	delta = b.UpdatePerformance("n1", false)
	assert.Equal(t, -0.1, delta)
	assert.InDelta(t, 0.5, b.RecentFailureRate("n1"), 0.001)
}

func TestUpdatePerformanceBoundsHistoryAt100(t *testing.T) {
	b := New(nil, 1)
	for i := 0; i < 150; i++ {
		b.UpdatePerformance("n1", false)
	}
	b.UpdatePerformance("n1", true)
	// Only the last 100 outcomes are retained, so one success among 99
	// failures yields a failure rate of 0.99, not 150/151.
	assert.InDelta(t, 0.99, b.RecentFailureRate("n1"), 0.001)
}

func TestSetDefaultRejectsUnknownPolicy(t *testing.T) {
	b := New(nil, 1)
	err := b.SetDefault("does_not_exist")
	require.Error(t, err)
}
