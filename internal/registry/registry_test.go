package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevross-git/orchestrator/internal/domain"
)

func TestRegisterNodeIdempotent(t *testing.T) {
	r := New(nil)
	spec := NodeSpec{NodeID: "n1", Host: "10.0.0.1", Port: 9000, Capabilities: []string{"cpu"}}

	n1, err := r.RegisterNode(spec)
	require.NoError(t, err)
	n2, err := r.RegisterNode(spec)
	require.NoError(t, err)

	assert.Equal(t, n1.NodeID, n2.NodeID)
	assert.Equal(t, 1, r.NodeCount())
	assert.Equal(t, domain.NodeActive, n2.Status)
}

func TestRegisterNodeRebindOnDifferentAddress(t *testing.T) {
	r := New(nil)
	_, err := r.RegisterNode(NodeSpec{NodeID: "n1", Host: "10.0.0.1", Port: 9000})
	require.NoError(t, err)

	rebound, err := r.RegisterNode(NodeSpec{NodeID: "n1", Host: "10.0.0.2", Port: 9001})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", rebound.Host)
	assert.Equal(t, 1, r.NodeCount())
}

func TestRegisterAgentUnknownNode(t *testing.T) {
	r := New(nil)
	_, err := r.RegisterAgent(AgentSpec{AgentID: "a1"}, "missing")
	require.Error(t, err)
}

func TestRegisterAgentBumpsAgentsCount(t *testing.T) {
	r := New(nil)
	_, err := r.RegisterNode(NodeSpec{NodeID: "n1", Host: "h", Port: 1})
	require.NoError(t, err)

	_, err = r.RegisterAgent(AgentSpec{AgentID: "a1"}, "n1")
	require.NoError(t, err)
	_, err = r.RegisterAgent(AgentSpec{AgentID: "a2"}, "n1")
	require.NoError(t, err)

	node, err := r.Get("n1")
	require.NoError(t, err)
	assert.Equal(t, 2, node.AgentsCount)
	assert.Len(t, r.AgentsForNode("n1"), 2)
}

func TestUnregisterNodeRemovesAgents(t *testing.T) {
	r := New(nil)
	_, err := r.RegisterNode(NodeSpec{NodeID: "n1", Host: "h", Port: 1})
	require.NoError(t, err)
	_, err = r.RegisterAgent(AgentSpec{AgentID: "a1"}, "n1")
	require.NoError(t, err)

	require.NoError(t, r.UnregisterNode("n1"))
	assert.Empty(t, r.AgentsForNode("n1"))
	_, err = r.Get("n1")
	assert.Error(t, err)
}

func TestUpdateHeartbeatUnknownNode(t *testing.T) {
	r := New(nil)
	err := r.UpdateHeartbeat("missing", HeartbeatMetrics{})
	require.Error(t, err)
}

func TestUpdateHeartbeatMonotonic(t *testing.T) {
	r := New(nil)
	_, err := r.RegisterNode(NodeSpec{NodeID: "n1", Host: "h", Port: 1})
	require.NoError(t, err)

	require.NoError(t, r.UpdateHeartbeat("n1", HeartbeatMetrics{LoadScore: 0.5}))
	first, _ := r.Get("n1")

	require.NoError(t, r.UpdateHeartbeat("n1", HeartbeatMetrics{LoadScore: 0.5}))
	second, _ := r.Get("n1")

	assert.False(t, second.LastHeartbeat.Before(first.LastHeartbeat))
}

func TestHeartbeatFromOfflineRevivesNode(t *testing.T) {
	r := New(nil)
	_, err := r.RegisterNode(NodeSpec{NodeID: "n1", Host: "h", Port: 1})
	require.NoError(t, err)
	require.NoError(t, r.SetStatus("n1", domain.NodeOffline))

	require.NoError(t, r.UpdateHeartbeat("n1", HeartbeatMetrics{}))
	node, _ := r.Get("n1")
	assert.Equal(t, domain.NodeActive, node.Status)
}

func TestLoadScoreClamped(t *testing.T) {
	r := New(nil)
	_, err := r.RegisterNode(NodeSpec{NodeID: "n1", Host: "h", Port: 1})
	require.NoError(t, err)

	require.NoError(t, r.UpdateHeartbeat("n1", HeartbeatMetrics{LoadScore: 5}))
	node, _ := r.Get("n1")
	assert.Equal(t, 1.0, node.LoadScore)

	require.NoError(t, r.UpdateHeartbeat("n1", HeartbeatMetrics{LoadScore: -5}))
	node, _ = r.Get("n1")
	assert.Equal(t, 0.0, node.LoadScore)
}

func TestMaintenanceNotOverriddenByHeartbeat(t *testing.T) {
	r := New(nil)
	_, err := r.RegisterNode(NodeSpec{NodeID: "n1", Host: "h", Port: 1})
	require.NoError(t, err)
	require.NoError(t, r.SetStatus("n1", domain.NodeMaintenance))

	require.NoError(t, r.UpdateHeartbeat("n1", HeartbeatMetrics{}))
	node, _ := r.Get("n1")
	assert.Equal(t, domain.NodeMaintenance, node.Status)
}

func TestAdjustReliabilityClamped(t *testing.T) {
	r := New(nil)
	_, err := r.RegisterNode(NodeSpec{NodeID: "n1", Host: "h", Port: 1})
	require.NoError(t, err)

	require.NoError(t, r.AdjustReliability("n1", 10))
	node, _ := r.Get("n1")
	assert.Equal(t, 1.0, node.ReliabilityScore)
}

func TestAdjustReliabilityFloorsAtPointOne(t *testing.T) {
	r := New(nil)
	_, err := r.RegisterNode(NodeSpec{NodeID: "n1", Host: "h", Port: 1})
	require.NoError(t, err)

	require.NoError(t, r.AdjustReliability("n1", -10))
	node, _ := r.Get("n1")
	assert.Equal(t, 0.1, node.ReliabilityScore)
}
