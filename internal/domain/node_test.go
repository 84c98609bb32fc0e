package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCapabilitiesRequiresEveryWantedCapability(t *testing.T) {
	n := &Node{Capabilities: []string{"gpu", "vision"}}

	assert.True(t, n.HasCapabilities(nil))
	assert.True(t, n.HasCapabilities([]string{"gpu"}))
	assert.True(t, n.HasCapabilities([]string{"gpu", "vision"}))
	assert.False(t, n.HasCapabilities([]string{"gpu", "audio"}))
}

func TestNodeCloneIsIndependentOfOriginal(t *testing.T) {
	original := &Node{
		NodeID:       "n1",
		Capabilities: []string{"gpu"},
		Metadata:     map[string]any{"rack": "a1"},
	}

	clone := original.Clone()
	require.NotNil(t, clone)

	clone.Capabilities[0] = "cpu"
	clone.Metadata["rack"] = "b2"

	assert.Equal(t, "gpu", original.Capabilities[0])
	assert.Equal(t, "a1", original.Metadata["rack"])
}

func TestNodeCloneOfNilIsNil(t *testing.T) {
	var n *Node
	assert.Nil(t, n.Clone())
}

func TestAgentCloneIsIndependentOfOriginal(t *testing.T) {
	original := &Agent{
		AgentID:           "a1",
		Capabilities:      []string{"summarize"},
		SpecializedModels: []string{"llama"},
		ResourceUsage:     map[string]float64{"cpu": 0.5},
	}

	clone := original.Clone()
	require.NotNil(t, clone)

	clone.Capabilities[0] = "translate"
	clone.ResourceUsage["cpu"] = 0.9

	assert.Equal(t, "summarize", original.Capabilities[0])
	assert.Equal(t, 0.5, original.ResourceUsage["cpu"])
}
