package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveMaxLoadDefaultsWhenUnset(t *testing.T) {
	r := Requirements{}
	assert.Equal(t, DefaultMaxLoad, r.EffectiveMaxLoad())

	r.MaxLoad = 0.5
	assert.Equal(t, 0.5, r.EffectiveMaxLoad())
}

func TestMarkReportedFirstCallWinsThenAlwaysFalse(t *testing.T) {
	task := &Task{TaskID: "t1"}

	assert.True(t, task.MarkReported("node-a"))
	assert.False(t, task.MarkReported("node-a"))
	assert.False(t, task.MarkReported("node-b"))
}

func TestTaskCloneIsIndependentOfOriginal(t *testing.T) {
	original := &Task{
		TaskID:        "t1",
		Requirements:  Requirements{Capabilities: []string{"gpu"}},
		AssignedNodes: []string{"node-a"},
		Metadata:      map[string]any{"k": "v"},
	}

	clone := original.Clone()
	require.NotNil(t, clone)

	clone.Requirements.Capabilities[0] = "cpu"
	clone.AssignedNodes[0] = "node-b"
	clone.Metadata["k"] = "changed"

	assert.Equal(t, "gpu", original.Requirements.Capabilities[0])
	assert.Equal(t, "node-a", original.AssignedNodes[0])
	assert.Equal(t, "v", original.Metadata["k"])
}

func TestPrioritiesAreInScheduleOrder(t *testing.T) {
	require.Equal(t, []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow, PriorityBackground}, Priorities)
}
