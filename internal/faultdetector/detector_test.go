package faultdetector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stevross-git/orchestrator/internal/domain"
)

func cfg() Config {
	return Config{HeartbeatTimeout: 30 * time.Second, DegradeAfterFailures: 3, FailureWindow: 5 * time.Minute}
}

func TestIsFailedAfterHeartbeatTimeout(t *testing.T) {
	d := New(cfg())
	now := time.Now()
	node := &domain.Node{Status: domain.NodeActive, LastHeartbeat: now.Add(-31 * time.Second)}
	assert.True(t, d.IsFailed(node, now))
}

func TestIsFailedFalseWithinTimeout(t *testing.T) {
	d := New(cfg())
	now := time.Now()
	node := &domain.Node{Status: domain.NodeActive, LastHeartbeat: now.Add(-5 * time.Second)}
	assert.False(t, d.IsFailed(node, now))
}

func TestMaintenanceNodeNeverReportsFailed(t *testing.T) {
	d := New(cfg())
	now := time.Now()
	node := &domain.Node{Status: domain.NodeMaintenance, LastHeartbeat: now.Add(-time.Hour)}
	assert.False(t, d.IsFailed(node, now))
}

func TestShouldDegradeAtThreeFailuresInFiveMinutes(t *testing.T) {
	d := New(cfg())
	now := time.Now()
	d.RecordFailure("n1", now)
	d.RecordFailure("n1", now.Add(time.Minute))
	assert.False(t, d.ShouldDegrade("n1", now.Add(2*time.Minute)))
	d.RecordFailure("n1", now.Add(2*time.Minute))
	assert.True(t, d.ShouldDegrade("n1", now.Add(2*time.Minute)))
}

func TestFailuresOutsideWindowAreNotCounted(t *testing.T) {
	d := New(cfg())
	now := time.Now()
	d.RecordFailure("n1", now)
	d.RecordFailure("n1", now.Add(time.Minute))
	d.RecordFailure("n1", now.Add(2*time.Minute))
	later := now.Add(10 * time.Minute)
	assert.Equal(t, 0, d.FailureRate("n1", later))
}

func TestEvaluateRecommendsOfflineOnTimeout(t *testing.T) {
	d := New(cfg())
	now := time.Now()
	nodes := []*domain.Node{{NodeID: "n1", Status: domain.NodeActive, LastHeartbeat: now.Add(-time.Hour)}}
	transitions := d.Evaluate(nodes, now)
	if assert.Len(t, transitions, 1) {
		assert.Equal(t, domain.NodeOffline, transitions[0].To)
	}
}

func TestEvaluateRecommendsDegradedOnFailureThreshold(t *testing.T) {
	d := New(cfg())
	now := time.Now()
	for i := 0; i < 3; i++ {
		d.RecordFailure("n1", now)
	}
	nodes := []*domain.Node{{NodeID: "n1", Status: domain.NodeActive, LastHeartbeat: now}}
	transitions := d.Evaluate(nodes, now)
	if assert.Len(t, transitions, 1) {
		assert.Equal(t, domain.NodeDegraded, transitions[0].To)
	}
}

func TestResetClearsFailureHistory(t *testing.T) {
	d := New(cfg())
	now := time.Now()
	d.RecordFailure("n1", now)
	d.Reset("n1")
	assert.Equal(t, 0, d.FailureRate("n1", now))
}
