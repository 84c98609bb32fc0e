package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAppliesDocumentedDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.HeartbeatTimeout)
	assert.Equal(t, 3, cfg.Scheduler.MaxRetriesDefault)
	assert.Equal(t, "weighted_round_robin", cfg.Scheduler.LoadBalanceAlgorithm)
	assert.Equal(t, 0, cfg.Scheduler.PendingQueueSoftCap)
	assert.Equal(t, 24, cfg.Metrics.RetentionHours)
	assert.True(t, cfg.WebSocket.Enabled)
}

func TestLoadWithMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Listen, cfg.Listen)
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	contents := []byte("listen: \":9090\"\nscheduler:\n  max_retries_default: 7\n")
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, 7, cfg.Scheduler.MaxRetriesDefault)
	// Untouched fields still carry their defaults.
	assert.Equal(t, "weighted_round_robin", cfg.Scheduler.LoadBalanceAlgorithm)
}
