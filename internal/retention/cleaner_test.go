package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevross-git/orchestrator/internal/domain"
	"github.com/stevross-git/orchestrator/internal/taskstore"
)

func TestSweepEvictsPastRetentionWindow(t *testing.T) {
	store := taskstore.New(0)
	require.NoError(t, store.Enqueue(&domain.Task{TaskID: "t1", Priority: domain.PriorityNormal}))
	task := store.TakeNext()
	require.NoError(t, store.Promote(task, nil))
	require.NoError(t, store.Complete("t1", domain.TaskResult{}))

	c := New(Config{Interval: time.Hour, RetentionWindow: -time.Second}, store, nil)
	c.sweep()

	assert.Equal(t, 0, store.Counts().Completed)
}

func TestStartStopCleansUpGoroutine(t *testing.T) {
	store := taskstore.New(0)
	c := New(Config{Interval: 10 * time.Millisecond, RetentionWindow: time.Hour}, store, nil)
	c.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	c.Stop()
}
