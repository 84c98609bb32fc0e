package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevross-git/orchestrator/internal/domain"
	"github.com/stevross-git/orchestrator/internal/faultdetector"
	"github.com/stevross-git/orchestrator/internal/loadbalancer"
	"github.com/stevross-git/orchestrator/internal/recovery"
	"github.com/stevross-git/orchestrator/internal/registry"
	"github.com/stevross-git/orchestrator/internal/taskstore"
)

type fakeExecutor struct {
	result domain.TaskResult
	err    error
}

func (f *fakeExecutor) Dispatch(ctx context.Context, node *domain.Node, task *domain.Task) (domain.TaskResult, error) {
	return f.result, f.err
}

func newTestEngine(t *testing.T, executor NodeExecutor) (*Engine, *registry.Registry, *taskstore.Store) {
	t.Helper()
	reg := registry.New(nil)
	store := taskstore.New(0)
	bal := loadbalancer.New(nil, 1)
	det := faultdetector.New(faultdetector.DefaultConfig())
	rec := recovery.New(store, nil)
	eng := New(DefaultConfig(), reg, store, bal, det, rec, executor, nil)
	return eng, reg, store
}

func TestTickDispatchesEligibleTaskToEligibleNode(t *testing.T) {
	executor := &fakeExecutor{result: domain.TaskResult{Success: true, ExecutionTime: 100 * time.Millisecond}}
	eng, reg, store := newTestEngine(t, executor)

	_, err := reg.RegisterNode(registry.NodeSpec{NodeID: "n1", Host: "localhost", Port: 9000})
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(&domain.Task{TaskID: "t1", Priority: domain.PriorityNormal, MaxRetries: 1}))

	eng.tick()

	assert.Eventually(t, func() bool {
		bucket, _, err := store.Get("t1")
		return err == nil && bucket == taskstore.BucketCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestTickLeavesTaskPendingWithNoEligibleNode(t *testing.T) {
	eng, _, store := newTestEngine(t, &fakeExecutor{})
	require.NoError(t, store.Enqueue(&domain.Task{TaskID: "t1", Priority: domain.PriorityNormal, MaxRetries: 1}))

	eng.tick()

	bucket, _, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, taskstore.BucketPending, bucket)
}

func TestReportTaskResultRetriesTransientFailureWithinBudget(t *testing.T) {
	eng, reg, store := newTestEngine(t, &fakeExecutor{})
	_, err := reg.RegisterNode(registry.NodeSpec{NodeID: "n1", Host: "h", Port: 1})
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(&domain.Task{TaskID: "t1", Priority: domain.PriorityNormal, MaxRetries: 2}))
	task := store.TakeNext()
	require.NoError(t, store.Promote(task, []string{"n1"}))

	eng.ReportTaskResult("t1", domain.TaskResult{NodeID: "n1", Transient: true, ErrorMessage: "boom"})

	bucket, got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, taskstore.BucketPending, bucket)
	assert.Equal(t, 1, got.RetryCount)
}

func TestReportTaskResultFailsPermanentlyAtMaxRetries(t *testing.T) {
	eng, reg, store := newTestEngine(t, &fakeExecutor{})
	_, err := reg.RegisterNode(registry.NodeSpec{NodeID: "n1", Host: "h", Port: 1})
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(&domain.Task{TaskID: "t1", Priority: domain.PriorityNormal, MaxRetries: 0}))
	task := store.TakeNext()
	require.NoError(t, store.Promote(task, []string{"n1"}))

	eng.ReportTaskResult("t1", domain.TaskResult{NodeID: "n1", Transient: true, ErrorMessage: "boom"})

	bucket, _, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, taskstore.BucketFailed, bucket)
}

func TestReportTaskResultFirstReportWinsUnderRedundancy(t *testing.T) {
	eng, reg, store := newTestEngine(t, &fakeExecutor{})
	for _, id := range []string{"n1", "n2"} {
		_, err := reg.RegisterNode(registry.NodeSpec{NodeID: id, Host: "h", Port: 1})
		require.NoError(t, err)
	}
	require.NoError(t, store.Enqueue(&domain.Task{TaskID: "t1", Priority: domain.PriorityNormal, MaxRetries: 1}))
	task := store.TakeNext()
	require.NoError(t, store.Promote(task, []string{"n1", "n2"}))

	eng.ReportTaskResult("t1", domain.TaskResult{NodeID: "n1", Success: true})
	eng.ReportTaskResult("t1", domain.TaskResult{NodeID: "n2", Success: false, ErrorMessage: "late failure"})

	bucket, got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, taskstore.BucketCompleted, bucket)
	assert.Equal(t, "n1", got.NodeID)
}

func TestStartStopIsIdempotentAndClean(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeExecutor{})
	require.NoError(t, eng.Start(context.Background()))
	err := eng.Start(context.Background())
	assert.Error(t, err)
	eng.Stop()
	eng.Stop() // second Stop must be a no-op, not a panic
}
