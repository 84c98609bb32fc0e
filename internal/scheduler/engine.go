// Package scheduler runs the orchestrator's central dispatch loop: pull
// the next pending task, find it eligible nodes, hand it to the load
// balancer, dispatch, and fold the result back into the task store and
// registry (spec.md §4.5).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stevross-git/orchestrator/internal/domain"
	"github.com/stevross-git/orchestrator/internal/faultdetector"
	"github.com/stevross-git/orchestrator/internal/loadbalancer"
	"github.com/stevross-git/orchestrator/internal/logging"
	"github.com/stevross-git/orchestrator/internal/orcherr"
	"github.com/stevross-git/orchestrator/internal/recovery"
	"github.com/stevross-git/orchestrator/internal/registry"
	"github.com/stevross-git/orchestrator/internal/taskstore"
)

// Config tunes the engine's background loops.
type Config struct {
	PollInterval    time.Duration
	SweepInterval   time.Duration
	DispatchTimeout time.Duration
	DefaultPolicy   string
}

// DefaultConfig matches spec.md §4.5's recommended cadence.
func DefaultConfig() Config {
	return Config{
		PollInterval:    200 * time.Millisecond,
		SweepInterval:   5 * time.Second,
		DispatchTimeout: 10 * time.Second,
	}
}

// Engine is the scheduler's top-level handle: Start launches its
// background goroutines, Stop cancels them and waits for exit.
type Engine struct {
	cfg      Config
	registry *registry.Registry
	store    *taskstore.Store
	balancer *loadbalancer.Balancer
	detector *faultdetector.Detector
	recovery *recovery.Manager
	executor NodeExecutor
	log      *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New wires an Engine from its collaborators. executor is nil-able only
// in tests that never call Start.
func New(cfg Config, reg *registry.Registry, store *taskstore.Store, bal *loadbalancer.Balancer, det *faultdetector.Detector, rec *recovery.Manager, executor NodeExecutor, logger *logrus.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: reg,
		store:    store,
		balancer: bal,
		detector: det,
		recovery: rec,
		executor: executor,
		log:      logging.Component(logger, "scheduler"),
	}
}

// Start launches the dispatch loop, the timeout sweeper, and the
// heartbeat/fault-detector monitor as cancellable goroutines.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return orcherr.New(orcherr.Conflict, "scheduler already running")
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.running = true

	e.wg.Add(3)
	go e.dispatchLoop()
	go e.sweepLoop()
	go e.monitorLoop()

	e.log.Info("scheduler started")
	return nil
}

// Stop cancels every background loop and waits for them to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.log.Info("scheduler stopped")
}

func (e *Engine) dispatchLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick implements the per-cycle scheduling algorithm of spec.md §4.5:
// peek the highest-priority pending task, find it eligible nodes, select
// up to N=max(1, Redundancy) of them, promote the task to active, and dispatch to
// each assigned node concurrently. A task with no eligible node is left
// pending for the next tick.
func (e *Engine) tick() {
	peeked := e.store.PeekNext()
	if peeked == nil {
		return
	}

	snapshot := e.registry.Snapshot()
	want := peeked.Requirements.Redundancy // SelectN treats values below 1 as 1
	assigned, err := e.balancer.SelectN(snapshot.Nodes, peeked.Requirements, "", want)
	if err != nil || len(assigned) == 0 {
		return // stays pending; next tick (or a registry change) may unblock it
	}

	task := e.store.TakeNext()
	if task == nil || task.TaskID != peeked.TaskID {
		// Another goroutine already took it (shouldn't happen with a
		// single dispatch loop, but TakeNext is the source of truth).
		if task != nil {
			_ = e.store.ReturnToPending(task.TaskID)
		}
		return
	}

	nodeIDs := make([]string, len(assigned))
	for i, n := range assigned {
		nodeIDs[i] = n.NodeID
	}
	if err := e.store.Promote(task, nodeIDs); err != nil {
		e.log.WithError(err).WithField("task_id", task.TaskID).Error("failed to promote task")
		return
	}

	for _, node := range assigned {
		go e.dispatch(task, node)
	}
}

func (e *Engine) dispatch(task *domain.Task, node *domain.Node) {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.DispatchTimeout)
	defer cancel()

	result, err := e.executor.Dispatch(ctx, node, task)
	result.NodeID = node.NodeID
	if err != nil {
		result.Success = false
		if result.ErrorMessage == "" {
			result.ErrorMessage = err.Error()
		}
		e.detector.RecordFailure(node.NodeID, time.Now())
	}

	e.ReportTaskResult(task.TaskID, result)
}

// ReportTaskResult folds a node's dispatch outcome back into the task
// store and registry. Under redundant dispatch (Requirements.Redundancy >
// 1), the first report to arrive decides the task's terminal state;
// later reports for the same task only update the reporting node's own
// counters and reliability score (spec.md §9).
func (e *Engine) ReportTaskResult(taskID string, result domain.TaskResult) {
	first, err := e.store.MarkReported(taskID, result.NodeID)
	if err != nil {
		// Task already terminal (e.g. evicted or completed by another
		// report); still record the node's own outcome below.
		first = false
	}

	if result.NodeID != "" {
		_ = e.registry.RecordTaskOutcome(result.NodeID, result.Success)
		delta := e.balancer.UpdatePerformance(result.NodeID, result.Success)
		_ = e.registry.AdjustReliability(result.NodeID, delta)
	}

	if !first {
		if result.NodeID != "" {
			_ = e.store.RemoveAssignedNode(taskID, result.NodeID)
		}
		return
	}

	if result.Success {
		_ = e.store.Complete(taskID, result)
		return
	}

	_, task, getErr := e.store.Get(taskID)
	if getErr == nil && result.Transient && task.RetryCount < task.MaxRetries {
		if retryErr := e.store.ReturnToPending(taskID); retryErr == nil {
			return
		}
	}
	_ = e.store.Fail(taskID, result)
}

func (e *Engine) sweepLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.sweepTimeouts()
		}
	}
}

// sweepTimeouts fails, without retry, any active task whose deadline (derived
// from TimeoutSec at submission, or an explicit Deadline) has passed
// without a report.
func (e *Engine) sweepTimeouts() {
	now := time.Now()
	for _, task := range e.store.ActiveTasks() {
		deadline := task.Deadline
		if deadline == nil && task.TimeoutSec > 0 {
			d := task.CreatedAt.Add(time.Duration(task.TimeoutSec) * time.Second)
			deadline = &d
		}
		if deadline == nil || now.Before(*deadline) {
			continue
		}
		for _, nodeID := range task.AssignedNodes {
			e.detector.RecordFailure(nodeID, now)
		}
		// A deadline-exceeded task fails immediately with no retry,
		// unlike a transient dispatch failure (spec.md §4.5, §7).
		e.ReportTaskResult(task.TaskID, domain.TaskResult{
			ErrorMessage: "Timeout",
			Transient:    false,
		})
	}
}

func (e *Engine) monitorLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.runHealthCheck()
		}
	}
}

// runHealthCheck snapshots the registry first and applies the fault
// detector's recommended transitions second, so it never holds the
// registry lock and the task store lock simultaneously (spec.md §5).
func (e *Engine) runHealthCheck() {
	snapshot := e.registry.Snapshot()
	now := time.Now()
	for _, t := range e.detector.Evaluate(snapshot.Nodes, now) {
		if err := e.registry.SetStatus(t.NodeID, t.To); err != nil {
			e.log.WithError(err).WithField("node_id", t.NodeID).Warn("failed to apply status transition")
			continue
		}
		e.log.WithFields(logrus.Fields{"node_id": t.NodeID, "from": t.From, "to": t.To}).Info("node status transition")

		if t.To == domain.NodeOffline && e.recovery != nil {
			e.recovery.HandleNodeOffline(t.NodeID)
		}
	}
}
