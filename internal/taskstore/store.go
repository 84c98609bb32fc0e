// Package taskstore holds and indexes tasks across the pending, active,
// completed, and failed lifecycle buckets described in spec.md §4.2.
package taskstore

import (
	"sync"
	"time"

	"github.com/stevross-git/orchestrator/internal/domain"
	"github.com/stevross-git/orchestrator/internal/orcherr"
)

// Bucket identifies which lifecycle set a task currently belongs to.
type Bucket string

const (
	BucketPending   Bucket = "pending"
	BucketActive    Bucket = "active"
	BucketCompleted Bucket = "completed"
	BucketFailed    Bucket = "failed"
)

// historyLimit bounds the completed-task ring the metrics aggregator reads
// for its average-response-time window (spec.md §4.7, K=100).
const historyLimit = 100

// Store is the concurrency-safe home of every task, exclusive across
// exactly one of its four buckets at a time.
type Store struct {
	mu sync.RWMutex

	pending   *priorityQueue
	active    map[string]*domain.Task
	completed map[string]*domain.Task
	failed    map[string]*domain.Task

	history []*domain.Task // bounded ring of recently completed tasks

	softCap int // 0 = unbounded
}

// New creates an empty Store. softCap, if > 0, is the pending-queue soft
// cap beyond which Enqueue returns a QueueFull error (spec.md §5).
func New(softCap int) *Store {
	return &Store{
		pending:   newPriorityQueue(),
		active:    make(map[string]*domain.Task),
		completed: make(map[string]*domain.Task),
		failed:    make(map[string]*domain.Task),
		softCap:   softCap,
	}
}

// Enqueue appends t to the pending queue's FIFO band for its priority.
func (s *Store) Enqueue(t *domain.Task) error {
	if t == nil || t.TaskID == "" {
		return orcherr.New(orcherr.InvalidInput, "task must have a task_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique(t.TaskID); err != nil {
		return err
	}
	if s.softCap > 0 && s.pending.Len() >= s.softCap {
		return orcherr.New(orcherr.QueueFull, "pending queue at capacity (%d)", s.softCap).WithTask(t.TaskID)
	}

	t.Status = domain.TaskPending
	s.pending.PushBack(t)
	return nil
}

// checkUnique must be called with mu held.
func (s *Store) checkUnique(taskID string) error {
	if _, ok := s.active[taskID]; ok {
		return orcherr.New(orcherr.Conflict, "task %q already exists", taskID).WithTask(taskID)
	}
	if _, ok := s.completed[taskID]; ok {
		return orcherr.New(orcherr.Conflict, "task %q already exists", taskID).WithTask(taskID)
	}
	if _, ok := s.failed[taskID]; ok {
		return orcherr.New(orcherr.Conflict, "task %q already exists", taskID).WithTask(taskID)
	}
	if el := s.pending.PeekHead(); el != nil && el.TaskID == taskID {
		return orcherr.New(orcherr.Conflict, "task %q already exists", taskID).WithTask(taskID)
	}
	return nil
}

// PeekNext returns the highest-priority pending task without removing it.
func (s *Store) PeekNext() *domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.pending.PeekHead(); t != nil {
		return t.Clone()
	}
	return nil
}

// PendingLen returns the total number of pending tasks.
func (s *Store) PendingLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending.Len()
}

// TakeNext removes and returns the highest-priority pending task, or nil if
// the pending queue is empty.
func (s *Store) TakeNext() *domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.TakeNext()
}

// Promote moves taskID from pending to active, stamping assignedNodes. The
// task must already have been removed from pending via TakeNext by the
// caller (the scheduler does TakeNext immediately followed by Promote so
// the two are atomic with respect to the store's lock).
func (s *Store) Promote(t *domain.Task, assignedNodes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[t.TaskID]; ok {
		return orcherr.New(orcherr.Conflict, "task %q already active", t.TaskID).WithTask(t.TaskID)
	}

	t.Status = domain.TaskActive
	t.AssignedNodes = append([]string(nil), assignedNodes...)
	s.active[t.TaskID] = t
	return nil
}

// ReturnToPending moves an active task back to pending, incrementing
// retry_count and re-inserting at the front of its priority band. The
// caller is responsible for checking the retry budget first.
func (s *Store) ReturnToPending(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.active[taskID]
	if !ok {
		return orcherr.NotFound("task", taskID)
	}
	delete(s.active, taskID)

	t.RetryCount++
	t.Status = domain.TaskPending
	s.pending.PushFront(t)
	return nil
}

// Complete moves an active task to the completed bucket.
func (s *Store) Complete(taskID string, result domain.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.active[taskID]
	if !ok {
		return orcherr.New(orcherr.Conflict, "task %q is not active", taskID).WithTask(taskID)
	}
	delete(s.active, taskID)

	now := time.Now()
	t.Status = domain.TaskCompleted
	t.ResultData = result.ResultData
	t.ErrorMessage = ""
	t.ExecutionTime = result.ExecutionTime
	t.NodeID = result.NodeID
	t.AgentID = result.AgentID
	t.CompletedAt = &now

	s.completed[taskID] = t
	s.pushHistory(t)
	return nil
}

// Fail moves an active task to the failed bucket.
func (s *Store) Fail(taskID string, result domain.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.active[taskID]
	if !ok {
		return orcherr.New(orcherr.Conflict, "task %q is not active", taskID).WithTask(taskID)
	}
	delete(s.active, taskID)

	now := time.Now()
	t.Status = domain.TaskFailed
	t.ResultData = nil
	t.ErrorMessage = result.ErrorMessage
	t.ExecutionTime = result.ExecutionTime
	t.NodeID = result.NodeID
	t.AgentID = result.AgentID
	t.CompletedAt = &now

	s.failed[taskID] = t
	return nil
}

func (s *Store) pushHistory(t *domain.Task) {
	s.history = append(s.history, t)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
}

// History returns clones of the last K completed tasks, newest last.
func (s *Store) History() []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Task, len(s.history))
	for i, t := range s.history {
		out[i] = t.Clone()
	}
	return out
}

// Get returns the bucket and a clone of the task, searching active then
// pending then the terminal buckets.
func (s *Store) Get(taskID string) (Bucket, *domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.active[taskID]; ok {
		return BucketActive, t.Clone(), nil
	}
	if t, ok := s.completed[taskID]; ok {
		return BucketCompleted, t.Clone(), nil
	}
	if t, ok := s.failed[taskID]; ok {
		return BucketFailed, t.Clone(), nil
	}
	for _, p := range domain.Priorities {
		for el := s.pending.bands[p].Front(); el != nil; el = el.Next() {
			if t := el.Value.(*domain.Task); t.TaskID == taskID {
				return BucketPending, t.Clone(), nil
			}
		}
	}
	return "", nil, orcherr.NotFound("task", taskID)
}

// ActiveTasksOnNode returns clones of every active task whose
// AssignedNodes includes nodeID — used by the recovery manager.
func (s *Store) ActiveTasksOnNode(nodeID string) []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Task
	for _, t := range s.active {
		for _, n := range t.AssignedNodes {
			if n == nodeID {
				out = append(out, t.Clone())
				break
			}
		}
	}
	return out
}

// RemoveAssignedNode drops nodeID from taskID's AssignedNodes in place
// (used when a node fails but the task may still succeed via another
// redundant assignment).
func (s *Store) RemoveAssignedNode(taskID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.active[taskID]
	if !ok {
		return orcherr.NotFound("task", taskID)
	}
	kept := t.AssignedNodes[:0]
	for _, n := range t.AssignedNodes {
		if n != nodeID {
			kept = append(kept, n)
		}
	}
	t.AssignedNodes = kept
	return nil
}

// MarkReported records a redundant-dispatch report for taskID/nodeID,
// returning true if this is the first report for the task.
func (s *Store) MarkReported(taskID, nodeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.active[taskID]
	if !ok {
		return false, orcherr.NotFound("task", taskID)
	}
	return t.MarkReported(nodeID), nil
}

// Counts returns the size of every bucket.
type Counts struct {
	Pending, Active, Completed, Failed int
}

// Counts reports the current size of every bucket.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Pending:   s.pending.Len(),
		Active:    len(s.active),
		Completed: len(s.completed),
		Failed:    len(s.failed),
	}
}

// ActiveTasks returns clones of every active task.
func (s *Store) ActiveTasks() []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Task, 0, len(s.active))
	for _, t := range s.active {
		out = append(out, t.Clone())
	}
	return out
}

// EvictResult reports how many terminal tasks were dropped by Evict.
type EvictResult struct {
	CompletedEvicted int
	FailedEvicted    int
}

// Evict drops completed and failed tasks whose CompletedAt is older than
// before. Active tasks are never evicted.
func (s *Store) Evict(before time.Time) EvictResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res EvictResult
	for id, t := range s.completed {
		if t.CompletedAt != nil && t.CompletedAt.Before(before) {
			delete(s.completed, id)
			res.CompletedEvicted++
		}
	}
	for id, t := range s.failed {
		if t.CompletedAt != nil && t.CompletedAt.Before(before) {
			delete(s.failed, id)
			res.FailedEvicted++
		}
	}

	trimmed := s.history[:0]
	for _, t := range s.history {
		if t.CompletedAt == nil || !t.CompletedAt.Before(before) {
			trimmed = append(trimmed, t)
		}
	}
	s.history = trimmed

	return res
}
