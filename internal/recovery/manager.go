// Package recovery reassigns or fails the work stranded on a node that
// has gone offline (spec.md §4.6).
package recovery

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stevross-git/orchestrator/internal/domain"
	"github.com/stevross-git/orchestrator/internal/logging"
	"github.com/stevross-git/orchestrator/internal/taskstore"
)

// Store is the subset of *taskstore.Store the recovery manager needs,
// narrowed so it can be faked in tests.
type Store interface {
	ActiveTasksOnNode(nodeID string) []*domain.Task
	RemoveAssignedNode(taskID, nodeID string) error
	ReturnToPending(taskID string) error
	Fail(taskID string, result domain.TaskResult) error
}

// Manager recovers work stranded on nodes that have gone offline.
type Manager struct {
	store Store
	log   *logrus.Entry
}

// New builds a Manager over store.
func New(store Store, logger *logrus.Logger) *Manager {
	return &Manager{store: store, log: logging.Component(logger, "recovery")}
}

// Outcome summarizes what HandleNodeOffline did with a node's stranded
// tasks.
type Outcome struct {
	NodeID    string
	Requeued  []string
	Failed    []string
	Continued []string // redundantly-assigned tasks still in flight elsewhere
}

// HandleNodeOffline finds every active task assigned to nodeID and either:
//   - drops nodeID from the task's AssignedNodes and leaves it running, if
//     the task was redundantly assigned to other nodes still in play;
//   - requeues the task to pending (front of its priority band, retry_count
//     incremented) if it has retry budget left;
//   - fails it with a permanent-dispatch error otherwise.
//
// The caller must snapshot the registry (to learn a node just went
// offline) before calling this, and must not hold the registry lock while
// calling it: HandleNodeOffline only ever touches the task store.
func (m *Manager) HandleNodeOffline(nodeID string) Outcome {
	out := Outcome{NodeID: nodeID}

	for _, task := range m.store.ActiveTasksOnNode(nodeID) {
		if len(task.AssignedNodes) > 1 {
			if err := m.store.RemoveAssignedNode(task.TaskID, nodeID); err == nil {
				out.Continued = append(out.Continued, task.TaskID)
				continue
			}
		}

		if task.RetryCount < task.MaxRetries {
			if err := m.store.ReturnToPending(task.TaskID); err == nil {
				out.Requeued = append(out.Requeued, task.TaskID)
				m.log.WithFields(logrus.Fields{"task_id": task.TaskID, "node_id": nodeID}).Info("requeued task after node failure")
				continue
			}
		}

		result := domain.TaskResult{
			NodeID:        nodeID,
			ErrorMessage:  "max retries exceeded after node failure",
			ExecutionTime: time.Since(task.CreatedAt),
		}
		if err := m.store.Fail(task.TaskID, result); err == nil {
			out.Failed = append(out.Failed, task.TaskID)
			m.log.WithFields(logrus.Fields{"task_id": task.TaskID, "node_id": nodeID}).Warn("task failed: max retries exceeded after node failure")
		}
	}

	return out
}
