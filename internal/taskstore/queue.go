package taskstore

import (
	"container/list"

	"github.com/stevross-git/orchestrator/internal/domain"
)

// priorityQueue is a strict priority queue: one FIFO band per domain.Priority.
// Enqueue appends to the back of a task's band; retry re-insertion goes to
// the front via PushFront, preserving relative order among retries within
// the same tick per spec.md §4.2/§5.
type priorityQueue struct {
	bands map[domain.Priority]*list.List
}

func newPriorityQueue() *priorityQueue {
	pq := &priorityQueue{bands: make(map[domain.Priority]*list.List, len(domain.Priorities))}
	for _, p := range domain.Priorities {
		pq.bands[p] = list.New()
	}
	return pq
}

func (pq *priorityQueue) PushBack(t *domain.Task) {
	pq.bands[t.Priority].PushBack(t)
}

func (pq *priorityQueue) PushFront(t *domain.Task) {
	pq.bands[t.Priority].PushFront(t)
}

// PeekHead returns the task at the front of the highest non-empty band
// without removing it.
func (pq *priorityQueue) PeekHead() *domain.Task {
	for _, p := range domain.Priorities {
		if el := pq.bands[p].Front(); el != nil {
			return el.Value.(*domain.Task)
		}
	}
	return nil
}

// TakeNext removes and returns the task at the front of the highest
// non-empty band.
func (pq *priorityQueue) TakeNext() *domain.Task {
	for _, p := range domain.Priorities {
		band := pq.bands[p]
		if el := band.Front(); el != nil {
			band.Remove(el)
			return el.Value.(*domain.Task)
		}
	}
	return nil
}

// Remove deletes taskID from wherever it sits in the queue, used when a
// pending task is evicted or cancelled out of band.
func (pq *priorityQueue) Remove(taskID string) bool {
	for _, band := range pq.bands {
		for el := band.Front(); el != nil; el = el.Next() {
			if el.Value.(*domain.Task).TaskID == taskID {
				band.Remove(el)
				return true
			}
		}
	}
	return false
}

func (pq *priorityQueue) Len() int {
	n := 0
	for _, band := range pq.bands {
		n += band.Len()
	}
	return n
}

func (pq *priorityQueue) BandLen(p domain.Priority) int {
	return pq.bands[p].Len()
}
