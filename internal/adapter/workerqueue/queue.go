// Package workerqueue is the in-process FIFO registry of assignable workers.
package workerqueue

import (
	"context"
	"sync"

	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/static/errs"
)

var _ secondary.WorkerQueue = (*Queue)(nil)

type Queue struct {
	mu        sync.Mutex
	connected map[string]struct{}
	queued    map[string]struct{}
	ready     []string
}

func New() *Queue {
	return &Queue{
		connected: make(map[string]struct{}),
		queued:    make(map[string]struct{}),
	}
}

func (q *Queue) enqueue(peerID string) {
	if _, ok := q.queued[peerID]; ok {
		return
	}
	q.queued[peerID] = struct{}{}
	q.ready = append(q.ready, peerID)
}

func (q *Queue) Add(_ context.Context, peerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.connected[peerID] = struct{}{}
	q.enqueue(peerID)
	return nil
}

func (q *Queue) Take(_ context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return "", errs.ErrQueueEmpty
	}
	peerID := q.ready[0]
	q.ready[0] = ""
	q.ready = q.ready[1:]
	delete(q.queued, peerID)
	return peerID, nil
}

func (q *Queue) Release(_ context.Context, peerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.connected[peerID]; !ok {
		return nil
	}
	q.enqueue(peerID)
	return nil
}

func (q *Queue) Remove(_ context.Context, peerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.connected, peerID)
	if _, ok := q.queued[peerID]; !ok {
		return nil
	}
	delete(q.queued, peerID)
	for i, id := range q.ready {
		if id == peerID {
			q.ready = append(q.ready[:i], q.ready[i+1:]...)
			break
		}
	}
	return nil
}

func (q *Queue) List(_ context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ready...), nil
}

func (q *Queue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready), nil
}
