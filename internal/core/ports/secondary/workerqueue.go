package secondary

import "context"

// WorkerQueue is the manager's registry of connected workers ready for an
// assignment. Take removes atomically so one entry is never handed out twice.
type WorkerQueue interface {
	// Add marks the worker connected and enqueues it if absent
	Add(ctx context.Context, peerID string) error
	// Take removes and returns the longest waiting worker, or errs.ErrQueueEmpty
	Take(ctx context.Context) (string, error)
	// Release re-enqueues a connected worker after it finished evaluating an assignment
	Release(ctx context.Context, peerID string) error
	// Remove forgets the worker entirely
	Remove(ctx context.Context, peerID string) error
	List(ctx context.Context) ([]string, error)
	Len(ctx context.Context) (int, error)
}
