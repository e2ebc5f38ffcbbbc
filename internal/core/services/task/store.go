package task

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/core/services/eventstore"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/static/errs"
)

const (
	ManagerNamespace = "tasks"
	WorkerNamespace  = "worker-tasks"
)

// Store keeps event-sourced task records
type Store struct {
	records *eventstore.Store[domain.TaskRecord]
}

func NewStore(ds secondary.Datastore, namespace string) *Store {
	return &Store{
		records: eventstore.New[domain.TaskRecord](ds, namespace, nil),
	}
}

// Lock takes the lock of one task. Use Get and Put while holding it.
func (s *Store) Lock(id string) func() {
	return s.records.Lock(id)
}

// Create stores a new record; an existing ID fails with errs.ErrAlreadyExists
func (s *Store) Create(ctx context.Context, rec domain.TaskRecord) error {
	return s.records.Create(ctx, rec.State.ID, rec)
}

func (s *Store) Get(ctx context.Context, id string) (domain.TaskRecord, error) {
	return s.records.Get(ctx, id)
}

func (s *Store) Put(ctx context.Context, rec domain.TaskRecord) error {
	return s.records.Put(ctx, rec.State.ID, rec)
}

// Apply appends events to the task under its lock. Nothing is stored if
// any event is illegal.
func (s *Store) Apply(ctx context.Context, id string, events ...domain.TaskEvent) (domain.TaskRecord, error) {
	return s.records.Update(ctx, id, func(rec domain.TaskRecord, exists bool) (domain.TaskRecord, error) {
		if !exists {
			return rec, fmt.Errorf("task %s: %w", id, errs.ErrNotFound)
		}
		for _, ev := range events {
			if err := rec.Apply(ev); err != nil {
				return rec, err
			}
		}
		return rec, nil
	})
}

// List returns every task accepted by filter, oldest queue entry first
func (s *Store) List(ctx context.Context, filter func(domain.TaskState) bool) ([]domain.TaskRecord, error) {
	q := eventstore.Query[domain.TaskRecord]{}
	if filter != nil {
		q.Filter = func(_ string, rec domain.TaskRecord) bool { return filter(rec.State) }
	}
	items, err := s.records.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	recs := make([]domain.TaskRecord, len(items))
	for i, it := range items {
		recs[i] = it.Record
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].State.QueuedAt.Before(recs[j].State.QueuedAt)
	})
	return recs, nil
}

func (s *Store) ListByStatus(ctx context.Context, status domain.TaskStatus) ([]domain.TaskRecord, error) {
	return s.List(ctx, func(st domain.TaskState) bool { return st.Status == status })
}

// ListUnpaid returns the completed tasks of worker that have no payout yet
func (s *Store) ListUnpaid(ctx context.Context, worker string) ([]domain.TaskRecord, error) {
	return s.List(ctx, func(st domain.TaskState) bool {
		return st.Status == domain.TaskStatusCompleted && st.Worker == worker && !st.IsPaid()
	})
}

// ListOpen returns the tasks worker holds as ASSIGNED or ACCEPTED
func (s *Store) ListOpen(ctx context.Context, worker string) ([]domain.TaskRecord, error) {
	return s.List(ctx, func(st domain.TaskState) bool {
		return st.Worker == worker && (st.Status == domain.TaskStatusAssigned || st.Status == domain.TaskStatusAccepted)
	})
}

// ListAssignedBefore returns tasks assigned earlier than cutoff
func (s *Store) ListAssignedBefore(ctx context.Context, cutoff time.Time) ([]domain.TaskRecord, error) {
	return s.List(ctx, func(st domain.TaskState) bool {
		return st.Status == domain.TaskStatusAssigned && st.AssignedAt != nil && st.AssignedAt.Before(cutoff)
	})
}
