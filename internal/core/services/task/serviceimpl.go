package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gitlab.com/effect-network.net/internal/config"
	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
)

var _ ITaskService = &Orchestrator{}

const timeoutReason = "assignment timeout"

// Orchestrator assigns queued tasks to idle workers and follows their
// progress as workers report back
type Orchestrator struct {
	store     *Store
	queue     secondary.WorkerQueue
	sender    primary.MessageSender
	publisher secondary.EventPublisher
	logger    primary.Logger
	cfg       *config.TaskSvcCfg
	now       func() time.Time
}

func NewOrchestrator(
	store *Store,
	queue secondary.WorkerQueue,
	sender primary.MessageSender,
	publisher secondary.EventPublisher,
	logger primary.Logger,
	cfg *config.TaskSvcCfg,
) *Orchestrator {
	if cfg == nil {
		cfg = &config.TaskSvcCfg{AssignInterval: 10 * time.Second}
	}
	return &Orchestrator{
		store:     store,
		queue:     queue,
		sender:    sender,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock replaces the time source
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

func (o *Orchestrator) publish(ctx context.Context, typ domain.EventType, st domain.TaskState) {
	o.publisher.Publish(ctx, domain.Event{
		Type:      typ,
		Timestamp: o.now(),
		TaskID:    st.ID,
		PeerID:    st.Worker,
		Payload:   st,
	})
}

func (o *Orchestrator) CreateTask(ctx context.Context, t domain.Task) (domain.TaskRecord, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	rec := domain.NewTaskRecord(t, o.now())
	if err := o.store.Create(ctx, rec); err != nil {
		return domain.TaskRecord{}, err
	}
	o.logger.Info("Task created", "task", t.ID, "reward", t.Reward)
	o.publish(ctx, domain.EventTaskCreated, rec.State)
	return rec, nil
}

func (o *Orchestrator) GetTask(ctx context.Context, id string) (domain.TaskRecord, error) {
	return o.store.Get(ctx, id)
}

func (o *Orchestrator) ListTasks(ctx context.Context, status domain.TaskStatus) ([]domain.TaskRecord, error) {
	if status == "" {
		return o.store.List(ctx, nil)
	}
	return o.store.ListByStatus(ctx, status)
}

func (o *Orchestrator) ListUnpaid(ctx context.Context, worker string) ([]domain.TaskRecord, error) {
	return o.store.ListUnpaid(ctx, worker)
}

func (o *Orchestrator) OpenAssignments(ctx context.Context, worker string) ([]domain.TaskRecord, error) {
	return o.store.ListOpen(ctx, worker)
}

func (o *Orchestrator) Tick(ctx context.Context) (int, error) {
	if o.cfg.AssignmentTimeout > 0 {
		o.expireAssignments(ctx)
	}

	pending, err := o.store.ListByStatus(ctx, domain.TaskStatusPending)
	if err != nil {
		o.logger.Error("Failed to list pending tasks", "error", err)
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	assigned := 0
	for _, rec := range pending {
		worker, err := o.queue.Take(ctx)
		if errors.Is(err, errs.ErrQueueEmpty) {
			o.logger.Debug("No idle workers, deferring", "pending", len(pending)-assigned)
			break
		}
		if err != nil {
			o.logger.Error("Failed to take worker", "error", err)
			break
		}

		if err := o.assign(ctx, rec.State.ID, worker); err != nil {
			o.logger.Warn("Failed to assign task", "task", rec.State.ID, "worker", worker, "error", err)
			// an unreachable worker re-enters the queue on its next handshake
			var unreachable *sendError
			if !errors.As(err, &unreachable) {
				if err := o.queue.Release(ctx, worker); err != nil {
					o.logger.Error("Failed to release worker", "worker", worker, "error", err)
				}
			}
			continue
		}
		assigned++
	}
	return assigned, nil
}

// sendError marks an assignment that failed because the worker could not be
// reached
type sendError struct {
	err error
}

func (e *sendError) Error() string { return e.err.Error() }
func (e *sendError) Unwrap() error { return e.err }

// assign sends the task to worker and records the assignment once the send
// succeeded. The task lock is held across the send.
func (o *Orchestrator) assign(ctx context.Context, id, worker string) error {
	unlock := o.store.Lock(id)
	defer unlock()

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := rec.Apply(domain.TaskEvent{Type: domain.TaskEventAssign, Timestamp: o.now(), Worker: worker}); err != nil {
		return err
	}

	if err := o.sender.SendMessage(ctx, worker, protocol.Task{Task: rec.State.Task}); err != nil {
		return &sendError{fmt.Errorf("send task %s to %s: %w", id, worker, err)}
	}
	if err := o.store.Put(ctx, rec); err != nil {
		return err
	}

	o.logger.Info("Task assigned", "task", id, "worker", worker)
	o.publish(ctx, domain.EventTaskAssigned, rec.State)
	return nil
}

// expireAssignments moves tasks a worker never answered back to the queue
func (o *Orchestrator) expireAssignments(ctx context.Context) {
	stale, err := o.store.ListAssignedBefore(ctx, o.now().Add(-o.cfg.AssignmentTimeout))
	if err != nil {
		o.logger.Error("Failed to list stale assignments", "error", err)
		return
	}
	for _, rec := range stale {
		state, requeued, err := o.reject(ctx, rec.State.ID, "", timeoutReason)
		if err != nil {
			o.logger.Warn("Failed to expire assignment", "task", rec.State.ID, "error", err)
			continue
		}
		o.logger.Warn("Assignment timed out", "task", state.ID, "worker", rec.State.Worker)
		o.publish(ctx, domain.EventTaskRejected, state)
		if requeued {
			o.publish(ctx, domain.EventTaskRequeued, state)
		}
	}
}

// transition appends the events built from the current state of a task
// reported on by peer. The task must be assigned to peer.
func (o *Orchestrator) transition(ctx context.Context, id, peer string, build func(domain.TaskState) []domain.TaskEvent) (domain.TaskRecord, error) {
	unlock := o.store.Lock(id)
	defer unlock()

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return domain.TaskRecord{}, err
	}
	worker := rec.State.Worker
	for _, ev := range build(rec.State) {
		if err := rec.Apply(ev); err != nil {
			return domain.TaskRecord{}, err
		}
	}
	if peer != "" && worker != peer {
		return domain.TaskRecord{}, fmt.Errorf("task %s reported by %s: %w", id, peer, errs.ErrWrongAssignee)
	}
	if err := o.store.Put(ctx, rec); err != nil {
		return domain.TaskRecord{}, err
	}
	return rec, nil
}

func (o *Orchestrator) event(typ domain.TaskEventType, peer string) func(domain.TaskState) []domain.TaskEvent {
	return func(domain.TaskState) []domain.TaskEvent {
		return []domain.TaskEvent{{Type: typ, Timestamp: o.now(), Worker: peer}}
	}
}

// reject records a rejection and requeues the task unless the rejection cap
// is reached
func (o *Orchestrator) reject(ctx context.Context, id, peer, reason string) (domain.TaskState, bool, error) {
	requeue := false
	rec, err := o.transition(ctx, id, peer, func(st domain.TaskState) []domain.TaskEvent {
		at := o.now()
		events := []domain.TaskEvent{{Type: domain.TaskEventReject, Timestamp: at, Worker: st.Worker, Reason: reason}}
		requeue = o.cfg.MaxRejections <= 0 || st.Rejections+1 < o.cfg.MaxRejections
		if requeue {
			events = append(events, domain.TaskEvent{Type: domain.TaskEventRequeue, Timestamp: at})
		}
		return events
	})
	if err != nil {
		return domain.TaskState{}, false, err
	}
	return rec.State, requeue, nil
}

func (o *Orchestrator) HandleTaskAccepted(ctx context.Context, peerID string, msg protocol.TaskAccepted) error {
	rec, err := o.transition(ctx, msg.TaskID, peerID, o.event(domain.TaskEventAccept, peerID))
	if err != nil {
		return err
	}
	o.logger.Info("Task accepted", "task", msg.TaskID, "worker", peerID)
	o.publish(ctx, domain.EventTaskAccepted, rec.State)
	return nil
}

func (o *Orchestrator) HandleTaskRejected(ctx context.Context, peerID string, msg protocol.TaskRejected) error {
	state, requeued, err := o.reject(ctx, msg.TaskID, peerID, msg.Reason)
	if err != nil {
		return err
	}
	if err := o.queue.Release(ctx, peerID); err != nil {
		o.logger.Error("Failed to release worker", "worker", peerID, "error", err)
	}

	o.logger.Info("Task rejected", "task", msg.TaskID, "worker", peerID, "reason", msg.Reason, "requeued", requeued)
	rejected := state
	rejected.Worker = peerID
	o.publish(ctx, domain.EventTaskRejected, rejected)
	if requeued {
		o.publish(ctx, domain.EventTaskRequeued, state)
	}
	return nil
}

func (o *Orchestrator) HandleTaskCompleted(ctx context.Context, peerID string, msg protocol.TaskCompleted) error {
	rec, err := o.transition(ctx, msg.TaskID, peerID, func(domain.TaskState) []domain.TaskEvent {
		return []domain.TaskEvent{{Type: domain.TaskEventComplete, Timestamp: o.now(), Worker: peerID, Result: msg.Result}}
	})
	if err != nil {
		return err
	}
	if err := o.queue.Release(ctx, peerID); err != nil {
		o.logger.Error("Failed to release worker", "worker", peerID, "error", err)
	}

	o.logger.Info("Task completed", "task", msg.TaskID, "worker", peerID)
	o.publish(ctx, domain.EventTaskCompleted, rec.State)
	return nil
}

func (o *Orchestrator) MarkPaid(ctx context.Context, id string, nonce uint64) error {
	rec, err := o.store.Apply(ctx, id, domain.TaskEvent{Type: domain.TaskEventPayout, Timestamp: o.now(), Nonce: nonce})
	if err != nil {
		return err
	}
	o.publish(ctx, domain.EventTaskPaid, rec.State)
	return nil
}
