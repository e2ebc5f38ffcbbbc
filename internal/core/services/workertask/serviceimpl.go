package workertask

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/core/services/task"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
)

var _ IWorkerTaskService = &Service{}

type Service struct {
	selfID    string
	store     *task.Store
	sender    primary.MessageSender
	publisher secondary.EventPublisher
	logger    primary.Logger
	now       func() time.Time
}

func NewService(
	selfID string,
	store *task.Store,
	sender primary.MessageSender,
	publisher secondary.EventPublisher,
	logger primary.Logger,
) *Service {
	return &Service{
		selfID:    selfID,
		store:     store,
		sender:    sender,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) publish(ctx context.Context, typ domain.EventType, st domain.TaskState) {
	s.publisher.Publish(ctx, domain.Event{
		Type:      typ,
		Timestamp: s.now(),
		TaskID:    st.ID,
		PeerID:    st.Manager,
		Payload:   st,
	})
}

func (s *Service) HandleTask(ctx context.Context, managerID string, msg protocol.Task) error {
	at := s.now()
	rec := domain.NewTaskRecord(msg.Task, at)
	rec.State.Manager = managerID
	if err := rec.Apply(domain.TaskEvent{Type: domain.TaskEventAssign, Timestamp: at, Worker: s.selfID}); err != nil {
		return err
	}

	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			s.logger.Warn("Ignoring duplicate task", "task", msg.ID, "manager", managerID)
			return nil
		}
		return err
	}

	s.logger.Info("Task received", "task", msg.ID, "manager", managerID, "reward", msg.Reward)
	s.publish(ctx, domain.EventTaskReceived, rec.State)
	return nil
}

// update validates and stores ev locally, then notifies the manager.
// A failed send is returned but the local transition is kept.
func (s *Service) update(ctx context.Context, id string, ev domain.TaskEvent, notify func(domain.TaskState) protocol.Message) (domain.TaskRecord, error) {
	rec, err := s.store.Apply(ctx, id, ev)
	if err != nil {
		return domain.TaskRecord{}, err
	}

	if err := s.sender.SendMessage(ctx, rec.State.Manager, notify(rec.State)); err != nil {
		s.logger.Error("Failed to notify manager", "task", id, "manager", rec.State.Manager, "event", ev.Type, "error", err)
		return rec, fmt.Errorf("notify manager of %s: %w", ev.Type, err)
	}
	return rec, nil
}

func (s *Service) AcceptTask(ctx context.Context, id string) (domain.TaskRecord, error) {
	at := s.now()
	rec, err := s.update(ctx, id, domain.TaskEvent{Type: domain.TaskEventAccept, Timestamp: at, Worker: s.selfID},
		func(st domain.TaskState) protocol.Message {
			return protocol.TaskAccepted{TaskID: st.ID, Worker: s.selfID, Timestamp: at.UnixMilli()}
		})
	if err == nil {
		s.publish(ctx, domain.EventTaskAccepted, rec.State)
	}
	return rec, err
}

func (s *Service) RejectTask(ctx context.Context, id string, reason string) (domain.TaskRecord, error) {
	at := s.now()
	rec, err := s.update(ctx, id, domain.TaskEvent{Type: domain.TaskEventReject, Timestamp: at, Worker: s.selfID, Reason: reason},
		func(st domain.TaskState) protocol.Message {
			return protocol.TaskRejected{TaskID: st.ID, Worker: s.selfID, Reason: reason, Timestamp: at.UnixMilli()}
		})
	if err == nil {
		s.publish(ctx, domain.EventTaskRejected, rec.State)
	}
	return rec, err
}

func (s *Service) CompleteTask(ctx context.Context, id string, result string) (domain.TaskRecord, error) {
	rec, err := s.update(ctx, id, domain.TaskEvent{Type: domain.TaskEventComplete, Timestamp: s.now(), Worker: s.selfID, Result: result},
		func(st domain.TaskState) protocol.Message {
			return protocol.TaskCompleted{TaskID: st.ID, Worker: s.selfID, Result: result}
		})
	if err == nil {
		s.publish(ctx, domain.EventTaskCompleted, rec.State)
	}
	return rec, err
}

func (s *Service) GetTask(ctx context.Context, id string) (domain.TaskRecord, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListTasks(ctx context.Context, status domain.TaskStatus) ([]domain.TaskRecord, error) {
	if status == "" {
		return s.store.List(ctx, nil)
	}
	return s.store.ListByStatus(ctx, status)
}
