package workertask

import (
	"context"

	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
)

// IWorkerTaskService mirrors the task state machine on the worker
type IWorkerTaskService interface {
	// HandleTask records a task pushed by a manager as already assigned
	HandleTask(ctx context.Context, managerID string, msg protocol.Task) error

	AcceptTask(ctx context.Context, id string) (domain.TaskRecord, error)
	RejectTask(ctx context.Context, id string, reason string) (domain.TaskRecord, error)
	CompleteTask(ctx context.Context, id string, result string) (domain.TaskRecord, error)

	GetTask(ctx context.Context, id string) (domain.TaskRecord, error)
	ListTasks(ctx context.Context, status domain.TaskStatus) ([]domain.TaskRecord, error)
}
