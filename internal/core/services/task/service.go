package task

import (
	"context"

	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
)

// ITaskService drives the manager side of the task state machine
type ITaskService interface {
	// CreateTask stores a new PENDING task; an empty ID gets a generated one
	CreateTask(ctx context.Context, t domain.Task) (domain.TaskRecord, error)

	GetTask(ctx context.Context, id string) (domain.TaskRecord, error)

	ListTasks(ctx context.Context, status domain.TaskStatus) ([]domain.TaskRecord, error)

	// Tick runs one assignment round and returns how many tasks were assigned
	Tick(ctx context.Context) (int, error)

	HandleTaskAccepted(ctx context.Context, peerID string, msg protocol.TaskAccepted) error
	HandleTaskRejected(ctx context.Context, peerID string, msg protocol.TaskRejected) error
	HandleTaskCompleted(ctx context.Context, peerID string, msg protocol.TaskCompleted) error

	// MarkPaid records the payout nonce on a completed task
	MarkPaid(ctx context.Context, id string, nonce uint64) error

	// ListUnpaid returns the completed tasks of a worker without payout
	ListUnpaid(ctx context.Context, worker string) ([]domain.TaskRecord, error)

	// OpenAssignments returns the tasks a worker holds as ASSIGNED or ACCEPTED
	OpenAssignments(ctx context.Context, worker string) ([]domain.TaskRecord, error)
}
