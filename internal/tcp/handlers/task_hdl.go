package handlers

import (
	"context"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/services/task"
	"gitlab.com/effect-network.net/internal/core/services/workertask"
	"gitlab.com/effect-network.net/internal/protocol"
)

var (
	_ primary.MessageHandler = (*TaskReportHandler)(nil)
	_ primary.MessageHandler = (*TaskHandler)(nil)
)

// TaskReportHandler handles the accept, reject and complete reports a
// manager receives from workers
type TaskReportHandler struct {
	Tasks  task.ITaskService
	Logger primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *TaskReportHandler) HandleMessage(ctx context.Context, peerID string, msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.TaskAccepted:
		return h.Tasks.HandleTaskAccepted(ctx, peerID, m)
	case protocol.TaskRejected:
		return h.Tasks.HandleTaskRejected(ctx, peerID, m)
	case protocol.TaskCompleted:
		return h.Tasks.HandleTaskCompleted(ctx, peerID, m)
	}
	return unexpected(msg)
}

// TaskHandler stores tasks pushed to a worker
type TaskHandler struct {
	Tasks  workertask.IWorkerTaskService
	Logger primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *TaskHandler) HandleMessage(ctx context.Context, peerID string, msg protocol.Message) error {
	m, ok := msg.(protocol.Task)
	if !ok {
		return unexpected(msg)
	}
	h.Logger.Info("Task received", "task", m.ID, "manager", peerID, "reward", m.Reward)
	return h.Tasks.HandleTask(ctx, peerID, m)
}
