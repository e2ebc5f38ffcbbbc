package handlers

import (
	"context"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
)

var (
	_ primary.MessageHandler = (*IdentifyHandler)(nil)
	_ primary.MessageHandler = (*RequestToWorkHandler)(nil)
	_ primary.MessageHandler = (*ReplyHandler)(nil)
)

// IdentifyHandler answers identify requests with the local identity
type IdentifyHandler struct {
	PeerID    string
	Role      domain.Role
	PublicKey *domain.PublicKey
	Sender    primary.MessageSender
	Logger    primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *IdentifyHandler) HandleMessage(ctx context.Context, peerID string, msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.IdentifyRequest:
		return h.Sender.SendMessage(ctx, peerID, protocol.IdentifyResponse{
			PeerID:    h.PeerID,
			Role:      h.Role,
			PublicKey: h.PublicKey,
			Version:   protocol.Version,
		})
	case protocol.IdentifyResponse:
		h.Logger.Info("Peer identified", "peer", peerID, "id", m.PeerID, "role", m.Role, "version", m.Version)
		return nil
	}
	return unexpected(msg)
}

// SessionLookup resolves a peer's session data
type SessionLookup interface {
	Get(peerID string) (domain.SessionData, bool)
}

// OpenTasks reports the tasks a worker still holds
type OpenTasks interface {
	OpenAssignments(ctx context.Context, worker string) ([]domain.TaskRecord, error)
}

// RequestToWorkHandler puts a worker back into the queue on request. A
// worker holding an ASSIGNED or ACCEPTED task is refused.
type RequestToWorkHandler struct {
	Queue    secondary.WorkerQueue
	Tasks    OpenTasks
	Sessions SessionLookup
	Sender   primary.MessageSender
	Logger   primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *RequestToWorkHandler) HandleMessage(ctx context.Context, peerID string, msg protocol.Message) error {
	if _, ok := msg.(protocol.RequestToWork); !ok {
		return unexpected(msg)
	}

	return h.Sender.SendMessage(ctx, peerID, h.enqueue(ctx, peerID))
}

func (h *RequestToWorkHandler) enqueue(ctx context.Context, peerID string) protocol.RequestToWorkResponse {
	if sess, ok := h.Sessions.Get(peerID); !ok || sess.Role != domain.RoleWorker {
		return protocol.RequestToWorkResponse{Reason: "no worker session"}
	}
	open, err := h.Tasks.OpenAssignments(ctx, peerID)
	if err != nil {
		h.Logger.Error("Failed to list open assignments", "peer", peerID, "error", err)
		return protocol.RequestToWorkResponse{Reason: "task store unavailable"}
	}
	if len(open) > 0 {
		return protocol.RequestToWorkResponse{Reason: "task " + open[0].State.ID + " still open"}
	}
	if err := h.Queue.Add(ctx, peerID); err != nil {
		h.Logger.Error("Failed to add worker to queue", "peer", peerID, "error", err)
		return protocol.RequestToWorkResponse{Reason: "queue unavailable"}
	}
	return protocol.RequestToWorkResponse{Accepted: true}
}

// ReplyHandler logs acks, errors and work responses
type ReplyHandler struct {
	Logger primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *ReplyHandler) HandleMessage(_ context.Context, peerID string, msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.Ack:
		h.Logger.Debug("Ack received", "peer", peerID, "ref", m.Ref)
	case protocol.Error:
		h.Logger.Warn("Peer replied with error", "peer", peerID, "code", m.Code, "message", m.Message)
	case protocol.RequestToWorkResponse:
		h.Logger.Info("Work request answered", "peer", peerID, "accepted", m.Accepted, "reason", m.Reason)
	case protocol.BulkProofRequest:
		h.Logger.Info("Bulk proof request received", "peer", peerID, "proofs", len(m.Proofs))
	default:
		return unexpected(msg)
	}
	return nil
}
