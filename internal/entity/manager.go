package entity

import (
	"context"
	"fmt"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/core/services/payment"
	"gitlab.com/effect-network.net/internal/core/services/session"
	"gitlab.com/effect-network.net/internal/core/services/task"
	"gitlab.com/effect-network.net/internal/core/services/template"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
	"gitlab.com/effect-network.net/internal/tcp/handlers"
)

// ManagerServices are the services a manager entity dispatches to
type ManagerServices struct {
	Tasks     task.ITaskService
	Payments  payment.IPaymentManager
	Templates template.ITemplateService
	Queue     secondary.WorkerQueue
	PublicKey domain.PublicKey
}

// Manager creates tasks, assigns them to connected workers and pays for
// completed work
type Manager struct {
	*Entity
	ManagerServices
}

// ManagerSession announces the manager's signing key to every peer
func ManagerSession(pub domain.PublicKey) session.LocalSession {
	return func(context.Context, string) (protocol.SessionMessage, error) {
		return protocol.ManagerSession{PubX: pub.X, PubY: pub.Y}, nil
	}
}

func NewManager(ent *Entity, svc ManagerServices) (*Manager, error) {
	m := &Manager{Entity: ent, ManagerServices: svc}
	logger := ent.logger
	pub := svc.PublicKey

	reports := &handlers.TaskReportHandler{Tasks: svc.Tasks, Logger: logger}
	payments := &handlers.PaymentRequestHandler{Payments: svc.Payments, Logger: logger}
	templates := &handlers.TemplateHandler{Templates: svc.Templates, Logger: logger}
	identify := &handlers.IdentifyHandler{PeerID: ent.PeerID(), Role: domain.RoleManager, PublicKey: &pub, Sender: ent, Logger: logger}
	work := &handlers.RequestToWorkHandler{Queue: svc.Queue, Tasks: svc.Tasks, Sessions: ent.Sessions(), Sender: ent, Logger: logger}
	replies := &handlers.ReplyHandler{Logger: logger}

	table := map[protocol.Kind]primary.MessageHandler{
		protocol.KindTaskAccepted:     reports,
		protocol.KindTaskRejected:     reports,
		protocol.KindTaskCompleted:    reports,
		protocol.KindPayoutRequest:    payments,
		protocol.KindProofRequest:     payments,
		protocol.KindTemplateRequest:  templates,
		protocol.KindIdentifyRequest:  identify,
		protocol.KindIdentifyResponse: identify,
		protocol.KindRequestToWork:    work,
		protocol.KindAck:              replies,
		protocol.KindError:            replies,
	}
	for kind, h := range table {
		if err := ent.OnMessage(kind, h); err != nil {
			return nil, err
		}
	}

	ent.OnPeer(m.workerReady, m.workerGone)
	return m, nil
}

// workerReady queues a connected worker and resends the payments it missed
func (m *Manager) workerReady(ctx context.Context, peerID string, data domain.SessionData) error {
	if data.Role != domain.RoleWorker {
		return fmt.Errorf("peer %s announced role %q: %w", peerID, data.Role, errs.ErrUnknownPeer)
	}
	open, err := m.Tasks.OpenAssignments(ctx, peerID)
	if err != nil {
		return fmt.Errorf("open assignments of %s: %w", peerID, err)
	}
	if len(open) > 0 {
		// stays busy until the open task is closed
		m.logger.Info("Worker reconnected with an open task", "peer", peerID, "task", open[0].State.ID, "status", open[0].State.Status)
	} else if err := m.Queue.Add(ctx, peerID); err != nil {
		return fmt.Errorf("queue worker %s: %w", peerID, err)
	}

	n, err := m.Payments.Resupply(ctx, peerID, data.Nonce)
	if err != nil {
		m.logger.Error("Failed to resupply payments", "peer", peerID, "nonce", data.Nonce, "error", err)
	} else if n > 0 {
		m.logger.Info("Worker was behind on payments", "peer", peerID, "nonce", data.Nonce, "resent", n)
	}
	return nil
}

func (m *Manager) workerGone(ctx context.Context, peerID string) {
	if err := m.Queue.Remove(ctx, peerID); err != nil {
		m.logger.Error("Failed to remove worker from queue", "peer", peerID, "error", err)
	}
}

// Workers lists the workers currently waiting for an assignment
func (m *Manager) Workers(ctx context.Context) ([]string, error) {
	return m.Queue.List(ctx)
}
