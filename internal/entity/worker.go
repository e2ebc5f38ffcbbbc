package entity

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/services/payment"
	"gitlab.com/effect-network.net/internal/core/services/session"
	"gitlab.com/effect-network.net/internal/core/services/template"
	"gitlab.com/effect-network.net/internal/core/services/workertask"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
	"gitlab.com/effect-network.net/internal/tcp/handlers"
)

// WorkerServices are the services a worker entity dispatches to
type WorkerServices struct {
	Tasks     workertask.IWorkerTaskService
	Wallet    payment.IWallet
	Templates template.ITemplateService
}

// Worker performs tasks for managers and keeps the payments it earns
type Worker struct {
	*Entity
	WorkerServices

	mu       sync.RWMutex
	managers map[string]struct{}
}

// NonceSource returns the highest payment nonce held from a manager
type NonceSource func(ctx context.Context, managerID string) (uint64, error)

// WorkerSession announces the worker's recipient and the highest payment
// nonce it holds from the manager it talks to
func WorkerSession(selfID, recipient string, highest NonceSource) session.LocalSession {
	return func(ctx context.Context, peerID string) (protocol.SessionMessage, error) {
		nonce, err := highest(ctx, peerID)
		if err != nil {
			return nil, err
		}
		return protocol.WorkerSession{ID: selfID, Nonce: nonce, Recipient: recipient}, nil
	}
}

func NewWorker(ent *Entity, svc WorkerServices) (*Worker, error) {
	w := &Worker{Entity: ent, WorkerServices: svc, managers: make(map[string]struct{})}
	logger := ent.logger

	tasks := &handlers.TaskHandler{Tasks: svc.Tasks, Logger: logger}
	wallet := &handlers.WalletHandler{Wallet: svc.Wallet, Logger: logger}
	templates := &handlers.TemplateHandler{Templates: svc.Templates, Logger: logger}
	identify := &handlers.IdentifyHandler{PeerID: ent.PeerID(), Role: domain.RoleWorker, Sender: ent, Logger: logger}
	replies := &handlers.ReplyHandler{Logger: logger}

	table := map[protocol.Kind]primary.MessageHandler{
		protocol.KindTask:                  tasks,
		protocol.KindPayment:               wallet,
		protocol.KindProofResponse:         wallet,
		protocol.KindTemplateResponse:      templates,
		protocol.KindIdentifyRequest:       identify,
		protocol.KindIdentifyResponse:      identify,
		protocol.KindAck:                   replies,
		protocol.KindError:                 replies,
		protocol.KindRequestToWorkResponse: replies,
		protocol.KindBulkProofRequest:      replies,
	}
	for kind, h := range table {
		if err := ent.OnMessage(kind, h); err != nil {
			return nil, err
		}
	}

	ent.OnPeer(w.managerReady, w.managerGone)
	return w, nil
}

func (w *Worker) managerReady(_ context.Context, peerID string, data domain.SessionData) error {
	if data.Role != domain.RoleManager {
		return fmt.Errorf("peer %s announced role %q: %w", peerID, data.Role, errs.ErrUnknownPeer)
	}
	w.mu.Lock()
	w.managers[peerID] = struct{}{}
	w.mu.Unlock()
	return nil
}

func (w *Worker) managerGone(_ context.Context, peerID string) {
	w.mu.Lock()
	delete(w.managers, peerID)
	w.mu.Unlock()
}

// Managers lists the managers with an established session
func (w *Worker) Managers() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]string, 0, len(w.managers))
	for id := range w.managers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RequestToWork asks a manager to queue this worker for assignments
func (w *Worker) RequestToWork(ctx context.Context, managerID string) error {
	return w.SendMessage(ctx, managerID, protocol.RequestToWork{})
}

// RequestPayout asks a manager to pay for completed tasks
func (w *Worker) RequestPayout(ctx context.Context, managerID string) error {
	return w.Wallet.RequestPayout(ctx, managerID)
}

// Identify asks a peer who it is
func (w *Worker) Identify(ctx context.Context, peerID string) error {
	return w.SendMessage(ctx, peerID, protocol.IdentifyRequest{})
}
