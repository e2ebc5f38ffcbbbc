package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
	"gitlab.com/effect-network.net/internal/utils/keylock"
)

var _ IPaymentManager = &Manager{}

type Manager struct {
	store          *Store
	tasks          UnpaidTasks
	sessions       SessionLookup
	signer         secondary.Signer
	backend        secondary.ProvingBackend
	sender         primary.MessageSender
	publisher      secondary.EventPublisher
	logger         primary.Logger
	paymentAccount string
	locks          *keylock.Map
	now            func() time.Time
}

func NewManager(
	store *Store,
	tasks UnpaidTasks,
	sessions SessionLookup,
	signer secondary.Signer,
	backend secondary.ProvingBackend,
	sender primary.MessageSender,
	publisher secondary.EventPublisher,
	logger primary.Logger,
	paymentAccount string,
) *Manager {
	return &Manager{
		store:          store,
		tasks:          tasks,
		sessions:       sessions,
		signer:         signer,
		backend:        backend,
		sender:         sender,
		publisher:      publisher,
		logger:         logger,
		paymentAccount: paymentAccount,
		locks:          keylock.New(),
		now:            time.Now,
	}
}

func (m *Manager) GeneratePayout(ctx context.Context, peerID string) (*domain.Payment, error) {
	unlock := m.locks.Lock(peerID)
	defer unlock()

	sess, ok := m.sessions.Get(peerID)
	if !ok || sess.Role != domain.RoleWorker {
		return nil, fmt.Errorf("payout for %s: %w", peerID, errs.ErrUnknownPeer)
	}

	unpaid, err := m.unsettled(ctx, peerID)
	if err != nil {
		return nil, err
	}
	var amount uint64
	for _, rec := range unpaid {
		if amount > math.MaxUint64-rec.State.Reward {
			return nil, errs.ErrAmountOverflow
		}
		amount += rec.State.Reward
	}
	if amount == 0 {
		m.logger.Debug("Nothing owed", "peer", peerID, "tasks", len(unpaid))
		return nil, nil
	}

	highest, err := m.store.GetHighestNonce(ctx, peerID)
	if err != nil {
		return nil, err
	}

	p := domain.Payment{
		ID:             uuid.NewString(),
		Amount:         amount,
		Recipient:      sess.Recipient,
		PaymentAccount: m.paymentAccount,
		Nonce:          highest + 1,
		PublicKey:      m.signer.PublicKey(),
		Label:          fmt.Sprintf("%d tasks", len(unpaid)),
	}
	sig, err := m.signer.Sign(p.SigningPayload())
	if err != nil {
		return nil, fmt.Errorf("sign payment: %w", err)
	}
	p.Signature = sig

	ids := make([]string, len(unpaid))
	for i, rec := range unpaid {
		ids[i] = rec.State.ID
	}
	if _, err := m.store.CreatePayment(ctx, peerID, p, ids...); err != nil {
		return nil, err
	}
	// the stored record settles the tasks even if marking them fails here
	for _, id := range ids {
		if err := m.tasks.MarkPaid(ctx, id, p.Nonce); err != nil {
			m.logger.Error("Failed to mark task paid", "task", id, "nonce", p.Nonce, "error", err)
		}
	}

	m.logger.Info("Payment created", "peer", peerID, "nonce", p.Nonce, "amount", p.Amount)
	m.publisher.Publish(ctx, domain.Event{Type: domain.EventPaymentCreated, Timestamp: m.now(), PeerID: peerID, Payload: p})
	return &p, nil
}

// unsettled returns the unpaid tasks of peer that no stored payment covers.
// Covered tasks still lacking their payout event are marked again.
func (m *Manager) unsettled(ctx context.Context, peerID string) ([]domain.TaskRecord, error) {
	unpaid, err := m.tasks.ListUnpaid(ctx, peerID)
	if err != nil || len(unpaid) == 0 {
		return nil, err
	}
	covered, err := m.store.CoveredTasks(ctx, peerID)
	if err != nil {
		return nil, err
	}
	out := unpaid[:0]
	for _, rec := range unpaid {
		nonce, ok := covered[rec.State.ID]
		if !ok {
			out = append(out, rec)
			continue
		}
		if err := m.tasks.MarkPaid(ctx, rec.State.ID, nonce); err != nil {
			m.logger.Warn("Failed to mark settled task paid", "task", rec.State.ID, "nonce", nonce, "error", err)
		}
	}
	return out, nil
}

func (m *Manager) GeneratePaymentProof(ctx context.Context, peerID string, req domain.ProofRequest) (domain.ProofResponse, error) {
	if req.BatchSize() == 0 {
		return domain.ProofResponse{}, errs.ErrEmptyBatch
	}
	if !req.PublicKey.Equal(m.signer.PublicKey()) {
		return domain.ProofResponse{}, fmt.Errorf("payments not signed by this manager: %w", errs.ErrInvalidSignature)
	}
	sess, ok := m.sessions.Get(peerID)
	if !ok || sess.Role != domain.RoleWorker {
		return domain.ProofResponse{}, fmt.Errorf("proof for %s: %w", peerID, errs.ErrUnknownPeer)
	}
	if req.Recipient != sess.Recipient || req.PaymentAccount != m.paymentAccount {
		return domain.ProofResponse{}, fmt.Errorf("proof for %s names recipient %q: %w", peerID, req.Recipient, errs.ErrInvalidSignature)
	}

	var last uint64
	for i, p := range req.ToPayments() {
		if i > 0 && p.Nonce <= last {
			return domain.ProofResponse{}, fmt.Errorf("payment nonce %d after %d: %w", p.Nonce, last, errs.ErrStaleNonce)
		}
		last = p.Nonce

		stored, err := m.store.Get(ctx, peerID, p.Nonce)
		if errors.Is(err, errs.ErrNotFound) {
			return domain.ProofResponse{}, fmt.Errorf("payment nonce %d was never issued: %w", p.Nonce, errs.ErrInvalidSignature)
		}
		if err != nil {
			return domain.ProofResponse{}, err
		}
		if stored.Amount != p.Amount || stored.Recipient != p.Recipient {
			return domain.ProofResponse{}, fmt.Errorf("payment nonce %d differs from the issued one: %w", p.Nonce, errs.ErrInvalidSignature)
		}
		if !m.backend.Verify(p.Signature, p.SigningPayload(), req.PublicKey) {
			return domain.ProofResponse{}, fmt.Errorf("payment nonce %d: %w", p.Nonce, errs.ErrInvalidSignature)
		}
	}

	resp, err := m.backend.Prove(ctx, req)
	if err != nil {
		return domain.ProofResponse{}, fmt.Errorf("prove batch: %w", err)
	}
	return resp, nil
}

func (m *Manager) Resupply(ctx context.Context, peerID string, knownNonce uint64) (int, error) {
	highest, err := m.store.GetHighestNonce(ctx, peerID)
	if err != nil {
		return 0, err
	}
	if knownNonce >= highest {
		return 0, nil
	}

	missing, err := m.store.GetFrom(ctx, peerID, knownNonce+1)
	if err != nil {
		return 0, err
	}
	for i, p := range missing {
		if err := m.sender.SendMessage(ctx, peerID, protocol.Payment{Payment: p}); err != nil {
			return i, fmt.Errorf("resupply nonce %d: %w", p.Nonce, err)
		}
	}
	m.logger.Info("Resupplied payments", "peer", peerID, "from", knownNonce+1, "count", len(missing))
	return len(missing), nil
}

func (m *Manager) ListPayments(ctx context.Context, peerID string) ([]domain.Payment, error) {
	return m.store.List(ctx, peerID)
}

func (m *Manager) HandlePayoutRequest(ctx context.Context, peerID string, msg protocol.PayoutRequest) error {
	if msg.PeerID != "" && msg.PeerID != peerID {
		m.replyError(ctx, peerID, http.StatusForbidden, "payout may only be requested for the sending peer")
		return fmt.Errorf("payout for %s requested by %s: %w", msg.PeerID, peerID, errs.ErrUnknownPeer)
	}

	if _, err := m.Payout(ctx, peerID); err != nil {
		if !errors.Is(err, errs.ErrPeerNotConnected) {
			m.replyError(ctx, peerID, statusOf(err), err.Error())
		}
		return err
	}
	return nil
}

func (m *Manager) Payout(ctx context.Context, peerID string) (*domain.Payment, error) {
	p, err := m.GeneratePayout(ctx, peerID)
	if err != nil || p == nil {
		return nil, err
	}
	// the payment is stored; a worker that misses it is resupplied on reconnect
	if err := m.sender.SendMessage(ctx, peerID, protocol.Payment{Payment: *p}); err != nil {
		return p, fmt.Errorf("send payment %d to %s: %w", p.Nonce, peerID, err)
	}
	return p, nil
}

func (m *Manager) HandleProofRequest(ctx context.Context, peerID string, msg protocol.ProofRequest) error {
	resp, err := m.GeneratePaymentProof(ctx, peerID, msg.ProofRequest)
	if err != nil {
		m.logger.Warn("Rejected proof request", "peer", peerID, "payments", msg.BatchSize(), "error", err)
		m.replyError(ctx, peerID, statusOf(err), err.Error())
		return err
	}

	m.publisher.Publish(ctx, domain.Event{Type: domain.EventProofCreated, Timestamp: m.now(), PeerID: peerID, Payload: resp})
	return m.sender.SendMessage(ctx, peerID, protocol.ProofResponse{ProofResponse: resp})
}

func (m *Manager) replyError(ctx context.Context, peerID string, code int, message string) {
	if err := m.sender.SendMessage(ctx, peerID, protocol.Error{Code: code, Message: message}); err != nil {
		m.logger.Error("Failed to send error reply", "peer", peerID, "error", err)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrEmptyBatch), errors.Is(err, errs.ErrAmountOverflow), errors.Is(err, errs.ErrStaleNonce):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnknownPeer):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
