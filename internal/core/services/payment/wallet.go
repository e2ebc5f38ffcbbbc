package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/core/services/eventstore"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
)

var _ IWallet = &Wallet{}

const ProofNamespace = "proofs"

// Wallet verifies and keeps the payments a worker receives from managers
type Wallet struct {
	selfID    string
	recipient string
	store     *Store
	proofs    *eventstore.Store[domain.ProofRecord]
	sessions  SessionLookup
	backend   secondary.ProvingBackend
	sender    primary.MessageSender
	publisher secondary.EventPublisher
	logger    primary.Logger
	now       func() time.Time
}

func NewWallet(
	selfID string,
	recipient string,
	ds secondary.Datastore,
	sessions SessionLookup,
	backend secondary.ProvingBackend,
	sender primary.MessageSender,
	publisher secondary.EventPublisher,
	logger primary.Logger,
) *Wallet {
	return &Wallet{
		selfID:    selfID,
		recipient: recipient,
		store:     NewStore(ds, WalletNamespace),
		proofs:    eventstore.New[domain.ProofRecord](ds, ProofNamespace, nil),
		sessions:  sessions,
		backend:   backend,
		sender:    sender,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (w *Wallet) managerKey(managerID string) (domain.PublicKey, error) {
	sess, ok := w.sessions.Get(managerID)
	if !ok || sess.Role != domain.RoleManager || sess.PublicKey == nil {
		return domain.PublicKey{}, fmt.Errorf("manager %s: %w", managerID, errs.ErrUnknownPeer)
	}
	return *sess.PublicKey, nil
}

func (w *Wallet) HandlePayment(ctx context.Context, managerID string, msg protocol.Payment) error {
	key, err := w.managerKey(managerID)
	if err != nil {
		return err
	}
	p := msg.Payment
	if !p.PublicKey.Equal(key) {
		return fmt.Errorf("payment %d signed by another key: %w", p.Nonce, errs.ErrInvalidSignature)
	}
	if p.Recipient != w.recipient {
		return fmt.Errorf("payment %d addressed to %q: %w", p.Nonce, p.Recipient, errs.ErrInvalidSignature)
	}
	if !w.backend.Verify(p.Signature, p.SigningPayload(), key) {
		return fmt.Errorf("payment %d: %w", p.Nonce, errs.ErrInvalidSignature)
	}

	_, err = w.store.CreatePayment(ctx, managerID, p)
	switch {
	case errors.Is(err, errs.ErrAlreadyExists):
		w.logger.Debug("Payment already stored", "manager", managerID, "nonce", p.Nonce)
	case err != nil:
		return err
	default:
		w.logger.Info("Payment received", "manager", managerID, "nonce", p.Nonce, "amount", p.Amount)
		w.publisher.Publish(ctx, domain.Event{Type: domain.EventPaymentCreated, Timestamp: w.now(), PeerID: managerID, Payload: p})
	}

	return w.sender.SendMessage(ctx, managerID, protocol.Ack{Ref: strconv.FormatUint(p.Nonce, 10)})
}

func (w *Wallet) RequestPayout(ctx context.Context, managerID string) error {
	return w.sender.SendMessage(ctx, managerID, protocol.PayoutRequest{PeerID: w.selfID})
}

func (w *Wallet) RequestProof(ctx context.Context, managerID string, fromNonce uint64) (int, error) {
	key, err := w.managerKey(managerID)
	if err != nil {
		return 0, err
	}
	payments, err := w.store.GetFrom(ctx, managerID, fromNonce)
	if err != nil {
		return 0, err
	}
	if len(payments) == 0 {
		return 0, errs.ErrEmptyBatch
	}

	req := domain.ProofRequest{
		Recipient:      w.recipient,
		PaymentAccount: payments[0].PaymentAccount,
		PublicKey:      key,
		Payments:       make([]domain.PaymentProof, 0, len(payments)),
	}
	for _, p := range payments {
		req.Payments = append(req.Payments, domain.PaymentProof{Signature: p.Signature, Amount: p.Amount, Nonce: p.Nonce})
	}

	if err := w.sender.SendMessage(ctx, managerID, protocol.ProofRequest{ProofRequest: req}); err != nil {
		return 0, err
	}
	return req.BatchSize(), nil
}

func proofID(managerID string, minNonce, maxNonce uint64) string {
	return fmt.Sprintf("%s/%020d-%020d", managerID, maxNonce, minNonce)
}

func (w *Wallet) HandleProofResponse(ctx context.Context, managerID string, msg protocol.ProofResponse) error {
	resp := msg.ProofResponse
	if len(resp.Signals) < 3 {
		return fmt.Errorf("proof response has %d public signals: %w", len(resp.Signals), errs.ErrMalformedMessage)
	}
	var nums [3]uint64
	for i := range nums {
		n, err := strconv.ParseUint(resp.Signals[i], 10, 64)
		if err != nil {
			return fmt.Errorf("proof signal %d: %w", i, errs.ErrMalformedMessage)
		}
		nums[i] = n
	}

	rec := domain.ProofRecord{
		Manager:   managerID,
		Amount:    nums[0],
		MinNonce:  nums[1],
		MaxNonce:  nums[2],
		Proof:     resp,
		CreatedAt: w.now(),
	}
	if err := w.proofs.Put(ctx, proofID(managerID, rec.MinNonce, rec.MaxNonce), rec); err != nil {
		return err
	}

	w.logger.Info("Proof stored", "manager", managerID, "minNonce", rec.MinNonce, "maxNonce", rec.MaxNonce, "amount", rec.Amount)
	w.publisher.Publish(ctx, domain.Event{Type: domain.EventProofCreated, Timestamp: w.now(), PeerID: managerID, Payload: rec})
	return nil
}

func (w *Wallet) ListProofs(ctx context.Context, managerID string) ([]domain.ProofRecord, error) {
	items, err := w.proofs.Query(ctx, eventstore.Query[domain.ProofRecord]{Prefix: managerID + "/"})
	if err != nil {
		return nil, err
	}
	recs := make([]domain.ProofRecord, len(items))
	for i, it := range items {
		recs[i] = it.Record
	}
	return recs, nil
}

func (w *Wallet) BuildBulkProofRequest(ctx context.Context, managerID string) (domain.BulkProofRequest, error) {
	recs, err := w.ListProofs(ctx, managerID)
	if err != nil {
		return domain.BulkProofRequest{}, err
	}
	if len(recs) == 0 {
		return domain.BulkProofRequest{}, errs.ErrEmptyBatch
	}

	payments, err := w.store.List(ctx, managerID)
	if err != nil {
		return domain.BulkProofRequest{}, err
	}
	bulk := domain.BulkProofRequest{Recipient: w.recipient, Proofs: make([]domain.ProofResponse, 0, len(recs))}
	if len(payments) > 0 {
		bulk.PaymentAccount = payments[0].PaymentAccount
	}
	for _, rec := range recs {
		bulk.Proofs = append(bulk.Proofs, rec.Proof)
	}

	w.publisher.Publish(ctx, domain.Event{Type: domain.EventProofBulk, Timestamp: w.now(), PeerID: managerID, Payload: bulk})
	return bulk, nil
}

func (w *Wallet) HighestNonce(ctx context.Context, managerID string) (uint64, error) {
	return w.store.GetHighestNonce(ctx, managerID)
}

func (w *Wallet) ListPayments(ctx context.Context, managerID string) ([]domain.Payment, error) {
	return w.store.List(ctx, managerID)
}
