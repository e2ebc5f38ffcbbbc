package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/core/services/eventstore"
	"gitlab.com/effect-network.net/internal/domain"
)

const (
	ManagerNamespace = "payments"
	WalletNamespace  = "wallet"

	// maxNonceScan bounds the keys inspected by GetHighestNonce
	maxNonceScan = 64
)

// Store keeps payment records under "<peer>/<nonce>" with nonces zero padded
// so key order is numeric order
type Store struct {
	records *eventstore.Store[domain.PaymentRecord]
	now     func() time.Time
}

func NewStore(ds secondary.Datastore, namespace string) *Store {
	return &Store{
		records: eventstore.New[domain.PaymentRecord](ds, namespace, nil),
		now:     time.Now,
	}
}

func paymentID(peer string, nonce uint64) string {
	return fmt.Sprintf("%s/%020d", peer, nonce)
}

func peerPrefix(peer string) string {
	return peer + "/"
}

func parseNonce(id string) (uint64, bool) {
	i := strings.LastIndexByte(id, '/')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(id[i+1:], 10, 64)
	return n, err == nil
}

// CreatePayment stores p for peer together with the tasks it settles. A
// second payment with the same nonce fails with errs.ErrAlreadyExists.
// Nonce ordering is the caller's concern.
func (s *Store) CreatePayment(ctx context.Context, peer string, p domain.Payment, tasks ...string) (domain.PaymentRecord, error) {
	rec := domain.PaymentRecord{
		Events: []domain.PaymentEvent{{Type: domain.PaymentEventCreate, Timestamp: s.now()}},
		State:  p,
		Tasks:  tasks,
	}
	if err := s.records.Create(ctx, paymentID(peer, p.Nonce), rec); err != nil {
		return domain.PaymentRecord{}, err
	}
	return rec, nil
}

func (s *Store) Get(ctx context.Context, peer string, nonce uint64) (domain.Payment, error) {
	rec, err := s.records.Get(ctx, paymentID(peer, nonce))
	if err != nil {
		return domain.Payment{}, err
	}
	return rec.State, nil
}

// GetHighestNonce returns the largest stored nonce for peer, or 0
func (s *Store) GetHighestNonce(ctx context.Context, peer string) (uint64, error) {
	ids, err := s.records.QueryIDs(ctx, peerPrefix(peer), secondary.OrderDesc, maxNonceScan)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if n, ok := parseNonce(id); ok {
			return n, nil
		}
	}
	return 0, nil
}

// GetFrom returns the payments of peer with a nonce of at least nonce, in
// nonce order
func (s *Store) GetFrom(ctx context.Context, peer string, nonce uint64) ([]domain.Payment, error) {
	items, err := s.records.Query(ctx, eventstore.Query[domain.PaymentRecord]{
		Prefix: peerPrefix(peer),
		Filter: func(_ string, rec domain.PaymentRecord) bool { return rec.State.Nonce >= nonce },
	})
	if err != nil {
		return nil, err
	}
	payments := make([]domain.Payment, len(items))
	for i, it := range items {
		payments[i] = it.Record.State
	}
	return payments, nil
}

// CoveredTasks maps every task settled by a stored payment of peer to the
// nonce of that payment
func (s *Store) CoveredTasks(ctx context.Context, peer string) (map[string]uint64, error) {
	items, err := s.records.Query(ctx, eventstore.Query[domain.PaymentRecord]{
		Prefix: peerPrefix(peer),
		Filter: func(_ string, rec domain.PaymentRecord) bool { return len(rec.Tasks) > 0 },
	})
	if err != nil {
		return nil, err
	}
	covered := make(map[string]uint64)
	for _, it := range items {
		for _, id := range it.Record.Tasks {
			covered[id] = it.Record.State.Nonce
		}
	}
	return covered, nil
}

func (s *Store) List(ctx context.Context, peer string) ([]domain.Payment, error) {
	return s.GetFrom(ctx, peer, 0)
}
