package payment

import (
	"context"

	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
)

// SessionLookup resolves the session data a peer announced on connect
type SessionLookup interface {
	Get(peerID string) (domain.SessionData, bool)
}

// UnpaidTasks is the part of the task service payouts are computed from
type UnpaidTasks interface {
	ListUnpaid(ctx context.Context, worker string) ([]domain.TaskRecord, error)
	MarkPaid(ctx context.Context, id string, nonce uint64) error
}

// IPaymentManager settles worker rewards on the manager
type IPaymentManager interface {
	// GeneratePayout signs and stores the next payment for peer. It returns
	// nil when nothing is owed.
	GeneratePayout(ctx context.Context, peerID string) (*domain.Payment, error)

	// Payout generates the next payment for peer and sends it
	Payout(ctx context.Context, peerID string) (*domain.Payment, error)

	// GeneratePaymentProof proves a batch of payments issued to peer. The
	// batch must hold stored payments in strictly increasing nonce order.
	GeneratePaymentProof(ctx context.Context, peerID string, req domain.ProofRequest) (domain.ProofResponse, error)

	// Resupply resends the payments a reconnecting worker has not seen
	Resupply(ctx context.Context, peerID string, knownNonce uint64) (int, error)

	ListPayments(ctx context.Context, peerID string) ([]domain.Payment, error)

	HandlePayoutRequest(ctx context.Context, peerID string, msg protocol.PayoutRequest) error
	HandleProofRequest(ctx context.Context, peerID string, msg protocol.ProofRequest) error
}

// IWallet keeps the payments a worker received
type IWallet interface {
	HandlePayment(ctx context.Context, managerID string, msg protocol.Payment) error
	HandleProofResponse(ctx context.Context, managerID string, msg protocol.ProofResponse) error

	// RequestPayout asks the manager to pay for completed tasks
	RequestPayout(ctx context.Context, managerID string) error

	// RequestProof asks for a proof over the stored payments from fromNonce on
	RequestProof(ctx context.Context, managerID string, fromNonce uint64) (int, error)

	// BuildBulkProofRequest aggregates the stored proofs of a manager
	BuildBulkProofRequest(ctx context.Context, managerID string) (domain.BulkProofRequest, error)

	HighestNonce(ctx context.Context, managerID string) (uint64, error)
	ListPayments(ctx context.Context, managerID string) ([]domain.Payment, error)
	ListProofs(ctx context.Context, managerID string) ([]domain.ProofRecord, error)
}
