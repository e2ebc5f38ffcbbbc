package handlers

import (
	"context"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/services/payment"
	"gitlab.com/effect-network.net/internal/protocol"
)

var (
	_ primary.MessageHandler = (*PaymentRequestHandler)(nil)
	_ primary.MessageHandler = (*WalletHandler)(nil)
)

// PaymentRequestHandler serves payout and proof requests on a manager
type PaymentRequestHandler struct {
	Payments payment.IPaymentManager
	Logger   primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *PaymentRequestHandler) HandleMessage(ctx context.Context, peerID string, msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.PayoutRequest:
		return h.Payments.HandlePayoutRequest(ctx, peerID, m)
	case protocol.ProofRequest:
		h.Logger.Info("Proof requested", "peer", peerID, "payments", m.BatchSize())
		return h.Payments.HandleProofRequest(ctx, peerID, m)
	}
	return unexpected(msg)
}

// WalletHandler stores payments and proofs a worker receives
type WalletHandler struct {
	Wallet payment.IWallet
	Logger primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *WalletHandler) HandleMessage(ctx context.Context, peerID string, msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.Payment:
		return h.Wallet.HandlePayment(ctx, peerID, m)
	case protocol.ProofResponse:
		return h.Wallet.HandleProofResponse(ctx, peerID, m)
	}
	return unexpected(msg)
}
