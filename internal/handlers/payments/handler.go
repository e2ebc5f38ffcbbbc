package payments

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/services/payment"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/handlers"
	"gitlab.com/effect-network.net/internal/handlers/response"
	"gitlab.com/effect-network.net/internal/static/errs"
)

// ManagerHandler exposes payouts of a manager
type ManagerHandler struct {
	payments payment.IPaymentManager
	logger   primary.Logger
}

func NewManagerHandler(payments payment.IPaymentManager, logger primary.Logger) *ManagerHandler {
	return &ManagerHandler{payments: payments, logger: logger}
}

func (h *ManagerHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/payouts/{peerId}", h.Payout).Methods("POST")
	router.HandleFunc("/api/payments/{peerId}", h.ListPayments).Methods("GET")
}

// Payout pays a worker for its completed tasks. 204 means nothing was owed;
// 202 means the payment was stored but could not be delivered yet.
func (h *ManagerHandler) Payout(w http.ResponseWriter, r *http.Request) {
	peerID := mux.Vars(r)["peerId"]
	p, err := h.payments.Payout(r.Context(), peerID)
	switch {
	case err != nil && p != nil && errors.Is(err, errs.ErrPeerNotConnected):
		h.logger.Warn("Payment stored but not delivered", "peer", peerID, "nonce", p.Nonce)
		handlers.ResponseWithJson(w, http.StatusAccepted, p)
	case err != nil:
		h.logger.Error("Payout failed", "peer", peerID, "error", err)
		handlers.ResponseServiceError(w, err)
	case p == nil:
		w.WriteHeader(http.StatusNoContent)
	default:
		handlers.ResponseWithJson(w, http.StatusCreated, p)
	}
}

func (h *ManagerHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	list, err := h.payments.ListPayments(r.Context(), mux.Vars(r)["peerId"])
	if err != nil {
		handlers.ResponseServiceError(w, err)
		return
	}
	response.WriteSuccess(w, response.NewList(list))
}

// Managers lists the managers a worker holds a session with
type Managers interface {
	Managers() []string
}

// ManagerRequest names the manager to act on; empty means every connected one
type ManagerRequest struct {
	Manager   string `json:"manager"`
	FromNonce uint64 `json:"fromNonce"`
}

// WalletHandler exposes the wallet of a worker
type WalletHandler struct {
	wallet   payment.IWallet
	managers Managers
	logger   primary.Logger
}

func NewWalletHandler(wallet payment.IWallet, managers Managers, logger primary.Logger) *WalletHandler {
	return &WalletHandler{wallet: wallet, managers: managers, logger: logger}
}

func (h *WalletHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/payouts", h.RequestPayout).Methods("POST")
	router.HandleFunc("/api/proofs", h.RequestProof).Methods("POST")
	router.HandleFunc("/api/proofs", h.ListProofs).Methods("GET")
	router.HandleFunc("/api/proofs/bulk", h.BulkProof).Methods("POST")
	router.HandleFunc("/api/payments", h.ListPayments).Methods("GET")
}

// targets decodes the request and resolves the managers it addresses
func (h *WalletHandler) targets(w http.ResponseWriter, r *http.Request) (ManagerRequest, []string, bool) {
	var req ManagerRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.ResponseError(w, "Invalid request", http.StatusBadRequest)
		return req, nil, false
	}
	if q := r.URL.Query().Get("manager"); q != "" {
		req.Manager = q
	}
	if req.Manager != "" {
		return req, []string{req.Manager}, true
	}
	ids := h.managers.Managers()
	if len(ids) == 0 {
		handlers.ResponseError(w, "no manager connected", http.StatusServiceUnavailable)
		return req, nil, false
	}
	return req, ids, true
}

type requested struct {
	Manager string `json:"manager"`
	Count   int    `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *WalletHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	_, ids, ok := h.targets(w, r)
	if !ok {
		return
	}
	out := make([]requested, 0, len(ids))
	for _, id := range ids {
		res := requested{Manager: id}
		if err := h.wallet.RequestPayout(r.Context(), id); err != nil {
			h.logger.Warn("Payout request failed", "manager", id, "error", err)
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	handlers.ResponseWithJson(w, http.StatusAccepted, response.NewList(out))
}

func (h *WalletHandler) RequestProof(w http.ResponseWriter, r *http.Request) {
	req, ids, ok := h.targets(w, r)
	if !ok {
		return
	}
	out := make([]requested, 0, len(ids))
	for _, id := range ids {
		res := requested{Manager: id}
		n, err := h.wallet.RequestProof(r.Context(), id, req.FromNonce)
		if err != nil {
			h.logger.Warn("Proof request failed", "manager", id, "error", err)
			res.Error = err.Error()
		}
		res.Count = n
		out = append(out, res)
	}
	handlers.ResponseWithJson(w, http.StatusAccepted, response.NewList(out))
}

func (h *WalletHandler) BulkProof(w http.ResponseWriter, r *http.Request) {
	_, ids, ok := h.targets(w, r)
	if !ok {
		return
	}
	var out []domain.BulkProofRequest
	for _, id := range ids {
		bulk, err := h.wallet.BuildBulkProofRequest(r.Context(), id)
		if errors.Is(err, errs.ErrEmptyBatch) && len(ids) > 1 {
			continue
		}
		if err != nil {
			handlers.ResponseServiceError(w, err)
			return
		}
		out = append(out, bulk)
	}
	response.WriteSuccess(w, response.NewList(out))
}

func (h *WalletHandler) ListProofs(w http.ResponseWriter, r *http.Request) {
	var out []domain.ProofRecord
	for _, id := range h.known(r) {
		list, err := h.wallet.ListProofs(r.Context(), id)
		if err != nil {
			handlers.ResponseServiceError(w, err)
			return
		}
		out = append(out, list...)
	}
	response.WriteSuccess(w, response.NewList(out))
}

func (h *WalletHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	var out []domain.Payment
	for _, id := range h.known(r) {
		list, err := h.wallet.ListPayments(r.Context(), id)
		if err != nil {
			handlers.ResponseServiceError(w, err)
			return
		}
		out = append(out, list...)
	}
	response.WriteSuccess(w, response.NewList(out))
}

// known resolves ?manager= or falls back to the connected managers
func (h *WalletHandler) known(r *http.Request) []string {
	if q := r.URL.Query().Get("manager"); q != "" {
		return []string{q}
	}
	return h.managers.Managers()
}
