package workers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/handlers"
	"gitlab.com/effect-network.net/internal/handlers/response"
)

// Directory is what the handler needs from the session service
type Directory interface {
	Peers(role domain.Role) []string
	Get(peerID string) (domain.SessionData, bool)
}

// Queue lists the workers waiting for an assignment
type Queue interface {
	Workers(ctx context.Context) ([]string, error)
}

// WorkerInfo describes one connected worker
type WorkerInfo struct {
	PeerID    string `json:"peerId"`
	Recipient string `json:"recipient,omitempty"`
	Nonce     uint64 `json:"nonce"`
	Idle      bool   `json:"idle"`
}

type Handler struct {
	sessions Directory
	queue    Queue
	logger   primary.Logger
}

func NewHandler(sessions Directory, queue Queue, logger primary.Logger) *Handler {
	return &Handler{sessions: sessions, queue: queue, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/workers", h.GetWorkers).Methods("GET")
}

// GetWorkers lists connected workers; ?idle=true keeps the queued ones only
func (h *Handler) GetWorkers(w http.ResponseWriter, r *http.Request) {
	queued, err := h.queue.Workers(r.Context())
	if err != nil {
		h.logger.Error("Failed to list worker queue", "error", err)
		handlers.ResponseServiceError(w, err)
		return
	}
	idle := make(map[string]bool, len(queued))
	for _, id := range queued {
		idle[id] = true
	}

	onlyIdle := r.URL.Query().Get("idle") == "true"
	var out []WorkerInfo
	for _, id := range h.sessions.Peers(domain.RoleWorker) {
		if onlyIdle && !idle[id] {
			continue
		}
		data, _ := h.sessions.Get(id)
		out = append(out, WorkerInfo{
			PeerID:    id,
			Recipient: data.Recipient,
			Nonce:     data.Nonce,
			Idle:      idle[id],
		})
	}
	response.WriteSuccess(w, response.NewList(out))
}
