package templates

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/services/template"
	"gitlab.com/effect-network.net/internal/handlers"
	"gitlab.com/effect-network.net/internal/handlers/response"
)

type CreateTemplateRequest struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type Handler struct {
	templates template.ITemplateService
	logger    primary.Logger
}

func NewHandler(templates template.ITemplateService, logger primary.Logger) *Handler {
	return &Handler{templates: templates, logger: logger}
}

// RegisterRoutes registers the template routes; create is left out on workers
func (h *Handler) RegisterRoutes(router *mux.Router, writable bool) {
	if writable {
		router.HandleFunc("/api/templates", h.CreateTemplate).Methods("POST")
	}
	router.HandleFunc("/api/templates", h.ListTemplates).Methods("GET")
	router.HandleFunc("/api/templates/{templateId}", h.GetTemplate).Methods("GET")
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		handlers.ResponseError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	tpl, err := h.templates.CreateTemplate(r.Context(), req.ID, req.Data)
	if err != nil {
		h.logger.Error("Failed to create template", "error", err)
		handlers.ResponseServiceError(w, err)
		return
	}
	handlers.ResponseWithJson(w, http.StatusCreated, tpl)
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.templates.GetTemplate(r.Context(), mux.Vars(r)["templateId"])
	if err != nil {
		handlers.ResponseServiceError(w, err)
		return
	}
	response.WriteSuccess(w, tpl)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := h.templates.ListTemplates(r.Context())
	if err != nil {
		h.logger.Error("Failed to list templates", "error", err)
		handlers.ResponseServiceError(w, err)
		return
	}
	response.WriteSuccess(w, response.NewList(tpls))
}
