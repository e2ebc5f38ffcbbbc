package tasks

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/services/task"
	"gitlab.com/effect-network.net/internal/core/services/workertask"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/handlers"
	"gitlab.com/effect-network.net/internal/handlers/response"
	"gitlab.com/effect-network.net/internal/utils/amount"
)

// ManagerHandler serves the task registry of a manager
type ManagerHandler struct {
	tasks    task.ITaskService
	decimals int32
	logger   primary.Logger
}

func NewManagerHandler(tasks task.ITaskService, decimals int32, logger primary.Logger) *ManagerHandler {
	return &ManagerHandler{tasks: tasks, decimals: decimals, logger: logger}
}

func (h *ManagerHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/tasks", h.CreateTask).Methods("POST")
	router.HandleFunc("/api/tasks", h.ListTasks).Methods("GET")
	router.HandleFunc("/api/tasks/{taskId}", h.GetTask).Methods("GET")
}

func (h *ManagerHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		handlers.ResponseError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	reward, err := amount.Parse(req.Reward, h.decimals)
	if err != nil {
		handlers.ResponseError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.tasks.CreateTask(r.Context(), domain.Task{
		ID:               req.ID,
		Title:            req.Title,
		Reward:           reward,
		TimeLimitSeconds: req.TimeLimitSeconds,
		TemplateID:       req.TemplateID,
		TemplateData:     req.TemplateData,
		Capability:       req.Capability,
	})
	if err != nil {
		h.logger.Error("Failed to create task", "error", err)
		handlers.ResponseServiceError(w, err)
		return
	}
	handlers.ResponseWithJson(w, http.StatusCreated, rec)
}

func (h *ManagerHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	listTasks(w, r, h.tasks.ListTasks, h.logger)
}

func (h *ManagerHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tasks.GetTask(r.Context(), mux.Vars(r)["taskId"])
	if err != nil {
		handlers.ResponseServiceError(w, err)
		return
	}
	response.WriteSuccess(w, rec)
}

// WorkerHandler lets the operator of a worker act on received tasks
type WorkerHandler struct {
	tasks  workertask.IWorkerTaskService
	logger primary.Logger
}

func NewWorkerHandler(tasks workertask.IWorkerTaskService, logger primary.Logger) *WorkerHandler {
	return &WorkerHandler{tasks: tasks, logger: logger}
}

func (h *WorkerHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/tasks", h.ListTasks).Methods("GET")
	router.HandleFunc("/api/tasks/{taskId}", h.GetTask).Methods("GET")
	router.HandleFunc("/api/tasks/{taskId}/accept", h.AcceptTask).Methods("POST")
	router.HandleFunc("/api/tasks/{taskId}/reject", h.RejectTask).Methods("POST")
	router.HandleFunc("/api/tasks/{taskId}/complete", h.CompleteTask).Methods("POST")
}

func (h *WorkerHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	listTasks(w, r, h.tasks.ListTasks, h.logger)
}

func (h *WorkerHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tasks.GetTask(r.Context(), mux.Vars(r)["taskId"])
	if err != nil {
		handlers.ResponseServiceError(w, err)
		return
	}
	response.WriteSuccess(w, rec)
}

func (h *WorkerHandler) AcceptTask(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tasks.AcceptTask(r.Context(), mux.Vars(r)["taskId"])
	h.respond(w, "accept", rec, err)
}

func (h *WorkerHandler) RejectTask(w http.ResponseWriter, r *http.Request) {
	var req RejectTaskRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.ResponseError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	rec, err := h.tasks.RejectTask(r.Context(), mux.Vars(r)["taskId"], req.Reason)
	h.respond(w, "reject", rec, err)
}

func (h *WorkerHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	var req CompleteTaskRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.ResponseError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	rec, err := h.tasks.CompleteTask(r.Context(), mux.Vars(r)["taskId"], req.Result)
	h.respond(w, "complete", rec, err)
}

func (h *WorkerHandler) respond(w http.ResponseWriter, action string, rec domain.TaskRecord, err error) {
	if err != nil {
		h.logger.Warn("Task action failed", "action", action, "error", err)
		handlers.ResponseServiceError(w, err)
		return
	}
	response.WriteSuccess(w, rec)
}

type listFunc func(ctx context.Context, status domain.TaskStatus) ([]domain.TaskRecord, error)

// listTasks filters on the optional ?status= query parameter
func listTasks(w http.ResponseWriter, r *http.Request, list listFunc, logger primary.Logger) {
	status := domain.TaskStatus(r.URL.Query().Get("status"))
	recs, err := list(r.Context(), status)
	if err != nil {
		logger.Error("Failed to list tasks", "error", err)
		handlers.ResponseServiceError(w, err)
		return
	}
	response.WriteSuccess(w, response.NewList(recs))
}
