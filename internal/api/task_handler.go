package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/tasker/internal/api/shared"
	"github.com/phrazzld/tasker/internal/domain"
	"github.com/phrazzld/tasker/internal/service"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With("component", "task_handler"),
	}
}

// CreateTask handles POST /tasks/new requests
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeErrorMessage(err))
		return
	}

	var (
		task *domain.Task
		err  error
	)
	switch {
	case req.Webhook != nil:
		if err := shared.ValidateRequest(req.Webhook); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
			return
		}
		executionTime, parseErr := parseExecutionTime(req.Webhook.ExecutionTime)
		if parseErr != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeErrorMessage(parseErr))
			return
		}
		task, err = h.taskService.CreateWebhookTask(
			r.Context(), req.Webhook.URL, req.Webhook.Body, executionTime)

	default:
		if err := shared.ValidateRequest(req.Hash); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
			return
		}
		executionTime, parseErr := parseExecutionTime(req.Hash.ExecutionTime)
		if parseErr != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeErrorMessage(parseErr))
			return
		}
		task, err = h.taskService.CreateHashTask(
			r.Context(), req.Hash.Secret, executionTime)
	}

	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, CreateTaskResponse{ID: task.ID.String()})
}

// GetTask handles GET /tasks/{id} requests
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// ListTasksByKind handles GET /tasks/type/{type} requests
func (h *TaskHandler) ListTasksByKind(w http.ResponseWriter, r *http.Request) {
	kind := domain.TaskKind(chi.URLParam(r, "type"))
	if !domain.IsValidTaskKind(kind) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task type")
		return
	}

	tasks, err := h.taskService.ListTasksByKind(r.Context(), kind)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(tasks))
}

// ListTasksByState handles GET /tasks/state/{state} requests
func (h *TaskHandler) ListTasksByState(w http.ResponseWriter, r *http.Request) {
	state := domain.TaskState(chi.URLParam(r, "state"))
	if !domain.IsValidTaskState(state) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task state")
		return
	}

	tasks, err := h.taskService.ListTasksByState(r.Context(), state)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(tasks))
}

// DeleteTask handles DELETE /tasks/{id} requests
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), id); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
