package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/todo-agent/internal/database"
	"github.com/benvon/todo-agent/internal/middleware"
	"github.com/benvon/todo-agent/internal/models"
	"github.com/benvon/todo-agent/internal/services/tagops"
	"github.com/benvon/todo-agent/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	// DefaultPageSize is the default page size for pagination
	DefaultPageSize = 100
	// MaxPageSize is the maximum page size for pagination
	MaxPageSize = 500
)

// TaskHandler handles task-related requests. Reads go straight to the
// repository; anything that can touch tags goes through the operations layer
// so extraction, caching, and conversation context stay consistent.
type TaskHandler struct {
	taskRepo database.TaskRepositoryInterface
	ops      *tagops.Service
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskRepo database.TaskRepositoryInterface, ops *tagops.Service) *TaskHandler {
	return &TaskHandler{taskRepo: taskRepo, ops: ops}
}

// RegisterRoutes registers task routes on the given router
// The router should already have the /tasks prefix
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("", h.CreateTask).Methods("POST")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTask).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteTask).Methods("DELETE")
	r.HandleFunc("/{id}/complete", h.CompleteTask).Methods("POST")
	r.HandleFunc("/{id}/tags", h.UpdateTags).Methods("PUT")
	r.HandleFunc("/{id}/tags", h.RemoveTags).Methods("DELETE")
}

// UpdateTaskRequest represents an update task request
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
}

// TagsRequest carries tags for the tag subresource endpoints. On update,
// tags merge with the existing set while a non-null replace_tags replaces it
// outright; remove_all only applies to removal.
type TagsRequest struct {
	Tags        []string `json:"tags"`
	ReplaceTags []string `json:"replace_tags,omitempty"`
	RemoveAll   bool     `json:"remove_all,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// ListTasksResponse represents the paginated response for listing tasks
type ListTasksResponse struct {
	Tasks      []*models.Task `json:"tasks"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// ListTasks lists tasks for the authenticated user with pagination and
// optional tag/completed/priority filters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	ctx := r.Context()

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	pageSize := DefaultPageSize
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 {
			if parsed > MaxPageSize {
				pageSize = MaxPageSize
			} else {
				pageSize = parsed
			}
		}
	}

	filter := database.TaskFilter{
		Tags: r.URL.Query()["tag"],
	}

	if c := r.URL.Query().Get("completed"); c != "" {
		completed := c == "true"
		filter.Completed = &completed
	}

	if p := r.URL.Query().Get("priority"); p != "" {
		if err := validation.ValidatePriority(p); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		priority := models.Priority(p)
		filter.Priority = &priority
	}

	tasks, total, err := h.taskRepo.GetByUserIDPaginated(ctx, user.ID, filter, page, pageSize)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	respondJSON(w, http.StatusOK, ListTasksResponse{
		Tasks:      tasks,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req tagops.AddTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	task, err := h.ops.AddTask(r.Context(), user.ID, req)
	if err != nil {
		respondTagOpsError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// GetTask retrieves a single task
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	task, err := h.taskRepo.GetByID(r.Context(), taskID)
	if err != nil || task.UserID != user.ID {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateTask updates task fields other than tags
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	ctx := r.Context()
	task, err := h.taskRepo.GetByID(ctx, taskID)
	if err != nil || task.UserID != user.ID {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}

	if req.Title != nil {
		title := validation.SanitizeText(*req.Title)
		if title == "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title cannot be empty")
			return
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = validation.SanitizeText(*req.Description)
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.Priority != nil {
		if err := validation.ValidatePriority(*req.Priority); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		task.Priority = models.Priority(*req.Priority)
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
		if *req.Completed && task.CompletedAt == nil {
			now := time.Now()
			task.CompletedAt = &now
		} else if !*req.Completed {
			task.CompletedAt = nil
		}
	}

	if err := h.taskRepo.Update(ctx, task); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update task")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	if err := h.ops.DeleteTask(r.Context(), user.ID, &taskID); err != nil {
		respondTagOpsError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CompleteTask marks a task as completed
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	task, err := h.ops.CompleteTask(r.Context(), user.ID, &taskID)
	if err != nil {
		respondTagOpsError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateTags merges tags onto a task, or replaces the tag set when the
// request carries replace_tags
func (h *TaskHandler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	var req TagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	task, err := h.ops.UpdateTags(r.Context(), user.ID, tagops.UpdateTagsRequest{
		TaskID:      &taskID,
		Tags:        req.Tags,
		ReplaceTags: req.ReplaceTags,
		Message:     req.Message,
	})
	if err != nil {
		respondTagOpsError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// RemoveTags removes tags from a task
func (h *TaskHandler) RemoveTags(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	var req TagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	task, err := h.ops.RemoveTags(r.Context(), user.ID, tagops.RemoveTagsRequest{
		TaskID:    &taskID,
		Tags:      req.Tags,
		RemoveAll: req.RemoveAll,
		Message:   req.Message,
	})
	if err != nil {
		respondTagOpsError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// respondTagOpsError maps operation-layer errors onto HTTP statuses.
func respondTagOpsError(w http.ResponseWriter, err error) {
	var validationErr *tagops.ValidationError
	if errors.As(err, &validationErr) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validationErr.Error())
		return
	}

	var clarify *tagops.ClarificationNeededError
	if errors.As(err, &clarify) {
		respondJSONError(w, http.StatusUnprocessableEntity, "Clarification Needed", clarify.Question)
		return
	}

	var notPresent *tagops.TagNotPresentError
	if errors.As(err, &notPresent) {
		respondJSONError(w, http.StatusConflict, "Conflict", notPresent.Error())
		return
	}

	var notFound *tagops.NotFoundError
	if errors.As(err, &notFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", notFound.Error())
		return
	}

	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Operation failed")
}
