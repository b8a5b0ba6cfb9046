package handlers

import (
	"net/http"

	"github.com/benvon/todo-agent/internal/middleware"
	"github.com/benvon/todo-agent/internal/services/tagops"
	"github.com/gorilla/mux"
)

// TagHandler exposes the per-user tag inventory.
type TagHandler struct {
	ops *tagops.Service
}

// NewTagHandler creates a new tag handler
func NewTagHandler(ops *tagops.Service) *TagHandler {
	return &TagHandler{ops: ops}
}

// RegisterRoutes registers tag routes on the given router
func (h *TagHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tags", h.ListTags).Methods("GET")
}

// ListTags lists the distinct tags across the user's tasks.
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	result, err := h.ops.ListTags(r.Context(), user.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list tags")
		return
	}

	respondJSON(w, http.StatusOK, result)
}
