package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/benvon/todo-agent/internal/middleware"
	"github.com/benvon/todo-agent/internal/services/agent"
	"github.com/gorilla/mux"
)

// ChatHandler handles chat requests against the conversational agent
type ChatHandler struct {
	chatService *agent.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *agent.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chat", h.StartChat).Methods("POST")
	r.HandleFunc("/chat/message", h.SendMessage).Methods("POST")
}

// ChatMessageRequest represents a chat message request
type ChatMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// StartChat starts a chat session and returns an SSE stream. Closing the
// stream ends the session and discards the user's conversation context.
func (h *ChatHandler) StartChat(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	// Set up SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	session := h.chatService.GetOrCreateSession(user.ID)

	if _, err := fmt.Fprintf(w, "data: %s\n\n", h.formatSSEMessage("connected", map[string]any{
		"message":    "Chat session started",
		"session_id": session.UserID.String(),
	})); err != nil {
		log.Printf("Failed to write SSE message: %v", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if ok {
		flusher.Flush()
	}

	// Keep connection alive with ping every 30 seconds
	ctx := r.Context()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			}
		}
	}()

	// Wait for client disconnect
	<-ctx.Done()

	h.chatService.CloseSession(user.ID)
}

// SendMessage sends a message in the chat session
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req ChatMessageRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if req.Message == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Message is required")
		return
	}

	response, err := h.chatService.Respond(r.Context(), user.ID, req.Message)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get a response")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// formatSSEMessage formats a message for SSE
func (h *ChatHandler) formatSSEMessage(event string, data any) string {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(`{"event":"%s","data":%s}`, event, string(jsonData))
}
