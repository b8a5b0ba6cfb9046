package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/todo-agent/internal/middleware"
	"github.com/benvon/todo-agent/internal/models"
	"github.com/benvon/todo-agent/internal/services/agent"
	"github.com/benvon/todo-agent/internal/services/tagops"
	"github.com/benvon/todo-agent/internal/tagcache"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func newChatTestRouter() *mux.Router {
	store := newMemoryTaskStore()
	ops := tagops.NewService(store, tagcache.NewMemoryCache(tagcache.DefaultTTL), nil, zap.NewNop())
	chatService := agent.NewChatService(agent.NewRuleInterpreter(), ops, zap.NewNop())

	router := mux.NewRouter()
	NewChatHandler(chatService).RegisterRoutes(router)
	return router
}

func postChatMessage(t *testing.T, router *mux.Router, user *models.User, message string) *httptest.ResponseRecorder {
	t.Helper()

	body := []byte(`{"message": ` + jsonString(message) + `}`)
	req := httptest.NewRequest("POST", "/chat/message", bytes.NewReader(body))
	req = req.WithContext(middleware.SetUserInContext(req.Context(), user))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func jsonString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func TestChatMessageEndpoint(t *testing.T) {
	t.Parallel()

	router := newChatTestRouter()
	user := &models.User{ID: uuid.New(), Email: "test@example.com"}

	rec := postChatMessage(t, router, user, "add buy milk tagged with home")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}

	var resp agent.ChatResponse
	decodeData(t, rec, &resp)
	if resp.Intent != agent.IntentAddTask {
		t.Errorf("Intent = %q, want add_task", resp.Intent)
	}

	rec = postChatMessage(t, router, user, "what tags do I have")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	decodeData(t, rec, &resp)
	if resp.Message != "You have 1 tag: home" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestChatMessageRequiresBody(t *testing.T) {
	t.Parallel()

	router := newChatTestRouter()
	user := &models.User{ID: uuid.New(), Email: "test@example.com"}

	rec := postChatMessage(t, router, user, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatMessageRequiresUser(t *testing.T) {
	t.Parallel()

	router := newChatTestRouter()

	req := httptest.NewRequest("POST", "/chat/message", bytes.NewReader([]byte(`{"message":"hi"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
