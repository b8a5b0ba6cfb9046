package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/benvon/todo-agent/internal/database"
	"github.com/benvon/todo-agent/internal/models"
	"github.com/benvon/todo-agent/internal/services/tagops"
	"github.com/benvon/todo-agent/internal/tagcache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type stubTaskStore struct {
	tasks map[uuid.UUID]*models.Task
}

func newStubTaskStore() *stubTaskStore {
	return &stubTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func (s *stubTaskStore) Create(_ context.Context, task *models.Task) error {
	s.tasks[task.ID] = task
	return nil
}

func (s *stubTaskStore) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task not found")
	}
	copied := *task
	return &copied, nil
}

func (s *stubTaskStore) GetByUserID(_ context.Context, userID uuid.UUID, filter database.TaskFilter) ([]*models.Task, error) {
	var out []*models.Task
	for _, task := range s.tasks {
		if task.UserID != userID {
			continue
		}
		match := true
		for _, tag := range filter.Tags {
			if !task.HasTag(tag) {
				match = false
				break
			}
		}
		if match {
			out = append(out, task)
		}
	}
	return out, nil
}

func (s *stubTaskStore) GetByUserIDPaginated(ctx context.Context, userID uuid.UUID, filter database.TaskFilter, page, pageSize int) ([]*models.Task, int, error) {
	tasks, err := s.GetByUserID(ctx, userID, filter)
	return tasks, len(tasks), err
}

func (s *stubTaskStore) Update(_ context.Context, task *models.Task) error {
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *stubTaskStore) SetTags(_ context.Context, id uuid.UUID, tags []string) (*models.Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task not found")
	}
	task.Tags = tags
	copied := *task
	return &copied, nil
}

func (s *stubTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.tasks, id)
	return nil
}

func (s *stubTaskStore) ListTags(_ context.Context, userID uuid.UUID) ([]string, error) {
	seen := make(map[string]bool)
	for _, task := range s.tasks {
		if task.UserID == userID {
			for _, tag := range task.Tags {
				seen[tag] = true
			}
		}
	}
	var out []string
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

func newTestChatService() *ChatService {
	ops := tagops.NewService(newStubTaskStore(), tagcache.NewMemoryCache(tagcache.DefaultTTL), nil, zap.NewNop())
	return NewChatService(NewRuleInterpreter(), ops, zap.NewNop())
}

func TestChatAddThenTagThenList(t *testing.T) {
	t.Parallel()

	svc := newTestChatService()
	userID := uuid.New()
	ctx := context.Background()

	resp, err := svc.Respond(ctx, userID, "add buy milk tagged with home, urgent")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp.Intent != IntentAddTask {
		t.Fatalf("Intent = %q, want add_task", resp.Intent)
	}
	if !strings.Contains(resp.Message, "buy milk") || !strings.Contains(resp.Message, "home, urgent") {
		t.Errorf("Message = %q, want title and tags mentioned", resp.Message)
	}

	resp, err = svc.Respond(ctx, userID, "what tags do I have")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp.Message != "You have 2 tags: home, urgent" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestChatFilterByTag(t *testing.T) {
	t.Parallel()

	svc := newTestChatService()
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Respond(ctx, userID, "add write report tagged with work"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if _, err := svc.Respond(ctx, userID, "add buy milk tagged with home"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	resp, err := svc.Respond(ctx, userID, "show me tasks tagged with work")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(resp.Tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(resp.Tasks))
	}
	if resp.Tasks[0].Title != "write report" {
		t.Errorf("Title = %q, want %q", resp.Tasks[0].Title, "write report")
	}
}

func TestChatRemoveTagFromThisTask(t *testing.T) {
	t.Parallel()

	svc := newTestChatService()
	userID := uuid.New()
	ctx := context.Background()

	// Removal with no task in context asks for clarification.
	resp, err := svc.Respond(ctx, userID, "remove the urgent tag")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp.Message != "Which task do you mean?" {
		t.Errorf("Message = %q, want clarification question", resp.Message)
	}
}

func TestChatMissingTagIsNamedInReply(t *testing.T) {
	t.Parallel()

	store := newStubTaskStore()
	ops := tagops.NewService(store, tagcache.NewMemoryCache(tagcache.DefaultTTL), nil, zap.NewNop())
	svc := NewChatService(NewRuleInterpreter(), ops, zap.NewNop())
	userID := uuid.New()
	ctx := context.Background()

	task, err := ops.AddTask(ctx, userID, tagops.AddTaskRequest{Title: "buy milk", Tags: []string{"home"}})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	// Bind the task into the conversation context.
	if _, err := ops.UpdateTags(ctx, userID, tagops.UpdateTagsRequest{TaskID: &task.ID, Tags: []string{"errand"}}); err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}

	resp, err := svc.Respond(ctx, userID, "remove the urgent tag")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !strings.Contains(resp.Message, `"urgent"`) {
		t.Errorf("Message = %q, want it to name the missing tag", resp.Message)
	}
}

func TestChatSmallTalk(t *testing.T) {
	t.Parallel()

	svc := newTestChatService()

	resp, err := svc.Respond(context.Background(), uuid.New(), "hello there")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp.Intent != IntentSmallTalk || resp.Message == "" {
		t.Errorf("expected a small talk reply, got %+v", resp)
	}
}

func TestChatSessionHistoryAccumulates(t *testing.T) {
	t.Parallel()

	svc := newTestChatService()
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Respond(ctx, userID, "add buy milk"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if _, err := svc.Respond(ctx, userID, "what tags do I have"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	session := svc.GetOrCreateSession(userID)
	// Two user turns and two assistant replies.
	if len(session.Messages) != 4 {
		t.Errorf("len(Messages) = %d, want 4", len(session.Messages))
	}

	svc.CloseSession(userID)
	if len(svc.GetOrCreateSession(userID).Messages) != 0 {
		t.Error("expected a fresh session after close")
	}
}
