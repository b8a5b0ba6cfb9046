package tagops

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/benvon/todo-agent/internal/database"
	"github.com/benvon/todo-agent/internal/models"
	"github.com/benvon/todo-agent/internal/queue"
	"github.com/benvon/todo-agent/internal/tagcache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockTaskStore struct {
	tasks         map[uuid.UUID]*models.Task
	listTagsCalls int
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func (m *mockTaskStore) Create(_ context.Context, task *models.Task) error {
	m.tasks[task.ID] = task
	return nil
}

func (m *mockTaskStore) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task not found")
	}
	copied := *task
	return &copied, nil
}

func (m *mockTaskStore) GetByUserID(_ context.Context, userID uuid.UUID, filter database.TaskFilter) ([]*models.Task, error) {
	var out []*models.Task
	for _, task := range m.tasks {
		if task.UserID != userID {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
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

func (m *mockTaskStore) GetByUserIDPaginated(ctx context.Context, userID uuid.UUID, filter database.TaskFilter, page, pageSize int) ([]*models.Task, int, error) {
	tasks, err := m.GetByUserID(ctx, userID, filter)
	return tasks, len(tasks), err
}

func (m *mockTaskStore) Update(_ context.Context, task *models.Task) error {
	if _, ok := m.tasks[task.ID]; !ok {
		return fmt.Errorf("task not found")
	}
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *mockTaskStore) SetTags(_ context.Context, id uuid.UUID, tags []string) (*models.Task, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task not found")
	}
	task.Tags = tags
	copied := *task
	return &copied, nil
}

func (m *mockTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("task not found")
	}
	delete(m.tasks, id)
	return nil
}

func (m *mockTaskStore) ListTags(_ context.Context, userID uuid.UUID) ([]string, error) {
	m.listTagsCalls++
	seen := make(map[string]bool)
	for _, task := range m.tasks {
		if task.UserID != userID {
			continue
		}
		for _, tag := range task.Tags {
			seen[tag] = true
		}
	}
	var out []string
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

type mockJobQueue struct {
	enqueued []*queue.Job
}

func (m *mockJobQueue) Enqueue(_ context.Context, job *queue.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func (m *mockJobQueue) Dequeue(_ context.Context) (*queue.Message, error) { return nil, nil }

func (m *mockJobQueue) Consume(_ context.Context, _ int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(_ context.Context) error { return nil }

func newTestService(store *mockTaskStore, jobs queue.JobQueue) *Service {
	return NewService(store, tagcache.NewMemoryCache(tagcache.DefaultTTL), jobs, zap.NewNop())
}

func TestAddTaskMergesExplicitAndExtractedTags(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	jobs := &mockJobQueue{}
	svc := newTestService(store, jobs)
	userID := uuid.New()

	task, err := svc.AddTask(context.Background(), userID, AddTaskRequest{
		Title:   "buy milk",
		Tags:    []string{"Errand"},
		Message: "add buy milk tagged with home, urgent",
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	if !reflect.DeepEqual(task.Tags, []string{"errand", "home", "urgent"}) {
		t.Errorf("Tags = %v, want [errand home urgent]", task.Tags)
	}
	if task.Priority != models.PriorityMedium {
		t.Errorf("Priority = %q, want default medium", task.Priority)
	}
	var jobTypes []queue.JobType
	for _, job := range jobs.enqueued {
		jobTypes = append(jobTypes, job.Type)
	}
	if !reflect.DeepEqual(jobTypes, []queue.JobType{queue.JobTypeTagStatsRefresh, queue.JobTypeTagCacheWarm}) {
		t.Errorf("enqueued job types = %v, want stats refresh then cache warm", jobTypes)
	}
	// Creation resets the conversation context.
	if svc.ContextFor(userID).ResolveThis() != nil {
		t.Error("expected empty conversation context after creation")
	}
}

func TestAddTaskRejectsInvalidExplicitTag(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockTaskStore(), nil)

	_, err := svc.AddTask(context.Background(), uuid.New(), AddTaskRequest{
		Title: "buy milk",
		Tags:  []string{"bad tag!"},
	})

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAddTaskRequiresTitle(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockTaskStore(), nil)

	_, err := svc.AddTask(context.Background(), uuid.New(), AddTaskRequest{})

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateTagsMergesWithExisting(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()

	task, err := svc.AddTask(context.Background(), userID, AddTaskRequest{
		Title: "buy milk",
		Tags:  []string{"home"},
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	updated, err := svc.UpdateTags(context.Background(), userID, UpdateTagsRequest{
		TaskID: &task.ID,
		Tags:   []string{"urgent", "home"},
	})
	if err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}

	if !reflect.DeepEqual(updated.Tags, []string{"home", "urgent"}) {
		t.Errorf("Tags = %v, want [home urgent]", updated.Tags)
	}
}

func TestUpdateTagsReplaceOverwritesExisting(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()

	task, err := svc.AddTask(context.Background(), userID, AddTaskRequest{
		Title: "buy milk",
		Tags:  []string{"old-a", "old-b"},
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	updated, err := svc.UpdateTags(context.Background(), userID, UpdateTagsRequest{
		TaskID:      &task.ID,
		ReplaceTags: []string{"fresh"},
	})
	if err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}

	if !reflect.DeepEqual(updated.Tags, []string{"fresh"}) {
		t.Errorf("Tags = %v, want [fresh] (existing tags replaced, not merged)", updated.Tags)
	}
}

func TestUpdateTagsEmptyReplaceClearsTags(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()

	task, err := svc.AddTask(context.Background(), userID, AddTaskRequest{
		Title: "buy milk",
		Tags:  []string{"home"},
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	updated, err := svc.UpdateTags(context.Background(), userID, UpdateTagsRequest{
		TaskID:      &task.ID,
		ReplaceTags: []string{},
	})
	if err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}

	if len(updated.Tags) != 0 {
		t.Errorf("Tags = %v, want empty", updated.Tags)
	}
}

func TestUpdateTagsReplaceRejectsInvalidTag(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()

	task, err := svc.AddTask(context.Background(), userID, AddTaskRequest{
		Title: "buy milk",
		Tags:  []string{"home"},
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	_, err = svc.UpdateTags(context.Background(), userID, UpdateTagsRequest{
		TaskID:      &task.ID,
		ReplaceTags: []string{"bad tag!"},
	})

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateTagsResolvesThisFromContext(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()

	task, err := svc.AddTask(context.Background(), userID, AddTaskRequest{Title: "buy milk"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	// Bind the task into the conversation, then refer to it implicitly.
	if _, err := svc.UpdateTags(context.Background(), userID, UpdateTagsRequest{
		TaskID: &task.ID,
		Tags:   []string{"home"},
	}); err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}

	updated, err := svc.UpdateTags(context.Background(), userID, UpdateTagsRequest{
		Tags: []string{"urgent"},
	})
	if err != nil {
		t.Fatalf("UpdateTags via context: %v", err)
	}

	if !reflect.DeepEqual(updated.Tags, []string{"home", "urgent"}) {
		t.Errorf("Tags = %v, want [home urgent]", updated.Tags)
	}
}

func TestUpdateTagsWithoutContextAsksClarification(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockTaskStore(), nil)

	_, err := svc.UpdateTags(context.Background(), uuid.New(), UpdateTagsRequest{
		Tags: []string{"urgent"},
	})

	var clarify *ClarificationNeededError
	if !errors.As(err, &clarify) {
		t.Fatalf("expected ClarificationNeededError, got %v", err)
	}
}

func TestRemoveTagsNamesMissingTag(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()

	task, err := svc.AddTask(context.Background(), userID, AddTaskRequest{
		Title: "buy milk",
		Tags:  []string{"home"},
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	_, err = svc.RemoveTags(context.Background(), userID, RemoveTagsRequest{
		TaskID: &task.ID,
		Tags:   []string{"urgent"},
	})

	var notPresent *TagNotPresentError
	if !errors.As(err, &notPresent) {
		t.Fatalf("expected TagNotPresentError, got %v", err)
	}
	if notPresent.Tag != "urgent" {
		t.Errorf("Tag = %q, want %q", notPresent.Tag, "urgent")
	}
}

func TestRemoveTagsRemoveAllViaMessage(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()

	task, err := svc.AddTask(context.Background(), userID, AddTaskRequest{
		Title: "buy milk",
		Tags:  []string{"home", "urgent"},
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	updated, err := svc.RemoveTags(context.Background(), userID, RemoveTagsRequest{
		TaskID:  &task.ID,
		Message: "remove all tags",
	})
	if err != nil {
		t.Fatalf("RemoveTags: %v", err)
	}

	if len(updated.Tags) != 0 {
		t.Errorf("Tags = %v, want empty", updated.Tags)
	}
}

func TestRemoveTagsViaMessageExtraction(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()

	task, err := svc.AddTask(context.Background(), userID, AddTaskRequest{
		Title: "buy milk",
		Tags:  []string{"home", "urgent"},
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	updated, err := svc.RemoveTags(context.Background(), userID, RemoveTagsRequest{
		TaskID:  &task.ID,
		Message: "remove the urgent tag",
	})
	if err != nil {
		t.Fatalf("RemoveTags: %v", err)
	}

	if !reflect.DeepEqual(updated.Tags, []string{"home"}) {
		t.Errorf("Tags = %v, want [home]", updated.Tags)
	}
}

func TestListTasksFiltersByExtractedTags(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddTask(ctx, userID, AddTaskRequest{Title: "report", Tags: []string{"work"}}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if _, err := svc.AddTask(ctx, userID, AddTaskRequest{Title: "groceries", Tags: []string{"home"}}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	tasks, err := svc.ListTasks(ctx, userID, ListTasksRequest{
		Message: "show me tasks tagged with work",
	})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}

	if len(tasks) != 1 || tasks[0].Title != "report" {
		t.Errorf("expected only the work task, got %d tasks", len(tasks))
	}
}

func TestListTasksWithoutFilterReturnsAll(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddTask(ctx, userID, AddTaskRequest{Title: "report", Tags: []string{"work"}}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if _, err := svc.AddTask(ctx, userID, AddTaskRequest{Title: "groceries"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	tasks, err := svc.ListTasks(ctx, userID, ListTasksRequest{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}

	if len(tasks) != 2 {
		t.Errorf("expected all tasks without a filter, got %d", len(tasks))
	}
}

func TestListTasksAmbiguousMessageAsksClarification(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.AddTask(ctx, userID, AddTaskRequest{Title: "report", Tags: []string{"work"}}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	// No filter template matches, so extraction stays below the confidence
	// threshold and the tasks must not be listed silently.
	_, err := svc.ListTasks(ctx, userID, ListTasksRequest{Message: "what do i have going on"})

	var clarify *ClarificationNeededError
	if !errors.As(err, &clarify) {
		t.Fatalf("expected ClarificationNeededError, got %v", err)
	}
	if clarify.Confidence >= 0.70 {
		t.Errorf("Confidence = %v, want below threshold", clarify.Confidence)
	}
}

func TestListTagsUsesCacheUntilInvalidated(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()
	ctx := context.Background()

	task, err := svc.AddTask(ctx, userID, AddTaskRequest{Title: "report", Tags: []string{"work"}})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	first, err := svc.ListTags(ctx, userID)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if first.Message != "You have 1 tag: work" {
		t.Errorf("Message = %q", first.Message)
	}

	// Second read is served from the cache.
	if _, err := svc.ListTags(ctx, userID); err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if store.listTagsCalls != 1 {
		t.Errorf("listTagsCalls = %d, want 1 (second read cached)", store.listTagsCalls)
	}

	// A tag mutation invalidates the cache; the next read goes to the store.
	if _, err := svc.UpdateTags(ctx, userID, UpdateTagsRequest{TaskID: &task.ID, Tags: []string{"urgent"}}); err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}
	result, err := svc.ListTags(ctx, userID)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if store.listTagsCalls != 2 {
		t.Errorf("listTagsCalls = %d, want 2 (cache invalidated)", store.listTagsCalls)
	}
	if result.Message != "You have 2 tags: urgent, work" {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestListTagsEmptyMessage(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockTaskStore(), nil)

	result, err := svc.ListTags(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if result.Message != "You haven't created any tags yet." {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestResolveTaskEnforcesOwnership(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)

	owner := uuid.New()
	task, err := svc.AddTask(context.Background(), owner, AddTaskRequest{Title: "secret"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	_, err = svc.UpdateTags(context.Background(), uuid.New(), UpdateTagsRequest{
		TaskID: &task.ID,
		Tags:   []string{"stolen"},
	})

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError for cross-user access, got %v", err)
	}
}

func TestCompleteTaskBindsConversationContext(t *testing.T) {
	t.Parallel()

	store := newMockTaskStore()
	svc := newTestService(store, nil)
	userID := uuid.New()

	task, err := svc.AddTask(context.Background(), userID, AddTaskRequest{Title: "report"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	completed, err := svc.CompleteTask(context.Background(), userID, &task.ID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if !completed.Completed || completed.CompletedAt == nil {
		t.Error("expected task to be marked complete with a timestamp")
	}

	bound := svc.ContextFor(userID).ResolveThis()
	if bound == nil || *bound != task.ID {
		t.Errorf("conversation context = %v, want %v", bound, task.ID)
	}

	// "delete this" now resolves without an explicit id.
	if err := svc.DeleteTask(context.Background(), userID, nil); err != nil {
		t.Fatalf("DeleteTask via context: %v", err)
	}
	if _, err := store.GetByID(context.Background(), task.ID); err == nil {
		t.Error("expected task to be deleted")
	}
}
