// Package tagops implements the tag-aware task operations behind the chat
// agent: creation, tag merging and removal, filtered listing, and the cached
// tag inventory. It is the single place where extraction results, validation,
// and conversation context meet the database.
package tagops

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benvon/todo-agent/internal/conversation"
	"github.com/benvon/todo-agent/internal/database"
	"github.com/benvon/todo-agent/internal/logger"
	"github.com/benvon/todo-agent/internal/models"
	"github.com/benvon/todo-agent/internal/queue"
	"github.com/benvon/todo-agent/internal/tagcache"
	"github.com/benvon/todo-agent/internal/tags"
	"github.com/benvon/todo-agent/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service orchestrates tag operations for one process. Conversation contexts
// live in memory keyed by user; the job queue is optional and, when present,
// receives a statistics refresh job after every tag mutation.
type Service struct {
	tasks     database.TaskRepositoryInterface
	cache     tagcache.Cache
	jobs      queue.JobQueue
	extractor *tags.Extractor
	logger    *zap.Logger

	contexts map[uuid.UUID]*conversation.TaskContext
	mu       sync.RWMutex
}

// NewService creates a tag operations service. jobs may be nil when no worker
// is deployed.
func NewService(tasks database.TaskRepositoryInterface, cache tagcache.Cache, jobs queue.JobQueue, logger *zap.Logger) *Service {
	return &Service{
		tasks:     tasks,
		cache:     cache,
		jobs:      jobs,
		extractor: tags.NewExtractor(),
		logger:    logger,
		contexts:  make(map[uuid.UUID]*conversation.TaskContext),
	}
}

// ContextFor returns the conversation context for a user, creating it on
// first use.
func (s *Service) ContextFor(userID uuid.UUID) *conversation.TaskContext {
	s.mu.RLock()
	if taskCtx, exists := s.contexts[userID]; exists {
		s.mu.RUnlock()
		return taskCtx
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine might have created it)
	if taskCtx, exists := s.contexts[userID]; exists {
		return taskCtx
	}

	taskCtx := conversation.NewTaskContext()
	s.contexts[userID] = taskCtx
	return taskCtx
}

// CloseContext discards a user's conversation context.
func (s *Service) CloseContext(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, userID)
}

// AddTask creates a task. Tags supplied directly are validated strictly; tags
// extracted from the message are best-effort and merged in.
func (s *Service) AddTask(ctx context.Context, userID uuid.UUID, req AddTaskRequest) (*models.Task, error) {
	if err := validation.Validate.Struct(req); err != nil {
		return nil, &ValidationError{Field: "request", Message: err.Error()}
	}

	taskTags, err := s.resolveTags(req.Tags, req.Message)
	if err != nil {
		return nil, err
	}

	priority := models.Priority(req.Priority)
	if priority == "" {
		priority = models.PriorityMedium
	}

	task := &models.Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       validation.SanitizeText(req.Title),
		Description: validation.SanitizeText(req.Description),
		DueDate:     req.DueDate,
		Priority:    priority,
		Tags:        taskTags,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if len(task.Tags) > 0 {
		s.afterTagMutation(ctx, userID)
	}
	s.ContextFor(userID).Update(conversation.CommandCreateTask, nil)

	return task, nil
}

// UpdateTags merges new tags onto a task: existing tags are preserved and the
// result is the union, still subject to the per-task cap. A non-nil
// ReplaceTags bypasses the merge and becomes the task's tag set outright.
func (s *Service) UpdateTags(ctx context.Context, userID uuid.UUID, req UpdateTagsRequest) (*models.Task, error) {
	if err := validation.Validate.Struct(req); err != nil {
		return nil, &ValidationError{Field: "request", Message: err.Error()}
	}

	task, err := s.resolveTask(ctx, userID, req.TaskID)
	if err != nil {
		return nil, err
	}

	var final []string
	if req.ReplaceTags != nil {
		replacement, invalid := tags.ValidateTags(req.ReplaceTags)
		if len(invalid) > 0 {
			return nil, &ValidationError{Field: "replace_tags", Message: fmt.Sprintf("invalid tag %q", invalid[0])}
		}
		if replacement == nil {
			replacement = []string{}
		}
		final = replacement
	} else {
		newTags, err := s.resolveTags(req.Tags, req.Message)
		if err != nil {
			return nil, err
		}

		merged, invalid := tags.ValidateTags(append(append([]string{}, task.Tags...), newTags...))
		if len(invalid) > 0 {
			return nil, &ValidationError{
				Field:   "tags",
				Message: fmt.Sprintf("merged tag set exceeds the limit of %d tags", models.MaxTagsPerTask),
			}
		}
		final = merged
	}

	updated, err := s.tasks.SetTags(ctx, task.ID, final)
	if err != nil {
		return nil, fmt.Errorf("failed to update tags: %w", err)
	}

	s.afterTagMutation(ctx, userID)
	s.ContextFor(userID).Update(conversation.CommandUpdateTask, &task.ID)

	return updated, nil
}

// RemoveTags removes the named tags from a task, or clears the tag set when
// the request (or its message) asks for all tags to go. Naming a tag the task
// does not carry is an error that identifies the tag.
func (s *Service) RemoveTags(ctx context.Context, userID uuid.UUID, req RemoveTagsRequest) (*models.Task, error) {
	if err := validation.Validate.Struct(req); err != nil {
		return nil, &ValidationError{Field: "request", Message: err.Error()}
	}

	task, err := s.resolveTask(ctx, userID, req.TaskID)
	if err != nil {
		return nil, err
	}

	removeAll := req.RemoveAll
	toRemove := req.Tags
	if req.Message != "" {
		result := s.extractor.ExtractForRemoval(req.Message)
		removeAll = removeAll || result.RemoveAll
		toRemove = append(toRemove, result.Tags...)
	}

	var remaining []string
	if removeAll {
		remaining = []string{}
	} else {
		normalized, invalid := tags.ValidateTags(toRemove)
		if len(invalid) > 0 {
			return nil, &ValidationError{Field: "tags", Message: fmt.Sprintf("invalid tag %q", invalid[0])}
		}
		if len(normalized) == 0 {
			return nil, &ClarificationNeededError{Question: "Which tag should I remove?"}
		}

		for _, tag := range normalized {
			if !task.HasTag(tag) {
				return nil, &TagNotPresentError{Tag: tag}
			}
		}

		drop := make(map[string]bool, len(normalized))
		for _, tag := range normalized {
			drop[tag] = true
		}
		remaining = []string{}
		for _, tag := range task.Tags {
			if !drop[tag] {
				remaining = append(remaining, tag)
			}
		}
	}

	updated, err := s.tasks.SetTags(ctx, task.ID, remaining)
	if err != nil {
		return nil, fmt.Errorf("failed to remove tags: %w", err)
	}

	s.afterTagMutation(ctx, userID)
	s.ContextFor(userID).Update(conversation.CommandUpdateTask, &task.ID)

	return updated, nil
}

// ListTasks lists a user's tasks, filtered by tags given directly or
// extracted from the message. A filter extraction below the confidence
// threshold is not acted on; the caller gets a clarification question
// instead of a silently wrong list.
func (s *Service) ListTasks(ctx context.Context, userID uuid.UUID, req ListTasksRequest) ([]*models.Task, error) {
	if err := validation.Validate.Struct(req); err != nil {
		return nil, &ValidationError{Field: "request", Message: err.Error()}
	}

	filterTags := req.Tags
	if len(filterTags) == 0 && req.Message != "" {
		result := s.extractor.ExtractForFiltering(req.Message)
		if result.Confidence < tags.LowConfidenceThreshold {
			s.logger.Info("low_confidence_tag_extraction",
				zap.String("user_id", userID.String()),
				zap.Float64("confidence", result.Confidence),
				zap.Strings("tags", result.Tags),
				zap.String("input", logger.SanitizeString(req.Message, logger.MaxGeneralStringLength)),
			)
			question := "I couldn't tell which tags to filter by. Try something like 'show tasks tagged with work'."
			if len(result.Tags) > 0 {
				question = fmt.Sprintf("Did you want tasks tagged with %s?", strings.Join(result.Tags, ", "))
			}
			return nil, &ClarificationNeededError{
				Question:   question,
				Confidence: result.Confidence,
			}
		}
		filterTags = result.Tags
	}

	tasks, err := s.tasks.GetByUserID(ctx, userID, database.TaskFilter{
		Tags:      filterTags,
		Completed: req.Completed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	commandType := conversation.CommandListTasks
	if len(filterTags) > 0 {
		commandType = conversation.CommandFilterTasks
	}
	s.ContextFor(userID).Update(commandType, nil)

	return tasks, nil
}

// ListTags returns the user's distinct tags, served from the cache when
// fresh, with a ready-to-show summary message.
func (s *Service) ListTags(ctx context.Context, userID uuid.UUID) (*ListTagsResult, error) {
	if cached, ok, err := s.cache.Get(ctx, userID); err == nil && ok {
		return &ListTagsResult{Tags: cached, Message: formatTagList(cached)}, nil
	} else if err != nil {
		s.logger.Warn("tag_cache_read_failed", zap.String("user_id", userID.String()), zap.Error(err))
	}

	tagList, err := s.tasks.ListTags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	if err := s.cache.Set(ctx, userID, tagList); err != nil {
		s.logger.Warn("tag_cache_write_failed", zap.String("user_id", userID.String()), zap.Error(err))
	}

	return &ListTagsResult{Tags: tagList, Message: formatTagList(tagList)}, nil
}

// CompleteTask marks a task complete. A nil taskID resolves through the
// conversation context.
func (s *Service) CompleteTask(ctx context.Context, userID uuid.UUID, taskID *uuid.UUID) (*models.Task, error) {
	task, err := s.resolveTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	task.Completed = true
	task.CompletedAt = &now

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	s.ContextFor(userID).Update(conversation.CommandCompleteTask, &task.ID)

	return task, nil
}

// DeleteTask deletes a task. A nil taskID resolves through the conversation
// context.
func (s *Service) DeleteTask(ctx context.Context, userID uuid.UUID, taskID *uuid.UUID) error {
	task, err := s.resolveTask(ctx, userID, taskID)
	if err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if len(task.Tags) > 0 {
		s.afterTagMutation(ctx, userID)
	}
	s.ContextFor(userID).Update(conversation.CommandDeleteTask, &task.ID)

	return nil
}

// resolveTask loads the requested task, falling back to the conversation
// context for "this task" references, and enforces ownership.
func (s *Service) resolveTask(ctx context.Context, userID uuid.UUID, taskID *uuid.UUID) (*models.Task, error) {
	if taskID == nil {
		taskID = s.ContextFor(userID).ResolveThis()
	}
	if taskID == nil {
		return nil, &ClarificationNeededError{Question: "Which task do you mean?"}
	}

	task, err := s.tasks.GetByID(ctx, *taskID)
	if err != nil {
		return nil, &NotFoundError{Resource: "task"}
	}
	if task.UserID != userID {
		// Cross-user access reads as not-found.
		return nil, &NotFoundError{Resource: "task"}
	}

	return task, nil
}

// resolveTags validates explicitly supplied tags strictly and merges in
// best-effort extraction from the message.
func (s *Service) resolveTags(explicit []string, message string) ([]string, error) {
	valid, invalid := tags.ValidateTags(explicit)
	if len(invalid) > 0 {
		return nil, &ValidationError{Field: "tags", Message: fmt.Sprintf("invalid tag %q", invalid[0])}
	}

	if message != "" {
		result := s.extractor.ExtractForCreation(message)
		merged, _ := tags.ValidateTags(append(valid, result.Tags...))
		valid = merged
	}

	return valid, nil
}

// afterTagMutation invalidates the tag cache and queues a statistics refresh
// plus a cache re-warm for the invalidated entry. All three are best-effort.
func (s *Service) afterTagMutation(ctx context.Context, userID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("tag_cache_invalidation_failed", zap.String("user_id", userID.String()), zap.Error(err))
	}

	if s.jobs == nil {
		return
	}
	for _, jobType := range []queue.JobType{queue.JobTypeTagStatsRefresh, queue.JobTypeTagCacheWarm} {
		job := queue.NewJob(jobType, userID, nil)
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			s.logger.Warn("failed_to_enqueue_tag_job",
				zap.String("job_type", string(jobType)),
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
	}
}

func formatTagList(tagList []string) string {
	switch len(tagList) {
	case 0:
		return "You haven't created any tags yet."
	case 1:
		return fmt.Sprintf("You have 1 tag: %s", tagList[0])
	default:
		return fmt.Sprintf("You have %d tags: %s", len(tagList), strings.Join(tagList, ", "))
	}
}
