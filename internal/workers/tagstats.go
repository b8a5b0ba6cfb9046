// Package workers contains the background job processors run by the worker
// binary.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/todo-agent/internal/database"
	logpkg "github.com/benvon/todo-agent/internal/logger"
	"github.com/benvon/todo-agent/internal/models"
	"github.com/benvon/todo-agent/internal/queue"
	"github.com/benvon/todo-agent/internal/tagcache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobProcessor handles one job type.
type JobProcessor func(ctx context.Context, job *queue.Job) error

type processorEntry struct {
	proc JobProcessor
}

// TagStatsWorker recomputes per-user tag statistics and rewarms the tag
// cache. It owns the worker-side view of tags: the API server only taints and
// enqueues.
type TagStatsWorker struct {
	taskRepo     database.TaskRepositoryInterface
	tagStatsRepo database.TagStatisticsRepositoryInterface
	cache        tagcache.Cache
	logger       *zap.Logger
	registry     map[queue.JobType]processorEntry
}

// NewTagStatsWorker creates the worker and registers its job processors.
func NewTagStatsWorker(
	taskRepo database.TaskRepositoryInterface,
	tagStatsRepo database.TagStatisticsRepositoryInterface,
	cache tagcache.Cache,
	logger *zap.Logger,
) *TagStatsWorker {
	w := &TagStatsWorker{
		taskRepo:     taskRepo,
		tagStatsRepo: tagStatsRepo,
		cache:        cache,
		logger:       logger,
		registry:     make(map[queue.JobType]processorEntry),
	}
	w.RegisterProcessor(queue.JobTypeTagStatsRefresh, w.ProcessTagStatsRefreshJob)
	w.RegisterProcessor(queue.JobTypeTagCacheWarm, w.ProcessTagCacheWarmJob)
	return w
}

// RegisterProcessor registers a processor for a job type.
func (w *TagStatsWorker) RegisterProcessor(typ queue.JobType, proc JobProcessor) {
	w.registry[typ] = processorEntry{proc: proc}
}

// ProcessTagStatsRefreshJob recomputes the tag breakdown for one user.
func (w *TagStatsWorker) ProcessTagStatsRefreshJob(ctx context.Context, job *queue.Job) error {
	if job.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required for tag stats refresh job")
	}

	w.logger.Info("processing_tag_stats_refresh_job",
		zap.String("job_id", logpkg.SanitizeUserID(job.ID.String())),
		zap.String("user_id", logpkg.SanitizeUserID(job.UserID.String())),
	)

	stats, err := w.tagStatsRepo.GetByUserIDOrCreate(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to get or create tag statistics: %w", err)
	}

	allTasks, err := w.loadAllTasksForUser(ctx, job.UserID)
	if err != nil {
		return err
	}

	tagStatsMap, tasksWithTags := aggregateTagStatsFromTasks(allTasks)

	w.logger.Info("aggregated_tag_statistics",
		zap.String("user_id", logpkg.SanitizeUserID(job.UserID.String())),
		zap.Int("tasks_with_tags", tasksWithTags),
		zap.Int("unique_tags", len(tagStatsMap)),
	)

	stats.TagStats = tagStatsMap
	now := time.Now()
	stats.LastAnalyzedAt = &now

	updated, err := w.tagStatsRepo.UpdateStatistics(ctx, stats)
	if err != nil {
		return fmt.Errorf("failed to update tag statistics: %w", err)
	}
	if !updated {
		// Another refresh advanced the version; its data is at least as new.
		w.logger.Debug("tag_statistics_version_conflict",
			zap.String("user_id", logpkg.SanitizeUserID(job.UserID.String())),
		)
		return nil
	}

	w.logger.Info("refreshed_tag_statistics",
		zap.String("user_id", logpkg.SanitizeUserID(job.UserID.String())),
		zap.Int("unique_tags", len(tagStatsMap)),
	)

	return nil
}

// ProcessTagCacheWarmJob repopulates a user's tag cache entry.
func (w *TagStatsWorker) ProcessTagCacheWarmJob(ctx context.Context, job *queue.Job) error {
	if job.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required for tag cache warm job")
	}

	tags, err := w.taskRepo.ListTags(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to list tags: %w", err)
	}

	if err := w.cache.Set(ctx, job.UserID, tags); err != nil {
		return fmt.Errorf("failed to warm tag cache: %w", err)
	}

	w.logger.Debug("warmed_tag_cache",
		zap.String("user_id", logpkg.SanitizeUserID(job.UserID.String())),
		zap.Int("tags", len(tags)),
	)

	return nil
}

func (w *TagStatsWorker) loadAllTasksForUser(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	var allTasks []*models.Task
	page, pageSize := 1, 500
	for {
		tasks, _, err := w.taskRepo.GetByUserIDPaginated(ctx, userID, database.TaskFilter{}, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to get tasks: %w", err)
		}
		allTasks = append(allTasks, tasks...)
		if len(tasks) == 0 || len(tasks) < pageSize {
			break
		}
		page++
	}
	return allTasks, nil
}

// aggregateTagStatsFromTasks builds the per-tag breakdown: total uses, open
// uses, completed uses.
func aggregateTagStatsFromTasks(tasks []*models.Task) (tagStatsMap map[string]models.TagStats, tasksWithTags int) {
	tagStatsMap = make(map[string]models.TagStats)
	for _, task := range tasks {
		if len(task.Tags) == 0 {
			continue
		}
		tasksWithTags++
		for _, tag := range task.Tags {
			st := tagStatsMap[tag]
			st.Total++
			if task.Completed {
				st.Completed++
			} else {
				st.Open++
			}
			tagStatsMap[tag] = st
		}
	}
	return tagStatsMap, tasksWithTags
}

// ProcessJob processes a job based on its type using the processor registry.
func (w *TagStatsWorker) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	if !job.ShouldProcess() {
		fields := []zap.Field{zap.String("job_id", logpkg.SanitizeUserID(job.ID.String()))}
		if job.NotBefore != nil {
			fields = append(fields, zap.Time("not_before", *job.NotBefore))
		}
		w.logger.Debug("job_not_ready", fields...)
		if ackErr := msg.Ack(); ackErr != nil {
			w.logger.Warn("failed_to_ack_job_for_later_processing",
				zap.String("job_id", logpkg.SanitizeUserID(job.ID.String())),
				zap.String("error", logpkg.SanitizeError(ackErr)),
			)
		}
		return nil
	}

	ent, ok := w.registry[job.Type]
	if !ok {
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Error("failed_to_nack_unknown_job_type",
				zap.String("job_id", logpkg.SanitizeUserID(job.ID.String())),
				zap.String("job_type", string(job.Type)),
				zap.String("error", logpkg.SanitizeError(nackErr)),
			)
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err := ent.proc(ctx, job); err != nil {
		w.logger.Error("job_failed",
			zap.String("operation", "process_job"),
			zap.String("job_id", logpkg.SanitizeUserID(job.ID.String())),
			zap.String("user_id", logpkg.SanitizeUserID(job.UserID.String())),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed_to_nack_job",
				zap.String("job_id", logpkg.SanitizeUserID(job.ID.String())),
				zap.String("error", logpkg.SanitizeError(nackErr)),
			)
		}
		return fmt.Errorf("tag stats job failed: %w", err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}
