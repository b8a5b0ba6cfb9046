package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benvon/todo-agent/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// TaskFilter narrows task listings. Zero value means no filtering.
type TaskFilter struct {
	// Tags requires every listed tag to be present on the task.
	Tags []string
	// Completed filters by completion state when non-nil.
	Completed *bool
	// Priority filters by priority when non-nil.
	Priority *models.Priority
}

// TaskRepository handles task database operations
type TaskRepository struct {
	db           *DB
	tagStatsRepo *TagStatisticsRepository
	logger       *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// SetTagStatsRepo wires tag statistics taint tracking. When set, any write
// that can change a user's tag set marks that user's statistics tainted.
func (r *TaskRepository) SetTagStatsRepo(repo *TagStatisticsRepository) {
	r.tagStatsRepo = repo
}

// SetLogger sets the logger used for taint-tracking failures.
func (r *TaskRepository) SetLogger(logger *zap.Logger) {
	r.logger = logger
}

// markTagsTainted flags the user's tag statistics for re-analysis. Failures
// are logged, not returned: statistics refresh is best-effort and must never
// fail the task write that triggered it.
func (r *TaskRepository) markTagsTainted(ctx context.Context, userID uuid.UUID) {
	if r.tagStatsRepo == nil {
		return
	}
	if _, err := r.tagStatsRepo.MarkTainted(ctx, userID); err != nil && r.logger != nil {
		r.logger.Warn("failed_to_mark_tag_stats_tainted",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (id, user_id, title, description, due_date, priority, completed, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	var dueDate sql.NullTime
	if task.DueDate != nil {
		dueDate = sql.NullTime{Time: *task.DueDate, Valid: true}
	}

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		dueDate,
		task.Priority,
		task.Completed,
		pq.Array(task.Tags),
		now,
		now,
	).Scan(&task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if len(task.Tags) > 0 {
		r.markTagsTainted(ctx, task.UserID)
	}

	return nil
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `
		SELECT id, user_id, title, description, due_date, priority, completed, tags, created_at, updated_at, completed_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// GetByUserID retrieves all tasks for a user matching the filter, newest first.
func (r *TaskRepository) GetByUserID(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]*models.Task, error) {
	query := `
		SELECT id, user_id, title, description, due_date, priority, completed, tags, created_at, updated_at, completed_at
		FROM tasks
		WHERE user_id = $1
	`
	args := []any{userID}
	argIndex := 2

	if len(filter.Tags) > 0 {
		query += fmt.Sprintf(" AND tags @> $%d", argIndex)
		args = append(args, pq.Array(filter.Tags))
		argIndex++
	}

	if filter.Completed != nil {
		query += fmt.Sprintf(" AND completed = $%d", argIndex)
		args = append(args, *filter.Completed)
		argIndex++
	}

	if filter.Priority != nil {
		query += fmt.Sprintf(" AND priority = $%d", argIndex)
		args = append(args, string(*filter.Priority))
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// GetByUserIDPaginated retrieves a page of tasks for a user matching the
// filter, newest first, along with the total match count.
func (r *TaskRepository) GetByUserIDPaginated(ctx context.Context, userID uuid.UUID, filter TaskFilter, page, pageSize int) ([]*models.Task, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	where := " WHERE user_id = $1"
	args := []any{userID}
	argIndex := 2

	if len(filter.Tags) > 0 {
		where += fmt.Sprintf(" AND tags @> $%d", argIndex)
		args = append(args, pq.Array(filter.Tags))
		argIndex++
	}

	if filter.Completed != nil {
		where += fmt.Sprintf(" AND completed = $%d", argIndex)
		args = append(args, *filter.Completed)
		argIndex++
	}

	if filter.Priority != nil {
		where += fmt.Sprintf(" AND priority = $%d", argIndex)
		args = append(args, string(*filter.Priority))
		argIndex++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM tasks" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	query := `
		SELECT id, user_id, title, description, due_date, priority, completed, tags, created_at, updated_at, completed_at
		FROM tasks` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, total, nil
}

// Update updates an existing task
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, due_date = $4, priority = $5, completed = $6, tags = $7, updated_at = $8, completed_at = $9
		WHERE id = $1
		RETURNING updated_at
	`

	var dueDate sql.NullTime
	if task.DueDate != nil {
		dueDate = sql.NullTime{Time: *task.DueDate, Valid: true}
	}

	var completedAt sql.NullTime
	if task.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *task.CompletedAt, Valid: true}
	}

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		dueDate,
		task.Priority,
		task.Completed,
		pq.Array(task.Tags),
		now,
		completedAt,
	).Scan(&task.UpdatedAt)

	if err == sql.ErrNoRows {
		return fmt.Errorf("task not found")
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	r.markTagsTainted(ctx, task.UserID)

	return nil
}

// SetTags replaces a task's tag set and returns the stored task. Statistics
// are tainted only when the stored set actually changed.
func (r *TaskRepository) SetTags(ctx context.Context, id uuid.UUID, tags []string) (*models.Task, error) {
	old, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE tasks
		SET tags = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, user_id, title, description, due_date, priority, completed, tags, created_at, updated_at, completed_at
	`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, pq.Array(tags), time.Now()))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set task tags: %w", err)
	}

	if tagsChanged(old.Tags, task.Tags) {
		r.markTagsTainted(ctx, task.UserID)
	}

	return task, nil
}

// tagsChanged reports whether two tag sets differ, ignoring order.
func tagsChanged(oldTags, newTags []string) bool {
	if len(oldTags) != len(newTags) {
		return true
	}
	seen := make(map[string]int, len(oldTags))
	for _, tag := range oldTags {
		seen[tag]++
	}
	for _, tag := range newTags {
		if seen[tag] == 0 {
			return true
		}
		seen[tag]--
	}
	return false
}

// Delete deletes a task by ID
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Fetch first so the owning user's statistics can be tainted.
	task, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("task not found")
	}

	if len(task.Tags) > 0 {
		r.markTagsTainted(ctx, task.UserID)
	}

	return nil
}

// ListTags returns the distinct tags across a user's tasks in sorted order.
func (r *TaskRepository) ListTags(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `
		SELECT DISTINCT unnest(tags) AS tag
		FROM tasks
		WHERE user_id = $1
		ORDER BY tag
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}

	return tags, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var dueDate sql.NullTime
	var completedAt sql.NullTime
	var tags pq.StringArray

	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&dueDate,
		&task.Priority,
		&task.Completed,
		&tags,
		&task.CreatedAt,
		&task.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	task.Tags = []string(tags)

	return task, nil
}
