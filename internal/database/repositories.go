package database

import (
	"context"

	"github.com/benvon/todo-agent/internal/models"
	"github.com/google/uuid"
)

// TaskRepositoryInterface defines the task repository operations used by the
// service and worker layers, enabling mock implementations in tests.
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]*models.Task, error)
	GetByUserIDPaginated(ctx context.Context, userID uuid.UUID, filter TaskFilter, page, pageSize int) ([]*models.Task, int, error)
	Update(ctx context.Context, task *models.Task) error
	SetTags(ctx context.Context, id uuid.UUID, tags []string) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListTags(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// TagStatisticsRepositoryInterface defines the tag statistics operations used
// by the background worker.
type TagStatisticsRepositoryInterface interface {
	GetByUserIDOrCreate(ctx context.Context, userID uuid.UUID) (*models.TagStatistics, error)
	UpdateStatistics(ctx context.Context, stats *models.TagStatistics) (bool, error)
	MarkTainted(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Ensure concrete types implement the interfaces
var (
	_ TaskRepositoryInterface          = (*TaskRepository)(nil)
	_ TagStatisticsRepositoryInterface = (*TagStatisticsRepository)(nil)
)
