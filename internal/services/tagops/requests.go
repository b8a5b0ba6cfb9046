package tagops

import (
	"time"

	"github.com/google/uuid"
)

// AddTaskRequest creates a task. Tags may be supplied directly or extracted
// from the original natural-language message; both are merged.
type AddTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=500"`
	Description string     `json:"description" validate:"max=2000"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority" validate:"omitempty,priority"`
	Tags        []string   `json:"tags" validate:"omitempty,max=10"`
	Message     string     `json:"message" validate:"max=2000"`
}

// UpdateTagsRequest changes a task's tags. Tags (and any extracted from the
// message) merge with the existing set; a non-nil ReplaceTags instead replaces
// the set outright, so an empty non-nil ReplaceTags clears it. A nil TaskID
// means "the task we were just talking about" and is resolved from the
// conversation context.
type UpdateTagsRequest struct {
	TaskID      *uuid.UUID `json:"task_id,omitempty"`
	Tags        []string   `json:"tags" validate:"omitempty,max=10"`
	ReplaceTags []string   `json:"replace_tags,omitempty" validate:"omitempty,max=10"`
	Message     string     `json:"message" validate:"max=2000"`
}

// RemoveTagsRequest removes named tags from a task, or all of them when
// RemoveAll is set (or the message says "remove all tags").
type RemoveTagsRequest struct {
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	Tags      []string   `json:"tags" validate:"omitempty,max=10"`
	RemoveAll bool       `json:"remove_all,omitempty"`
	Message   string     `json:"message" validate:"max=2000"`
}

// ListTasksRequest lists tasks, optionally filtered by tags given directly or
// extracted from the message.
type ListTasksRequest struct {
	Tags      []string `json:"tags" validate:"omitempty,max=10"`
	Completed *bool    `json:"completed,omitempty"`
	Message   string   `json:"message" validate:"max=2000"`
}

// ListTagsResult is the outcome of a tag listing, with a ready-to-show
// summary line.
type ListTagsResult struct {
	Tags    []string `json:"tags"`
	Message string   `json:"message"`
}
