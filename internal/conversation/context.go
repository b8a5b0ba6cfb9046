// Package conversation tracks the most recently referenced task within a chat
// conversation so elliptical references like "this task" can be resolved.
package conversation

import "github.com/google/uuid"

// CommandType classifies commands by how they affect the task context.
type CommandType string

const (
	CommandListTasks    CommandType = "list_tasks"
	CommandFilterTasks  CommandType = "filter_tasks"
	CommandCreateTask   CommandType = "create_task"
	CommandUpdateTask   CommandType = "update_task"
	CommandDeleteTask   CommandType = "delete_task"
	CommandCompleteTask CommandType = "complete_task"
)

// TaskContext is a two-state machine: EMPTY (no task bound) or BOUND (one task
// id bound). List, filter, and create commands force EMPTY because they make
// "which task" ambiguous; update, delete, and complete commands bind the id
// they operated on, or preserve the current binding when no id is supplied
// (supporting chains like "update it again").
//
// One instance per active conversation. Not safe for concurrent mutation; the
// caller serializes turns within a conversation. Only one task of history is
// kept — multi-task disambiguation is a documented limitation.
type TaskContext struct {
	lastTaskID      *uuid.UUID
	lastCommandType CommandType
}

// NewTaskContext creates an empty context.
func NewTaskContext() *TaskContext {
	return &TaskContext{}
}

// Update transitions the context after a command executes.
func (c *TaskContext) Update(commandType CommandType, taskID *uuid.UUID) {
	switch commandType {
	case CommandListTasks, CommandFilterTasks, CommandCreateTask:
		// These reset the binding regardless of any supplied id.
		c.lastTaskID = nil
	case CommandUpdateTask, CommandDeleteTask, CommandCompleteTask:
		if taskID != nil {
			id := *taskID
			c.lastTaskID = &id
		}
	}
	c.lastCommandType = commandType
}

// ResolveThis returns the bound task id, or nil when the context is empty.
func (c *TaskContext) ResolveThis() *uuid.UUID {
	return c.lastTaskID
}

// ShouldAskClarification reports whether a "this" reference cannot be resolved.
func (c *TaskContext) ShouldAskClarification() bool {
	return c.lastTaskID == nil
}

// LastCommandType returns the type of the most recent command, if any.
func (c *TaskContext) LastCommandType() CommandType {
	return c.lastCommandType
}

// Reset forces the context back to empty.
func (c *TaskContext) Reset() {
	c.lastTaskID = nil
	c.lastCommandType = ""
}
