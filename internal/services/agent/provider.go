// Package agent turns chat messages into task operations. An Interpreter
// classifies each message into a command; the chat service executes the
// command against the tag operations layer and formats the reply.
package agent

import "context"

// Intent is the operation a chat message asks for.
type Intent string

const (
	IntentAddTask      Intent = "add_task"
	IntentUpdateTags   Intent = "update_tags"
	IntentRemoveTags   Intent = "remove_tags"
	IntentListTasks    Intent = "list_tasks"
	IntentListTags     Intent = "list_tags"
	IntentCompleteTask Intent = "complete_task"
	IntentDeleteTask   Intent = "delete_task"
	IntentSmallTalk    Intent = "small_talk"
)

// Command is the structured interpretation of one chat message.
type Command struct {
	Intent Intent `json:"intent"`
	// TaskID is set when the message names a specific task.
	TaskID string `json:"task_id,omitempty"`
	// Title is the task title for creation intents.
	Title string `json:"title,omitempty"`
	// Tags are tags the interpreter pulled out, if any. The operations layer
	// re-extracts from the raw message as well, so these are advisory.
	Tags []string `json:"tags,omitempty"`
	// Reply is a direct response for small talk.
	Reply string `json:"reply,omitempty"`
}

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Interpreter classifies the latest user message given the conversation so
// far.
type Interpreter interface {
	Interpret(ctx context.Context, messages []ChatMessage) (*Command, error)
}

// ValidIntent reports whether the intent is one the chat service can execute.
func ValidIntent(intent Intent) bool {
	switch intent {
	case IntentAddTask, IntentUpdateTags, IntentRemoveTags, IntentListTasks,
		IntentListTags, IntentCompleteTask, IntentDeleteTask, IntentSmallTalk:
		return true
	default:
		return false
	}
}
