package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benvon/todo-agent/internal/models"
	"github.com/benvon/todo-agent/internal/services/tagops"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatService manages chat sessions and executes interpreted commands.
type ChatService struct {
	interpreter Interpreter
	ops         *tagops.Service
	logger      *zap.Logger
	sessions    map[uuid.UUID]*ChatSession
	mu          sync.RWMutex // Protects concurrent access to sessions map
}

// ChatSession represents an active chat session
type ChatSession struct {
	UserID       uuid.UUID
	Messages     []ChatMessage
	CreatedAt    time.Time
	LastActivity time.Time
}

// ChatResponse is the agent's reply to one message.
type ChatResponse struct {
	Message string         `json:"message"`
	Intent  Intent         `json:"intent"`
	Tasks   []*models.Task `json:"tasks,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
}

// NewChatService creates a new chat service
func NewChatService(interpreter Interpreter, ops *tagops.Service, logger *zap.Logger) *ChatService {
	return &ChatService{
		interpreter: interpreter,
		ops:         ops,
		logger:      logger,
		sessions:    make(map[uuid.UUID]*ChatSession),
	}
}

// GetOrCreateSession gets or creates a chat session for a user
func (s *ChatService) GetOrCreateSession(userID uuid.UUID) *ChatSession {
	s.mu.RLock()
	if session, exists := s.sessions[userID]; exists {
		s.mu.RUnlock()
		session.LastActivity = time.Now()
		return session
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine might have created it)
	if session, exists := s.sessions[userID]; exists {
		session.LastActivity = time.Now()
		return session
	}

	session := &ChatSession{
		UserID:       userID,
		Messages:     make([]ChatMessage, 0),
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
	}

	s.sessions[userID] = session
	return session
}

// CloseSession closes a chat session and discards its conversation context.
func (s *ChatService) CloseSession(userID uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()

	s.ops.CloseContext(userID)
}

// Respond handles one user message: interpret, execute, and reply. Expected
// domain outcomes (clarification, missing tag, not found) become replies, not
// errors.
func (s *ChatService) Respond(ctx context.Context, userID uuid.UUID, message string) (*ChatResponse, error) {
	session := s.GetOrCreateSession(userID)
	session.Messages = append(session.Messages, ChatMessage{Role: "user", Content: message})
	session.LastActivity = time.Now()

	command, err := s.interpreter.Interpret(ctx, session.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to interpret message: %w", err)
	}

	response := s.execute(ctx, userID, message, command)

	session.Messages = append(session.Messages, ChatMessage{Role: "assistant", Content: response.Message})
	return response, nil
}

func (s *ChatService) execute(ctx context.Context, userID uuid.UUID, message string, command *Command) *ChatResponse {
	response := &ChatResponse{Intent: command.Intent}

	taskID, err := parseTaskID(command.TaskID)
	if err != nil {
		response.Message = fmt.Sprintf("I couldn't make sense of task id %q.", command.TaskID)
		return response
	}

	switch command.Intent {
	case IntentAddTask:
		title := command.Title
		if title == "" {
			title = message
		}
		task, err := s.ops.AddTask(ctx, userID, tagops.AddTaskRequest{
			Title:   title,
			Tags:    command.Tags,
			Message: message,
		})
		if err != nil {
			response.Message = domainReply(err)
			return response
		}
		response.Tasks = []*models.Task{task}
		if len(task.Tags) > 0 {
			response.Message = fmt.Sprintf("Added %q with tags: %s", task.Title, strings.Join(task.Tags, ", "))
		} else {
			response.Message = fmt.Sprintf("Added %q.", task.Title)
		}

	case IntentUpdateTags:
		task, err := s.ops.UpdateTags(ctx, userID, tagops.UpdateTagsRequest{
			TaskID:  taskID,
			Tags:    command.Tags,
			Message: message,
		})
		if err != nil {
			response.Message = domainReply(err)
			return response
		}
		response.Tasks = []*models.Task{task}
		response.Message = fmt.Sprintf("Updated %q; tags are now: %s", task.Title, strings.Join(task.Tags, ", "))

	case IntentRemoveTags:
		task, err := s.ops.RemoveTags(ctx, userID, tagops.RemoveTagsRequest{
			TaskID:  taskID,
			Tags:    command.Tags,
			Message: message,
		})
		if err != nil {
			response.Message = domainReply(err)
			return response
		}
		response.Tasks = []*models.Task{task}
		if len(task.Tags) == 0 {
			response.Message = fmt.Sprintf("Removed the tags from %q.", task.Title)
		} else {
			response.Message = fmt.Sprintf("Done; %q is now tagged: %s", task.Title, strings.Join(task.Tags, ", "))
		}

	case IntentListTasks:
		tasks, err := s.ops.ListTasks(ctx, userID, tagops.ListTasksRequest{
			Tags:    command.Tags,
			Message: message,
		})
		if err != nil {
			response.Message = domainReply(err)
			return response
		}
		response.Tasks = tasks
		response.Message = formatTaskList(tasks)

	case IntentListTags:
		result, err := s.ops.ListTags(ctx, userID)
		if err != nil {
			response.Message = domainReply(err)
			return response
		}
		response.Tags = result.Tags
		response.Message = result.Message

	case IntentCompleteTask:
		task, err := s.ops.CompleteTask(ctx, userID, taskID)
		if err != nil {
			response.Message = domainReply(err)
			return response
		}
		response.Tasks = []*models.Task{task}
		response.Message = fmt.Sprintf("Marked %q as done.", task.Title)

	case IntentDeleteTask:
		if err := s.ops.DeleteTask(ctx, userID, taskID); err != nil {
			response.Message = domainReply(err)
			return response
		}
		response.Message = "Deleted the task."

	default:
		response.Message = command.Reply
		if response.Message == "" {
			response.Message = "I can add tasks, tag them, filter by tag, or list your tags."
		}
	}

	return response
}

// domainReply converts expected operation errors into user-facing replies.
// Unexpected errors get a generic apology so internals never leak into chat.
func domainReply(err error) string {
	var clarify *tagops.ClarificationNeededError
	if errors.As(err, &clarify) {
		return clarify.Question
	}

	var notPresent *tagops.TagNotPresentError
	if errors.As(err, &notPresent) {
		return fmt.Sprintf("The tag %q isn't on that task.", notPresent.Tag)
	}

	var notFound *tagops.NotFoundError
	if errors.As(err, &notFound) {
		return "I couldn't find that task."
	}

	var validation *tagops.ValidationError
	if errors.As(err, &validation) {
		return "That didn't look right: " + validation.Message
	}

	return "Sorry, something went wrong handling that."
}

func formatTaskList(tasks []*models.Task) string {
	if len(tasks) == 0 {
		return "No tasks found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d task(s):", len(tasks))
	for _, task := range tasks {
		b.WriteString("\n- ")
		b.WriteString(task.Title)
		if len(task.Tags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(task.Tags, ", "))
		}
		if task.Completed {
			b.WriteString(" (done)")
		}
	}
	return b.String()
}

func parseTaskID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
