// Package mcp exposes the task and tag operations as MCP tools over stdio,
// so editor agents can drive the same operations layer as the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/todo-agent/internal/services/tagops"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server. All tools operate on behalf of the
// given user; stdio transport has no per-request authentication.
func NewServer(ops *tagops.Service, userID uuid.UUID) *server.MCPServer {
	s := server.NewMCPServer("todo-agent", "0.1.0")

	s.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Create a task. Tags may be given explicitly or described in the message."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", mcp.Description("Priority (low|medium|high)")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("message", mcp.Description("Natural-language message to extract tags from")),
	), addTaskHandler(ops, userID))

	s.AddTool(mcp.NewTool("update_tags",
		mcp.WithDescription("Merge tags onto a task, or replace its tag set with replace_tags. Omit task_id to target the task from the conversation context."),
		mcp.WithString("task_id", mcp.Description("Task ID")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags to merge with the existing set")),
		mcp.WithString("replace_tags", mcp.Description("Comma-separated tags that replace the existing set outright; pass an empty string to clear all tags")),
		mcp.WithString("message", mcp.Description("Natural-language message to extract additional tags from")),
	), updateTagsHandler(ops, userID))

	s.AddTool(mcp.NewTool("remove_tags",
		mcp.WithDescription("Remove tags from a task. Set remove_all to clear every tag."),
		mcp.WithString("task_id", mcp.Description("Task ID")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags to remove")),
		mcp.WithBoolean("remove_all", mcp.Description("Remove every tag from the task")),
		mcp.WithString("message", mcp.Description("Natural-language removal request")),
	), removeTagsHandler(ops, userID))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks, optionally filtered by tags or completion."),
		mcp.WithString("tags", mcp.Description("Comma-separated tags to filter by")),
		mcp.WithBoolean("completed", mcp.Description("Filter by completion status")),
		mcp.WithString("message", mcp.Description("Natural-language filter request")),
	), listTasksHandler(ops, userID))

	s.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List the distinct tags across the user's tasks."),
	), listTagsHandler(ops, userID))

	s.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task as completed. Omit task_id to target the task from the conversation context."),
		mcp.WithString("task_id", mcp.Description("Task ID")),
	), completeTaskHandler(ops, userID))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task. Omit task_id to target the task from the conversation context."),
		mcp.WithString("task_id", mcp.Description("Task ID")),
	), deleteTaskHandler(ops, userID))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func addTaskHandler(ops *tagops.Service, userID uuid.UUID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := tagops.AddTaskRequest{
			Title:       mcp.ParseString(request, "title", ""),
			Description: mcp.ParseString(request, "description", ""),
			Priority:    mcp.ParseString(request, "priority", ""),
			Tags:        splitTags(mcp.ParseString(request, "tags", "")),
			Message:     mcp.ParseString(request, "message", ""),
		}

		task, err := ops.AddTask(ctx, userID, req)
		if err != nil {
			return domainResult(err)
		}

		return jsonResult(task)
	}
}

func updateTagsHandler(ops *tagops.Service, userID uuid.UUID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, errResult := parseTaskID(request)
		if errResult != nil {
			return errResult, nil
		}

		req := tagops.UpdateTagsRequest{
			TaskID:  taskID,
			Tags:    splitTags(mcp.ParseString(request, "tags", "")),
			Message: mcp.ParseString(request, "message", ""),
		}

		// Presence of replace_tags selects replacement, even when empty.
		args, _ := request.Params.Arguments.(map[string]any)
		if raw, ok := args["replace_tags"].(string); ok {
			req.ReplaceTags = splitTags(raw)
			if req.ReplaceTags == nil {
				req.ReplaceTags = []string{}
			}
		}

		task, err := ops.UpdateTags(ctx, userID, req)
		if err != nil {
			return domainResult(err)
		}

		return jsonResult(task)
	}
}

func removeTagsHandler(ops *tagops.Service, userID uuid.UUID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, errResult := parseTaskID(request)
		if errResult != nil {
			return errResult, nil
		}

		task, err := ops.RemoveTags(ctx, userID, tagops.RemoveTagsRequest{
			TaskID:    taskID,
			Tags:      splitTags(mcp.ParseString(request, "tags", "")),
			RemoveAll: mcp.ParseBoolean(request, "remove_all", false),
			Message:   mcp.ParseString(request, "message", ""),
		})
		if err != nil {
			return domainResult(err)
		}

		return jsonResult(task)
	}
}

func listTasksHandler(ops *tagops.Service, userID uuid.UUID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := tagops.ListTasksRequest{
			Tags:    splitTags(mcp.ParseString(request, "tags", "")),
			Message: mcp.ParseString(request, "message", ""),
		}

		args, _ := request.Params.Arguments.(map[string]any)
		if completed, ok := args["completed"].(bool); ok {
			req.Completed = &completed
		}

		tasks, err := ops.ListTasks(ctx, userID, req)
		if err != nil {
			return domainResult(err)
		}

		return jsonResult(map[string]any{"tasks": tasks})
	}
}

func listTagsHandler(ops *tagops.Service, userID uuid.UUID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := ops.ListTags(ctx, userID)
		if err != nil {
			return domainResult(err)
		}

		return jsonResult(result)
	}
}

func completeTaskHandler(ops *tagops.Service, userID uuid.UUID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, errResult := parseTaskID(request)
		if errResult != nil {
			return errResult, nil
		}

		task, err := ops.CompleteTask(ctx, userID, taskID)
		if err != nil {
			return domainResult(err)
		}

		return jsonResult(task)
	}
}

func deleteTaskHandler(ops *tagops.Service, userID uuid.UUID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, errResult := parseTaskID(request)
		if errResult != nil {
			return errResult, nil
		}

		if err := ops.DeleteTask(ctx, userID, taskID); err != nil {
			return domainResult(err)
		}

		return mcp.NewToolResultText("Task deleted successfully"), nil
	}
}

// parseTaskID returns nil when task_id is absent so the conversation context
// can resolve the target.
func parseTaskID(request mcp.CallToolRequest) (*uuid.UUID, *mcp.CallToolResult) {
	raw := mcp.ParseString(request, "task_id", "")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid task_id '%s'", raw))
	}
	return &id, nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// domainResult turns expected domain errors into tool errors the caller can
// act on instead of protocol failures.
func domainResult(err error) (*mcp.CallToolResult, error) {
	var clarify *tagops.ClarificationNeededError
	if errors.As(err, &clarify) {
		return mcp.NewToolResultText(clarify.Question), nil
	}

	var validationErr *tagops.ValidationError
	var notPresent *tagops.TagNotPresentError
	var notFound *tagops.NotFoundError
	if errors.As(err, &validationErr) || errors.As(err, &notPresent) || errors.As(err, &notFound) {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return nil, err
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
