package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second
)

const interpreterSystemPrompt = `You are the command interpreter for a todo application.
Classify the user's latest message into exactly one intent and respond with valid JSON only:
{"intent": "add_task" | "update_tags" | "remove_tags" | "list_tasks" | "list_tags" | "complete_task" | "delete_task" | "small_talk",
 "title": "task title, for add_task only",
 "tags": ["lowercase", "tags", "if", "named"],
 "task_id": "uuid if the user named one",
 "reply": "a short reply, for small_talk only"}
Do not invent tags the user did not mention. Tags are lowercase words or hyphenated phrases.`

// OpenAIInterpreter classifies chat messages with an LLM constrained to JSON
// output.
type OpenAIInterpreter struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIInterpreter creates an LLM-backed interpreter.
func NewOpenAIInterpreter(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *OpenAIInterpreter {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIInterpreter{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Interpret classifies the latest user message into a command.
func (p *OpenAIInterpreter) Interpret(ctx context.Context, messages []ChatMessage) (*Command, error) {
	openAIMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	openAIMessages = append(openAIMessages, openai.SystemMessage(interpreterSystemPrompt))

	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			openAIMessages = append(openAIMessages, openai.AssistantMessage(msg.Content))
		default:
			openAIMessages = append(openAIMessages, openai.UserMessage(msg.Content))
		}
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "interpret"),
			zap.String("model", p.model),
			zap.Int("message_count", len(openAIMessages)),
		)
	}

	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: openAIMessages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", "interpret"),
				zap.String("model", p.model),
				zap.Error(err),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to interpret message: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to interpret message: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	command, err := parseCommand(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "interpret"),
			zap.String("intent", string(command.Intent)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return command, nil
}

// parseCommand decodes the model's JSON, salvaging the outermost object when
// the model wraps it in prose.
func parseCommand(content string) (*Command, error) {
	raw := content
	command := &Command{}
	if err := json.Unmarshal([]byte(raw), command); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start == -1 || end <= start {
			return nil, fmt.Errorf("failed to parse interpreter response: %w", err)
		}
		raw = raw[start : end+1]
		if err := json.Unmarshal([]byte(raw), command); err != nil {
			return nil, fmt.Errorf("failed to parse interpreter response: %w", err)
		}
	}

	if !ValidIntent(command.Intent) {
		command.Intent = IntentSmallTalk
		if command.Reply == "" {
			command.Reply = "I didn't catch that. I can add tasks, tag them, filter by tag, or list your tags."
		}
	}

	return command, nil
}
