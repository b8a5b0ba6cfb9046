package agent

import (
	"context"
	"regexp"
	"strings"

	"github.com/benvon/todo-agent/internal/tags"
)

// RuleInterpreter classifies messages with ordered keyword rules. It is the
// fallback when no LLM is configured and keeps the chat endpoint fully
// functional offline; tag extraction downstream is pattern-based either way.
type RuleInterpreter struct {
	extractor *tags.Extractor
}

// NewRuleInterpreter creates a rule-based interpreter.
func NewRuleInterpreter() *RuleInterpreter {
	return &RuleInterpreter{extractor: tags.NewExtractor()}
}

var (
	addPhrase      = regexp.MustCompile(`^(?:add|create|new)\b`)
	completePhrase = regexp.MustCompile(`\b(?:complete|done with|finish(?:ed)?|mark .* (?:as )?done)\b`)
	deletePhrase   = regexp.MustCompile(`\bdelete\b.*\btask\b|\bremove\b.*\btask\b`)
	removePhrase   = regexp.MustCompile(`\buntag\b|\b(?:remove|delete)\b.*\btags?\b`)
	tagPhrase      = regexp.MustCompile(`\b(?:tag|retag)\b.*\bwith\b|\badd tags?\b`)
	listPhrase     = regexp.MustCompile(`^(?:list|show)\b|\bwhat(?:'s| is) on my list\b|\bmy .*tasks?\b`)

	// addTitlePattern captures the task title from a creation command, up to
	// any trailing tag phrasing.
	addTitlePattern = regexp.MustCompile(`^(?:add|create|new)\s+(?:a\s+)?(?:task\s+)?(?:to\s+)?(.*?)(?:\s+(?:tagged with|with tags?|tags?:).*)?$`)
)

// Interpret classifies the final user message. First match wins, with the
// narrower intents checked before the broad list intent.
func (r *RuleInterpreter) Interpret(_ context.Context, messages []ChatMessage) (*Command, error) {
	message := latestUserMessage(messages)
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" {
		return &Command{Intent: IntentSmallTalk, Reply: "What would you like to do with your tasks?"}, nil
	}

	switch {
	case r.extractor.IsListTagsQuery(lower):
		return &Command{Intent: IntentListTags}, nil
	case deletePhrase.MatchString(lower):
		return &Command{Intent: IntentDeleteTask}, nil
	case removePhrase.MatchString(lower):
		return &Command{Intent: IntentRemoveTags}, nil
	case completePhrase.MatchString(lower):
		return &Command{Intent: IntentCompleteTask}, nil
	case addPhrase.MatchString(lower):
		cmd := &Command{Intent: IntentAddTask}
		if m := addTitlePattern.FindStringSubmatch(strings.TrimSpace(message)); m != nil {
			cmd.Title = strings.TrimSpace(m[1])
		}
		return cmd, nil
	case tagPhrase.MatchString(lower):
		return &Command{Intent: IntentUpdateTags}, nil
	case listPhrase.MatchString(lower):
		return &Command{Intent: IntentListTasks}, nil
	default:
		return &Command{
			Intent: IntentSmallTalk,
			Reply:  "I can add tasks, tag them, filter by tag, or list your tags. What would you like?",
		}, nil
	}
}

func latestUserMessage(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
