package agent

import (
	"context"
	"testing"
)

func TestRuleInterpreterIntents(t *testing.T) {
	t.Parallel()

	interpreter := NewRuleInterpreter()

	tests := []struct {
		message string
		want    Intent
	}{
		{"add buy milk tagged with home, urgent", IntentAddTask},
		{"create a task to call the dentist", IntentAddTask},
		{"new task clean garage tags: home", IntentAddTask},
		{"tag this with high priority", IntentUpdateTags},
		{"remove the urgent tag", IntentRemoveTags},
		{"untag work", IntentRemoveTags},
		{"delete all tags", IntentRemoveTags},
		{"delete that task", IntentDeleteTask},
		{"complete the report", IntentCompleteTask},
		{"show me tasks tagged with work", IntentListTasks},
		{"list my urgent tasks", IntentListTasks},
		{"what tags do I have", IntentListTags},
		{"show all my tags", IntentListTags},
		{"hello there", IntentSmallTalk},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			t.Parallel()

			cmd, err := interpreter.Interpret(context.Background(), []ChatMessage{
				{Role: "user", Content: tt.message},
			})
			if err != nil {
				t.Fatalf("Interpret: %v", err)
			}
			if cmd.Intent != tt.want {
				t.Errorf("Intent = %q, want %q", cmd.Intent, tt.want)
			}
		})
	}
}

func TestRuleInterpreterExtractsTitle(t *testing.T) {
	t.Parallel()

	interpreter := NewRuleInterpreter()

	tests := []struct {
		message   string
		wantTitle string
	}{
		{"add buy milk tagged with home", "buy milk"},
		{"create a task to call the dentist", "call the dentist"},
		{"new task clean garage tags: home", "clean garage"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			t.Parallel()

			cmd, err := interpreter.Interpret(context.Background(), []ChatMessage{
				{Role: "user", Content: tt.message},
			})
			if err != nil {
				t.Fatalf("Interpret: %v", err)
			}
			if cmd.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", cmd.Title, tt.wantTitle)
			}
		})
	}
}

func TestRuleInterpreterUsesLatestUserMessage(t *testing.T) {
	t.Parallel()

	interpreter := NewRuleInterpreter()

	cmd, err := interpreter.Interpret(context.Background(), []ChatMessage{
		{Role: "user", Content: "add buy milk"},
		{Role: "assistant", Content: "Added \"buy milk\"."},
		{Role: "user", Content: "what tags do I have"},
	})
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if cmd.Intent != IntentListTags {
		t.Errorf("Intent = %q, want %q", cmd.Intent, IntentListTags)
	}
}

func TestParseCommandSalvagesWrappedJSON(t *testing.T) {
	t.Parallel()

	cmd, err := parseCommand("Sure! {\"intent\": \"list_tags\"} Hope that helps.")
	if err != nil {
		t.Fatalf("parseCommand: %v", err)
	}
	if cmd.Intent != IntentListTags {
		t.Errorf("Intent = %q, want %q", cmd.Intent, IntentListTags)
	}
}

func TestParseCommandUnknownIntentFallsBackToSmallTalk(t *testing.T) {
	t.Parallel()

	cmd, err := parseCommand("{\"intent\": \"launch_rocket\"}")
	if err != nil {
		t.Fatalf("parseCommand: %v", err)
	}
	if cmd.Intent != IntentSmallTalk {
		t.Errorf("Intent = %q, want %q", cmd.Intent, IntentSmallTalk)
	}
	if cmd.Reply == "" {
		t.Error("expected a fallback reply")
	}
}
