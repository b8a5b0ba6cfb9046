package tags

import (
	"math"
	"reflect"
	"testing"
)

func TestExtractForCreation(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor()

	tests := []struct {
		name           string
		message        string
		wantTags       []string
		minConfidence  float64
		wantConfidence float64
		wantSource     Source
	}{
		{
			name:          "tagged with",
			message:       "add buy milk tagged with home, urgent",
			wantTags:      []string{"home", "urgent"},
			minConfidence: 0.9,
			wantSource:    SourceExplicit,
		},
		{
			name:          "tags colon",
			message:       "new task clean garage tags: home",
			wantTags:      []string{"home"},
			minConfidence: 0.9,
			wantSource:    SourceExplicit,
		},
		{
			name:          "and separator",
			message:       "tagged with work and urgent",
			wantTags:      []string{"work", "urgent"},
			minConfidence: 0.9,
			wantSource:    SourceExplicit,
		},
		{
			name:          "multi-word tag hyphen joined",
			message:       "tag this with high priority",
			wantTags:      []string{"high-priority"},
			minConfidence: 0.9,
			wantSource:    SourceExplicit,
		},
		{
			name:          "case folded and deduplicated",
			message:       "tagged with Work, urgent, Work",
			wantTags:      []string{"work", "urgent"},
			minConfidence: 0.9,
			wantSource:    SourceExplicit,
		},
		{
			name:           "no tag phrasing means no tags intended",
			message:        "add task buy milk",
			wantTags:       nil,
			wantConfidence: 1.0,
			wantSource:     SourceExplicit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := extractor.ExtractForCreation(tt.message)
			if !reflect.DeepEqual(result.Tags, tt.wantTags) {
				t.Errorf("Tags = %v, want %v", result.Tags, tt.wantTags)
			}
			if tt.wantConfidence != 0 && result.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", result.Confidence, tt.wantConfidence)
			}
			if tt.minConfidence != 0 && result.Confidence < tt.minConfidence {
				t.Errorf("Confidence = %v, want >= %v", result.Confidence, tt.minConfidence)
			}
			if result.Source != tt.wantSource {
				t.Errorf("Source = %v, want %v", result.Source, tt.wantSource)
			}
			if result.RawInput != tt.message {
				t.Errorf("RawInput = %q, want %q", result.RawInput, tt.message)
			}
		})
	}
}

func TestExtractForCreationIsIdempotentOnNormalizedInput(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor()
	result := extractor.ExtractForCreation("tagged with work, urgent")

	if !reflect.DeepEqual(result.Tags, []string{"work", "urgent"}) {
		t.Errorf("Tags = %v, want [work urgent]", result.Tags)
	}
	if result.Confidence < 0.9 {
		t.Errorf("Confidence = %v, want >= 0.9", result.Confidence)
	}
	if result.Source != SourceExplicit {
		t.Errorf("Source = %v, want explicit", result.Source)
	}
}

func TestExtractForFiltering(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor()

	tests := []struct {
		name           string
		message        string
		wantTags       []string
		wantConfidence float64
		wantSource     Source
	}{
		{
			name:           "explicit tagged with phrasing is fixed at 0.95",
			message:        "show me tasks tagged with work",
			wantTags:       []string{"work"},
			wantConfidence: 0.95,
			wantSource:     SourceExplicit,
		},
		{
			name:           "implicit adjective phrasing",
			message:        "show my grocery tasks",
			wantTags:       []string{"grocery"},
			wantConfidence: 1.0, // 0.9 match + 0.1 for one tag
			wantSource:     SourceImplicit,
		},
		{
			name:           "my X tasks",
			message:        "my urgent tasks",
			wantTags:       []string{"urgent"},
			wantConfidence: 1.0,
			wantSource:     SourceImplicit,
		},
		{
			name:           "no match is ambiguous",
			message:        "what should I do today",
			wantTags:       nil,
			wantConfidence: 0.5,
			wantSource:     SourceImplicit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := extractor.ExtractForFiltering(tt.message)
			if !reflect.DeepEqual(result.Tags, tt.wantTags) {
				t.Errorf("Tags = %v, want %v", result.Tags, tt.wantTags)
			}
			if result.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", result.Confidence, tt.wantConfidence)
			}
			if result.Source != tt.wantSource {
				t.Errorf("Source = %v, want %v", result.Source, tt.wantSource)
			}
		})
	}
}

func TestExtractForRemoval(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor()

	tests := []struct {
		name          string
		message       string
		wantTags      []string
		wantRemoveAll bool
		wantMinConf   float64
	}{
		{
			name:        "remove the X tag",
			message:     "remove the urgent tag",
			wantTags:    []string{"urgent"},
			wantMinConf: 0.9,
		},
		{
			name:        "untag",
			message:     "untag work",
			wantTags:    []string{"work"},
			wantMinConf: 0.9,
		},
		{
			name:          "remove all tags sentinel",
			message:       "remove all tags",
			wantRemoveAll: true,
			wantMinConf:   1.0,
		},
		{
			name:          "delete all tags sentinel",
			message:       "please delete all tags",
			wantRemoveAll: true,
			wantMinConf:   1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := extractor.ExtractForRemoval(tt.message)
			if !reflect.DeepEqual(result.Tags, tt.wantTags) {
				t.Errorf("Tags = %v, want %v", result.Tags, tt.wantTags)
			}
			if result.RemoveAll != tt.wantRemoveAll {
				t.Errorf("RemoveAll = %v, want %v", result.RemoveAll, tt.wantRemoveAll)
			}
			if result.Confidence < tt.wantMinConf {
				t.Errorf("Confidence = %v, want >= %v", result.Confidence, tt.wantMinConf)
			}
			if result.Source != SourceExplicit {
				t.Errorf("Source = %v, want explicit", result.Source)
			}
		})
	}
}

func TestExtractForRemovalNoMatch(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor()
	result := extractor.ExtractForRemoval("do something else")

	if len(result.Tags) != 0 || result.RemoveAll {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5", result.Confidence)
	}
}

func TestIsListTagsQuery(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor()

	tests := []struct {
		message string
		want    bool
	}{
		{"what tags do I have", true},
		{"What tags do I have?", true},
		{"list my tags", true},
		{"show all my tags", true},
		{"show tags", true},
		{"what are my tags", true},
		{"show my work tasks", false},
		{"add a task", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			t.Parallel()

			if got := extractor.IsListTagsQuery(tt.message); got != tt.want {
				t.Errorf("IsListTagsQuery(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestConfidenceScoring(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		matched  bool
		tagCount int
		want     float64
	}{
		{"no match no tags", false, 0, 0.5},
		{"match no tags", true, 0, 0.9},
		{"match one tag", true, 1, 1.0},
		{"match three tags capped", true, 3, 1.0},
		{"match ten tags still capped", true, 10, 1.0},
		{"no match with tags", false, 2, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := confidence(tt.matched, tt.tagCount)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("confidence(%v, %d) = %v, want %v", tt.matched, tt.tagCount, got, tt.want)
			}
		})
	}
}
