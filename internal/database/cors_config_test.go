package database

import (
	"testing"
)

func TestAllowedOriginsSlice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"single origin", "https://app.example.com", []string{"https://app.example.com"}},
		{"comma separated", "https://a.com, https://b.com", []string{"https://a.com", "https://b.com"}},
		{"duplicates collapsed", "x, x, y", []string{"x", "y"}},
		{"entries trimmed", "  a  ,  b  ", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := AllowedOriginsSlice(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("AllowedOriginsSlice(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			seen := make(map[string]bool)
			for _, s := range got {
				seen[s] = true
			}
			for _, w := range tt.want {
				if !seen[w] {
					t.Errorf("AllowedOriginsSlice(%q) missing %q", tt.raw, w)
				}
			}
		})
	}
}
