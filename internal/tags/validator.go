package tags

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/benvon/todo-agent/internal/models"
)

const (
	// MinTagLength is the minimum length of a normalized tag
	MinTagLength = 1
	// MaxTagLength is the maximum length of a normalized tag
	MaxTagLength = 50
)

// tagFormat is the allowed shape of a normalized tag: lowercase alphanumerics and hyphens.
var tagFormat = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidateTag normalizes a single tag (trim, lowercase) and validates it against
// the format and length rules. It returns the normalized tag on success, or an
// error describing the violated rule.
func ValidateTag(raw string) (string, error) {
	tag := strings.ToLower(strings.TrimSpace(raw))

	if len(tag) < MinTagLength {
		return "", fmt.Errorf("tag cannot be empty")
	}
	if len(tag) > MaxTagLength {
		return "", fmt.Errorf("tag must be %d-%d characters", MinTagLength, MaxTagLength)
	}
	if !tagFormat.MatchString(tag) {
		return "", fmt.Errorf("tags can only contain lowercase letters, numbers, and hyphens")
	}

	return tag, nil
}

// ValidateTags applies the single-tag rule to every element and partitions the
// input into valid (normalized, deduplicated preserving first-seen order) and
// invalid tags. Valid tags are capped at models.MaxTagsPerTask: valid-looking
// tags beyond the cap are reclassified as invalid rather than silently dropped.
func ValidateTags(raw []string) (valid []string, invalid []string) {
	seen := make(map[string]bool, len(raw))

	for _, tag := range raw {
		normalized, err := ValidateTag(tag)
		if err != nil {
			invalid = append(invalid, tag)
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		valid = append(valid, normalized)
	}

	if len(valid) > models.MaxTagsPerTask {
		invalid = append(invalid, valid[models.MaxTagsPerTask:]...)
		valid = valid[:models.MaxTagsPerTask]
	}

	return valid, invalid
}
