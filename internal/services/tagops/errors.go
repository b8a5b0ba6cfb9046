package tagops

import "fmt"

// ValidationError is returned when a request carries a malformed field, such
// as an explicitly supplied tag that fails format rules.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ClarificationNeededError is returned instead of acting on an ambiguous
// command: a filter extraction below the confidence threshold, or a "this
// task" reference with no task in context.
type ClarificationNeededError struct {
	Question   string
	Confidence float64
}

func (e *ClarificationNeededError) Error() string {
	return e.Question
}

// TagNotPresentError is returned when a removal names a tag the task does not
// carry. It names the tag so the caller can surface it verbatim.
type TagNotPresentError struct {
	Tag string
}

func (e *TagNotPresentError) Error() string {
	return fmt.Sprintf("tag %q is not on this task", e.Tag)
}

// NotFoundError is returned when a task does not exist or belongs to another
// user. The two cases are deliberately indistinguishable.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}
