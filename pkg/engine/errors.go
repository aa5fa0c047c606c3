package engine

import "fmt"

// InvalidChoiceError reports a choice index outside the currently presented
// choice list. Recoverable by re-prompting the player.
type InvalidChoiceError struct {
	ChapterID string
	Index     int
	Choices   int
}

func (e *InvalidChoiceError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("chapter %q is presenting %d choices; a selection is required", e.ChapterID, e.Choices)
	case e.Choices == 0:
		return fmt.Sprintf("chapter %q presents no choices", e.ChapterID)
	default:
		return fmt.Sprintf("choice %d out of range for chapter %q (%d choices)", e.Index, e.ChapterID, e.Choices)
	}
}

// UnresolvedTransitionError reports a conditional branch with no matching
// value and no default arm. This is a content defect the validator should
// have caught; the transition is not applied.
type UnresolvedTransitionError struct {
	ChapterID string
	Variable  string
	Value     string
}

func (e *UnresolvedTransitionError) Error() string {
	return fmt.Sprintf("chapter %q: conditional on %q has no branch for value %q and no default", e.ChapterID, e.Variable, e.Value)
}

// RequirementsNotMetError reports that the player is not eligible for the
// next chapter. Recoverable, surfaced as a user-facing message.
type RequirementsNotMetError struct {
	ChapterID string
}

func (e *RequirementsNotMetError) Error() string {
	return fmt.Sprintf("requirements not met for chapter %q", e.ChapterID)
}

// ContentDefectError reports a structural defect hit at runtime, such as a
// transition targeting an undefined chapter. Never expected once content has
// passed validation.
type ContentDefectError struct {
	ChapterID string
	Detail    string
}

func (e *ContentDefectError) Error() string {
	return fmt.Sprintf("content defect in chapter %q: %s", e.ChapterID, e.Detail)
}
