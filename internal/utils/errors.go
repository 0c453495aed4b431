package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrSignInRequired is the sentinel behind ErrNotSignedIn.
var ErrSignInRequired = errors.New("not signed in")

// ErrNotSignedIn returns an error for commands that need an owner identity.
func ErrNotSignedIn() error {
	return &ErrorWithSuggestion{
		Err:        ErrSignInRequired,
		Suggestion: "Sign in with 'gameshelf signin --name <your name>'",
	}
}

// ErrSessionExpired returns an error for a stored session that no longer validates.
func ErrSessionExpired(reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: session %s", ErrSignInRequired, reason),
		Suggestion: "Sign in again with 'gameshelf signin --name <your name>'",
	}
}

// ErrGameNotFound returns an error for when a game is not found.
func ErrGameNotFound(ref string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("game not found: %s", ref),
		Suggestion: "Check the title or ID with 'gameshelf game list'",
	}
}

// ErrTodoNotFound returns an error for when a todo is not found.
func ErrTodoNotFound(ref string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("todo not found: %s", ref),
		Suggestion: "Check the title or ID with 'gameshelf todo list --all'",
	}
}

// ErrCategoryNotFound returns an error for when a category is not found.
func ErrCategoryNotFound(name string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("category not found: %s", name),
		Suggestion: fmt.Sprintf("Create it with 'gameshelf category add %s'", name),
	}
}

// ErrCategoryExists returns an error when adding a duplicate category.
func ErrCategoryExists(name string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("category already exists: %s", name),
		Suggestion: "Use 'gameshelf category list' to see existing categories",
	}
}

// ErrInvalidRating returns an error for a rating outside 0..max.
func ErrInvalidRating(rating, max int) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid rating: %d", rating),
		Suggestion: fmt.Sprintf("Rating must be between 0 and %d", max),
	}
}

// ErrInvalidPriority returns an error for an unknown todo priority.
func ErrInvalidPriority(priority string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid priority: %s", priority),
		Suggestion: "Priority must be one of: low, medium, high",
	}
}

// ErrInvalidStatus returns an error for an invalid status with valid options.
func ErrInvalidStatus(status string, valid []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid status: %s", status),
		Suggestion: fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")),
	}
}

// ErrInvalidGenre returns an error for an invalid genre with valid options.
func ErrInvalidGenre(genre string, valid []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid genre: %s", genre),
		Suggestion: fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")),
	}
}

// ErrEmptyTitle returns an error when a required title is blank.
func ErrEmptyTitle(kind string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%s title cannot be empty", kind),
		Suggestion: fmt.Sprintf("Provide a title, e.g. 'gameshelf %s add \"My title\"'", kind),
	}
}

// ErrUploadFailed returns an error when a media upload fails with a smart suggestion.
func ErrUploadFailed(path, reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("upload of %s failed: %s", path, reason),
		Suggestion: getSmartSuggestion(reason),
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such file") {
		return "Check that the file path exists and is readable"
	}

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check that the media server is running ('gameshelf serve')"
	}

	if strings.Contains(lowerReason, "timeout") {
		return "The media server may be slow or unreachable. Try again later"
	}

	return "Check your storage settings in the config file and try again"
}
