package utils

import (
	"strings"

	"gameshelf/backend"
)

// ValidateRating validates that rating is within 0..backend.MaxRating.
func ValidateRating(rating int) error {
	if rating < 0 || rating > backend.MaxRating {
		return ErrInvalidRating(rating, backend.MaxRating)
	}
	return nil
}

// NormalizeStatus matches status case-insensitively against the known
// statuses and returns the canonical spelling. Empty input is allowed.
func NormalizeStatus(status string) (string, error) {
	return normalizeOption(status, backend.Statuses, ErrInvalidStatus)
}

// NormalizeGenre matches genre case-insensitively against the known genres.
func NormalizeGenre(genre string) (string, error) {
	return normalizeOption(genre, backend.Genres, ErrInvalidGenre)
}

// ParsePriority validates a priority flag value.
func ParsePriority(s string) (backend.Priority, error) {
	p, ok := backend.ParsePriority(s)
	if !ok {
		return "", ErrInvalidPriority(s)
	}
	return p, nil
}

// ValidateGame checks a game before it is written.
func ValidateGame(g backend.Game) error {
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle("game")
	}
	if err := ValidateRating(g.Rating); err != nil {
		return err
	}
	if _, err := NormalizeStatus(g.Status); err != nil {
		return err
	}
	if _, err := NormalizeGenre(g.Genre); err != nil {
		return err
	}
	return nil
}

func normalizeOption(value string, options []string, mkErr func(string, []string) error) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	for _, opt := range options {
		if strings.EqualFold(opt, value) {
			return opt, nil
		}
	}
	return "", mkErr(value, options)
}
