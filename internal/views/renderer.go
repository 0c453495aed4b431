package views

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gameshelf/backend"
)

// Renderer prints games and todos using a view's column layout
type Renderer struct {
	view   *View
	writer io.Writer
}

// NewRenderer creates a new view renderer
func NewRenderer(view *View, writer io.Writer) *Renderer {
	return &Renderer{view: view, writer: writer}
}

// RenderGames prints one line per game. The list is printed as given;
// filtering happens before rendering.
func (r *Renderer) RenderGames(games []backend.Game) {
	for i := range games {
		parts := make([]string, 0, len(r.view.Fields))
		for _, field := range r.view.Fields {
			parts = append(parts, applyWidth(gameField(&games[i], field), field))
		}
		_, _ = fmt.Fprintf(r.writer, "  %s\n", strings.TrimRight(strings.Join(parts, " "), " "))
	}
}

// RenderTodos prints one line per todo
func (r *Renderer) RenderTodos(todos []backend.Todo) {
	for i := range todos {
		parts := make([]string, 0, len(r.view.Fields))
		for _, field := range r.view.Fields {
			parts = append(parts, applyWidth(todoField(&todos[i], field), field))
		}
		_, _ = fmt.Fprintf(r.writer, "  %s\n", strings.TrimRight(strings.Join(parts, " "), " "))
	}
}

func gameField(g *backend.Game, field Field) string {
	switch field.Name {
	case "title":
		return g.Title
	case "genre":
		return g.Genre
	case "status":
		return g.Status
	case "rating":
		return FormatRating(g.Rating)
	case "category":
		if g.Category == "" {
			return ""
		}
		return "{" + g.Category + "}"
	case "notes":
		return g.Notes
	case "image":
		return g.ImageURL
	case "url":
		return g.GameURL
	case "id":
		return g.ID
	}
	return ""
}

func todoField(t *backend.Todo, field Field) string {
	switch field.Name {
	case "done":
		if t.Completed {
			return "[x]"
		}
		return "[ ]"
	case "priority":
		return string(t.Priority)
	case "title":
		return t.Title
	case "created":
		return formatDateTime(t.Created, field.Format)
	case "id":
		return t.ID
	}
	return ""
}

// FormatRating renders a 0..5 rating as filled and empty stars
func FormatRating(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > backend.MaxRating {
		rating = backend.MaxRating
	}
	return strings.Repeat("*", rating) + strings.Repeat(".", backend.MaxRating-rating)
}

// applyWidth truncates and pads value according to the field configuration
func applyWidth(value string, field Field) string {
	if field.Width <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) > field.Width && field.Truncate && field.Width > 3 {
		value = string(runes[:field.Width-3]) + "..."
		runes = []rune(value)
	}
	pad := field.Width - len(runes)
	if pad <= 0 {
		return value
	}
	switch field.Align {
	case "right":
		return strings.Repeat(" ", pad) + value
	case "center":
		left := pad / 2
		return strings.Repeat(" ", left) + value + strings.Repeat(" ", pad-left)
	default:
		return value + strings.Repeat(" ", pad)
	}
}

// formatDateTime formats a time.Time value for display
func formatDateTime(t time.Time, format string) string {
	if t.IsZero() {
		return ""
	}
	if format == "" {
		format = DefaultDateFormat
	}
	return t.Local().Format(format)
}
