// Package prompt handles interactive prompts with no-prompt mode support.
// It provides filtered game and todo selection, and the interactive game
// form used by "game add" and "game update".
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gameshelf/backend"
	"gameshelf/internal/utils"
	"gameshelf/internal/views"
)

// Sentinel errors for prompt operations.
var (
	ErrSelectionCancelled = utils.ErrSelectionCancelled
	ErrNoPromptMode       = errors.New("interactive prompts disabled (--no-prompt / -y)")
	ErrNoItems            = errors.New("nothing to select")
	ErrNoMatches          = errors.New("nothing matches the filter")
)

// GameSelector picks one game after narrowing the list by title.
type GameSelector struct {
	Games    []backend.Game
	Prompt   string
	Mode     views.MatchMode
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run executes the selection prompt. A single game is picked without
// asking. The filter text is matched the same way the list view matches.
func (s *GameSelector) Run() (*backend.Game, error) {
	mode := s.Mode
	if mode == "" {
		mode = views.MatchSubstring
	}
	return selectOne(s.Games, s.Prompt, s.Reader, s.Writer, s.NoPrompt,
		func(games []backend.Game, text string) []backend.Game {
			return views.RecomputeWith(games, views.Filter{Search: text, Category: views.AllCategories, Mode: mode})
		},
		formatGameLine,
		func(g backend.Game) string { return g.Title },
	)
}

// TodoSelector picks one todo after narrowing the list by title.
type TodoSelector struct {
	Todos    []backend.Todo
	Prompt   string
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run executes the selection prompt.
func (s *TodoSelector) Run() (*backend.Todo, error) {
	return selectOne(s.Todos, s.Prompt, s.Reader, s.Writer, s.NoPrompt,
		func(todos []backend.Todo, text string) []backend.Todo {
			return views.RecomputeTodos(todos, text, true)
		},
		formatTodoLine,
		func(t backend.Todo) string { return t.Title },
	)
}

func selectOne[T any](
	items []T,
	prompt string,
	reader io.Reader,
	writer io.Writer,
	noPrompt bool,
	filter func([]T, string) []T,
	line func(T) string,
	title func(T) string,
) (*T, error) {
	if noPrompt {
		return nil, ErrNoPromptMode
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if len(items) == 1 {
		return &items[0], nil
	}
	if writer == nil {
		writer = io.Discard
	}

	scanner := bufio.NewScanner(reader)

	_, _ = fmt.Fprintf(writer, "%s\nFilter (or press Enter to show all): ", prompt)
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}
	filtered := filter(items, strings.TrimSpace(scanner.Text()))

	if len(filtered) == 0 {
		return nil, ErrNoMatches
	}
	if len(filtered) == 1 {
		_, _ = fmt.Fprintf(writer, "Auto-selected: %s\n", title(filtered[0]))
		return &filtered[0], nil
	}

	for i, item := range filtered {
		_, _ = fmt.Fprintf(writer, "  %d) %s\n", i+1, line(item))
	}

	_, _ = fmt.Fprintf(writer, "Select (0 to cancel): ")
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}
	input := strings.TrimSpace(scanner.Text())
	num, err := strconv.Atoi(input)
	if err != nil {
		return nil, fmt.Errorf("invalid selection: %s", input)
	}
	if num == 0 {
		return nil, ErrSelectionCancelled
	}
	if num < 1 || num > len(filtered) {
		return nil, fmt.Errorf("selection out of range: %d", num)
	}
	return &filtered[num-1], nil
}

// formatGameLine shows the title with genre, status and rating.
func formatGameLine(g backend.Game) string {
	meta := []string{g.Genre, g.Status}
	if g.Rating > 0 {
		meta = append(meta, views.FormatRating(g.Rating))
	}
	return fmt.Sprintf("%s [%s]", g.Title, strings.Join(meta, ", "))
}

func formatTodoLine(t backend.Todo) string {
	state := "pending"
	if t.Completed {
		state = "done"
	}
	return fmt.Sprintf("%s [%s, %s]", t.Title, state, t.Priority)
}

// FilterTodosByAction narrows todos to the ones an action applies to:
// "done" only offers pending todos and "undo" only completed ones. showAll
// disables the narrowing.
func FilterTodosByAction(todos []backend.Todo, action string, showAll bool) []backend.Todo {
	result := make([]backend.Todo, 0, len(todos))
	for _, t := range todos {
		switch {
		case showAll:
		case action == "done" && t.Completed:
			continue
		case action == "undo" && !t.Completed:
			continue
		}
		result = append(result, t)
	}
	return result
}

// GameFields holds what the interactive game form collected.
type GameFields struct {
	Game backend.Game
	// CoverPath is a local image to upload, empty to keep the current one.
	CoverPath string
}

// GameForm asks for each game field in turn. When editing, the current
// values are the defaults so pressing Enter keeps them.
type GameForm struct {
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run executes the form. initial may be nil for a new game.
func (f *GameForm) Run(initial *backend.Game) (*GameFields, error) {
	if f.NoPrompt {
		return nil, ErrNoPromptMode
	}
	writer := f.Writer
	if writer == nil {
		writer = io.Discard
	}
	p := utils.NewPrompter(f.Reader, writer)

	game := backend.Game{}.WithDefaults()
	if initial != nil {
		game = *initial
	}

	// Title (required, non-empty)
	for {
		title, err := p.String("Title (required)", game.Title)
		if err != nil {
			return nil, errors.New("no input for title")
		}
		if title = strings.TrimSpace(title); title != "" {
			game.Title = title
			break
		}
		_, _ = fmt.Fprintln(writer, "Title cannot be empty.")
	}

	genre, err := p.Choose("Genre", backend.Genres, optionIndex(backend.Genres, game.Genre))
	if err != nil {
		return nil, err
	}
	game.Genre = backend.Genres[genre]

	status, err := p.Choose("Status", backend.Statuses, optionIndex(backend.Statuses, game.Status))
	if err != nil {
		return nil, err
	}
	game.Status = backend.Statuses[status]

	if game.Rating, err = p.Int("Rating", 0, backend.MaxRating, game.Rating); err != nil {
		return nil, err
	}
	if game.Notes, err = p.String("Notes (optional)", game.Notes); err != nil {
		return nil, err
	}
	if game.GameURL, err = p.String("Store or homepage URL (optional)", game.GameURL); err != nil {
		return nil, err
	}

	fields := &GameFields{Game: game}
	if fields.CoverPath, err = p.String("Cover image file (optional)", ""); err != nil {
		return nil, err
	}
	return fields, nil
}

func optionIndex(options []string, value string) int {
	for i, o := range options {
		if strings.EqualFold(o, value) {
			return i
		}
	}
	return 0
}
