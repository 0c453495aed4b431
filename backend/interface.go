package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by writes that target a document that does not exist.
var ErrNotFound = errors.New("document not found")

// Game represents one entry of a user's game collection
type Game struct {
	ID       string
	OwnerID  string
	Title    string
	Status   string
	Category string
	Genre    string
	Rating   int
	Notes    string
	ImageURL string
	GameURL  string
}

// Game defaults applied when a field is left empty on creation.
const (
	DefaultStatus   = "Playing"
	DefaultCategory = "General"
	DefaultGenre    = "Action"
	MaxRating       = 5
)

// Genres lists the genre options offered by the add/edit form.
var Genres = []string{"Action", "RPG", "Strategy", "FPS", "Adventure", "Sports", "Racing", "Puzzle"}

// Statuses lists the play status options.
var Statuses = []string{"Playing", "Completed", "On Hold", "Dropped", "Plan to Play"}

// WithDefaults returns a copy of g with empty classification fields filled in
func (g Game) WithDefaults() Game {
	if g.Status == "" {
		g.Status = DefaultStatus
	}
	if g.Category == "" {
		g.Category = DefaultCategory
	}
	if g.Genre == "" {
		g.Genre = DefaultGenre
	}
	return g
}

// Priority is the urgency of a todo
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Priorities lists valid priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority converts user input such as "high" into a Priority.
func ParsePriority(s string) (Priority, bool) {
	if s == "" {
		return PriorityMedium, true
	}
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	for _, valid := range Priorities {
		if p == valid {
			return p, true
		}
	}
	return "", false
}

// Todo represents a single item of a user's todo list
type Todo struct {
	ID        string
	OwnerID   string
	Title     string
	Completed bool
	Priority  Priority
	Created   time.Time
}

// Category is a user-defined label for games
type Category struct {
	ID      string
	OwnerID string
	Name    string
}

// GameStore is the live game collection. Subscriptions receive a full
// snapshot ordered by title; writes only confirm and trigger a new snapshot.
//
// Every write is scoped to an owner. A document that exists under another
// owner is reported as ErrNotFound.
type GameStore interface {
	SubscribeGames(ctx context.Context, ownerID string) *Subscription[Game]
	AddGame(ctx context.Context, game Game) (string, error)
	// UpdateGame uses game.OwnerID as the owner scope.
	UpdateGame(ctx context.Context, game Game) error
	DeleteGame(ctx context.Context, ownerID, id string) error
}

// TodoStore is the live todo list, ordered newest first.
type TodoStore interface {
	SubscribeTodos(ctx context.Context, ownerID string) *Subscription[Todo]
	AddTodo(ctx context.Context, ownerID, title string, priority Priority) (string, error)
	SetTodoCompleted(ctx context.Context, ownerID, id string, completed bool) error
	UpdateTodoTitle(ctx context.Context, ownerID, id, title string) error
	UpdateTodoPriority(ctx context.Context, ownerID, id string, priority Priority) error
	DeleteTodo(ctx context.Context, ownerID, id string) error
}

// CategoryStore holds the user-defined categories, ordered by name.
type CategoryStore interface {
	SubscribeCategories(ctx context.Context, ownerID string) *Subscription[Category]
	AddCategory(ctx context.Context, ownerID, name string) (string, error)
	DeleteCategory(ctx context.Context, ownerID, id string) error
}

// Store combines every collection with connection management
type Store interface {
	GameStore
	TodoStore
	CategoryStore
	Close() error
}

// FindGame searches a snapshot by exact ID first, then by case-insensitive title.
// Returns nil if no match is found.
func FindGame(games []Game, ref string) *Game {
	for i := range games {
		if games[i].ID == ref {
			return &games[i]
		}
	}
	for i := range games {
		if strings.EqualFold(games[i].Title, ref) {
			return &games[i]
		}
	}
	return nil
}

// FindTodo works like FindGame for todos.
func FindTodo(todos []Todo, ref string) *Todo {
	for i := range todos {
		if todos[i].ID == ref {
			return &todos[i]
		}
	}
	for i := range todos {
		if strings.EqualFold(todos[i].Title, ref) {
			return &todos[i]
		}
	}
	return nil
}

// FindCategoryByName searches categories by case-insensitive name.
func FindCategoryByName(categories []Category, name string) *Category {
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return &c
		}
	}
	return nil
}

// GenerateID generates a unique document identifier using UUID v4.
func GenerateID() string {
	return uuid.New().String()
}
