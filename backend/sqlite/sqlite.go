package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gameshelf/backend"
	"gameshelf/internal/utils"
	"gameshelf/internal/watcher"
)

// Backend implements backend.Store on top of a SQLite file. Every write
// publishes a fresh snapshot to the subscriptions of the affected owner.
type Backend struct {
	db   *sql.DB
	path string

	games      *backend.Hub[backend.Game]
	todos      *backend.Hub[backend.Todo]
	categories *backend.Hub[backend.Category]

	watcher *watcher.Watcher
}

// Options tune a Backend beyond its path.
type Options struct {
	// WatchExternal refreshes subscriptions when another process writes the file.
	WatchExternal bool
}

// New creates a new SQLite backend and initializes the database schema
func New(path string) (*Backend, error) {
	return NewWithOptions(path, Options{})
}

// NewWithOptions creates a backend and optionally starts the file watcher.
func NewWithOptions(path string, opts Options) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, path: path}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	b.games = backend.NewHub(b.queryGames)
	b.todos = backend.NewHub(b.queryTodos)
	b.categories = backend.NewHub(b.queryCategories)

	if opts.WatchExternal && path != ":memory:" {
		cfg := watcher.DefaultConfig(path, b.refreshAll)
		cfg.OnError = func(err error) { utils.Debugf("store watcher: %v", err) }
		w, err := watcher.New(cfg)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			if w != nil {
				w.Stop()
			}
			utils.Warnf("live refresh from other processes disabled: %v", err)
		} else {
			b.watcher = w
		}
	}

	return b, nil
}

// initSchema creates the database tables if they don't exist
func (b *Backend) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'Playing',
			category TEXT NOT NULL DEFAULT 'General',
			genre TEXT NOT NULL DEFAULT 'Action',
			rating INTEGER NOT NULL DEFAULT 0,
			notes TEXT DEFAULT '',
			created TEXT NOT NULL,
			modified TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS todos (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			priority TEXT NOT NULL DEFAULT 'MEDIUM',
			created TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_games_owner ON games(owner_id, title);
		CREATE INDEX IF NOT EXISTS idx_todos_owner ON todos(owner_id, created);
		CREATE INDEX IF NOT EXISTS idx_categories_owner ON categories(owner_id, name);
	`

	if _, err := b.db.Exec(schema); err != nil {
		return err
	}

	// Migration: media references were added after the first release
	_, _ = b.db.Exec("ALTER TABLE games ADD COLUMN image_url TEXT DEFAULT ''")
	_, _ = b.db.Exec("ALTER TABLE games ADD COLUMN game_url TEXT DEFAULT ''")

	return nil
}

// SubscribeGames returns a live view of ownerID's games ordered by title
func (b *Backend) SubscribeGames(ctx context.Context, ownerID string) *backend.Subscription[backend.Game] {
	return b.games.Subscribe(ctx, ownerID)
}

// SubscribeTodos returns a live view of ownerID's todos, newest first
func (b *Backend) SubscribeTodos(ctx context.Context, ownerID string) *backend.Subscription[backend.Todo] {
	return b.todos.Subscribe(ctx, ownerID)
}

// SubscribeCategories returns a live view of ownerID's categories
func (b *Backend) SubscribeCategories(ctx context.Context, ownerID string) *backend.Subscription[backend.Category] {
	return b.categories.Subscribe(ctx, ownerID)
}

func (b *Backend) queryGames(ctx context.Context, ownerID string) ([]backend.Game, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, owner_id, title, status, category, genre, rating, notes, image_url, game_url
		 FROM games WHERE owner_id = ? ORDER BY title ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	games := []backend.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

func (b *Backend) queryTodos(ctx context.Context, ownerID string) ([]backend.Todo, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, owner_id, title, completed, priority, created
		 FROM todos WHERE owner_id = ? ORDER BY created DESC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	todos := []backend.Todo{}
	for rows.Next() {
		var t backend.Todo
		var completed int
		var createdStr string
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &completed, &t.Priority, &createdStr); err != nil {
			return nil, err
		}
		t.Completed = completed != 0
		if t.Created, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return nil, fmt.Errorf("todo %s has an invalid creation time: %w", t.ID, err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (b *Backend) queryCategories(ctx context.Context, ownerID string) ([]backend.Category, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT id, owner_id, name FROM categories WHERE owner_id = ? ORDER BY name COLLATE NOCASE ASC",
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	categories := []backend.Category{}
	for rows.Next() {
		var c backend.Category
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// scanner is an interface satisfied by both *sql.Rows and *sql.Row
type scanner interface {
	Scan(dest ...any) error
}

// scanGame scans a game from any scanner (Rows or Row)
func scanGame(s scanner) (*backend.Game, error) {
	var g backend.Game
	var notes, imageURL, gameURL sql.NullString

	err := s.Scan(
		&g.ID, &g.OwnerID, &g.Title, &g.Status, &g.Category, &g.Genre,
		&g.Rating, &notes, &imageURL, &gameURL,
	)
	if err != nil {
		return nil, err
	}

	g.Notes = notes.String
	g.ImageURL = imageURL.String
	g.GameURL = gameURL.String
	return &g, nil
}

// AddGame stores a new game and returns its generated ID
func (b *Backend) AddGame(ctx context.Context, game backend.Game) (string, error) {
	id := uuid.New().String()
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)
	game = game.WithDefaults()

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO games (id, owner_id, title, status, category, genre, rating, notes, image_url, game_url, created, modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, game.OwnerID, game.Title, game.Status, game.Category, game.Genre,
		game.Rating, game.Notes, game.ImageURL, game.GameURL, nowStr, nowStr,
	)
	if err != nil {
		return "", err
	}

	b.games.Publish(ctx, game.OwnerID)
	return id, nil
}

// UpdateGame replaces every field of game.OwnerID's game except its ID and owner
func (b *Backend) UpdateGame(ctx context.Context, game backend.Game) error {
	game = game.WithDefaults()
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := b.db.ExecContext(ctx,
		`UPDATE games SET title = ?, status = ?, category = ?, genre = ?, rating = ?, notes = ?, image_url = ?, game_url = ?, modified = ?
		 WHERE id = ? AND owner_id = ?`,
		game.Title, game.Status, game.Category, game.Genre, game.Rating,
		game.Notes, game.ImageURL, game.GameURL, nowStr, game.ID, game.OwnerID,
	)
	return b.finishWrite(ctx, res, err, game.OwnerID, b.games.Publish)
}

// DeleteGame removes one of ownerID's games
func (b *Backend) DeleteGame(ctx context.Context, ownerID, id string) error {
	return b.deleteFrom(ctx, "games", ownerID, id, b.games.Publish)
}

// AddTodo stores a new todo and returns its generated ID
func (b *Backend) AddTodo(ctx context.Context, ownerID, title string, priority backend.Priority) (string, error) {
	id := uuid.New().String()
	if priority == "" {
		priority = backend.PriorityMedium
	}

	_, err := b.db.ExecContext(ctx,
		"INSERT INTO todos (id, owner_id, title, completed, priority, created) VALUES (?, ?, ?, 0, ?, ?)",
		id, ownerID, title, string(priority), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", err
	}

	b.todos.Publish(ctx, ownerID)
	return id, nil
}

// SetTodoCompleted marks a todo done or not done
func (b *Backend) SetTodoCompleted(ctx context.Context, ownerID, id string, completed bool) error {
	value := 0
	if completed {
		value = 1
	}
	return b.updateTodo(ctx, ownerID, id, "completed", value)
}

// UpdateTodoTitle renames a todo
func (b *Backend) UpdateTodoTitle(ctx context.Context, ownerID, id, title string) error {
	return b.updateTodo(ctx, ownerID, id, "title", title)
}

// UpdateTodoPriority changes the priority of a todo
func (b *Backend) UpdateTodoPriority(ctx context.Context, ownerID, id string, priority backend.Priority) error {
	return b.updateTodo(ctx, ownerID, id, "priority", string(priority))
}

// DeleteTodo removes one of ownerID's todos
func (b *Backend) DeleteTodo(ctx context.Context, ownerID, id string) error {
	return b.deleteFrom(ctx, "todos", ownerID, id, b.todos.Publish)
}

// updateTodo sets a single column; column is never user input.
func (b *Backend) updateTodo(ctx context.Context, ownerID, id, column string, value any) error {
	res, err := b.db.ExecContext(ctx,
		"UPDATE todos SET "+column+" = ? WHERE id = ? AND owner_id = ?",
		value, id, ownerID,
	)
	return b.finishWrite(ctx, res, err, ownerID, b.todos.Publish)
}

// AddCategory stores a new category and returns its generated ID
func (b *Backend) AddCategory(ctx context.Context, ownerID, name string) (string, error) {
	id := uuid.New().String()
	_, err := b.db.ExecContext(ctx,
		"INSERT INTO categories (id, owner_id, name) VALUES (?, ?, ?)",
		id, ownerID, name,
	)
	if err != nil {
		return "", err
	}

	b.categories.Publish(ctx, ownerID)
	return id, nil
}

// DeleteCategory removes one of ownerID's categories. Games keep their category text.
func (b *Backend) DeleteCategory(ctx context.Context, ownerID, id string) error {
	return b.deleteFrom(ctx, "categories", ownerID, id, b.categories.Publish)
}

// deleteFrom removes a document of ownerID; table is never user input.
func (b *Backend) deleteFrom(ctx context.Context, table, ownerID, id string, publish func(context.Context, string)) error {
	res, err := b.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ? AND owner_id = ?", id, ownerID)
	return b.finishWrite(ctx, res, err, ownerID, publish)
}

// finishWrite maps a write that touched no row to ErrNotFound and publishes
// a fresh snapshot to ownerID otherwise.
func (b *Backend) finishWrite(ctx context.Context, res sql.Result, err error, ownerID string, publish func(context.Context, string)) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return backend.ErrNotFound
	}
	publish(ctx, ownerID)
	return nil
}

// refreshAll re-publishes every subscribed owner after an external write
func (b *Backend) refreshAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	utils.Debugf("store file changed on disk, refreshing subscriptions")
	b.games.PublishAll(ctx)
	b.todos.PublishAll(ctx)
	b.categories.PublishAll(ctx)
}

// Path returns the database path the backend was opened with
func (b *Backend) Path() string {
	return b.path
}

// Close stops the watcher, releases subscriptions and closes the database
func (b *Backend) Close() error {
	if b.watcher != nil {
		b.watcher.Stop()
	}
	b.games.Close()
	b.todos.Close()
	b.categories.Close()
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Verify interface compliance at compile time
var _ backend.Store = (*Backend)(nil)
