package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gameshelf/backend"
)

// mustNewBackend creates an in-memory backend and registers cleanup
func mustNewBackend(t *testing.T) (*Backend, context.Context) {
	t.Helper()
	b, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, context.Background()
}

// mustAddGame adds a game and fails the test on error
func mustAddGame(t *testing.T, b *Backend, ctx context.Context, g backend.Game) string {
	t.Helper()
	id, err := b.AddGame(ctx, g)
	if err != nil {
		t.Fatalf("AddGame error: %v", err)
	}
	if id == "" {
		t.Fatal("AddGame returned empty ID")
	}
	return id
}

// next reads one snapshot or fails after a second
func next[T any](t *testing.T, sub *backend.Subscription[T]) backend.Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return backend.Snapshot[T]{}
}

// getGame reads a game row directly, or nil if it does not exist
func getGame(t *testing.T, b *Backend, id string) *backend.Game {
	t.Helper()
	row := b.db.QueryRow(
		`SELECT id, owner_id, title, status, category, genre, rating, notes, image_url, game_url
		 FROM games WHERE id = ?`,
		id,
	)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		t.Fatalf("read game %s: %v", id, err)
	}
	return g
}

func titles(games []backend.Game) []string {
	out := make([]string, len(games))
	for i, g := range games {
		out[i] = g.Title
	}
	return out
}

func TestBackendImplementsInterface(t *testing.T) {
	var _ backend.Store = (*Backend)(nil)
}

// TestSubscribeDeliversInitialSnapshot verifies a subscriber gets the current state immediately.
func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	b, ctx := mustNewBackend(t)
	mustAddGame(t, b, ctx, backend.Game{OwnerID: "u1", Title: "Halo"})

	sub := b.SubscribeGames(ctx, "u1")
	defer sub.Close()

	snap := next(t, sub)
	if snap.Err != nil {
		t.Fatalf("snapshot error: %v", snap.Err)
	}
	if len(snap.Items) != 1 || snap.Items[0].Title != "Halo" {
		t.Errorf("initial snapshot = %v, want [Halo]", titles(snap.Items))
	}
}

// TestGamesOrderedByTitle verifies snapshots are ordered by title ascending.
func TestGamesOrderedByTitle(t *testing.T) {
	b, ctx := mustNewBackend(t)
	for _, title := range []string{"Zelda", "Celeste", "Halo"} {
		mustAddGame(t, b, ctx, backend.Game{OwnerID: "u1", Title: title})
	}

	sub := b.SubscribeGames(ctx, "u1")
	defer sub.Close()

	got := titles(next(t, sub).Items)
	want := []string{"Celeste", "Halo", "Zelda"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestSnapshotsPartitionedByOwner verifies one owner never sees another's games.
func TestSnapshotsPartitionedByOwner(t *testing.T) {
	b, ctx := mustNewBackend(t)
	mustAddGame(t, b, ctx, backend.Game{OwnerID: "alice", Title: "Halo"})
	mustAddGame(t, b, ctx, backend.Game{OwnerID: "bob", Title: "Zelda"})

	sub := b.SubscribeGames(ctx, "alice")
	defer sub.Close()

	snap := next(t, sub)
	if len(snap.Items) != 1 || snap.Items[0].OwnerID != "alice" {
		t.Errorf("alice snapshot = %+v", snap.Items)
	}
}

// TestWriteTriggersFreshSnapshot verifies add/update/delete push a new full snapshot.
func TestWriteTriggersFreshSnapshot(t *testing.T) {
	b, ctx := mustNewBackend(t)
	sub := b.SubscribeGames(ctx, "u1")
	defer sub.Close()

	if snap := next(t, sub); len(snap.Items) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d", len(snap.Items))
	}

	id := mustAddGame(t, b, ctx, backend.Game{OwnerID: "u1", Title: "Halo", Rating: 4})
	snap := next(t, sub)
	if len(snap.Items) != 1 || snap.Items[0].ID != id {
		t.Fatalf("after add = %+v", snap.Items)
	}

	updated := snap.Items[0]
	updated.Title = "Halo Infinite"
	updated.Rating = 5
	if err := b.UpdateGame(ctx, updated); err != nil {
		t.Fatalf("UpdateGame: %v", err)
	}
	snap = next(t, sub)
	if snap.Items[0].Title != "Halo Infinite" || snap.Items[0].Rating != 5 {
		t.Errorf("after update = %+v", snap.Items[0])
	}

	if err := b.DeleteGame(ctx, "u1", id); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	if snap = next(t, sub); len(snap.Items) != 0 {
		t.Errorf("after delete = %+v", snap.Items)
	}
}

// TestAddGameAppliesDefaults verifies empty classification fields get defaults.
func TestAddGameAppliesDefaults(t *testing.T) {
	b, ctx := mustNewBackend(t)
	id := mustAddGame(t, b, ctx, backend.Game{OwnerID: "u1", Title: "Tetris"})

	g := getGame(t, b, id)
	if g == nil {
		t.Fatal("added game not stored")
	}
	if g.Status != backend.DefaultStatus || g.Category != backend.DefaultCategory || g.Genre != backend.DefaultGenre {
		t.Errorf("defaults not applied: %+v", g)
	}
}

// TestWritesScopedToOwner verifies no write reaches a document of another owner.
func TestWritesScopedToOwner(t *testing.T) {
	b, ctx := mustNewBackend(t)
	gameID := mustAddGame(t, b, ctx, backend.Game{OwnerID: "alice", Title: "Halo"})
	todoID, err := b.AddTodo(ctx, "alice", "Finish Halo", backend.PriorityHigh)
	if err != nil {
		t.Fatalf("AddTodo: %v", err)
	}
	categoryID, err := b.AddCategory(ctx, "alice", "Backlog")
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}

	sub := b.SubscribeTodos(ctx, "mallory")
	defer sub.Close()
	next(t, sub)

	writes := map[string]error{
		"UpdateGame":         b.UpdateGame(ctx, backend.Game{ID: gameID, OwnerID: "mallory", Title: "Halo 2"}),
		"DeleteGame":         b.DeleteGame(ctx, "mallory", gameID),
		"SetTodoCompleted":   b.SetTodoCompleted(ctx, "mallory", todoID, true),
		"UpdateTodoTitle":    b.UpdateTodoTitle(ctx, "mallory", todoID, "mine"),
		"UpdateTodoPriority": b.UpdateTodoPriority(ctx, "mallory", todoID, backend.PriorityLow),
		"DeleteTodo":         b.DeleteTodo(ctx, "mallory", todoID),
		"DeleteCategory":     b.DeleteCategory(ctx, "mallory", categoryID),
	}
	for name, err := range writes {
		if !errors.Is(err, backend.ErrNotFound) {
			t.Errorf("%s err = %v, want ErrNotFound", name, err)
		}
	}

	if g := getGame(t, b, gameID); g == nil || g.OwnerID != "alice" || g.Title != "Halo" {
		t.Errorf("alice's game changed: %+v", g)
	}
	todos, err := b.queryTodos(ctx, "alice")
	if err != nil || len(todos) != 1 || todos[0].Title != "Finish Halo" || todos[0].Completed || todos[0].Priority != backend.PriorityHigh {
		t.Errorf("alice's todos changed: %+v, %v", todos, err)
	}
	if categories, _ := b.queryCategories(ctx, "alice"); len(categories) != 1 {
		t.Errorf("alice's category removed: %+v", categories)
	}

	select {
	case snap := <-sub.C():
		t.Errorf("rejected writes published a snapshot: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}

	if err := b.UpdateGame(ctx, backend.Game{ID: gameID, OwnerID: "alice", Title: "Halo 2"}); err != nil {
		t.Fatalf("UpdateGame by owner: %v", err)
	}
	if g := getGame(t, b, gameID); g.Title != "Halo 2" {
		t.Errorf("Title = %q, want Halo 2", g.Title)
	}
}

// TestInvalidTodoTimestampSurfacesError verifies a corrupt creation time fails
// the snapshot instead of showing a zero time.
func TestInvalidTodoTimestampSurfacesError(t *testing.T) {
	b, ctx := mustNewBackend(t)
	if _, err := b.db.Exec(
		"INSERT INTO todos (id, owner_id, title, completed, priority, created) VALUES ('t1', 'u1', 'Broken', 0, 'LOW', 'yesterday')",
	); err != nil {
		t.Fatalf("insert: %v", err)
	}

	sub := b.SubscribeTodos(ctx, "u1")
	defer sub.Close()

	snap := next(t, sub)
	if snap.Err == nil || !strings.Contains(snap.Err.Error(), "invalid creation time") {
		t.Errorf("snapshot error = %v", snap.Err)
	}
}

// TestWritesToMissingDocument verifies update and delete report ErrNotFound.
func TestWritesToMissingDocument(t *testing.T) {
	b, ctx := mustNewBackend(t)

	if err := b.UpdateGame(ctx, backend.Game{ID: "missing", Title: "x"}); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("UpdateGame err = %v, want ErrNotFound", err)
	}
	if err := b.DeleteGame(ctx, "u1", "missing"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("DeleteGame err = %v, want ErrNotFound", err)
	}
	if err := b.SetTodoCompleted(ctx, "u1", "missing", true); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("SetTodoCompleted err = %v, want ErrNotFound", err)
	}
	if err := b.DeleteCategory(ctx, "u1", "missing"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("DeleteCategory err = %v, want ErrNotFound", err)
	}
}

// TestClosedSubscriptionGetsNoDeliveries verifies Close releases the subscription.
func TestClosedSubscriptionGetsNoDeliveries(t *testing.T) {
	b, ctx := mustNewBackend(t)
	sub := b.SubscribeGames(ctx, "u1")
	next(t, sub)
	sub.Close()

	mustAddGame(t, b, ctx, backend.Game{OwnerID: "u1", Title: "Halo"})

	if _, ok := <-sub.C(); ok {
		t.Error("expected closed channel after Close")
	}
	if n := b.games.SubscriberCount("u1"); n != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n)
	}
}

// TestTodoLifecycle exercises add, toggle, rename, priority and delete.
func TestTodoLifecycle(t *testing.T) {
	b, ctx := mustNewBackend(t)
	sub := b.SubscribeTodos(ctx, "u1")
	defer sub.Close()
	next(t, sub)

	id, err := b.AddTodo(ctx, "u1", "Buy milk", "")
	if err != nil {
		t.Fatalf("AddTodo: %v", err)
	}
	snap := next(t, sub)
	if len(snap.Items) != 1 || snap.Items[0].Priority != backend.PriorityMedium {
		t.Fatalf("after add = %+v", snap.Items)
	}
	if snap.Items[0].Created.IsZero() {
		t.Error("Created not set")
	}

	if err := b.SetTodoCompleted(ctx, "u1", id, true); err != nil {
		t.Fatalf("SetTodoCompleted: %v", err)
	}
	if snap = next(t, sub); !snap.Items[0].Completed {
		t.Error("expected completed todo")
	}

	if err := b.UpdateTodoTitle(ctx, "u1", id, "Buy oat milk"); err != nil {
		t.Fatalf("UpdateTodoTitle: %v", err)
	}
	if snap = next(t, sub); snap.Items[0].Title != "Buy oat milk" {
		t.Errorf("Title = %q", snap.Items[0].Title)
	}

	if err := b.UpdateTodoPriority(ctx, "u1", id, backend.PriorityHigh); err != nil {
		t.Fatalf("UpdateTodoPriority: %v", err)
	}
	if snap = next(t, sub); snap.Items[0].Priority != backend.PriorityHigh {
		t.Errorf("Priority = %q", snap.Items[0].Priority)
	}

	if err := b.DeleteTodo(ctx, "u1", id); err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if snap = next(t, sub); len(snap.Items) != 0 {
		t.Errorf("after delete = %+v", snap.Items)
	}
}

// TestTodosNewestFirst verifies todos are ordered by creation time descending.
func TestTodosNewestFirst(t *testing.T) {
	b, ctx := mustNewBackend(t)
	for _, title := range []string{"first", "second", "third"} {
		if _, err := b.AddTodo(ctx, "u1", title, backend.PriorityLow); err != nil {
			t.Fatalf("AddTodo: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	sub := b.SubscribeTodos(ctx, "u1")
	defer sub.Close()
	snap := next(t, sub)
	if len(snap.Items) != 3 || snap.Items[0].Title != "third" || snap.Items[2].Title != "first" {
		t.Errorf("order = %+v", snap.Items)
	}
}

// TestCategoryLifecycle verifies categories are added, ordered by name and deleted.
func TestCategoryLifecycle(t *testing.T) {
	b, ctx := mustNewBackend(t)
	sub := b.SubscribeCategories(ctx, "u1")
	defer sub.Close()
	next(t, sub)

	if _, err := b.AddCategory(ctx, "u1", "wishlist"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	next(t, sub)
	id, err := b.AddCategory(ctx, "u1", "Backlog")
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	snap := next(t, sub)
	if len(snap.Items) != 2 || snap.Items[0].Name != "Backlog" {
		t.Errorf("categories = %+v", snap.Items)
	}

	if err := b.DeleteCategory(ctx, "u1", id); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if snap = next(t, sub); len(snap.Items) != 1 || snap.Items[0].Name != "wishlist" {
		t.Errorf("after delete = %+v", snap.Items)
	}
}

// TestQueryErrorDeliveredOnSubscription verifies a failing query surfaces as Snapshot.Err.
func TestQueryErrorDeliveredOnSubscription(t *testing.T) {
	b, ctx := mustNewBackend(t)
	if _, err := b.db.Exec("DROP TABLE games"); err != nil {
		t.Fatalf("drop: %v", err)
	}

	sub := b.SubscribeGames(ctx, "u1")
	defer sub.Close()

	if snap := next(t, sub); snap.Err == nil {
		t.Error("expected snapshot error")
	}
}

// TestExternalWriteRefreshesSubscription verifies a second process writing the
// same file causes a fresh snapshot on the first.
func TestExternalWriteRefreshesSubscription(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gameshelf.db")
	ctx := context.Background()

	reader, err := NewWithOptions(path, Options{WatchExternal: true})
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer func() { _ = reader.Close() }()

	writer, err := New(path)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer func() { _ = writer.Close() }()

	sub := reader.SubscribeGames(ctx, "u1")
	defer sub.Close()
	next(t, sub)

	if _, err := writer.AddGame(ctx, backend.Game{OwnerID: "u1", Title: "Hades"}); err != nil {
		t.Fatalf("AddGame: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case snap := <-sub.C():
			if len(snap.Items) == 1 && snap.Items[0].Title == "Hades" {
				return
			}
		case <-deadline:
			t.Fatal("reader never saw external write")
		}
	}
}
