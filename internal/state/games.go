package state

import (
	"context"
	"time"

	"gameshelf/backend"
	"gameshelf/internal/cache"
	"gameshelf/internal/utils"
	"gameshelf/internal/views"
)

// GameView is everything the display layer needs to render the collection.
type GameView struct {
	OwnerID      string
	Loading      bool
	Games        []backend.Game
	Total        int
	ErrorMessage string
	Search       string
	Category     string
	Editing      *backend.Game
}

// Option configures a state holder.
type Option func(*options)

type options struct {
	snapshots *cache.Store
	mode      views.MatchMode
}

// WithSnapshotStore persists every live snapshot and seeds the cache from
// the last persisted one when loading an owner.
func WithSnapshotStore(s *cache.Store) Option {
	return func(o *options) { o.snapshots = s }
}

// WithMatchMode selects how search text is matched against titles.
func WithMatchMode(m views.MatchMode) Option {
	return func(o *options) { o.mode = m }
}

func buildOptions(opts []Option) options {
	o := options{mode: views.MatchSubstring}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// GameState is the state holder behind the game collection screens.
type GameState struct {
	store backend.GameStore
	h     *holder[backend.Game, GameView]

	// guarded by h.mu
	filter  views.Filter
	derived []backend.Game
	editing *backend.Game
}

// NewGameState creates an empty holder. Nothing is subscribed until Load.
func NewGameState(store backend.GameStore, opts ...Option) *GameState {
	o := buildOptions(opts)
	s := &GameState{
		store:   store,
		filter:  views.Filter{Category: views.AllCategories, Mode: o.mode},
		derived: []backend.Game{},
	}
	s.h = newHolder[backend.Game, GameView](store.SubscribeGames)
	s.h.recompute = func(items []backend.Game) {
		s.derived = views.RecomputeWith(items, s.filter)
	}
	s.h.view = s.viewLocked
	if o.snapshots != nil {
		snapshots := o.snapshots
		s.h.preload = func(owner string) ([]backend.Game, bool) {
			games, savedAt, ok := snapshots.LoadGames(owner)
			if ok {
				utils.Debugf("seeded %d games saved %s", len(games), savedAt.Format(time.RFC3339))
			}
			return games, ok
		}
		s.h.persist = func(owner string, games []backend.Game) {
			if err := snapshots.SaveGames(owner, games); err != nil {
				utils.Warnf("failed to persist game snapshot: %v", err)
			}
		}
	}
	return s
}

func (s *GameState) viewLocked() GameView {
	v := GameView{
		OwnerID:      s.h.ownerID,
		Loading:      s.h.loading,
		Games:        append([]backend.Game(nil), s.derived...),
		Total:        s.h.cache.Len(),
		ErrorMessage: s.h.errMsg,
		Search:       s.filter.Search,
		Category:     s.filter.Category,
	}
	if v.Games == nil {
		v.Games = []backend.Game{}
	}
	if s.editing != nil {
		g := *s.editing
		v.Editing = &g
	}
	return v
}

// Load subscribes to ownerID's collection, releasing any earlier
// subscription first. Loading stays set until the first snapshot arrives.
func (s *GameState) Load(ctx context.Context, ownerID string) {
	s.h.load(ctx, ownerID)
}

// SetSearch changes the search text and recomputes from the cache.
func (s *GameState) SetSearch(text string) {
	s.h.recomputeWith(func() { s.filter.Search = text })
}

// SetCategory changes the category selector and recomputes from the cache.
// An empty category means all categories.
func (s *GameState) SetCategory(category string) {
	if category == "" {
		category = views.AllCategories
	}
	s.h.recomputeWith(func() { s.filter.Category = category })
}

// BeginAdd clears the edit target so the next Save adds a game.
func (s *GameState) BeginAdd() {
	s.h.update(func() bool {
		s.editing = nil
		return true
	})
}

// BeginEdit makes game the edit target for the next Save.
func (s *GameState) BeginEdit(game backend.Game) {
	s.h.update(func() bool {
		g := game
		s.editing = &g
		return true
	})
}

// Save adds game, or replaces the edit target when one is set. The edit
// target's ID wins over the one in game and the loaded owner scopes the
// write, so an edit target of another owner is reported as not found. Failures are put in the
// error message field and returned; nothing is retried. The cache is left
// alone: the change shows up with the next snapshot.
func (s *GameState) Save(ctx context.Context, game backend.Game) (string, error) {
	s.h.mu.Lock()
	owner := s.h.ownerID
	editing := s.editing
	s.h.mu.Unlock()

	if owner == "" {
		err := utils.ErrNotSignedIn()
		s.h.setError(writeMessage("save", err))
		return "", err
	}
	if err := utils.ValidateGame(game); err != nil {
		s.h.setError(writeMessage("save", err))
		return "", err
	}

	var id string
	var err error
	if editing != nil {
		game.ID = editing.ID
		game.OwnerID = owner
		id = game.ID
		err = s.store.UpdateGame(ctx, game)
	} else {
		game.ID = ""
		game.OwnerID = owner
		id, err = s.store.AddGame(ctx, game)
	}
	if err != nil {
		s.h.setError(writeMessage("save", err))
		return "", err
	}

	s.h.update(func() bool {
		s.editing = nil
		s.h.errMsg = ""
		return true
	})
	return id, nil
}

// Delete removes the game with the given ID. Failures are put in the error
// message field and returned.
func (s *GameState) Delete(ctx context.Context, id string) error {
	owner := s.h.owner()
	if owner == "" {
		err := utils.ErrNotSignedIn()
		s.h.setError(writeMessage("delete", err))
		return err
	}
	if err := s.store.DeleteGame(ctx, owner, id); err != nil {
		s.h.setError(writeMessage("delete", err))
		return err
	}
	s.h.update(func() bool {
		if s.editing != nil && s.editing.ID == id {
			s.editing = nil
		}
		s.h.errMsg = ""
		return true
	})
	return nil
}

// Find looks a game up in the cache by ID or title.
func (s *GameState) Find(ref string) (backend.Game, bool) {
	g := backend.FindGame(s.h.cacheItems(), ref)
	if g == nil {
		return backend.Game{}, false
	}
	return *g, true
}

// ClearError resets the error message field.
func (s *GameState) ClearError() {
	s.h.setError("")
}

// OwnerID returns the owner currently loaded.
func (s *GameState) OwnerID() string {
	return s.h.owner()
}

// WaitLoaded blocks until the first live snapshot for the loaded owner has
// been applied, or ctx is done.
func (s *GameState) WaitLoaded(ctx context.Context) error {
	return s.h.wait(ctx)
}

// View returns the current view.
func (s *GameState) View() GameView {
	return s.h.current()
}

// Observe registers fn to receive every new view. Observers run on the
// goroutine that caused the change and must not call back into mutating
// methods. The returned func unregisters fn.
func (s *GameState) Observe(fn func(GameView)) func() {
	return s.h.observe(fn)
}

// Close releases the subscription. Later snapshots and filter edits are
// ignored.
func (s *GameState) Close() {
	s.h.close()
}
