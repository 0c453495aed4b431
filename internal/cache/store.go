package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"gameshelf/backend"
)

// Bucket names
var (
	bucketGames      = []byte("games")
	bucketTodos      = []byte("todos")
	bucketCategories = []byte("categories")
)

// FileName is the bbolt file created inside the cache directory.
const FileName = "snapshots.db"

// entry is what gets stored per owner and collection
type entry[T any] struct {
	SavedAt time.Time `json:"saved_at"`
	Items   []T       `json:"items"`
}

// Store persists the last snapshot of each collection per owner.
// With an empty directory it keeps everything in memory only.
type Store struct {
	db *bolt.DB
	mu sync.RWMutex

	// mem mirrors recent reads and writes, keyed by "bucket:owner"
	mem map[string][]byte
}

// Open opens (or creates) the snapshot store inside dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return &Store{mem: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(dir, FileName), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketGames, bucketTodos, bucketCategories} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, mem: make(map[string][]byte)}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveGames stores the game snapshot for owner.
func (s *Store) SaveGames(owner string, games []backend.Game) error {
	return save(s, bucketGames, owner, games)
}

// LoadGames returns the last stored game snapshot for owner.
func (s *Store) LoadGames(owner string) ([]backend.Game, time.Time, bool) {
	return load[backend.Game](s, bucketGames, owner)
}

// SaveTodos stores the todo snapshot for owner.
func (s *Store) SaveTodos(owner string, todos []backend.Todo) error {
	return save(s, bucketTodos, owner, todos)
}

// LoadTodos returns the last stored todo snapshot for owner.
func (s *Store) LoadTodos(owner string) ([]backend.Todo, time.Time, bool) {
	return load[backend.Todo](s, bucketTodos, owner)
}

// SaveCategories stores the category snapshot for owner.
func (s *Store) SaveCategories(owner string, categories []backend.Category) error {
	return save(s, bucketCategories, owner, categories)
}

// LoadCategories returns the last stored category snapshot for owner.
func (s *Store) LoadCategories(owner string) ([]backend.Category, time.Time, bool) {
	return load[backend.Category](s, bucketCategories, owner)
}

// Forget removes every snapshot stored for owner.
func (s *Store) Forget(owner string) error {
	s.mu.Lock()
	for _, bucket := range [][]byte{bucketGames, bucketTodos, bucketCategories} {
		delete(s.mem, string(bucket)+":"+owner)
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketGames, bucketTodos, bucketCategories} {
			if b := tx.Bucket(bucket); b != nil {
				if err := b.Delete([]byte(owner)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func save[T any](s *Store, bucket []byte, owner string, items []T) error {
	data, err := json.Marshal(entry[T]{SavedAt: time.Now().UTC(), Items: items})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.mem[string(bucket)+":"+owner] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(owner), data)
	})
}

func load[T any](s *Store, bucket []byte, owner string) ([]T, time.Time, bool) {
	key := string(bucket) + ":" + owner

	s.mu.RLock()
	data, ok := s.mem[key]
	s.mu.RUnlock()

	if !ok && s.db != nil {
		_ = s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucket)
			if b == nil {
				return nil
			}
			if v := b.Get([]byte(owner)); v != nil {
				data = make([]byte, len(v))
				copy(data, v)
			}
			return nil
		})
		if data != nil {
			s.mu.Lock()
			s.mem[key] = data
			s.mu.Unlock()
		}
	}

	if data == nil {
		return nil, time.Time{}, false
	}

	var e entry[T]
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, time.Time{}, false
	}
	if e.Items == nil {
		e.Items = []T{}
	}
	return e.Items, e.SavedAt, true
}
