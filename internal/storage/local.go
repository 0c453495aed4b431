package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps objects under a directory on disk. The media server uses
// it too, so both drivers end up with the same layout.
type LocalStore struct {
	dir     string
	baseURL string
	now     func() time.Time
}

// NewLocalStore creates a store rooted at dir whose objects are served under
// baseURL.
func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Upload copies localPath into the store under a fresh key.
func (s *LocalStore) Upload(ctx context.Context, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, _, err := openRegular(localPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	key := ObjectKey(localPath, s.now())
	if _, err := s.Put(key, src); err != nil {
		return "", err
	}
	return s.URL(key), nil
}

// Put stores r under key, replacing any existing object.
func (s *LocalStore) Put(key string, r io.Reader) (int64, error) {
	dst, err := s.Path(key)
	if err != nil {
		return 0, err
	}
	return copyAtomic(dst, r)
}

// Open returns the object stored under key.
func (s *LocalStore) Open(key string) (*os.File, error) {
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Path maps key onto the file it is stored in.
func (s *LocalStore) Path(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filepath.FromSlash(cleaned)), nil
}

// URL returns the retrieval URL of key.
func (s *LocalStore) URL(key string) string {
	return s.baseURL + "/" + key
}
