// Package storage uploads cover images and returns the URL they can be
// retrieved from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gameshelf/internal/config"
	"gameshelf/internal/ratelimit"
	"gameshelf/internal/utils"
)

// KeyPrefix is the folder every uploaded cover image goes into.
const KeyPrefix = "game_images/"

// ErrInvalidKey is returned for object keys that would escape the media dir.
var ErrInvalidKey = errors.New("invalid object key")

// Uploader stores a local file and returns its durable URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// New builds the uploader selected by storage.driver.
func New(cfg *config.Config) (Uploader, error) {
	switch cfg.GetStorageDriver() {
	case "local":
		return NewLocalStore(cfg.GetMediaDir(), cfg.GetMediaBaseURL()), nil
	case "http":
		stats := ratelimit.NewStats()
		client := ratelimit.NewClient(ratelimit.Config{
			RequestsPerSecond: cfg.GetRequestsPerSecond(),
			Timeout:           cfg.GetStorageTimeout(),
			Stats:             stats,
			Service:           "media server",
		})
		utils.Debugf("uploading to %s, at most one request every %s", cfg.Storage.UploadURL, client.Interval())
		store := NewHTTPStore(client, cfg.Storage.UploadURL, cfg.Storage.BaseURL)
		store.maxBytes = cfg.GetMaxUploadBytes()
		store.stats = stats
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.GetStorageDriver())
	}
}

// ObjectKey names the object for localPath uploaded at t.
func ObjectKey(localPath string, t time.Time) string {
	return fmt.Sprintf("%s%d%s", KeyPrefix, t.UnixMilli(), strings.ToLower(filepath.Ext(localPath)))
}

// CleanKey validates a slash separated object key and returns it cleaned.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// UploadOrKeep uploads localPath and returns its URL. When localPath is empty
// previous is returned unchanged. When the upload fails previous is returned
// together with the error so the caller can report it.
func UploadOrKeep(ctx context.Context, up Uploader, localPath, previous string) (string, error) {
	if localPath == "" {
		return previous, nil
	}
	url, err := up.Upload(ctx, localPath)
	if err != nil {
		utils.Debugf("upload of %s failed, keeping %q: %v", localPath, previous, err)
		return previous, utils.ErrUploadFailed(localPath, err.Error())
	}
	return url, nil
}

// openRegular opens path and makes sure it is a regular file.
func openRegular(localPath string) (*os.File, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("not a regular file: %s", localPath)
	}
	return f, info.Size(), nil
}

// copyAtomic writes r to dst through a temp file in the same directory.
func copyAtomic(dst string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("failed to create media directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}
