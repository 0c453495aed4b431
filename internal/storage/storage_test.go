package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gameshelf/internal/config"
	"gameshelf/internal/ratelimit"
)

func writeImage(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return p
}

func fixedNow() time.Time {
	return time.UnixMilli(1700000000123)
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("/tmp/Cover.PNG", fixedNow()); got != "game_images/1700000000123.png" {
		t.Errorf("ObjectKey = %q", got)
	}
	if got := ObjectKey("noext", fixedNow()); got != "game_images/1700000000123" {
		t.Errorf("ObjectKey without extension = %q", got)
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"game_images/1.png", "game_images/1.png", true},
		{"game_images//a/../1.png", "game_images/1.png", true},
		{"", "", false},
		{"/etc/passwd", "", false},
		{"../secret", "", false},
		{"a/../../b", "", false},
		{"..", "", false},
		{`game_images\1.png`, "", false},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.key)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("CleanKey(%q) = %q, %v; want %q", tt.key, got, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("CleanKey(%q) error = %v, want ErrInvalidKey", tt.key, err)
		}
	}
}

func TestLocalStoreUpload(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "http://media.local/objects/")
	store.now = fixedNow

	src := writeImage(t, "halo.jpg", "jpeg-bytes")
	url, err := store.Upload(context.Background(), src)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if url != "http://media.local/objects/game_images/1700000000123.jpg" {
		t.Errorf("url = %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "game_images", "1700000000123.jpg"))
	if err != nil || string(data) != "jpeg-bytes" {
		t.Errorf("stored object = %q, %v", data, err)
	}

	f, err := store.Open("game_images/1700000000123.jpg")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = f.Close()
}

func TestLocalStoreRejectsDirectories(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "file:///media")
	if _, err := store.Upload(context.Background(), t.TempDir()); err == nil {
		t.Error("uploading a directory should fail")
	}
	if _, err := store.Upload(context.Background(), "/does/not/exist.png"); err == nil {
		t.Error("uploading a missing file should fail")
	}
	if _, err := store.Put("../escape.png", strings.NewReader("x")); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Put outside the media dir error = %v", err)
	}
}

func TestHTTPStoreUpload(t *testing.T) {
	var gotPath, gotType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(UploadResponse{
			Key: strings.TrimPrefix(r.URL.Path, "/media/"),
			URL: "http://cdn.example" + r.URL.Path,
		})
	}))
	defer server.Close()

	client := ratelimit.NewClient(ratelimit.Config{RequestsPerSecond: 1000})
	store := NewHTTPStore(client, server.URL+"/media/", "")
	store.now = fixedNow

	url, err := store.Upload(context.Background(), writeImage(t, "zelda.png", "png-bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if gotPath != "/media/game_images/1700000000123.png" {
		t.Errorf("path = %q", gotPath)
	}
	if gotType != "image/png" || gotBody != "png-bytes" {
		t.Errorf("type=%q body=%q", gotType, gotBody)
	}
	if url != "http://cdn.example/media/game_images/1700000000123.png" {
		t.Errorf("url = %q", url)
	}

	// a configured base URL wins over the server answer
	store = NewHTTPStore(client, server.URL+"/media", "https://img.example/")
	store.now = fixedNow
	url, err = store.Upload(context.Background(), writeImage(t, "zelda.png", "png-bytes"))
	if err != nil || url != "https://img.example/game_images/1700000000123.png" {
		t.Errorf("url = %q, %v", url, err)
	}
}

func TestHTTPStoreServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
	}))
	defer server.Close()

	store := NewHTTPStore(ratelimit.NewClient(ratelimit.Config{RequestsPerSecond: 1000}), server.URL, "")
	_, err := store.Upload(context.Background(), writeImage(t, "big.png", "x"))
	if err == nil || !strings.Contains(err.Error(), "upload too large") {
		t.Errorf("Upload() error = %v", err)
	}
}

func TestHTTPStoreRejectsLargeFileBeforeSending(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	store := NewHTTPStore(ratelimit.NewClient(ratelimit.Config{RequestsPerSecond: 1000}), server.URL, "https://img.example")
	store.maxBytes = 16
	image := writeImage(t, "huge.png", strings.Repeat("x", 32))

	_, err := store.Upload(context.Background(), image)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Upload() error = %v, want ErrFileTooLarge", err)
	}
	if !strings.Contains(err.Error(), "huge.png is 32 bytes") {
		t.Errorf("error should name the file and size: %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 0 {
		t.Errorf("oversized file reached the server %d time(s)", n)
	}

	got, err := UploadOrKeep(context.Background(), store, image, "https://old.example/a.png")
	if err == nil || got != "https://old.example/a.png" {
		t.Errorf("UploadOrKeep = %q, %v; want the previous URL and an error", got, err)
	}

	store.maxBytes = 32
	if _, err := store.Upload(context.Background(), image); err != nil {
		t.Errorf("file at the limit should upload: %v", err)
	}
}

func TestHTTPStoreRecordsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	stats := ratelimit.NewStats()
	client := ratelimit.NewClient(ratelimit.Config{RequestsPerSecond: 1000, Stats: stats, Service: "media server"})
	store := NewHTTPStore(client, server.URL, "")
	store.stats = stats

	_, err := store.Upload(context.Background(), writeImage(t, "a.png", "x"))
	var rle *ratelimit.RateLimitError
	if !errors.As(err, &rle) || rle.RetryAfter != 3*time.Second {
		t.Fatalf("Upload() error = %v, want a rate limit error", err)
	}
	if stats.RateLimitCount() != 1 || stats.LastRateLimitTime().IsZero() {
		t.Errorf("rate limit not recorded: count=%d last=%v", stats.RateLimitCount(), stats.LastRateLimitTime())
	}
}

type failingUploader struct{ err error }

func (f failingUploader) Upload(context.Context, string) (string, error) {
	return "", f.err
}

type okUploader struct{}

func (okUploader) Upload(_ context.Context, p string) (string, error) {
	return "https://img.example/" + filepath.Base(p), nil
}

func TestUploadOrKeep(t *testing.T) {
	ctx := context.Background()

	got, err := UploadOrKeep(ctx, failingUploader{errors.New("connection refused")}, "/tmp/a.png", "https://old.example/a.png")
	if got != "https://old.example/a.png" {
		t.Errorf("failed upload should keep previous, got %q", got)
	}
	if err == nil || !strings.Contains(err.Error(), "gameshelf serve") {
		t.Errorf("error should carry a suggestion, got %v", err)
	}

	got, err = UploadOrKeep(ctx, okUploader{}, "/tmp/a.png", "old")
	if err != nil || got != "https://img.example/a.png" {
		t.Errorf("UploadOrKeep = %q, %v", got, err)
	}

	got, err = UploadOrKeep(ctx, failingUploader{errors.New("unused")}, "", "typed-url")
	if err != nil || got != "typed-url" {
		t.Errorf("empty path should return previous untouched, got %q, %v", got, err)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.MediaDir = t.TempDir()

	up, err := New(cfg)
	if err != nil {
		t.Fatalf("New(local) error = %v", err)
	}
	if _, ok := up.(*LocalStore); !ok {
		t.Errorf("local driver returned %T", up)
	}

	cfg.Storage.Driver = "http"
	cfg.Storage.UploadURL = "http://127.0.0.1:8090/media"
	up, err = New(cfg)
	if err != nil {
		t.Fatalf("New(http) error = %v", err)
	}
	hs, ok := up.(*HTTPStore)
	if !ok {
		t.Fatalf("http driver returned %T", up)
	}
	if hs.maxBytes != cfg.GetMaxUploadBytes() || hs.stats == nil {
		t.Errorf("http store limits not wired: max=%d stats=%v", hs.maxBytes, hs.stats)
	}

	cfg.Storage.Driver = "s3"
	if _, err := New(cfg); err == nil {
		t.Error("unknown driver should fail")
	}
}
