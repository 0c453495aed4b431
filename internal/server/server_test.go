package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"gameshelf/internal/ratelimit"
	"gameshelf/internal/storage"
)

func newTestServer(t *testing.T, maxBytes int64) (*httptest.Server, *storage.LocalStore) {
	t.Helper()
	store := storage.NewLocalStore(t.TempDir(), "http://media.test/media")
	ts := httptest.NewServer(New(store, Options{MaxUploadBytes: maxBytes}).Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func put(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, 0)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "OK" {
		t.Errorf("health = %d %q", resp.StatusCode, body)
	}
}

func TestPutThenGet(t *testing.T) {
	ts, store := newTestServer(t, 0)

	resp := put(t, ts.URL+"/media/game_images/1700000000000.png", "png-bytes")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	var out storage.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Key != "game_images/1700000000000.png" || out.Size != 9 {
		t.Errorf("response = %+v", out)
	}
	if out.URL != "http://media.test/media/game_images/1700000000000.png" {
		t.Errorf("URL = %q", out.URL)
	}

	data, err := os.ReadFile(filepath.Join(store.Dir(), "game_images", "1700000000000.png"))
	if err != nil || string(data) != "png-bytes" {
		t.Errorf("stored = %q, %v", data, err)
	}

	get, err := http.Get(ts.URL + "/media/game_images/1700000000000.png")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = get.Body.Close() }()
	body, _ := io.ReadAll(get.Body)
	if get.StatusCode != http.StatusOK || string(body) != "png-bytes" {
		t.Errorf("GET = %d %q", get.StatusCode, body)
	}
	if ct := get.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestGetMissing(t *testing.T) {
	ts, _ := newTestServer(t, 0)

	resp, err := http.Get(ts.URL + "/media/game_images/nope.png")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPutTooLarge(t *testing.T) {
	ts, store := newTestServer(t, 4)

	resp := put(t, ts.URL+"/media/game_images/big.png", "0123456789")
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "game_images", "big.png")); !os.IsNotExist(err) {
		t.Errorf("oversized upload should not be stored, stat err = %v", err)
	}
}

func TestPutRejectsEscapingKey(t *testing.T) {
	srv := New(storage.NewLocalStore(t.TempDir(), ""), Options{})

	for _, key := range []string{"../escape.png", "game_images/../../escape.png", "/abs.png"} {
		req := httptest.NewRequest(http.MethodPut, "/media/x", strings.NewReader("x"))
		req = mux.SetURLVars(req, map[string]string{"key": key})
		rec := httptest.NewRecorder()
		srv.handlePut(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("key %q: status = %d, want 400", key, rec.Code)
		}
	}
}

// TestHTTPStoreRoundTrip drives the server with the client-side driver
func TestHTTPStoreRoundTrip(t *testing.T) {
	store := storage.NewLocalStore(t.TempDir(), "")
	ts := httptest.NewServer(New(store, Options{}).Router())
	defer ts.Close()

	src := filepath.Join(t.TempDir(), "cover.JPG")
	if err := os.WriteFile(src, []byte("jpeg"), 0644); err != nil {
		t.Fatal(err)
	}

	client := ratelimit.NewClient(ratelimit.Config{RequestsPerSecond: 100})
	up := storage.NewHTTPStore(client, ts.URL+"/media", ts.URL+"/media")
	url, err := up.Upload(context.Background(), src)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !strings.HasPrefix(url, ts.URL+"/media/game_images/") || !strings.HasSuffix(url, ".jpg") {
		t.Errorf("url = %q", url)
	}

	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "jpeg" {
		t.Errorf("served %q", body)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := New(storage.NewLocalStore(t.TempDir(), ""), Options{})
	ctx, cancel := context.WithCancel(context.Background())

	addrCh := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, "127.0.0.1:0", func(a net.Addr) { addrCh <- a })
	}()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		t.Fatalf("Run() error = %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr.String() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
