// Package server is the media server behind the "http" storage driver. It
// accepts cover images with PUT and serves them back with GET.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/gorilla/mux"

	"gameshelf/internal/storage"
	"gameshelf/internal/utils"
)

// DefaultMaxUploadBytes caps request bodies when Options leaves it unset.
const DefaultMaxUploadBytes = 10 << 20

// Options configures a Server.
type Options struct {
	MaxUploadBytes int64
	Log            *utils.BackgroundLogger
}

// Server serves a LocalStore over HTTP.
type Server struct {
	store    *storage.LocalStore
	maxBytes int64
	log      *utils.BackgroundLogger
}

// New creates a server for store.
func New(store *storage.LocalStore, opts Options) *Server {
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	log := opts.Log
	if log == nil {
		log, _ = utils.NewBackgroundLogger("serve", false)
	}
	return &Server{store: store, maxBytes: maxBytes, log: log}
}

// Router returns the request router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	r.HandleFunc("/media/{key:.+}", s.handlePut).Methods(http.MethodPut)
	r.HandleFunc("/media/{key:.+}", s.handleGet).Methods(http.MethodGet, http.MethodHead)
	r.Use(s.logRequests)
	return r
}

// Run listens on addr until ctx is cancelled, then drains open requests.
// ready, if not nil, receives the bound address once the listener is open.
func (s *Server) Run(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if ready != nil {
		ready(ln.Addr())
	}
	s.log.Printf("media server listening on %s, serving %s", ln.Addr(), s.store.Dir())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("media server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Printf("media server stopped")
	return nil
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if _, err := storage.CleanKey(key); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxBytes)
	size, err := s.store.Put(key, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
		case errors.Is(err, storage.ErrInvalidKey):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			s.log.Printf("store %s: %v", key, err)
			http.Error(w, "failed to store object", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(storage.UploadResponse{
		Key:  key,
		URL:  s.store.URL(key),
		Size: size,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	f, err := s.store.Open(key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidKey):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, fs.ErrNotExist):
			http.NotFound(w, r)
		default:
			http.Error(w, "failed to open object", http.StatusInternalServerError)
		}
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, path.Base(key), info.ModTime(), f)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
