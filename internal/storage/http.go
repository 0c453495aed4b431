package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"gameshelf/internal/ratelimit"
	"gameshelf/internal/utils"
)

// ErrFileTooLarge is returned before any request is made for files the media
// server would refuse.
var ErrFileTooLarge = errors.New("file too large")

// UploadResponse is what the media server answers to a PUT.
type UploadResponse struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// HTTPStore uploads objects to a media server with PUT requests.
type HTTPStore struct {
	client    *ratelimit.Client
	uploadURL string
	baseURL   string
	now       func() time.Time

	// maxBytes is the largest file sent; zero sends anything
	maxBytes int64
	// stats is shared with client and only read for logging
	stats *ratelimit.Stats
}

// NewHTTPStore creates a store that PUTs to uploadURL/<key>. When baseURL is
// empty the URL returned by the server is used.
func NewHTTPStore(client *ratelimit.Client, uploadURL, baseURL string) *HTTPStore {
	return &HTTPStore{
		client:    client,
		uploadURL: strings.TrimRight(uploadURL, "/"),
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       time.Now,
	}
}

// Upload sends localPath to the media server.
func (s *HTTPStore) Upload(ctx context.Context, localPath string) (string, error) {
	src, size, err := openRegular(localPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()
	if s.maxBytes > 0 && size > s.maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes, the media server accepts up to %d",
			ErrFileTooLarge, filepath.Base(localPath), size, s.maxBytes)
	}

	key := ObjectKey(localPath, s.now())
	header := http.Header{}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		header.Set("Content-Type", ct)
	} else {
		header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := s.client.Do(ctx, http.MethodPut, s.uploadURL+"/"+key, src, header)
	if err != nil {
		var rle *ratelimit.RateLimitError
		if s.stats != nil && errors.As(err, &rle) {
			utils.Debugf("media server rate limited %d upload(s), last at %s",
				s.stats.RateLimitCount(), s.stats.LastRateLimitTime().Format(time.RFC3339))
		}
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("media server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if s.baseURL != "" {
		return s.baseURL + "/" + key, nil
	}
	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode media server response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("media server response has no url")
	}
	return out.URL, nil
}
