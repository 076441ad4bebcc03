// Package source loads raw extraction payloads from disk or over HTTP.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "syllabuscal/internal/log"
	"syllabuscal/internal/model"
)

// maxBodyBytes caps a single payload read from the network.
const maxBodyBytes = 16 << 20

var (
	ErrNoLocation  = errors.New("source: neither path nor url set")
	errNoCacheBody = errors.New("received 304 Not Modified but no cached body available")
)

// Source is one raw extraction payload.
type Source struct {
	ID string
	// Name is stamped on the resulting events as their source file.
	Name string
	URL  string
	Path string
}

// Payload is the outcome of fetching one source.
type Payload struct {
	Source    Source
	Body      []byte
	FromCache bool // true if the body came from the disk cache
}

// Decode parses the payload body into raw records.
func (p Payload) Decode() ([]model.RawEvent, error) {
	raws, err := model.DecodeRawEvents(p.Body)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", p.Source.ID, err)
	}
	return raws, nil
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher reads sources, honoring ETag / Last-Modified for URLs and keeping
// a disk-backed copy of the last good body.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir. A nil client uses a
// 15s-timeout default.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/source-cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// FetchAll fetches every source in order. Failed sources are logged, left
// out of the results and returned in the error slice.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]Payload, []error) {
	results := make([]Payload, 0, len(sources))
	var errs []error

	for _, src := range sources {
		res, err := f.Fetch(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", src.ID, err))
			appLog.Error("source fetch failed", err, "id", src.ID, "url", redactURL(src.URL), "path", src.Path)
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// Fetch reads a single source. Path wins over URL when both are set.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (Payload, error) {
	switch {
	case src.Path != "":
		body, err := os.ReadFile(src.Path)
		if err != nil {
			return Payload{}, err
		}
		appLog.Debug("source read", "id", src.ID, "path", src.Path, "bytes", len(body))
		return Payload{Source: src, Body: body}, nil
	case src.URL != "":
		return f.fetchURL(ctx, src)
	default:
		return Payload{}, ErrNoLocation
	}
}

func (f *Fetcher) fetchURL(ctx context.Context, src Source) (Payload, error) {
	cachePath := f.cachePathForURL(src.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return Payload{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)
	cached := Payload{Source: src, Body: cachedBody, FromCache: true}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Payload{}, err
	}
	req.Header.Set("Accept", "application/json")
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("source fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("source fetch network error, using cached body", err, "id", src.ID, "url", redactURL(src.URL))
			return cached, nil
		}
		return Payload{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return Payload{}, readErr
		}

		newMeta := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("source cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
		}

		appLog.Info("source fetch success", "id", src.ID, "url", redactURL(src.URL), "status", resp.StatusCode, "from_cache", false)
		return Payload{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Payload{}, errNoCacheBody
		}
		appLog.Info("source not modified; using cache", "id", src.ID, "url", redactURL(src.URL))
		return cached, nil

	default:
		statusErr := fmt.Errorf("unexpected status %s", resp.Status)
		if len(cachedBody) > 0 {
			appLog.Error("source fetch non-OK, using cached body", statusErr, "id", src.ID, "url", redactURL(src.URL), "status", resp.StatusCode)
			return cached, nil
		}
		return Payload{}, statusErr
	}
}

// cachePathForURL keys the cache directory on the first 8 bytes of the
// URL's SHA-256.
func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.json"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host so tokens in paths or queries never
// reach the logs.
func redactURL(u string) string {
	if u == "" {
		return ""
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
