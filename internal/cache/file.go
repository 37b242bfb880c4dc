// Package cache holds the result caches placed in front of paid APIs: a
// JSON file cache for search responses and an in-memory cache for generations.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bizplan/internal/logger"

	"github.com/spf13/afero"
)

// DefaultFileTTL is how long persisted search results stay valid.
const DefaultFileTTL = 24 * time.Hour

// FileCache is a key -> [timestamp, value] JSON object on disk. Every Get
// reads the whole file and every Set rewrites it; the cache is expected to
// stay small. Access within a process is serialized; concurrent writers
// from several processes lose updates.
type FileCache struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	ttl  time.Duration
	now  func() time.Time
}

// FileOption configures a FileCache.
type FileOption func(*FileCache)

// WithFs replaces the filesystem (tests use afero.NewMemMapFs).
func WithFs(fs afero.Fs) FileOption {
	return func(c *FileCache) { c.fs = fs }
}

// WithFileTTL overrides DefaultFileTTL.
func WithFileTTL(ttl time.Duration) FileOption {
	return func(c *FileCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFileClock injects the time source.
func WithFileClock(now func() time.Time) FileOption {
	return func(c *FileCache) { c.now = now }
}

// NewFileCache creates a cache persisted at path.
func NewFileCache(path string, opts ...FileOption) *FileCache {
	c := &FileCache{
		fs:   afero.NewOsFs(),
		path: path,
		ttl:  DefaultFileTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the backing file path.
func (c *FileCache) Path() string { return c.path }

// TTL returns the configured time-to-live.
func (c *FileCache) TTL() time.Duration { return c.ttl }

// Get returns the raw JSON value stored under key. A missing or corrupt
// file, a malformed entry and an expired entry are all misses.
func (c *FileCache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	entries := c.load()
	c.mu.Unlock()
	raw, ok := entries[key]
	if !ok {
		return nil, false
	}

	ts, value, err := decodeEntry(raw)
	if err != nil {
		logger.Debug("Ignoring malformed cache entry", "key", key, "error", err.Error())
		return nil, false
	}
	if c.now().Sub(ts) >= c.ttl {
		return nil, false
	}
	return value, true
}

// GetInto decodes the value stored under key into dst.
func (c *FileCache) GetInto(key string, dst any) bool {
	raw, ok := c.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.Debug("Cached value does not match target type", "key", key, "error", err.Error())
		return false
	}
	return true
}

// Set stores value under key with the current timestamp, overwriting any
// previous entry, and rewrites the file.
func (c *FileCache) Set(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	ts := float64(c.now().UnixNano()) / float64(time.Second)
	entry, err := json.Marshal([]any{ts, json.RawMessage(encoded)})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.load()
	entries[key] = entry
	return c.save(entries)
}

// Len returns the number of stored entries, expired ones included.
func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.load())
}

// Clear removes the backing file.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fs.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file %s: %w", c.path, err)
	}
	return nil
}

// Size returns the size in bytes of the backing file, or 0 when absent.
func (c *FileCache) Size() int64 {
	info, err := c.fs.Stat(c.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (c *FileCache) load() map[string]json.RawMessage {
	entries := make(map[string]json.RawMessage)
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		return entries
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("Cache file is corrupt, treating as empty", "path", c.path, "error", err.Error())
		return make(map[string]json.RawMessage)
	}
	return entries
}

func (c *FileCache) save(entries map[string]json.RawMessage) error {
	if dir := filepath.Dir(c.path); dir != "" && dir != "." {
		if err := c.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	if err := afero.WriteFile(c.fs, c.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write cache file %s: %w", c.path, err)
	}
	return nil
}

func decodeEntry(raw json.RawMessage) (time.Time, json.RawMessage, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil {
		return time.Time{}, nil, err
	}
	if len(pair) != 2 {
		return time.Time{}, nil, fmt.Errorf("expected [timestamp, value], got %d elements", len(pair))
	}
	var seconds float64
	if err := json.Unmarshal(pair[0], &seconds); err != nil {
		return time.Time{}, nil, err
	}
	sec := int64(seconds)
	nsec := int64((seconds - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec), pair[1], nil
}
