package analysiscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"lexcase/internal/config"
	"lexcase/internal/logging"
)

const (
	// DefaultTTL is how long an analysis stays valid.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxEntries bounds the cache size.
	DefaultMaxEntries = 1000
	// DefaultJanitorInterval is how often Janitor sweeps expired entries.
	DefaultJanitorInterval = 5 * time.Minute

	keyTextRunes = 100
)

// Entry is one cached analysis.
type Entry struct {
	Key        string    `json:"key"`
	TextPrefix string    `json:"text_prefix"`
	StageIndex int       `json:"stage_index"`
	Model      string    `json:"model"`
	Analysis   string    `json:"analysis"`
	CachedAt   time.Time `json:"cached_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Cache provides thread-safe access to cached analyses.
type Cache struct {
	path       string
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *slog.Logger
	mu         sync.RWMutex
	entries    map[string]Entry
}

// Option customises a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxEntries overrides DefaultMaxEntries.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache. With an empty path the cache is memory-only; otherwise
// an existing file is loaded and the file is created lazily on first Store.
func New(path string, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Cache{
		path:       strings.TrimSpace(path),
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		logger:     logging.NewComponentLogger(logger, "analysiscache"),
		entries:    make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.path == "" {
		return c
	}
	if err := c.load(); err != nil {
		c.logger.Warn("failed to load analysis cache",
			logging.String(logging.FieldEventType, "analysiscache_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "cache will start empty"),
			logging.String(logging.FieldImpact, "previously cached analyses will call Gemini again"))
	}
	return c
}

// NewFromConfig creates the cache described by the [server] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Cache {
	if cfg == nil {
		return New("", logger)
	}
	return New(cfg.AnalysisCachePath(), logger,
		WithTTL(time.Duration(cfg.Server.CacheTTLHours)*time.Hour),
		WithMaxEntries(cfg.Server.CacheMaxEntries),
	)
}

// Key builds the cache key for text, stage and model.
func Key(text string, stageIndex int, model string) string {
	return keyPrefix(text) + "_" + strconv.Itoa(stageIndex) + "_" + model
}

func keyPrefix(text string) string {
	r := []rune(text)
	if len(r) > keyTextRunes {
		r = r[:keyTextRunes]
	}
	return strings.Join(strings.Fields(string(r)), "")
}

// Lookup returns the cached analysis for the request if present and fresh.
// Expired entries are removed on access. A miss re-reads the file so entries
// stored by another process are found.
func (c *Cache) Lookup(text string, stageIndex int, model string) (Entry, bool) {
	key := Key(text, stageIndex, model)
	c.mu.RLock()
	entry, found := c.entries[key]
	c.mu.RUnlock()
	if !found && c.path != "" {
		if err := c.refresh(); err != nil {
			c.logger.Warn("failed to reload analysis cache", logging.Error(err))
		}
		c.mu.RLock()
		entry, found = c.entries[key]
		c.mu.RUnlock()
	}
	if !found {
		return Entry{}, false
	}
	if c.now().After(entry.ExpiresAt) {
		err := c.update(func(entries map[string]Entry) bool {
			delete(entries, key)
			return true
		})
		if err != nil {
			c.logger.Warn("failed to persist analysis cache", logging.Error(err))
		}
		return Entry{}, false
	}
	return entry, true
}

// Store caches analysis for the request and persists the cache.
func (c *Cache) Store(text string, stageIndex int, model, analysis string) error {
	if strings.TrimSpace(analysis) == "" {
		return errors.New("analysis cannot be empty")
	}
	now := c.now()
	r := []rune(text)
	if len(r) > keyTextRunes {
		r = r[:keyTextRunes]
	}
	entry := Entry{
		Key:        Key(text, stageIndex, model),
		TextPrefix: string(r),
		StageIndex: stageIndex,
		Model:      model,
		Analysis:   analysis,
		CachedAt:   now,
		ExpiresAt:  now.Add(c.ttl),
	}

	count := 0
	err := c.update(func(entries map[string]Entry) bool {
		entries[entry.Key] = entry
		for len(entries) > c.maxEntries {
			evictOldest(entries)
		}
		count = len(entries)
		return true
	})
	if err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	c.logger.Debug("cached stage analysis",
		logging.Int("stage_index", stageIndex),
		logging.String("model", model),
		logging.Int("entry_count", count))
	return nil
}

func evictOldest(entries map[string]Entry) {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range entries {
		if oldestKey == "" || entry.CachedAt.Before(oldest) {
			oldestKey, oldest = key, entry.CachedAt
		}
	}
	delete(entries, oldestKey)
}

// Invalidate removes every entry for model, or all entries when model is
// empty, and returns how many were removed.
func (c *Cache) Invalidate(model string) (int, error) {
	model = strings.TrimSpace(model)
	removed, err := c.removeWhere(func(entry Entry) bool {
		return model == "" || entry.Model == model
	})
	if err != nil {
		return removed, fmt.Errorf("persist cache: %w", err)
	}
	if removed > 0 {
		c.logger.Debug("invalidated analysis cache", logging.String("model", model), logging.Int("removed", removed))
	}
	return removed, nil
}

// Cleanup drops expired entries and returns how many were removed.
func (c *Cache) Cleanup() (int, error) {
	now := c.now()
	removed, err := c.removeWhere(func(entry Entry) bool {
		return now.After(entry.ExpiresAt)
	})
	if err != nil {
		return removed, fmt.Errorf("persist cache: %w", err)
	}
	return removed, nil
}

func (c *Cache) removeWhere(match func(Entry) bool) (int, error) {
	removed := 0
	err := c.update(func(entries map[string]Entry) bool {
		for key, entry := range entries {
			if match(entry) {
				delete(entries, key)
				removed++
			}
		}
		return removed > 0
	})
	return removed, err
}

// Janitor runs Cleanup every interval until ctx is cancelled.
func (c *Cache) Janitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := c.Cleanup()
			if err != nil {
				c.logger.Warn("analysis cache cleanup failed",
					logging.String(logging.FieldEventType, "analysiscache_cleanup_failed"),
					logging.Error(err))
				continue
			}
			if removed > 0 {
				c.logger.Debug("expired analyses removed", logging.Int("removed", removed))
			}
		}
	}
}

// List returns all entries sorted by CachedAt descending (newest first).
func (c *Cache) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})
	return entries
}

// Clear removes all entries and persists the empty cache.
func (c *Cache) Clear() error {
	err := c.update(func(entries map[string]Entry) bool {
		clear(entries)
		return true
	})
	if err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	c.logger.Debug("cleared analysis cache")
	return nil
}

// Count returns the number of entries in the cache.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// update applies fn to the entries and persists them when fn reports a
// change. With a backing file the daemon and CLI share, the file is locked
// and re-read first so neither process drops the other's writes.
func (c *Cache) update(fn func(map[string]Entry) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" {
		fn(c.entries)
		return nil
	}

	lock := flock.New(c.path + ".lock")
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock cache file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	entries, err := c.readFile(false)
	if err != nil {
		c.logger.Warn("discarding unreadable analysis cache",
			logging.String(logging.FieldEventType, "analysiscache_load_failed"),
			logging.Error(err))
		entries = make(map[string]Entry)
	}
	c.entries = entries
	if !fn(c.entries) {
		return nil
	}
	return c.writeFile()
}

// refresh replaces the in-memory entries with the file contents.
func (c *Cache) refresh() error {
	entries, err := c.readFile(true)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// load reads the cache from disk into memory.
func (c *Cache) load() error {
	entries, err := c.readFile(true)
	if err != nil {
		return err
	}
	c.entries = entries
	c.logger.Debug("loaded analysis cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))
	return nil
}

// readFile returns the entries stored at path, skipping expired ones when
// dropExpired is set. A missing or empty file yields an empty map.
func (c *Cache) readFile(dropExpired bool) (map[string]Entry, error) {
	entries := make(map[string]Entry)
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}

	var stored []Entry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}
	now := c.now()
	for _, entry := range stored {
		if strings.TrimSpace(entry.Key) == "" || (dropExpired && now.After(entry.ExpiresAt)) {
			continue
		}
		entries[entry.Key] = entry
	}
	return entries, nil
}

// writeFile writes the entries to disk atomically. Callers hold mu and the
// file lock.
func (c *Cache) writeFile() error {
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
