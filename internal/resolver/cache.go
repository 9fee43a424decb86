package resolver

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/zeebo/blake3"

	"montage/internal/fileutil"
	"montage/internal/logging"
)

// fingerprintBytes bounds how much of a file is hashed.
const fingerprintBytes = 1 << 20

// Entry records where a logical source was found under one search scope.
type Entry struct {
	Scope       string    `json:"scope"`
	Source      string    `json:"source"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	Fingerprint string    `json:"fingerprint"`
	CachedAt    time.Time `json:"cached_at"`
}

// Cache is the persistent source→path cache shared between processes.
type Cache struct {
	path    string
	logger  *slog.Logger
	lock    *flock.Flock
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache opens the cache at path. An empty path yields a cache whose
// operations are no-ops.
func NewCache(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "resolver_cache")

	c := &Cache{
		path:    strings.TrimSpace(path),
		logger:  logger,
		entries: make(map[string]Entry),
	}
	if c.path == "" {
		return c
	}
	c.lock = flock.New(c.path + ".lock")

	if err := c.reload(); err != nil {
		logging.WarnWithContext(logger, "failed to load resolver cache", "resolver_cache_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the cache file if it is corrupt"),
			logging.String(logging.FieldImpact, "sources will be located from scratch"))
	}
	return c
}

// Scope identifies an ordered list of media directories. Entries stored
// under one scope are never served to a resolver searching another, so a
// changed root list re-runs the search.
func Scope(roots []string) string {
	h := blake3.New()
	for _, root := range roots {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		fmt.Fprintf(h, "%s\n", filepath.Clean(root))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func entryKey(scope, source string) string {
	return scope + "\x00" + source
}

// Lookup returns the entry for source within scope if the cached file is
// unchanged.
func (c *Cache) Lookup(scope, source string) (Entry, bool) {
	source = strings.TrimSpace(source)
	if source == "" || c.path == "" {
		return Entry{}, false
	}

	c.mu.RLock()
	entry, ok := c.entries[entryKey(scope, source)]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}

	info, err := os.Stat(entry.Path)
	if err != nil || info.IsDir() {
		return Entry{}, false
	}
	if info.Size() == entry.Size && info.ModTime().Equal(entry.ModTime) {
		return entry, true
	}
	sum, err := Fingerprint(entry.Path)
	if err != nil || sum != entry.Fingerprint {
		return Entry{}, false
	}
	return entry, true
}

// Store records path as the location of source within scope and persists
// the cache.
func (c *Cache) Store(scope, source, path string) (Entry, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Entry{}, errors.New("source cannot be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("stat %s: %w", path, err)
	}
	sum, err := Fingerprint(path)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		Scope:       scope,
		Source:      source,
		Path:        path,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Fingerprint: sum,
		CachedAt:    time.Now().UTC(),
	}
	if c.path == "" {
		return entry, nil
	}

	if err := c.lock.Lock(); err != nil {
		return Entry{}, fmt.Errorf("lock resolver cache: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Merge what other workers wrote since the last load.
	if err := c.loadLocked(); err != nil {
		c.logger.Debug("discarding unreadable resolver cache", logging.Error(err))
		c.entries = make(map[string]Entry)
	}
	c.entries[entryKey(scope, source)] = entry
	if err := c.saveLocked(); err != nil {
		return Entry{}, fmt.Errorf("persist resolver cache: %w", err)
	}
	c.logger.Debug("cached source location",
		logging.String("source", source),
		logging.String("path", path))
	return entry, nil
}

// Count returns the number of cached entries.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) reload() error {
	if err := c.lock.RLock(); err != nil {
		return fmt.Errorf("lock resolver cache: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *Cache) loadLocked() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}
	c.entries = make(map[string]Entry, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Source) != "" {
			c.entries[entryKey(entry.Scope, entry.Source)] = entry
		}
	}
	return nil
}

func (c *Cache) saveLocked() error {
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Scope != entries[j].Scope {
			return entries[i].Scope < entries[j].Scope
		}
		return entries[i].Source < entries[j].Source
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	return fileutil.WriteFileAtomic(c.path, data, 0o644)
}

// Fingerprint hashes the size and leading bytes of the file at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	h := blake3.New()
	fmt.Fprintf(h, "%d:", info.Size())
	if _, err := io.Copy(h, io.LimitReader(f, fingerprintBytes)); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
