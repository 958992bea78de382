// Package cache implements the content-addressable build cache: build
// outputs are keyed by a digest of the recipe body and its sources, stored
// under the cache directory, and evicted by least-recent-use once the
// configured size limit is exceeded.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/GhostKellz/zmake/internal/log"
	"gopkg.in/yaml.v3"
)

// ErrCorrupted is wrapped into errors raised when the on-disk index cannot
// be parsed, or an entry's recorded directory is missing.
var ErrCorrupted = fmt.Errorf("cache corruption")

// entry is one cache index record, serialized to the index file.
type entry struct {
	Key        string    `yaml:"key"`
	SizeBytes  int64     `yaml:"size_bytes"`
	LastUsed   time.Time `yaml:"last_used"`
}

// index is the full on-disk cache manifest.
type index struct {
	Entries []entry `yaml:"entries"`
}

// Cache is the content-addressable build cache rooted at Dir.
type Cache struct {
	dir         string
	sizeLimit   int64
	evictTarget float64 // fraction of sizeLimit to shrink to once eviction triggers

	mu    sync.Mutex
	idx   index
	fetching map[string]*sync.WaitGroup

	logger log.Logger
}

// Option configures a Cache.
type Option func(*Cache)

func WithSizeLimit(limit int64) Option {
	return func(c *Cache) { c.sizeLimit = limit }
}

func WithEvictionTarget(fraction float64) Option {
	return func(c *Cache) { c.evictTarget = fraction }
}

func WithLogger(logger log.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New opens (or initializes) the cache rooted at dir, loading its index if present.
func New(dir string, opts ...Option) (*Cache, error) {
	c := &Cache{
		dir:         dir,
		sizeLimit:   5 * 1024 * 1024 * 1024,
		evictTarget: 0.80,
		fetching:    make(map[string]*sync.WaitGroup),
		logger:      log.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	if err := c.loadIndex(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) indexPath() string {
	return filepath.Join(c.dir, "index.yaml")
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(c.indexPath())
	if os.IsNotExist(err) {
		c.idx = index{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading index: %v", ErrCorrupted, err)
	}
	if err := yaml.Unmarshal(data, &c.idx); err != nil {
		return fmt.Errorf("%w: parsing index: %v", ErrCorrupted, err)
	}
	return nil
}

// saveIndex writes the index atomically: write-temp-then-rename, so a crash
// mid-write never leaves a half-written index file behind.
func (c *Cache) saveIndex() error {
	data, err := yaml.Marshal(c.idx)
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}

	tmp := c.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return os.Rename(tmp, c.indexPath())
}

// Key derives the cache key for a recipe build: a digest over the recipe's
// raw body bytes plus its sources sorted lexicographically, so that source
// list order does not affect the key.
func Key(recipeBody []byte, sources []string) string {
	sorted := append([]string(nil), sources...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write(recipeBody)
	for _, s := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// entryDir returns the directory a given key's build output lives in.
func (c *Cache) entryDir(key string) string {
	return filepath.Join(c.dir, "objects", key)
}

// Lookup returns the directory of a cached build for key, and whether it exists.
// A hit refreshes the entry's LastUsed timestamp for LRU purposes.
func (c *Cache) Lookup(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range c.idx.Entries {
		if e.Key != key {
			continue
		}
		dir := c.entryDir(key)
		if _, err := os.Stat(dir); err != nil {
			if os.IsNotExist(err) {
				return "", false, fmt.Errorf("%w: indexed entry %s missing on disk", ErrCorrupted, key)
			}
			return "", false, err
		}
		c.idx.Entries[i].LastUsed = time.Now()
		if err := c.saveIndex(); err != nil {
			return "", false, err
		}
		return dir, true, nil
	}
	return "", false, nil
}

// GetOrBuild returns the cached directory for key if present; otherwise it
// calls build to produce one, storing the result under key. Concurrent
// calls for the same key coalesce: only one invokes build, the rest wait
// for it and then share its result, avoiding redundant simultaneous builds
// of the same recipe+sources.
func (c *Cache) GetOrBuild(key string, build func() (string, error)) (string, error) {
	if dir, ok, err := c.Lookup(key); err != nil {
		return "", err
	} else if ok {
		return dir, nil
	}

	c.mu.Lock()
	for _, e := range c.idx.Entries {
		if e.Key == key {
			// Stored by a concurrent caller since the Lookup above.
			c.mu.Unlock()
			return c.GetOrBuild(key, build)
		}
	}
	if wg, building := c.fetching[key]; building {
		c.mu.Unlock()
		wg.Wait()
		dir, ok, err := c.Lookup(key)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("concurrent build for %s did not populate the cache", key)
		}
		return dir, nil
	}

	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.fetching[key] = wg
	c.mu.Unlock()

	defer func() {
		wg.Done()
		c.mu.Lock()
		delete(c.fetching, key)
		c.mu.Unlock()
	}()

	sourceDir, err := build()
	if err != nil {
		return "", err
	}
	return c.Store(key, sourceDir)
}

// Store records a build output directory (already populated by the caller)
// under key, then evicts least-recently-used entries if the cache now
// exceeds its size limit.
func (c *Cache) Store(key, sourceDir string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dest := c.entryDir(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(sourceDir, dest); err != nil {
		return "", fmt.Errorf("storing cache entry %s: %w", key, err)
	}

	size, err := dirSize(dest)
	if err != nil {
		return "", err
	}

	c.idx.Entries = append(c.idx.Entries, entry{Key: key, SizeBytes: size, LastUsed: time.Now()})
	if err := c.saveIndex(); err != nil {
		return "", err
	}

	if err := c.evictIfNeeded(); err != nil {
		return "", err
	}
	return dest, nil
}

// evictIfNeeded removes least-recently-used entries until total cache size
// is at or below evictTarget * sizeLimit, only when the limit is currently
// exceeded. Must be called with mu held.
func (c *Cache) evictIfNeeded() error {
	total := int64(0)
	for _, e := range c.idx.Entries {
		total += e.SizeBytes
	}
	if total <= c.sizeLimit {
		return nil
	}

	target := int64(float64(c.sizeLimit) * c.evictTarget)

	sorted := append([]entry(nil), c.idx.Entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LastUsed.Before(sorted[j].LastUsed) })

	evicted := map[string]bool{}
	for _, e := range sorted {
		if total <= target {
			break
		}
		if err := os.RemoveAll(c.entryDir(e.Key)); err != nil {
			return fmt.Errorf("evicting %s: %w", e.Key, err)
		}
		evicted[e.Key] = true
		total -= e.SizeBytes
		c.logger.Info("evicted cache entry", "key", e.Key, "bytes", e.SizeBytes)
	}

	remaining := c.idx.Entries[:0]
	for _, e := range c.idx.Entries {
		if !evicted[e.Key] {
			remaining = append(remaining, e)
		}
	}
	c.idx.Entries = remaining

	return c.saveIndex()
}

// GC runs a manual eviction pass regardless of whether the size limit is
// currently exceeded, removing only entries whose recorded directory no
// longer exists, then applies the normal LRU eviction.
func (c *Cache) GC() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var live []entry
	for _, e := range c.idx.Entries {
		if _, err := os.Stat(c.entryDir(e.Key)); err == nil {
			live = append(live, e)
		}
	}
	c.idx.Entries = live

	if err := c.evictIfNeeded(); err != nil {
		return err
	}
	return c.saveIndex()
}

// Size returns the number of entries and total bytes currently cached.
func (c *Cache) Size() (count int, totalBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.idx.Entries {
		totalBytes += e.SizeBytes
	}
	return len(c.idx.Entries), totalBytes
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
