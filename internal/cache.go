package internal

import (
	"crypto/md5"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	tt "github.com/gnolang/jdowngrader/internal/types"
)

const cacheFileName = "class_cache.gob"

// CacheEntry is a previously rewritten class.
type CacheEntry struct {
	Output       []byte
	Deps         []string
	Result       tt.Result
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Cache maps the content hash of an input class, together with the floor
// and the engine fingerprint, to the rewritten bytes. It is safe for
// concurrent use. Entries are persisted by Flush.
type Cache struct {
	CacheDir string
	entries  map[string]CacheEntry
	mutex    sync.RWMutex
	maxAge   time.Duration
	dirty    bool
}

// NewCache opens, or creates, the cache stored in cacheDir.
func NewCache(cacheDir string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &Cache{
		CacheDir: cacheDir,
		entries:  make(map[string]CacheEntry),
	}
	if err := cache.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	return cache, nil
}

// CacheKey identifies the rewrite of input down to floor under the engine
// with the given fingerprint.
func CacheKey(input []byte, floor cf.Version, fingerprint string) string {
	h := md5.New()
	h.Write(input)
	fmt.Fprintf(h, "\x00%d\x00%s", floor, fingerprint)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (c *Cache) path() string {
	return filepath.Join(c.CacheDir, cacheFileName)
}

func (c *Cache) load() error {
	file, err := os.Open(c.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(&c.entries); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}
	return nil
}

func (c *Cache) save() error {
	file, err := os.Create(c.path())
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(c.entries); err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	return nil
}

// Set records the rewrite result for key.
func (c *Cache) Set(key string, output []byte, deps []string, res tt.Result) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	c.entries[key] = CacheEntry{
		Output:       output,
		Deps:         deps,
		Result:       res,
		CreatedAt:    now,
		LastAccessed: now,
	}
	c.dirty = true
}

// Get returns the entry stored under key, dropping it when it expired.
func (c *Cache) Get(key string) (CacheEntry, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return CacheEntry{}, false
	}
	if c.isEntryInvalid(entry) {
		delete(c.entries, key)
		c.dirty = true
		return CacheEntry{}, false
	}

	entry.LastAccessed = time.Now()
	c.entries[key] = entry
	return entry, true
}

func (c *Cache) isEntryInvalid(entry CacheEntry) bool {
	return c.maxAge > 0 && time.Since(entry.CreatedAt) > c.maxAge
}

// SetMaxAge expires entries older than d. Zero keeps entries forever.
func (c *Cache) SetMaxAge(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxAge = d
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.entries)
}

// Flush writes the cache to disk if it changed since the last flush.
func (c *Cache) Flush() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.dirty {
		return nil
	}
	if err := c.save(); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// InvalidateAll drops every entry, on disk too.
func (c *Cache) InvalidateAll() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]CacheEntry)
	c.dirty = false
	return c.save()
}
