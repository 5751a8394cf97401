package schema

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"sync"

	"github.com/hexleaf/prodex/internal/logger"
)

// Cache keeps generated schemas keyed by source domain and content hash,
// so repeat extractions from the same page layout skip regeneration.
// Entries are re-validated and re-corrected on read, so a cached schema
// is always as good as a fresh one.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]Schema
	validator *Validator
}

// NewCache creates an empty schema cache.
func NewCache() *Cache {
	return &Cache{
		entries:   make(map[string]Schema),
		validator: NewValidator(),
	}
}

// Key derives the cache key for a page: the URL's host plus the first ten
// hex characters of the content hash.
func Key(sourceURL, htmlContent string) string {
	domain := ""
	if u, err := url.Parse(sourceURL); err == nil {
		domain = u.Host
	}
	sum := sha1.Sum([]byte(htmlContent))
	return domain + ":" + hex.EncodeToString(sum[:])[:10]
}

// Get returns the cached schema for a page, corrected on the way out.
func (c *Cache) Get(sourceURL, htmlContent string) (Schema, bool) {
	key := Key(sourceURL, htmlContent)

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Schema{}, false
	}

	corrected, corrections := c.validator.Correct(cached)
	if len(corrections) > 0 {
		logger.Debug("cached schema re-corrected",
			"key", key,
			"corrections", len(corrections))
		c.mu.Lock()
		c.entries[key] = corrected
		c.mu.Unlock()
	}
	return corrected, true
}

// Put stores a schema for a page.
func (c *Cache) Put(sourceURL, htmlContent string, s Schema) {
	key := Key(sourceURL, htmlContent)
	c.mu.Lock()
	c.entries[key] = s
	c.mu.Unlock()
}

// Len reports the number of cached schemas.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
