package sitemap

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brightvale/platform/pkg/telemetry"
)

// DefaultTTL is how long a generated sitemap stays valid.
const DefaultTTL = 15 * time.Minute

// cacheKey identifies one sitemap variant. A tenant reachable at several
// hostnames or base paths has one entry per variant.
type cacheKey struct {
	siteID  string
	baseURL string
}

// cacheEntry is an immutable generated sitemap. Entries are replaced whole,
// never patched.
type cacheEntry struct {
	xml         []byte
	generatedAt time.Time
}

// Cache is the process-wide sitemap cache. Regeneration races are benign:
// generation is idempotent within a TTL window, so last-writer-wins.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

// NewCache creates a sitemap cache. A zero ttl means DefaultTTL; a nil clock
// means time.Now; logger and metrics may be nil.
func NewCache(ttl time.Duration, now func() time.Time, logger *slog.Logger, metrics *telemetry.Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		logger:  logger,
		metrics: metrics,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// Get returns the cached sitemap for (siteID, baseURL), regenerating through
// the lister on a miss or TTL expiry.
func (c *Cache) Get(ctx context.Context, siteID, baseURL string, lister ContentLister) ([]byte, error) {
	key := cacheKey{siteID: siteID, baseURL: baseURL}
	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if ok && now.Sub(entry.generatedAt) < c.ttl {
		c.record("hit")
		return entry.xml, nil
	}

	xml, err := generate(ctx, siteID, baseURL, lister, now)
	if err != nil {
		c.record("error")
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{xml: xml, generatedAt: now}
	c.mu.Unlock()

	c.record("miss")
	c.logger.Debug("Sitemap regenerated", "site_id", siteID, "base_url", baseURL, "bytes", len(xml))
	return xml, nil
}

// Invalidate removes every cached variant of a site, regardless of base URL.
// Content changes invalidate every domain the tenant is reachable under.
func (c *Cache) Invalidate(siteID string) {
	c.mu.Lock()
	dropped := 0
	for key := range c.entries {
		if key.siteID == siteID {
			delete(c.entries, key)
			dropped++
		}
	}
	c.mu.Unlock()

	if dropped > 0 {
		if c.metrics != nil {
			c.metrics.RecordSitemapEviction(dropped)
		}
		c.logger.Debug("Sitemap cache invalidated", "site_id", siteID, "entries", dropped)
	}
}

// Cleanup removes expired entries.
func (c *Cache) Cleanup() {
	now := c.now()

	c.mu.Lock()
	dropped := 0
	for key, entry := range c.entries {
		if now.Sub(entry.generatedAt) >= c.ttl {
			delete(c.entries, key)
			dropped++
		}
	}
	c.mu.Unlock()

	if dropped > 0 && c.metrics != nil {
		c.metrics.RecordSitemapEviction(dropped)
	}
}

// StartCleanupRoutine starts a background goroutine that periodically evicts
// expired entries.
func (c *Cache) StartCleanupRoutine(interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-stopCh:
				return
			}
		}
	}()
}

func (c *Cache) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordSitemapLookup(result)
	}
}
