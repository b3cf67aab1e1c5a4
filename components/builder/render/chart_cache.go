package render

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/goliatone/go-dashboard-builder/components/builder"
)

const defaultMaxCharts = 256

// ChartKey identifies one rendering of a chart widget. A widget whose title or
// chart config changes gets a new Fingerprint.
type ChartKey struct {
	WidgetID    string
	Fingerprint string
}

// KeyFor builds the cache key of a chart widget.
func KeyFor(widgetID, title string, cfg builder.ChartConfig) ChartKey {
	return ChartKey{WidgetID: widgetID, Fingerprint: fingerprint(title, cfg)}
}

// Cache memoizes rendered chart HTML.
type Cache interface {
	GetOrRender(key ChartKey, render func() (string, error)) (string, error)
}

// ChartCache keeps rendered charts for a TTL. Each widget holds at most one
// rendering, expired entries are swept on write, and the oldest entry is
// evicted once MaxEntries is reached.
type ChartCache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	mu         sync.Mutex
	entries    map[string]cachedChart
}

type cachedChart struct {
	fingerprint string
	html        string
	expires     time.Time
}

// NewChartCache builds a cache with the provided TTL. A non-positive TTL
// disables caching.
func NewChartCache(ttl time.Duration) *ChartCache {
	return &ChartCache{
		ttl:        ttl,
		maxEntries: defaultMaxCharts,
		now:        time.Now,
		entries:    make(map[string]cachedChart),
	}
}

// GetOrRender returns the cached rendering for key or renders and stores it.
func (c *ChartCache) GetOrRender(key ChartKey, render func() (string, error)) (string, error) {
	if html, ok := c.get(key); ok {
		return html, nil
	}
	html, err := render()
	if err != nil {
		return "", err
	}
	c.set(key, html)
	return html, nil
}

// Forget drops the rendering of a widget, typically after it was removed.
func (c *ChartCache) Forget(widgetID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, widgetID)
	c.mu.Unlock()
}

// Purge drops every cached entry.
func (c *ChartCache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]cachedChart)
	c.mu.Unlock()
}

// Len reports the number of cached renderings.
func (c *ChartCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ChartCache) get(key ChartKey) (string, bool) {
	if c == nil || c.ttl <= 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key.WidgetID]
	if !ok || entry.fingerprint != key.Fingerprint {
		return "", false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key.WidgetID)
		return "", false
	}
	return entry.html, true
}

func (c *ChartCache) set(key ChartKey, html string) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, id)
		}
	}
	if _, ok := c.entries[key.WidgetID]; !ok && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key.WidgetID] = cachedChart{
		fingerprint: key.Fingerprint,
		html:        html,
		expires:     now.Add(c.ttl),
	}
}

func (c *ChartCache) evictOldestLocked() {
	var (
		oldest string
		at     time.Time
	)
	for id, entry := range c.entries {
		if oldest == "" || entry.expires.Before(at) {
			oldest, at = id, entry.expires
		}
	}
	delete(c.entries, oldest)
}

// fingerprint hashes what the rendered HTML depends on. Chart records are
// maps, which encoding/json writes with sorted keys.
func fingerprint(title string, cfg builder.ChartConfig) string {
	h := sha1.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(cfg.Type))
	h.Write([]byte{0})
	for _, color := range cfg.Colors {
		h.Write([]byte(color))
		h.Write([]byte{0})
	}
	for _, rec := range cfg.Data {
		b, err := json.Marshal(rec)
		if err != nil {
			return ""
		}
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}
