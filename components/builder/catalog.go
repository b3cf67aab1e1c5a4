package builder

import (
	"fmt"
	"sort"
	"sync"
)

// CatalogEntry is a template for instantiating a widget. Content carries the
// preview fields (value/trend/description or type/data/colors).
type CatalogEntry struct {
	ID      string
	Title   string
	Content WidgetContent
}

// Type returns the widget type the entry instantiates.
func (e CatalogEntry) Type() WidgetType {
	if e.Content == nil {
		return ""
	}
	return e.Content.WidgetType()
}

// CatalogListing groups entries by widget type.
type CatalogListing struct {
	KPI    []CatalogEntry `json:"kpi"`
	Charts []CatalogEntry `json:"charts"`
}

// Find looks up an entry of the given type.
func (l CatalogListing) Find(t WidgetType, id string) (CatalogEntry, bool) {
	var list []CatalogEntry
	switch t {
	case WidgetKPI:
		list = l.KPI
	case WidgetChart:
		list = l.Charts
	default:
		return CatalogEntry{}, false
	}
	for _, entry := range list {
		if entry.ID == id {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

// CatalogHook lets packages register catalog entries during init().
type CatalogHook func(cat *StaticCatalog) error

var (
	globalHookMu sync.Mutex
	globalHooks  []CatalogHook
)

// RegisterCatalogHook registers a hook executed against new default catalogs.
func RegisterCatalogHook(h CatalogHook) {
	globalHookMu.Lock()
	defer globalHookMu.Unlock()
	globalHooks = append(globalHooks, h)
}

// StaticCatalog is an in-process Catalog. It is safe for concurrent use.
type StaticCatalog struct {
	mu      sync.RWMutex
	entries map[WidgetType]map[string]CatalogEntry
	order   map[WidgetType][]string
}

// NewStaticCatalog builds a catalog from the listing.
func NewStaticCatalog(listing CatalogListing) (*StaticCatalog, error) {
	cat := &StaticCatalog{
		entries: map[WidgetType]map[string]CatalogEntry{},
		order:   map[WidgetType][]string{},
	}
	for _, entry := range append(append([]CatalogEntry(nil), listing.KPI...), listing.Charts...) {
		if err := cat.Register(entry); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// NewDefaultCatalog builds the engins catalog and applies registered hooks.
func NewDefaultCatalog() (*StaticCatalog, error) {
	cat, err := NewStaticCatalog(DefaultCatalogListing())
	if err != nil {
		return nil, err
	}
	if err := cat.ApplyHooks(); err != nil {
		return nil, err
	}
	return cat, nil
}

// ApplyHooks executes registered catalog hooks.
func (c *StaticCatalog) ApplyHooks() error {
	globalHookMu.Lock()
	defer globalHookMu.Unlock()
	for _, hook := range globalHooks {
		if err := hook(c); err != nil {
			return err
		}
	}
	return nil
}

// Register adds or replaces an entry.
func (c *StaticCatalog) Register(entry CatalogEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("builder: catalog entry id is required: %w", ErrInvalidArgument)
	}
	t := entry.Type()
	if !t.Valid() {
		return fmt.Errorf("builder: catalog entry %s has no supported content: %w", entry.ID, ErrUnsupportedWidget)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[t] == nil {
		c.entries[t] = map[string]CatalogEntry{}
	}
	if _, exists := c.entries[t][entry.ID]; !exists {
		c.order[t] = append(c.order[t], entry.ID)
	}
	entry.Content = CloneContent(entry.Content)
	c.entries[t][entry.ID] = entry
	return nil
}

// ListAvailable implements Catalog. Entries keep registration order.
func (c *StaticCatalog) ListAvailable() (CatalogListing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CatalogListing{
		KPI:    c.listLocked(WidgetKPI),
		Charts: c.listLocked(WidgetChart),
	}, nil
}

func (c *StaticCatalog) listLocked(t WidgetType) []CatalogEntry {
	ids := c.order[t]
	out := make([]CatalogEntry, 0, len(ids))
	for _, id := range ids {
		entry := c.entries[t][id]
		entry.Content = CloneContent(entry.Content)
		out = append(out, entry)
	}
	return out
}

// IDs returns the sorted entry ids for a widget type.
func (c *StaticCatalog) IDs(t WidgetType) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := append([]string(nil), c.order[t]...)
	sort.Strings(ids)
	return ids
}
