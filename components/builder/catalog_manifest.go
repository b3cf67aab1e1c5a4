package builder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ettle/strcase"
	"gopkg.in/yaml.v3"
)

const (
	manifestVersionV1 = "1"
	// ManifestVersion exposes the current catalog manifest format version for tooling.
	ManifestVersion = manifestVersionV1
)

// CatalogManifest models a YAML/JSON document describing catalog entries.
type CatalogManifest struct {
	Version string          `json:"version" yaml:"version"`
	Name    string          `json:"name,omitempty" yaml:"name,omitempty"`
	KPI     []ManifestKPI   `json:"kpi" yaml:"kpi"`
	Charts  []ManifestChart `json:"charts" yaml:"charts"`
	Source  string          `json:"-" yaml:"-"`
}

// ManifestKPI is a KPI template entry.
type ManifestKPI struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Title     string `json:"title" yaml:"title"`
	KPIConfig `yaml:",inline"`
}

// ManifestChart is a chart template entry.
type ManifestChart struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string `json:"title" yaml:"title"`
	ChartConfig `yaml:",inline"`
}

// ReadManifest loads a catalog manifest from disk.
func ReadManifest(path string) (*CatalogManifest, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("builder: open manifest %s: %w", path, err)
	}
	defer f.Close()
	doc, err := DecodeManifest(f)
	if err != nil {
		return nil, fmt.Errorf("builder: decode manifest %s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// DecodeManifest reads a manifest from any reader.
func DecodeManifest(r io.Reader) (*CatalogManifest, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var doc CatalogManifest
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("builder: manifest is empty")
		}
		return nil, fmt.Errorf("builder: parse manifest: %w", err)
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (doc *CatalogManifest) applyDefaults() {
	if doc.Version == "" {
		doc.Version = manifestVersionV1
	}
	for i := range doc.KPI {
		if doc.KPI[i].ID == "" {
			doc.KPI[i].ID = deriveEntryID(doc.KPI[i].Title)
		}
	}
	for i := range doc.Charts {
		if doc.Charts[i].ID == "" {
			doc.Charts[i].ID = deriveEntryID(doc.Charts[i].Title)
		}
	}
}

// Validate ensures the manifest satisfies required fields.
func (doc *CatalogManifest) Validate() error {
	if doc.Version != manifestVersionV1 {
		return fmt.Errorf("builder: unsupported manifest version %q", doc.Version)
	}
	seen := map[string]struct{}{}
	check := func(kind, id, title string, idx int) error {
		if id == "" {
			return fmt.Errorf("builder: manifest %s entry at index %d is missing id and title", kind, idx)
		}
		if title == "" {
			return fmt.Errorf("builder: manifest %s entry %s missing title", kind, id)
		}
		key := kind + ":" + id
		if _, exists := seen[key]; exists {
			return fmt.Errorf("builder: manifest duplicates %s entry %s", kind, id)
		}
		seen[key] = struct{}{}
		return nil
	}
	for idx, entry := range doc.KPI {
		if err := check("kpi", entry.ID, entry.Title, idx); err != nil {
			return err
		}
	}
	for idx, entry := range doc.Charts {
		if err := check("chart", entry.ID, entry.Title, idx); err != nil {
			return err
		}
		if !entry.Type.Valid() {
			return fmt.Errorf("builder: manifest chart %s has unknown chart type %q", entry.ID, entry.Type)
		}
	}
	return nil
}

// Listing converts the manifest into a catalog listing.
func (doc *CatalogManifest) Listing() CatalogListing {
	listing := CatalogListing{
		KPI:    make([]CatalogEntry, 0, len(doc.KPI)),
		Charts: make([]CatalogEntry, 0, len(doc.Charts)),
	}
	for _, entry := range doc.KPI {
		listing.KPI = append(listing.KPI, CatalogEntry{
			ID:      entry.ID,
			Title:   entry.Title,
			Content: entry.KPIConfig.cloneContent(),
		})
	}
	for _, entry := range doc.Charts {
		listing.Charts = append(listing.Charts, CatalogEntry{
			ID:      entry.ID,
			Title:   entry.Title,
			Content: entry.ChartConfig.cloneContent(),
		})
	}
	return listing
}

// MarshalJSON flattens the preview fields next to id and title.
func (e CatalogEntry) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if e.Content != nil {
		raw, err := json.Marshal(e.Content)
		if err != nil {
			return nil, fmt.Errorf("builder: encode catalog entry %s: %w", e.ID, err)
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("builder: flatten catalog entry %s: %w", e.ID, err)
		}
	}
	out["id"] = e.ID
	out["title"] = e.Title
	return json.Marshal(out)
}

func deriveEntryID(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	return strcase.ToCamel(title)
}
