package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-dashboard-builder/pkg/kv"
)

// DefaultStoreKey is the well-known key holding the dashboard collection.
const DefaultStoreKey = "customDashboards"

const maxSaveAttempts = 3

// StoreOptions configures DocumentStore.
type StoreOptions struct {
	Backend kv.Backend
	Key     string
	Logger  *zap.Logger
	Clock   func() time.Time
	// Versioned turns on optimistic concurrency: saves carrying a stale
	// Version fail with ErrConflict.
	Versioned bool
	Validator *JSONSchemaValidator
	// Seed builds the documents written when the key has never been stored.
	Seed func(now time.Time) []DashboardDocument
}

// DocumentStore persists the dashboard collection as one JSON array in a
// kv.Backend. Persistence failures are logged and the store keeps serving
// its last known collection.
type DocumentStore struct {
	backend   kv.Backend
	key       string
	logger    *zap.Logger
	clock     func() time.Time
	versioned bool
	validator *JSONSchemaValidator
	seed      func(time.Time) []DashboardDocument

	mu       sync.Mutex
	cache    []DashboardDocument
	degraded bool
	// pending marks a cache the backend has not accepted yet. It is served
	// ahead of the backend and flushed on the next access.
	pending bool
}

var _ Store = (*DocumentStore)(nil)

// NewDocumentStore builds a store with safe defaults. A nil backend keeps
// everything in memory.
func NewDocumentStore(opts StoreOptions) *DocumentStore {
	if opts.Backend == nil {
		opts.Backend = kv.NewMemory()
	}
	if opts.Key == "" {
		opts.Key = DefaultStoreKey
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Validator == nil {
		opts.Validator = NewJSONSchemaValidator()
	}
	if opts.Seed == nil {
		opts.Seed = func(now time.Time) []DashboardDocument {
			return []DashboardDocument{StarterDashboard(now)}
		}
	}
	return &DocumentStore{
		backend:   opts.Backend,
		key:       opts.Key,
		logger:    opts.Logger.Named("store"),
		clock:     opts.Clock,
		versioned: opts.Versioned,
		validator: opts.Validator,
		seed:      opts.Seed,
	}
}

// Degraded reports whether the last storage interaction failed and the store
// is serving in-memory data.
func (s *DocumentStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// ListAll returns every document. A corrupt payload yields an empty list.
func (s *DocumentStore) ListAll(ctx context.Context) []DashboardDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, _ := s.loadLocked(ctx)
	return cloneDocuments(docs)
}

// Get returns the document or nil when absent.
func (s *DocumentStore) Get(ctx context.Context, id string) *DashboardDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, _ := s.loadLocked(ctx)
	for _, doc := range docs {
		if doc.ID == id {
			out := doc.Clone()
			return &out
		}
	}
	return nil
}

// Save upserts the document by id and stamps LastModified. The returned copy
// is the one persisted. Only ErrConflict and ErrInvalidArgument are returned;
// storage failures degrade the store instead.
func (s *DocumentStore) Save(ctx context.Context, doc DashboardDocument) (DashboardDocument, error) {
	if doc.ID == "" {
		return doc, fmt.Errorf("builder: save dashboard without id: %w", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		docs, version := s.loadLocked(ctx)
		next := cloneDocuments(docs)
		saved := doc.Clone()
		saved.LastModified = s.clock().UTC()

		idx := indexOf(next, doc.ID)
		if s.versioned {
			var stored int64
			if idx >= 0 {
				stored = next[idx].Version
			}
			if doc.Version != stored {
				return doc, fmt.Errorf("builder: dashboard %s at version %d, stored %d: %w", doc.ID, doc.Version, stored, ErrConflict)
			}
			saved.Version = stored + 1
		}
		if idx >= 0 {
			next[idx] = saved
		} else {
			next = append(next, saved)
		}

		err := s.writeLocked(ctx, next, version)
		if errors.Is(err, kv.ErrVersionMismatch) && attempt < maxSaveAttempts {
			s.logger.Debug("collection changed during save, retrying",
				zap.String("key", s.key), zap.String("dashboard", doc.ID), zap.Int("attempt", attempt))
			continue
		}
		if errors.Is(err, kv.ErrVersionMismatch) {
			if s.versioned {
				return doc, fmt.Errorf("builder: dashboard %s: %w", doc.ID, ErrConflict)
			}
			s.degrade("write dashboards", err)
			s.cache = next
			s.pending = true
		}
		return saved.Clone(), nil
	}
}

// Delete removes the document. Missing ids are a no-op.
func (s *DocumentStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		docs, version := s.loadLocked(ctx)
		idx := indexOf(docs, id)
		if idx < 0 {
			return
		}
		next := make([]DashboardDocument, 0, len(docs)-1)
		next = append(next, docs[:idx]...)
		next = append(next, docs[idx+1:]...)
		err := s.writeLocked(ctx, next, version)
		if errors.Is(err, kv.ErrVersionMismatch) && attempt < maxSaveAttempts {
			continue
		}
		if errors.Is(err, kv.ErrVersionMismatch) {
			s.degrade("delete dashboard", err)
			s.cache = next
			s.pending = true
		}
		return
	}
}

// loadLocked reads the collection and its backend version. Failures fall
// back to the cached collection, or to the seed when nothing was ever read.
// A pending cache wins over the backend record until it is flushed.
func (s *DocumentStore) loadLocked(ctx context.Context) ([]DashboardDocument, int64) {
	rec, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		s.degrade("read dashboards", err)
		if s.cache == nil {
			s.cache = s.seed(s.clock().UTC())
		}
		return s.cache, 0
	}
	if s.pending {
		return s.flushLocked(ctx, rec.Version)
	}
	if !ok {
		return s.seedLocked(ctx)
	}
	docs, err := s.decode(rec.Value)
	if err != nil {
		s.degrade("decode dashboards", err)
		s.cache = []DashboardDocument{}
		return s.cache, rec.Version
	}
	s.degraded = false
	s.cache = docs
	return docs, rec.Version
}

func (s *DocumentStore) seedLocked(ctx context.Context) ([]DashboardDocument, int64) {
	docs := s.seed(s.clock().UTC())
	if docs == nil {
		docs = []DashboardDocument{}
	}
	s.logger.Info("seeding dashboards", zap.String("key", s.key), zap.Int("count", len(docs)))
	s.cache = docs
	data, err := json.Marshal(docs)
	if err != nil {
		s.degrade("encode seed", err)
		return docs, 0
	}
	version, err := s.backend.Put(ctx, s.key, data, 0)
	if err != nil {
		s.degrade("write seed", err)
		s.pending = true
		return docs, 0
	}
	s.degraded = false
	return docs, version
}

// flushLocked retries writing the pending cache over the record at version.
func (s *DocumentStore) flushLocked(ctx context.Context, version int64) ([]DashboardDocument, int64) {
	data, err := json.Marshal(s.cache)
	if err != nil {
		s.degrade("encode dashboards", err)
		return s.cache, version
	}
	next, err := s.backend.Put(ctx, s.key, data, version)
	if err != nil {
		s.degrade("flush dashboards", err)
		return s.cache, version
	}
	s.logger.Info("flushed pending dashboards", zap.String("key", s.key), zap.Int("count", len(s.cache)))
	s.pending = false
	s.degraded = false
	return s.cache, next
}

func (s *DocumentStore) writeLocked(ctx context.Context, docs []DashboardDocument, version int64) error {
	data, err := json.Marshal(docs)
	if err != nil {
		s.degrade("encode dashboards", err)
		s.cache = docs
		s.pending = true
		return err
	}
	if _, err := s.backend.Put(ctx, s.key, data, version); err != nil {
		if errors.Is(err, kv.ErrVersionMismatch) {
			return err
		}
		s.degrade("write dashboards", err)
		s.cache = docs
		s.pending = true
		return err
	}
	s.degraded = false
	s.pending = false
	s.cache = docs
	return nil
}

func (s *DocumentStore) decode(data []byte) ([]DashboardDocument, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	docs := make([]DashboardDocument, 0, len(raws))
	for i, raw := range raws {
		if err := s.validator.ValidateDocument(raw); err != nil {
			return nil, fmt.Errorf("%w: document %d: %w", ErrPersistence, i, err)
		}
		var doc DashboardDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: document %d: %w", ErrPersistence, i, err)
		}
		docs = append(docs, doc.Clone())
	}
	return docs, nil
}

func (s *DocumentStore) degrade(op string, err error) {
	s.degraded = true
	s.logger.Warn("dashboard persistence degraded",
		zap.String("op", op),
		zap.String("key", s.key),
		zap.Error(err),
	)
}

func indexOf(docs []DashboardDocument, id string) int {
	for i, doc := range docs {
		if doc.ID == id {
			return i
		}
	}
	return -1
}

func cloneDocuments(docs []DashboardDocument) []DashboardDocument {
	out := make([]DashboardDocument, len(docs))
	for i, doc := range docs {
		out[i] = doc.Clone()
	}
	return out
}
