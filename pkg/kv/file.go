package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File keeps every key in a single JSON document on disk. Writes go through a
// temp file and rename so a crash never leaves a truncated file.
type File struct {
	path string
	mu   sync.Mutex
}

type fileEntry struct {
	Value   json.RawMessage `json:"value"`
	Version int64           `json:"version"`
}

// NewFile opens a file backend rooted at path. The file is created lazily.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("kv: file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("kv: prepare %s: %w", path, err)
	}
	return &File{path: path}, nil
}

func (f *File) Get(_ context.Context, key string) (Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.load()
	if err != nil {
		return Record{}, false, err
	}
	entry, ok := entries[key]
	if !ok {
		return Record{}, false, nil
	}
	return Record{Value: []byte(entry.Value), Version: entry.Version}, true, nil
}

func (f *File) Put(_ context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	if !json.Valid(value) {
		return 0, fmt.Errorf("kv: value for %s is not JSON", key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.load()
	if err != nil {
		return 0, err
	}
	current, exists := entries[key]
	if err := checkVersion(exists, current.Version, expectedVersion); err != nil {
		return 0, err
	}
	next := fileEntry{Value: append(json.RawMessage(nil), value...), Version: current.Version + 1}
	entries[key] = next
	if err := f.flush(entries); err != nil {
		return 0, err
	}
	return next.Version, nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return f.flush(entries)
}

func (f *File) Close() error { return nil }

func (f *File) load() (map[string]fileEntry, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]fileEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv: read %s: %w", f.path, err)
	}
	entries := map[string]fileEntry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("kv: decode %s: %w", f.path, err)
	}
	return entries, nil
}

func (f *File) flush(entries map[string]fileEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", f.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".kv-*")
	if err != nil {
		return fmt.Errorf("kv: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("kv: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kv: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("kv: replace %s: %w", f.path, err)
	}
	return nil
}
