package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const registryFileMode = 0o644

// FileStore keeps the registry in a single JSON object file keyed by slug.
// Writes are serialized in-process and land with an atomic rename, so
// readers never see a partial file.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on the
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the registry file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Upsert(_ context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return Entry{}, err
	}

	var existing *Entry
	if prev, ok := entries[e.Slug]; ok {
		existing = &prev
	}
	merged := merge(existing, e, s.now())
	entries[e.Slug] = merged

	if writeErr := s.write(entries); writeErr != nil {
		return Entry{}, writeErr
	}
	return merged, nil
}

func (s *FileStore) Get(_ context.Context, slug string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return Entry{}, err
	}
	e, ok := entries[slug]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return e, nil
}

func (s *FileStore) List(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	entries, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	list := make([]Entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	sortNewestFirst(list)
	return list, nil
}

func (s *FileStore) Delete(_ context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := entries[slug]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	delete(entries, slug)
	return s.write(entries)
}

func (s *FileStore) DeleteIfInbox(_ context.Context, slug string, inboxID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	e, ok := entries[slug]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	if e.Chatwoot.InboxID != inboxID {
		return fmt.Errorf("%w: %s now uses inbox %d", ErrInboxChanged, slug, e.Chatwoot.InboxID)
	}
	delete(entries, slug)
	return s.write(entries)
}

// read loads the registry; a missing or empty file is an empty registry.
func (s *FileStore) read() (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	entries := map[string]Entry{}
	if len(data) == 0 {
		return entries, nil
	}
	if jsonErr := json.Unmarshal(data, &entries); jsonErr != nil {
		return nil, fmt.Errorf("parse registry %s: %w", s.path, jsonErr)
	}
	return entries, nil
}

func (s *FileStore) write(entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return fmt.Errorf("create registry dir: %w", mkErr)
	}

	tmp, err := os.CreateTemp(dir, ".demos-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create registry temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write registry: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync registry: %w", err)
	}
	if err = tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close registry: %w", err)
	}
	if err = os.Chmod(tmpName, registryFileMode); err != nil {
		cleanup()
		return fmt.Errorf("chmod registry: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
