package merge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
)

// ErrTemplateNotFound is returned when the skeleton file is missing or empty.
var ErrTemplateNotFound = errors.New("skeleton template not found")

// TemplateStore serves the system message skeleton. Without Watch every Load
// reads the file; with Watch the content is cached until the file changes.
type TemplateStore struct {
	path string
	log  infralogger.Logger

	readFile func(string) ([]byte, error)

	mu       sync.RWMutex
	cached   string
	valid    bool
	watching bool
	watcher  *fsnotify.Watcher
	// generation changes on every invalidation; a read only fills the
	// cache when it is unchanged.
	generation uint64
}

// NewTemplateStore creates a store for the skeleton at path.
func NewTemplateStore(path string, log infralogger.Logger) *TemplateStore {
	if log == nil {
		log = infralogger.NewNop()
	}
	return &TemplateStore{path: path, log: log, readFile: os.ReadFile}
}

// Path returns the skeleton location.
func (s *TemplateStore) Path() string {
	return s.path
}

// Load returns the skeleton content.
func (s *TemplateStore) Load() (string, error) {
	s.mu.RLock()
	if s.watching && s.valid {
		content := s.cached
		s.mu.RUnlock()
		return content, nil
	}
	generation := s.generation
	s.mu.RUnlock()

	data, err := s.readFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, s.path)
		}
		return "", fmt.Errorf("read skeleton %s: %w", s.path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrTemplateNotFound, s.path)
	}

	content := string(data)
	s.mu.Lock()
	if s.watching && s.generation == generation {
		s.cached, s.valid = content, true
	}
	s.mu.Unlock()

	return content, nil
}

// Watch invalidates the cache whenever the skeleton changes. The directory
// is watched rather than the file so editors that replace the file by rename
// are picked up. Watching stops when ctx is done or Close is called.
func (s *TemplateStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if addErr := w.Add(filepath.Dir(s.path)); addErr != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), addErr)
	}

	s.mu.Lock()
	s.watcher = w
	s.watching = true
	s.valid = false
	s.generation++
	s.mu.Unlock()

	target := filepath.Clean(s.path)
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = s.Close()
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				s.invalidate()
				s.log.Info("Skeleton template changed",
					infralogger.String("path", s.path),
					infralogger.String("op", event.Op.String()),
				)
			case watchErr, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("Skeleton watcher error", infralogger.Error(watchErr))
			}
		}
	}()

	return nil
}

// Close stops watching. Load keeps working and reads the file every call.
func (s *TemplateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	s.watching = false
	s.valid = false
	s.generation++
	return err
}

func (s *TemplateStore) invalidate() {
	s.mu.Lock()
	s.valid = false
	s.generation++
	s.mu.Unlock()
}
