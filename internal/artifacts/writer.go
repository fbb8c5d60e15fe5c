// Package artifacts writes the generated system message and demo page to
// their public roots.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fusionaimcp4/localboxs/internal/slug"
)

const (
	dirMode  = 0o755
	fileMode = 0o644

	systemMessagePrefix = "n8n_System_Message_"
	demoPageName        = "index.html"
)

// ErrInvalidName is returned when a business name or slug has no usable
// file name characters.
var ErrInvalidName = errors.New("invalid artifact name")

// UndoFunc reverts one write: it restores the previous file content, or
// removes the file when it did not exist before.
type UndoFunc func() error

// Writer owns the system message and demo roots.
type Writer struct {
	systemMessagesRoot string
	demoRoot           string
}

// NewWriter creates a Writer. Directories are created on first write.
func NewWriter(systemMessagesRoot, demoRoot string) *Writer {
	return &Writer{systemMessagesRoot: systemMessagesRoot, demoRoot: demoRoot}
}

// SystemMessagePath is where the system message for business is stored.
// The file is keyed by business name, so two slugs sharing a display name
// share the file.
func (w *Writer) SystemMessagePath(business string) (string, error) {
	name := slug.FileSafeName(business)
	if name == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, business)
	}
	return filepath.Join(w.systemMessagesRoot, systemMessagePrefix+name+".md"), nil
}

// DemoPagePath is the demo index.html for slugValue.
func (w *Writer) DemoPagePath(slugValue string) (string, error) {
	if slugValue == "" || slugValue != filepath.Base(slugValue) || slugValue == "." || slugValue == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, slugValue)
	}
	return filepath.Join(w.demoRoot, slugValue, demoPageName), nil
}

// WriteSystemMessage writes content for business.
func (w *Writer) WriteSystemMessage(business, content string) (string, UndoFunc, error) {
	path, err := w.SystemMessagePath(business)
	if err != nil {
		return "", nil, err
	}
	undo, err := writeFile(path, []byte(content))
	if err != nil {
		return "", nil, fmt.Errorf("write system message: %w", err)
	}
	return path, undo, nil
}

// WriteDemoPage writes the rendered page for slugValue.
func (w *Writer) WriteDemoPage(slugValue, html string) (string, UndoFunc, error) {
	path, err := w.DemoPagePath(slugValue)
	if err != nil {
		return "", nil, err
	}
	undo, err := writeFile(path, []byte(html))
	if err != nil {
		return "", nil, fmt.Errorf("write demo page: %w", err)
	}
	return path, undo, nil
}

// ReadSystemMessage returns the stored system message at path. Only files
// under the system messages root are served.
func (w *Writer) ReadSystemMessage(path string) (string, error) {
	root, err := filepath.Abs(w.systemMessagesRoot)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the system messages root", fs.ErrPermission, path)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsPermission reports whether err came from a denied filesystem call.
func IsPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}

// writeFile replaces path via a temp file and rename, returning an undo
// that puts back what was there before.
func writeFile(path string, data []byte) (UndoFunc, error) {
	dir := filepath.Dir(path)
	createdDir := false
	if _, statErr := os.Stat(dir); errors.Is(statErr, fs.ErrNotExist) {
		createdDir = true
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, err
	}

	previous, readErr := os.ReadFile(path)
	existed := readErr == nil
	if readErr != nil && !errors.Is(readErr, fs.ErrNotExist) {
		return nil, readErr
	}

	if err := replace(path, data); err != nil {
		return nil, err
	}

	undo := func() error {
		if existed {
			return replace(path, previous)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if createdDir {
			// Only succeeds when the directory is empty again.
			_ = os.Remove(dir)
		}
		return nil
	}
	return undo, nil
}

func replace(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err = os.Chmod(tmpName, fileMode); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
