package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateStore_ChangeDuringReadIsNotCached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "skeleton.md")
	require.NoError(t, os.WriteFile(path, []byte("# v1\n"), 0o600))

	s := NewTemplateStore(path, nil)
	require.NoError(t, s.Watch(ctx))
	defer func() { _ = s.Close() }()

	// The file changes after the read returned v1 but before Load stores it.
	s.readFile = func(name string) ([]byte, error) {
		data, err := os.ReadFile(name)
		if writeErr := os.WriteFile(name, []byte("# v2\n"), 0o600); writeErr != nil {
			return nil, writeErr
		}
		s.invalidate()
		return data, err
	}

	first, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "# v1\n", first)

	s.readFile = os.ReadFile
	second, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "# v2\n", second)
}
