package merge_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Fusionaimcp4/localboxs/internal/merge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateStore_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "skeleton.md")
	require.NoError(t, os.WriteFile(path, []byte("# Skeleton\n"), 0o600))

	store := merge.NewTemplateStore(path, nil)
	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "# Skeleton\n", got)
}

func TestTemplateStore_Missing(t *testing.T) {
	t.Parallel()

	store := merge.NewTemplateStore(filepath.Join(t.TempDir(), "missing.md"), nil)
	_, err := store.Load()
	require.ErrorIs(t, err, merge.ErrTemplateNotFound)
}

func TestTemplateStore_Empty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.md")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	_, err := merge.NewTemplateStore(path, nil).Load()
	require.ErrorIs(t, err, merge.ErrTemplateNotFound)
}

func TestTemplateStore_WatchReloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "skeleton.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := merge.NewTemplateStore(path, nil)
	require.NoError(t, store.Watch(ctx))
	defer store.Close()

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))

	assert.Eventually(t, func() bool {
		content, loadErr := store.Load()
		return loadErr == nil && content == "v2"
	}, 2*time.Second, 20*time.Millisecond)
}
