package artifacts_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fusionaimcp4/localboxs/internal/artifacts"
)

func newWriter(t *testing.T) (*artifacts.Writer, string, string) {
	t.Helper()
	root := t.TempDir()
	msgRoot := filepath.Join(root, "system_messages")
	demoRoot := filepath.Join(root, "demos")
	return artifacts.NewWriter(msgRoot, demoRoot), msgRoot, demoRoot
}

func TestWriter_WriteSystemMessage(t *testing.T) {
	w, msgRoot, _ := newWriter(t)

	path, undo, err := w.WriteSystemMessage("Acme Co", "# Acme\n")
	require.NoError(t, err)
	require.NotNil(t, undo)
	assert.Equal(t, filepath.Join(msgRoot, "n8n_System_Message_Acme Co.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Acme\n", string(data))

	got, err := w.ReadSystemMessage(path)
	require.NoError(t, err)
	assert.Equal(t, "# Acme\n", got)
}

func TestWriter_SystemMessagePathIsFileSafe(t *testing.T) {
	w, msgRoot, _ := newWriter(t)

	path, err := w.SystemMessagePath("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, msgRoot, filepath.Dir(path))

	_, err = w.SystemMessagePath(" .. ")
	require.ErrorIs(t, err, artifacts.ErrInvalidName)
}

func TestWriter_UndoRestoresPreviousContent(t *testing.T) {
	w, _, _ := newWriter(t)

	path, _, err := w.WriteSystemMessage("Acme", "first")
	require.NoError(t, err)

	_, undo, err := w.WriteSystemMessage("Acme", "second")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	require.NoError(t, undo())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestWriter_UndoRemovesNewDemoPage(t *testing.T) {
	w, _, demoRoot := newWriter(t)

	path, undo, err := w.WriteDemoPage("acme", "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(demoRoot, "acme", "index.html"), path)
	assert.FileExists(t, path)

	require.NoError(t, undo())
	assert.NoFileExists(t, path)
	assert.NoDirExists(t, filepath.Join(demoRoot, "acme"))
}

func TestWriter_DemoPageRejectsPathSlugs(t *testing.T) {
	w, _, _ := newWriter(t)

	for _, bad := range []string{"", ".", "..", "a/b", "../x"} {
		_, _, err := w.WriteDemoPage(bad, "x")
		require.ErrorIs(t, err, artifacts.ErrInvalidName, bad)
	}
}

func TestWriter_ReadSystemMessageOutsideRoot(t *testing.T) {
	w, _, _ := newWriter(t)

	outside := filepath.Join(t.TempDir(), "secret.md")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	_, err := w.ReadSystemMessage(outside)
	require.Error(t, err)
	assert.True(t, artifacts.IsPermission(err))
}

func TestWriter_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}

	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0o500))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	w := artifacts.NewWriter(locked, locked)
	_, _, err := w.WriteDemoPage("acme", "<html></html>")
	require.Error(t, err)
	assert.True(t, artifacts.IsPermission(err))
}
