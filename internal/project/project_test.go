package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormPath(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty-is-local-dir", "", "."},
		{"unix-relative", "./path/to/test/path", "path/to/test/path"},
		{"unix-absolute", "/var/lib/check/path", "var/lib/check/path"},
		{"windows-relative", "\\project\\src\\main.rs", "project/src/main.rs"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, NormPath(c.input))
		})
	}
}

func TestProjectSetup_CreatesLayout(t *testing.T) {
	root := t.TempDir()

	p, err := New(root)
	require.NoError(t, err)

	require.NoError(t, p.Setup())

	assert.DirExists(t, p.MetadataDir)
	assert.DirExists(t, p.LogsDir)
	assert.Equal(t, filepath.Join(root, ".pushbox"), p.MetadataDir)
	assert.Equal(t, filepath.Join(root, ".pushignore"), p.IgnorePath)
}

func TestProjectLocking_SingleInstance(t *testing.T) {
	root := t.TempDir()

	p1, err := New(root)
	require.NoError(t, err)
	p2, err := New(root)
	require.NoError(t, err)

	require.NoError(t, p1.Lock())

	err = p2.Lock()
	require.ErrorIs(t, err, ErrProjectLocked)

	lockPath := filepath.Join(root, ".pushbox", "push.lock")
	assert.FileExists(t, lockPath)

	require.NoError(t, p1.Unlock())
	_, statErr := os.Stat(lockPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)

	require.NoError(t, p2.Lock())
	t.Cleanup(func() { _ = p2.Unlock() })
}

func TestProjectRelPath(t *testing.T) {
	root := t.TempDir()

	p, err := New(root)
	require.NoError(t, err)

	rel, err := p.RelPath(filepath.Join(root, "src", "lib.rs"))
	require.NoError(t, err)
	assert.Equal(t, "src/lib.rs", rel)
}
