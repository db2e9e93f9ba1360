// ABOUTME: Tests for memory and file token stores
// ABOUTME: Covers slot semantics, persistence across instances, and clearing

package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	_, ok := s.Get(AccessToken)
	assert.False(t, ok)

	require.NoError(t, s.Set(AccessToken, "a1"))
	require.NoError(t, s.Set(RefreshToken, "r1"))

	v, ok := s.Get(AccessToken)
	assert.True(t, ok)
	assert.Equal(t, "a1", v)

	require.NoError(t, s.Clear())
	_, ok = s.Get(AccessToken)
	assert.False(t, ok)
	_, ok = s.Get(RefreshToken)
	assert.False(t, ok)
}

func TestMemoryStore_EmptyValueIsUnset(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set(AccessToken, ""))
	_, ok := s.Get(AccessToken)
	assert.False(t, ok)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")

	s := NewFileStore(path)
	require.NoError(t, s.Set(AccessToken, "a1"))
	require.NoError(t, s.Set(RefreshToken, "r1"))

	// A new store against the same path sees the persisted values.
	s2 := NewFileStore(path)
	v, ok := s2.Get(AccessToken)
	assert.True(t, ok)
	assert.Equal(t, "a1", v)
	v, ok = s2.Get(RefreshToken)
	assert.True(t, ok)
	assert.Equal(t, "r1", v)
}

func TestFileStore_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")

	s := NewFileStore(path)
	require.NoError(t, s.Set(AccessToken, "a1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")

	s := NewFileStore(path)
	require.NoError(t, s.Set(AccessToken, "a1"))
	require.NoError(t, s.Clear())

	_, ok := s.Get(AccessToken)
	assert.False(t, ok)

	s2 := NewFileStore(path)
	_, ok = s2.Get(AccessToken)
	assert.False(t, ok, "cleared tokens must not survive a reload")
}

func TestFileStore_ClearWithoutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-written.json")
	s := NewFileStore(path)
	require.NoError(t, s.Clear())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "clear must not create the file")
}

func TestFileStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	s := NewFileStore(path)
	_, ok := s.Get(AccessToken)
	assert.False(t, ok)
}

func TestDefaultTokenPath_EnvOverride(t *testing.T) {
	t.Setenv("TOOLBENCH_TOKEN_FILE", "/tmp/custom-tokens.json")
	path, err := DefaultTokenPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-tokens.json", path)
}

func TestDefaultTokenPath_XDG(t *testing.T) {
	t.Setenv("TOOLBENCH_TOKEN_FILE", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	path, err := DefaultTokenPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "toolbench", "tokens.json"), path)
}
