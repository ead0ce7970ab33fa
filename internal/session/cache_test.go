package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/luxmed-sniper/internal/luxmed"
)

var (
	hashKey  = []byte("0123456789abcdef0123456789abcdef")
	blockKey = []byte("fedcba9876543210fedcba9876543210")
)

func testSession() luxmed.Session {
	return luxmed.Session{
		AccessToken:  "abc123",
		RefreshToken: "def456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session")
	c := NewCache(path, hashKey, blockKey)

	want := testSession()
	require.NoError(t, c.Save(want))

	got, ok := c.Load()
	require.True(t, ok)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.Equal(t, want.TokenType, got.TokenType)
	assert.True(t, want.Expiry.Equal(got.Expiry))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCacheLoadMissingFile(t *testing.T) {
	c := NewCache(filepath.Join(t.TempDir(), "nope"), hashKey, blockKey)
	_, ok := c.Load()
	assert.False(t, ok)
}

func TestCacheLoadTamperedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	c := NewCache(path, hashKey, blockKey)
	require.NoError(t, c.Save(testSession()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[len(b)/2] ^= 0xff
	require.NoError(t, os.WriteFile(path, b, 0o600))

	_, ok := c.Load()
	assert.False(t, ok)
}

func TestCacheLoadWithWrongKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	require.NoError(t, NewCache(path, hashKey, blockKey).Save(testSession()))

	other := NewCache(path, []byte("xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"), blockKey)
	_, ok := other.Load()
	assert.False(t, ok)
}

func TestCacheSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	c := NewCache(path, hashKey, blockKey)

	first := testSession()
	require.NoError(t, c.Save(first))
	second := first
	second.AccessToken = "rotated"
	require.NoError(t, c.Save(second))

	got, ok := c.Load()
	require.True(t, ok)
	assert.Equal(t, "rotated", got.AccessToken)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCacheClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	c := NewCache(path, hashKey, blockKey)
	require.NoError(t, c.Save(testSession()))

	c.Clear()
	_, ok := c.Load()
	assert.False(t, ok)
}
