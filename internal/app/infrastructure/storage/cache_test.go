package storage

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
)

type turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func TestCache_SetGetDelete(t *testing.T) {
	c, err := NewCache[[]turn](Options{Capacity: 16})
	require.NoError(t, err)

	_, ok := c.Get("irc:#wopr")
	assert.False(t, ok)

	c.Set("irc:#wopr", []turn{{Role: "user", Content: "hello"}})
	got, ok := c.Get("irc:#wopr")
	require.True(t, ok)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, 1, c.Len())

	c.Delete("irc:#wopr")
	_, ok = c.Get("irc:#wopr")
	assert.False(t, ok)

	c.Set("a", nil)
	c.Set("b", nil)
	c.Clear()
	assert.Zero(t, c.Len())
}

func TestCache_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessions.json")

	c, err := NewCache[[]turn](Options{Capacity: 16, FilePath: path})
	require.NoError(t, err)

	c.Set("irc:alice", []turn{{Role: "user", Content: "shall we play a game"}, {Role: "assistant", Content: "chess"}})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	reloaded, err := NewCache[[]turn](Options{Capacity: 16, FilePath: path})
	require.NoError(t, err)
	defer reloaded.Close()

	got, ok := reloaded.Get("irc:alice")
	require.True(t, ok)
	assert.Equal(t, []turn{{Role: "user", Content: "shall we play a game"}, {Role: "assistant", Content: "chess"}}, got)
}

func TestCache_FlushWithoutFile(t *testing.T) {
	c, err := NewCache[string](Options{})
	require.NoError(t, err)

	c.Set("k", "v")
	assert.NoError(t, c.Flush())
	assert.NoError(t, c.Close())
}
