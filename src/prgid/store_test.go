package prgid

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := Open(t.TempDir())
	s.Put("k", "v", time.Minute)
	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestGetMissingKey(t *testing.T) {
	s := Open(t.TempDir())
	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestExpiredItemIsNotReturned(t *testing.T) {
	s := Open(t.TempDir())
	s.Put("k", "v", -time.Second)
	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestPutPrunesExpiredItems(t *testing.T) {
	s := Open(t.TempDir())
	s.Put("stale", "v", -time.Second)
	s.Put("fresh", "v", time.Minute)

	state := &onDiskState{Items: map[string]item{}}
	s.withLock(func(st *onDiskState) bool { *state = *st; return false })
	assert.NotContains(t, state.Items, "stale")
	assert.Contains(t, state.Items, "fresh")
}

func TestPersistsAcrossStoreInstances(t *testing.T) {
	dir := t.TempDir()
	Open(dir).Put("k", "v", time.Minute)

	v, ok := Open(dir).Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestExecutableKeyChangesWithMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cc")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0755))

	k1, err := ExecutableKey(path)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("two-longer"), 0755))

	k2, err := ExecutableKey(path)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}
