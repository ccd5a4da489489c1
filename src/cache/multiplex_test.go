package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilithGames/buildcache/src/digest"
	"github.com/LilithGames/buildcache/src/files"
)

// fakeStore is a minimal in-memory Store for testing multiplexing behaviour independent
// of any real backend.
type fakeStore struct {
	entries      map[digest.Digest]Entry
	directs      map[digest.Digest]digest.Digest
	addCalls     []digest.Digest
	addDirectCalls []digest.Digest
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[digest.Digest]Entry{}, directs: map[digest.Digest]digest.Digest{}}
}

func (f *fakeStore) Lookup(hash digest.Digest, expected files.Table, hardLinks, createDirs bool) (Entry, bool, error) {
	e, ok := f.entries[hash]
	return e, ok, nil
}

func (f *fakeStore) LookupDirect(direct digest.Digest, expected files.Table, hardLinks, createDirs bool) (Entry, bool, error) {
	pre, ok := f.directs[direct]
	if !ok {
		return Entry{}, false, nil
	}
	return f.Lookup(pre, expected, hardLinks, createDirs)
}

func (f *fakeStore) Add(hash digest.Digest, entry Entry, expected files.Table, hardLinks bool) error {
	f.entries[hash] = entry
	f.addCalls = append(f.addCalls, hash)
	return nil
}

func (f *fakeStore) AddDirect(direct, preprocessor digest.Digest, implicitInputs []string) error {
	f.directs[direct] = preprocessor
	f.addDirectCalls = append(f.addDirectCalls, direct)
	return nil
}

func TestMultiplexSingleStoreIsUnwrapped(t *testing.T) {
	s := newFakeStore()
	assert.Same(t, Store(s), Multiplex(s))
}

func TestMultiplexLookupChecksBackendsInOrder(t *testing.T) {
	first := newFakeStore()
	second := newFakeStore()
	key := digestOf("m1")
	second.entries[key] = Entry{Stdout: []byte("from-second")}

	m := Multiplex(first, second)
	entry, ok, err := m.Lookup(key, files.Table{}, false, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("from-second"), entry.Stdout)
}

func TestMultiplexBackfillsHigherPriorityBackends(t *testing.T) {
	first := newFakeStore()
	second := newFakeStore()
	key := digestOf("m2")
	second.entries[key] = Entry{Stdout: []byte("from-second")}

	m := Multiplex(first, second)
	_, ok, err := m.Lookup(key, files.Table{}, false, false)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok = first.entries[key]
	assert.True(t, ok, "lookup hit on a lower-priority backend should backfill higher-priority ones")
}

func TestMultiplexAddWritesToAllBackends(t *testing.T) {
	first := newFakeStore()
	second := newFakeStore()
	key := digestOf("m3")

	m := Multiplex(first, second)
	require.NoError(t, m.Add(key, Entry{}, files.Table{}, false))

	_, ok := first.entries[key]
	assert.True(t, ok)
	_, ok = second.entries[key]
	assert.True(t, ok)
}

func TestMultiplexLookupMissAcrossAllBackendsReturnsFalse(t *testing.T) {
	m := Multiplex(newFakeStore(), newFakeStore())
	_, ok, err := m.Lookup(digestOf("nope"), files.Table{}, false, false)
	require.NoError(t, err)
	assert.False(t, ok)
}
