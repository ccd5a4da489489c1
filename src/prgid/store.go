package prgid

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	logger "github.com/LilithGames/buildcache/src/cli/logging"
)

var log = logger.Log

// an item is one key/value pair with the time at which it becomes stale.
type item struct {
	Value   string
	Expires time.Time
}

// onDiskState is the gob-encoded payload of the store file.
type onDiskState struct {
	Items map[string]item
}

// A Store is a persistent, file-backed key/value store with per-item TTL. It is safe for
// concurrent use by multiple processes: every read-modify-write cycle holds an exclusive
// flock on the backing file for its duration, the same discipline the teacher's repo lock
// uses to serialize concurrent invocations against shared state.
type Store struct {
	path string
}

// Open returns a Store backed by a file under dir. The file and its parent directory are
// created on first use; Open itself performs no I/O.
func Open(dir string) *Store {
	return &Store{path: filepath.Join(dir, "prgid.gob")}
}

// Get returns the value stored under key, if present and not expired.
func (s *Store) Get(key string) (string, bool) {
	var value string
	var ok bool
	s.withLock(func(state *onDiskState) bool {
		it, found := state.Items[key]
		if found && time.Now().Before(it.Expires) {
			value, ok = it.Value, true
		}
		return false
	})
	return value, ok
}

// Put stores value under key with the given time-to-live, and opportunistically prunes any
// other items in the store that have already expired.
func (s *Store) Put(key, value string, ttl time.Duration) {
	s.withLock(func(state *onDiskState) bool {
		state.Items[key] = item{Value: value, Expires: time.Now().Add(ttl)}
		for k, it := range state.Items {
			if time.Now().After(it.Expires) {
				delete(state.Items, k)
			}
		}
		return true
	})
}

// withLock opens the store file, acquires an exclusive lock, decodes the current state,
// invokes f, and if f returns true, re-encodes and writes the (possibly mutated) state back
// before releasing the lock. Any I/O error is logged and treated as an empty store, since a
// program-ID cache miss only costs recomputation, never correctness.
func (s *Store) withLock(f func(state *onDiskState) bool) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		log.Warning("Failed to create program-id cache directory: %s", err)
		f(&onDiskState{Items: map[string]item{}})
		return
	}
	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		log.Warning("Failed to open program-id cache: %s", err)
		f(&onDiskState{Items: map[string]item{}})
		return
	}
	defer file.Close()

	if err := acquireLock(file); err != nil {
		log.Warning("Failed to lock program-id cache: %s", err)
		f(&onDiskState{Items: map[string]item{}})
		return
	}
	defer releaseLock(file)

	state := &onDiskState{Items: map[string]item{}}
	if fi, err := file.Stat(); err == nil && fi.Size() > 0 {
		if err := gob.NewDecoder(file).Decode(state); err != nil {
			log.Warning("Program-id cache is corrupt, discarding: %s", err)
			state = &onDiskState{Items: map[string]item{}}
		}
	}

	if !f(state) {
		return
	}

	if _, err := file.Seek(0, 0); err != nil {
		log.Warning("Failed to rewrite program-id cache: %s", err)
		return
	}
	if err := file.Truncate(0); err != nil {
		log.Warning("Failed to truncate program-id cache: %s", err)
		return
	}
	if err := gob.NewEncoder(file).Encode(state); err != nil {
		log.Warning("Failed to write program-id cache: %s", err)
	}
}
