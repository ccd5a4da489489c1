package cache

import (
	"sync"

	"github.com/LilithGames/buildcache/src/digest"
	"github.com/LilithGames/buildcache/src/files"
)

// multiplexer composes several Stores into one, mirroring the teacher's cacheMultiplexer:
// reads walk the backends sequentially, since a hit must be backfilled into the faster
// backends it skipped past, while writes fan out to every backend concurrently.
type multiplexer struct {
	stores []Store
}

// Multiplex returns a Store that reads and writes through every store in stores, higher
// priority (typically local, cheaper) stores first. A single store is returned unwrapped.
func Multiplex(stores ...Store) Store {
	stores = compact(stores)
	if len(stores) == 1 {
		return stores[0]
	}
	return &multiplexer{stores: stores}
}

func compact(stores []Store) []Store {
	out := make([]Store, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m *multiplexer) Lookup(hash digest.Digest, expected files.Table, hardLinks, createDirs bool) (Entry, bool, error) {
	for i, s := range m.stores {
		entry, ok, err := s.Lookup(hash, expected, hardLinks, createDirs)
		if err != nil {
			log.Warning("Cache backend lookup failed: %s", err)
			continue
		}
		if ok {
			m.backfill(hash, entry, expected, hardLinks, i)
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

func (m *multiplexer) LookupDirect(direct digest.Digest, expected files.Table, hardLinks, createDirs bool) (Entry, bool, error) {
	for _, s := range m.stores {
		entry, ok, err := s.LookupDirect(direct, expected, hardLinks, createDirs)
		if err != nil {
			log.Warning("Cache backend direct lookup failed: %s", err)
			continue
		}
		if ok {
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

func (m *multiplexer) Add(hash digest.Digest, entry Entry, expected files.Table, hardLinks bool) error {
	return m.addUntil(hash, entry, expected, hardLinks, len(m.stores))
}

func (m *multiplexer) AddDirect(direct, preprocessor digest.Digest, implicitInputs []string) error {
	var wg sync.WaitGroup
	for _, s := range m.stores {
		wg.Add(1)
		go func(s Store) {
			defer wg.Done()
			if err := s.AddDirect(direct, preprocessor, implicitInputs); err != nil {
				log.Warning("Cache backend direct-mode store failed: %s", err)
			}
		}(s)
	}
	wg.Wait()
	return nil
}

// addUntil stores into the first stopAt backends concurrently. Used both for a plain Add
// (stopAt == len(stores)) and to backfill higher-priority backends a Lookup skipped past.
func (m *multiplexer) addUntil(hash digest.Digest, entry Entry, expected files.Table, hardLinks bool, stopAt int) error {
	var wg sync.WaitGroup
	for i, s := range m.stores {
		if i == stopAt {
			break
		}
		wg.Add(1)
		go func(s Store) {
			defer wg.Done()
			if err := s.Add(hash, entry, expected, hardLinks); err != nil {
				log.Warning("Cache backend store failed: %s", err)
			}
		}(s)
	}
	wg.Wait()
	return nil
}

func (m *multiplexer) backfill(hash digest.Digest, entry Entry, expected files.Table, hardLinks bool, foundAt int) {
	if foundAt == 0 {
		return
	}
	if err := m.addUntil(hash, entry, expected, hardLinks, foundAt); err != nil {
		log.Warning("Cache backfill failed: %s", err)
	}
}
