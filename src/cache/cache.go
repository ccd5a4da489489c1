// Package cache implements the two-level cache store (spec C6): preprocessor-mode and
// direct-mode lookup and insertion, backed by pluggable Store implementations and composed
// through Multiplex the way the teacher composes its directory and HTTP caches.
package cache

import (
	"github.com/LilithGames/buildcache/src/digest"
	"github.com/LilithGames/buildcache/src/files"
	logger "github.com/LilithGames/buildcache/src/cli/logging"
)

var log = logger.Log

// Compression names the encoding applied to a stored entry's file bytes.
type Compression int

const (
	// None stores file bytes as-is.
	None Compression = iota
	// All pipes every stored file's bytes through the xz codec.
	All
)

// An Entry is the cache-store record for one preprocessor-mode digest: which expected-file
// roles are present, how their bytes are compressed, and the tool's captured output.
type Entry struct {
	FileIDs     []string
	Compression Compression
	Stdout      []byte
	Stderr      []byte
	ExitCode    int
}

// A Store is the cache backend contract the pipeline depends on. Implementations need not
// be safe for use by multiple processes beyond what the underlying storage medium already
// guarantees (spec §5); Multiplex composes several Stores into one.
type Store interface {
	// Lookup restores the entry recorded under hash, materializing each of its files at the
	// path named in expected, honoring hardLinks/createDirs. Returns false on a plain miss.
	Lookup(hash digest.Digest, expected files.Table, hardLinks, createDirs bool) (Entry, bool, error)

	// LookupDirect resolves a direct-mode digest to its bound preprocessor digest, validates
	// the recorded implicit inputs are unchanged, and if so delegates to Lookup.
	LookupDirect(direct digest.Digest, expected files.Table, hardLinks, createDirs bool) (Entry, bool, error)

	// Add inserts entry under hash, ingesting present or required files from expected.
	Add(hash digest.Digest, entry Entry, expected files.Table, hardLinks bool) error

	// AddDirect binds direct to preprocessor, stamping the implicit input paths so a future
	// LookupDirect can validate them.
	AddDirect(direct, preprocessor digest.Digest, implicitInputs []string) error
}
