// Package prgid implements the program-ID cache (spec C4): a small persistent key/value
// store, keyed by a fast non-cryptographic hash of a tool executable's identity, that
// memoizes the (comparatively expensive) work of computing a wrapper's ProgramID so it
// need not be redone on every invocation of the same compiler binary.
package prgid

import (
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
)

// ExecutableKey returns the store key for the tool executable at path: a fast hash of its
// path, size and modification time. This is deliberately not a content digest — the key
// never leaves the process, so collision resistance requirements are far below what
// digest.Hasher provides, and xxhash's speed keeps this lookup off the critical path.
func ExecutableKey(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", xxhash.Sum64String(fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano()))), nil
}
