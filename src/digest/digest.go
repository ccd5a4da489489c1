// Package digest implements the hasher facade (spec C2): a streaming accumulator of
// bytes, strings, file contents and explicit separator markers, finalized to a fixed-size
// digest. The concrete primitive is BLAKE3 (github.com/zeebo/blake3), which natively
// supports cloning streaming state — exactly what the direct-mode/preprocessor-mode fork
// in the pipeline needs.
package digest

import (
	"encoding/hex"
)

// Size is the width, in bytes, of a Digest.
const Size = 32

// A Digest is the fixed-width output of a Hasher. It is the sole cache key type used
// throughout the pipeline and cache store.
type Digest [Size]byte

// String returns the canonical lowercase hex representation of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is the zero value, i.e. no Hasher has finalized into it.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Equal reports whether two digests hold the same bytes.
func (d Digest) Equal(other Digest) bool {
	return d == other
}

// Parse decodes a canonical hex digest string produced by String.
func Parse(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, err
	}
	if len(b) != Size {
		return d, hex.ErrLength
	}
	copy(d[:], b)
	return d, nil
}
