package digest

import (
	"encoding/binary"
	"sort"

	"github.com/zeebo/blake3"
)

// separatorMarker is a length-prefix value that Update's own framing can never produce:
// every real payload is preceded by its own byte length as a uint64, and no payload can be
// (2^64 - 1) bytes long in practice, so this value only ever appears where InjectSeparator
// wrote it. Two hasher streams can therefore only be equal if their separator placement is
// identical, which is what gives the pipeline's domain separation (spec property 2) a
// structural rather than probabilistic guarantee.
const separatorMarker = ^uint64(0)

// separatorNonce is written after the marker purely so InjectSeparator has a fixed,
// recognisable payload; its exact value is not load-bearing.
var separatorNonce = [24]byte{'b', 'c', 'a', 'c', 'h', 'e', '-', 's', 'e', 'p'}

// A Hasher accumulates bytes, strings, file contents and separator markers into a single
// streaming digest. The zero value is not usable; construct with New.
type Hasher struct {
	h *blake3.Hasher
}

// New returns a fresh Hasher.
func New() *Hasher {
	return &Hasher{h: blake3.New()}
}

// Update absorbs a raw byte sequence, framed with a length prefix so that concatenation of
// two Update calls is distinguishable from one Update call over the concatenated bytes.
func (h *Hasher) Update(b []byte) {
	h.writeLen(uint64(len(b)))
	h.h.Write(b)
}

// UpdateString absorbs a single string.
func (h *Hasher) UpdateString(s string) {
	h.Update([]byte(s))
}

// UpdateStrings absorbs an ordered sequence of strings, each framed independently. This is
// the exact framing spec.md requires be identical between cache insertion and cache lookup
// for any hashed sequence (relevant arguments, sorted environment variables, ...).
func (h *Hasher) UpdateStrings(seq []string) {
	h.writeLen(uint64(len(seq)))
	for _, s := range seq {
		h.UpdateString(s)
	}
}

// UpdateSortedEnv absorbs an environment map as an ordered sequence of "key=value" strings
// sorted by key. This is the open question spec.md §9 calls out explicitly: env var hashing
// must be order-independent of map iteration, so callers never pass a raw map here.
func (h *Hasher) UpdateSortedEnv(env map[string]string) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + env[k]
	}
	h.UpdateStrings(pairs)
}

// UpdateFile absorbs the contents of the file at path, using the xattr-memoized file digest
// cache so repeated hashing of an unchanged file is fast. Returns ErrMissingInput if the
// file cannot be read.
func (h *Hasher) UpdateFile(path string) error {
	d, err := FileDigest(path)
	if err != nil {
		return &ErrMissingInput{Path: path, Err: err}
	}
	h.Update(d[:])
	return nil
}

// InjectSeparator writes a byte pattern that cannot arise from any Update/UpdateString/
// UpdateFile call, providing mandatory domain separation between the base hash and the
// direct-mode fork (spec.md §4.7 step 5).
func (h *Hasher) InjectSeparator() {
	h.writeLen(separatorMarker)
	h.h.Write(separatorNonce[:])
}

func (h *Hasher) writeLen(n uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	h.h.Write(buf[:])
}

// Clone returns an independent Hasher whose subsequent Sum equals this Hasher's Sum if fed
// the same subsequent inputs. This is what lets the pipeline fork a "direct mode" hasher off
// the shared base hash without re-absorbing everything hashed so far.
func (h *Hasher) Clone() *Hasher {
	return &Hasher{h: h.h.Clone()}
}

// Sum finalizes the hash. It does not mutate the Hasher's state, matching blake3's
// non-destructive Sum semantics, but callers should treat a Hasher as single-use to match
// spec.md's "final() must only be called once" guidance from the original implementation.
func (h *Hasher) Sum() Digest {
	var d Digest
	sum := h.h.Sum(nil)
	copy(d[:], sum)
	return d
}

// ErrMissingInput is returned by UpdateFile when the named file cannot be read.
type ErrMissingInput struct {
	Path string
	Err  error
}

func (e *ErrMissingInput) Error() string {
	return "missing input " + e.Path + ": " + e.Err.Error()
}

func (e *ErrMissingInput) Unwrap() error {
	return e.Err
}
