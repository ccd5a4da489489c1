package digest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/LilithGames/buildcache/src/fs"
)

// xattrName is where a file's memoized digest is stored, alongside the mtime/size it was
// computed for. Mirrors the "user.plz_hash" xattr convention the teacher's PathHasher uses.
const xattrName = "user.bcache_digest"

// FileDigest returns the BLAKE3 digest of the file at path. If the filesystem supports
// extended attributes, the digest is memoized there keyed by the file's current size and
// modification time, so re-hashing an unchanged file after the first pass is a stat plus an
// xattr read rather than a full re-read — this is what makes repeated direct-mode input
// hashing cheap across successive invocations against the same working tree.
func FileDigest(path string) (Digest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Digest{}, err
	}
	stamp := fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano())

	if cached, ok := readCachedDigest(path, stamp); ok {
		return cached, nil
	}

	d, err := hashFile(path)
	if err != nil {
		return Digest{}, err
	}
	writeCachedDigest(path, stamp, d)
	return d, nil
}

func hashFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := readInto(h, f); err != nil {
		return Digest{}, err
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

func readInto(h *blake3.Hasher, f *os.File) (int64, error) {
	buf := make([]byte, 64*1024)
	var total int64
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			total += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
}

// readCachedDigest reads the value written to xattrName: "<stamp>:<hex digest>". Reading and
// writing both go through fs.ReadAttr/fs.RecordAttr rather than calling xattr directly —
// that's what gives this cache its fallback-file behaviour for symlinks, which don't accept
// xattrs. On a filesystem without xattr support nothing is memoized and the file is
// re-hashed every time.
func readCachedDigest(path, stamp string) (Digest, bool) {
	raw := fs.ReadAttr(path, xattrName, true)
	if len(raw) <= len(stamp)+1 {
		return Digest{}, false
	}
	if string(raw[:len(stamp)]) != stamp || raw[len(stamp)] != ':' {
		return Digest{}, false
	}
	d, err := Parse(string(raw[len(stamp)+1:]))
	if err != nil {
		return Digest{}, false
	}
	return d, true
}

func writeCachedDigest(path, stamp string, d Digest) {
	// Best-effort: not every filesystem supports xattrs, and failing here must never affect
	// correctness, only the speed of the next hash of this file.
	_ = fs.RecordAttr(path, []byte(stamp+":"+d.String()), xattrName, true)
}
