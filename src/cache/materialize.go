package cache

import (
	"os"
	"path/filepath"

	"github.com/LilithGames/buildcache/src/fs"
)

// materialize places the bytes stored at src onto disk at dst, using a hard link when
// hardLinks permits and the underlying filesystem allows it, falling back to a copy
// otherwise, exactly as the teacher's dir cache restores files onto build output paths.
// Missing parent directories of dst are created iff createDirs.
func materialize(src, dst string, hardLinks, createDirs bool) error {
	if createDirs {
		if err := os.MkdirAll(filepath.Dir(dst), fs.DirPermissions); err != nil {
			return err
		}
	}
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	// RemoveAll first: materializing a hard link onto an existing regular file at dst fails
	// with EEXIST, and if the previous target is a running executable, replacing it in place
	// rather than unlinking it first can produce ETXTBSY.
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return fs.CopyOrLinkFile(src, dst, info.Mode(), info.Mode(), hardLinks, true)
}
