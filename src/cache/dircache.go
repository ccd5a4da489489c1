package cache

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/ulikunitz/xz"

	"github.com/LilithGames/buildcache/src/digest"
	"github.com/LilithGames/buildcache/src/files"
	"github.com/LilithGames/buildcache/src/fs"
)

// dirCache is a local filesystem cache store: one directory per digest, holding a gob-
// encoded Entry alongside the stored file bytes for each recorded role id. Adapted from the
// teacher's dirCache, dropping the LRU eviction goroutine (spec.md scopes eviction policy
// out as a storage-backend concern the core does not implement).
type dirCache struct {
	root string
}

// directBinding is the on-disk record of a direct-mode entry: the preprocessor digest it
// resolves to, and the implicit inputs that must still match for the binding to be valid.
type directBinding struct {
	Preprocessor   digest.Digest
	ImplicitInputs map[string]digest.Digest
}

// NewDirCache returns a Store backed by the local filesystem under root. The directory is
// created if it does not already exist.
func NewDirCache(root string) (Store, error) {
	if err := os.MkdirAll(root, fs.DirPermissions); err != nil {
		return nil, err
	}
	c := &dirCache{root: root}
	if size, err := c.Size(); err != nil {
		log.Debug("Failed to size local cache at %s: %s", root, err)
	} else {
		log.Debug("Local cache at %s holds %s", root, humanize.Bytes(uint64(size)))
	}
	return c, nil
}

// Size walks the whole cache tree and returns the total number of bytes stored in it. Used
// only for the startup log line above; nothing in the pipeline needs to know the running
// total, since dirCache implements no eviction (spec.md delegates eviction policy entirely
// to the storage backend, and this backend chooses not to have one).
func (c *dirCache) Size() (int64, error) {
	if !fs.PathExists(c.root) {
		return 0, nil
	}
	var total int64
	err := fs.WalkMode(c.root, func(name string, mode fs.Mode) error {
		if mode.IsDir() {
			return nil
		}
		if info, err := os.Lstat(name); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func (c *dirCache) entryDir(hash digest.Digest) string {
	hex := hash.String()
	return filepath.Join(c.root, "entries", hex[:2], hex)
}

func (c *dirCache) directPath(hash digest.Digest) string {
	hex := hash.String()
	return filepath.Join(c.root, "direct", hex[:2], hex+".gob")
}

func (c *dirCache) Lookup(hash digest.Digest, expected files.Table, hardLinks, createDirs bool) (Entry, bool, error) {
	dir := c.entryDir(hash)
	metaPath := filepath.Join(dir, "entry.gob")
	f, err := os.Open(metaPath)
	if os.IsNotExist(err) {
		return Entry{}, false, nil
	} else if err != nil {
		return Entry{}, false, err
	}
	defer f.Close()

	var entry Entry
	if err := gob.NewDecoder(f).Decode(&entry); err != nil {
		return Entry{}, false, err
	}

	for _, role := range entry.FileIDs {
		expectedFile, ok := expected.Lookup(role)
		if !ok {
			continue // entry references a role this wrapper no longer declares
		}
		if err := c.restoreFile(dir, role, expectedFile.Path, entry.Compression, hardLinks, createDirs); err != nil {
			return Entry{}, false, err
		}
	}
	return entry, true, nil
}

func (c *dirCache) LookupDirect(direct digest.Digest, expected files.Table, hardLinks, createDirs bool) (Entry, bool, error) {
	f, err := os.Open(c.directPath(direct))
	if os.IsNotExist(err) {
		return Entry{}, false, nil
	} else if err != nil {
		return Entry{}, false, err
	}
	var binding directBinding
	err = gob.NewDecoder(f).Decode(&binding)
	f.Close()
	if err != nil {
		return Entry{}, false, err
	}

	for path, want := range binding.ImplicitInputs {
		got, err := digest.FileDigest(path)
		if err != nil || !got.Equal(want) {
			log.Debug("Direct-mode entry %s is stale (implicit input %s changed), invalidating", direct, path)
			os.Remove(c.directPath(direct))
			return Entry{}, false, nil
		}
	}
	return c.Lookup(binding.Preprocessor, expected, hardLinks, createDirs)
}

func (c *dirCache) Add(hash digest.Digest, entry Entry, expected files.Table, hardLinks bool) error {
	dir := c.entryDir(hash)
	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}
	if err := os.MkdirAll(tmp, fs.DirPermissions); err != nil {
		return err
	}

	var fileIDs []string
	var totalSize int64
	for _, ef := range expected {
		if !ef.Required && !fs.PathExists(ef.Path) {
			continue
		}
		if err := c.storeFile(tmp, ef.Role, ef.Path, entry.Compression); err != nil {
			if ef.Required {
				os.RemoveAll(tmp)
				return err
			}
			log.Warning("Failed to store optional file %s: %s", ef.Path, err)
			continue
		}
		fileIDs = append(fileIDs, ef.Role)
		if info, err := os.Stat(ef.Path); err == nil {
			totalSize += info.Size()
		}
	}
	entry.FileIDs = fileIDs
	log.Debug("Storing cache entry %s: %d file(s), %s", hash, len(fileIDs), humanize.Bytes(uint64(totalSize)))

	metaFile, err := os.Create(filepath.Join(tmp, "entry.gob"))
	if err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := gob.NewEncoder(metaFile).Encode(entry); err != nil {
		metaFile.Close()
		os.RemoveAll(tmp)
		return err
	}
	metaFile.Close()

	os.RemoveAll(dir)
	if err := os.MkdirAll(filepath.Dir(dir), fs.DirPermissions); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	return os.Rename(tmp, dir)
}

func (c *dirCache) AddDirect(direct, preprocessor digest.Digest, implicitInputs []string) error {
	binding := directBinding{Preprocessor: preprocessor, ImplicitInputs: map[string]digest.Digest{}}
	for _, path := range implicitInputs {
		d, err := digest.FileDigest(path)
		if err != nil {
			log.Warning("Failed to stamp implicit input %s: %s", path, err)
			continue
		}
		binding.ImplicitInputs[path] = d
	}

	path := c.directPath(direct)
	if err := os.MkdirAll(filepath.Dir(path), fs.DirPermissions); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(binding)
}

func (c *dirCache) storeFile(dir, role, path string, compression Compression) error {
	cachedPath := filepath.Join(dir, "files", role)
	if err := os.MkdirAll(filepath.Dir(cachedPath), fs.DirPermissions); err != nil {
		return err
	}
	if compression == All {
		return c.storeCompressed(cachedPath+".xz", path)
	}
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	return fs.CopyOrLinkFile(path, cachedPath, info.Mode(), info.Mode(), false, true)
}

func (c *dirCache) storeCompressed(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	w, err := xz.NewWriter(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		return err
	}
	// xz.Writer buffers a final block until Close flushes it, so a disk-full or short write
	// there would otherwise be silently lost behind a deferred Close, committing a truncated
	// entry as if it were valid.
	return w.Close()
}

func (c *dirCache) restoreFile(dir, role, dst string, compression Compression, hardLinks, createDirs bool) error {
	cachedPath := filepath.Join(dir, "files", role)
	if compression == All {
		return c.restoreCompressed(dst, cachedPath+".xz", createDirs)
	}
	return materialize(cachedPath, dst, hardLinks, createDirs)
}

func (c *dirCache) restoreCompressed(dst, src string, createDirs bool) error {
	if createDirs {
		if err := os.MkdirAll(filepath.Dir(dst), fs.DirPermissions); err != nil {
			return err
		}
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	r, err := xz.NewReader(in)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, r)
	return err
}
