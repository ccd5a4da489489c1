package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilithGames/buildcache/src/digest"
	"github.com/LilithGames/buildcache/src/files"
)

func digestOf(s string) digest.Digest {
	h := digest.New()
	h.UpdateString(s)
	return h.Sum()
}

func TestDirCacheSizeGrowsAfterAdd(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDirCache(dir)
	require.NoError(t, err)

	before, err := c.(*dirCache).Size()
	require.NoError(t, err)
	assert.Zero(t, before)

	srcPath := filepath.Join(dir, "obj.o")
	require.NoError(t, os.WriteFile(srcPath, []byte("object contents"), 0644))
	expected := files.Table{}
	expected.Add(files.ExpectedFile{Role: "object", Path: srcPath, Required: true})
	require.NoError(t, c.Add(digestOf("size-test"), Entry{}, expected, false))

	after, err := c.(*dirCache).Size()
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestDirCacheLookupMissReturnsFalse(t *testing.T) {
	c, err := NewDirCache(t.TempDir())
	require.NoError(t, err)

	_, ok, err := c.Lookup(digestOf("nothing"), files.Table{}, false, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirCacheAddThenLookupRestoresFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDirCache(filepath.Join(dir, "store"))
	require.NoError(t, err)

	srcDir := t.TempDir()
	objPath := filepath.Join(srcDir, "out.o")
	require.NoError(t, os.WriteFile(objPath, []byte("object bytes"), 0644))

	key := digestOf("compile:foo.c")
	table := files.Table{{Role: "object", Path: objPath, Required: true}}
	entry := Entry{Stdout: []byte("ok"), ExitCode: 0}
	require.NoError(t, c.Add(key, entry, table, false))

	require.NoError(t, os.Remove(objPath))

	got, ok, err := c.Lookup(key, table, false, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("ok"), got.Stdout)
	assert.Equal(t, []string{"object"}, got.FileIDs)

	restored, err := os.ReadFile(objPath)
	require.NoError(t, err)
	assert.Equal(t, "object bytes", string(restored))
}

func TestDirCacheAddThenLookupWithCompression(t *testing.T) {
	c, err := NewDirCache(t.TempDir())
	require.NoError(t, err)

	srcDir := t.TempDir()
	objPath := filepath.Join(srcDir, "out.o")
	require.NoError(t, os.WriteFile(objPath, []byte("compressible payload payload payload"), 0644))

	key := digestOf("compile:bar.c")
	table := files.Table{{Role: "object", Path: objPath, Required: true}}
	require.NoError(t, c.Add(key, Entry{Compression: All}, table, false))
	require.NoError(t, os.Remove(objPath))

	_, ok, err := c.Lookup(key, table, false, false)
	require.NoError(t, err)
	require.True(t, ok)

	restored, err := os.ReadFile(objPath)
	require.NoError(t, err)
	assert.Equal(t, "compressible payload payload payload", string(restored))
}

func TestDirCacheAddSkipsMissingOptionalFile(t *testing.T) {
	c, err := NewDirCache(t.TempDir())
	require.NoError(t, err)

	table := files.Table{{Role: "listing", Path: filepath.Join(t.TempDir(), "missing.lst"), Required: false}}
	key := digestOf("compile:optional")
	require.NoError(t, c.Add(key, Entry{}, table, false))

	entry, ok, err := c.Lookup(key, table, false, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, entry.FileIDs)
}

func TestDirCacheAddFailsOnMissingRequiredFile(t *testing.T) {
	c, err := NewDirCache(t.TempDir())
	require.NoError(t, err)

	table := files.Table{{Role: "object", Path: filepath.Join(t.TempDir(), "missing.o"), Required: true}}
	err = c.Add(digestOf("compile:required-missing"), Entry{}, table, false)
	assert.Error(t, err)
}

func TestDirCacheDirectBindingRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDirCache(dir)
	require.NoError(t, err)

	implicitDir := t.TempDir()
	headerPath := filepath.Join(implicitDir, "foo.h")
	require.NoError(t, os.WriteFile(headerPath, []byte("#define X 1"), 0644))

	preprocessorKey := digestOf("preprocessed:foo.c")
	objPath := filepath.Join(implicitDir, "foo.o")
	require.NoError(t, os.WriteFile(objPath, []byte("obj"), 0644))
	table := files.Table{{Role: "object", Path: objPath, Required: true}}
	require.NoError(t, c.Add(preprocessorKey, Entry{}, table, false))

	directKey := digestOf("direct:foo.c")
	require.NoError(t, c.AddDirect(directKey, preprocessorKey, []string{headerPath}))

	_, ok, err := c.LookupDirect(directKey, table, false, false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDirCacheLookupDirectInvalidatesOnStaleImplicitInput(t *testing.T) {
	c, err := NewDirCache(t.TempDir())
	require.NoError(t, err)

	implicitDir := t.TempDir()
	headerPath := filepath.Join(implicitDir, "foo.h")
	require.NoError(t, os.WriteFile(headerPath, []byte("#define X 1"), 0644))

	preprocessorKey := digestOf("preprocessed:foo.c")
	directKey := digestOf("direct:foo.c")
	require.NoError(t, c.AddDirect(directKey, preprocessorKey, []string{headerPath}))

	require.NoError(t, os.WriteFile(headerPath, []byte("#define X 2"), 0644))

	_, ok, err := c.LookupDirect(directKey, files.Table{}, false, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirCacheLookupDirectMissingBindingReturnsFalse(t *testing.T) {
	c, err := NewDirCache(t.TempDir())
	require.NoError(t, err)

	_, ok, err := c.LookupDirect(digestOf("never-added"), files.Table{}, false, false)
	require.NoError(t, err)
	assert.False(t, ok)
}
