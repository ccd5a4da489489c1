package digest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterminism(t *testing.T) {
	build := func() Digest {
		h := New()
		h.UpdateString("g++")
		h.UpdateStrings([]string{"-O2", "-c"})
		h.UpdateSortedEnv(map[string]string{"B": "2", "A": "1"})
		return h.Sum()
	}
	assert.Equal(t, build(), build())
}

func TestSortedEnvIsOrderIndependentOfMapIteration(t *testing.T) {
	h1 := New()
	h1.UpdateSortedEnv(map[string]string{"PATH": "/bin", "CC": "gcc"})
	h2 := New()
	h2.UpdateSortedEnv(map[string]string{"CC": "gcc", "PATH": "/bin"})
	assert.Equal(t, h1.Sum(), h2.Sum())
}

func TestDomainSeparation(t *testing.T) {
	// Two streams forked from the same base that absorb the same token "ab"; they differ
	// only in the separator the direct-mode-like stream injects first, and that alone must
	// change the digest.
	base := New()
	base.UpdateString("common-prefix")

	preprocessorLike := base.Clone()
	preprocessorLike.UpdateString("ab")

	directLike := base.Clone()
	directLike.InjectSeparator()
	directLike.UpdateString("ab")

	assert.NotEqual(t, preprocessorLike.Sum(), directLike.Sum())
}

func TestCloneIndependence(t *testing.T) {
	base := New()
	base.UpdateString("shared")

	a := base.Clone()
	b := base.Clone()
	a.UpdateString("only-a")
	b.UpdateString("only-a")
	assert.Equal(t, a.Sum(), b.Sum())

	c := base.Clone()
	c.UpdateString("only-c")
	assert.NotEqual(t, a.Sum(), c.Sum())
}

func TestUpdateFileMissing(t *testing.T) {
	h := New()
	err := h.UpdateFile(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	var missing *ErrMissingInput
	assert.ErrorAs(t, err, &missing)
}

func TestFileDigestMemoizationDoesNotChangeResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(path, []byte("int main() { return 0; }"), 0644))

	first, err := FileDigest(path)
	require.NoError(t, err)
	second, err := FileDigest(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(path, []byte("int main() { return 1; }"), 0644))
	third, err := FileDigest(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestDigestStringRoundTrip(t *testing.T) {
	h := New()
	h.UpdateString("hello")
	d := h.Sum()
	parsed, err := Parse(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}
