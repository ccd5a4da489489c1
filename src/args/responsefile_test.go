package args

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandResponseFilesNoAtTokens(t *testing.T) {
	out, err := ExpandResponseFiles(List{"gcc", "-c", "a.c"})
	require.NoError(t, err)
	assert.Equal(t, List{"gcc", "-c", "a.c"}, out)
}

func TestExpandResponseFilesExpandsFile(t *testing.T) {
	dir := t.TempDir()
	rsp := filepath.Join(dir, "args.rsp")
	require.NoError(t, os.WriteFile(rsp, []byte("-Dfoo=1 -o \"a.o\""), 0644))

	out, err := ExpandResponseFiles(List{"gcc", "-c", "@" + rsp, "a.c"})
	require.NoError(t, err)
	assert.Equal(t, List{"gcc", "-c", "-Dfoo=1", "-o", "a.o", "a.c"}, out)
}

func TestExpandResponseFilesMissingFile(t *testing.T) {
	_, err := ExpandResponseFiles(List{"gcc", "@/no/such/file"})
	require.Error(t, err)
	var badFile *ErrBadResponseFile
	assert.ErrorAs(t, err, &badFile)
}

func TestExpandResponseFilesRecursionLimit(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.rsp")
	b := filepath.Join(dir, "b.rsp")
	require.NoError(t, os.WriteFile(a, []byte("@"+b), 0644))
	require.NoError(t, os.WriteFile(b, []byte("@"+a), 0644))

	_, err := ExpandResponseFiles(List{"gcc", "@" + a})
	require.Error(t, err)
}
