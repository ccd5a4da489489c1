package args

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	assert.True(t, List{"a", "b"}.Equal(List{"a", "b"}))
	assert.False(t, List{"a", "b"}.Equal(List{"b", "a"}))
	assert.False(t, List{"a"}.Equal(List{"a", "a"}))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a b c", List{"a", "b", "c"}.Join(" "))
}

func TestBasename(t *testing.T) {
	assert.Equal(t, "g++", List{"/usr/bin/g++", "-c", "a.cpp"}.Basename())
	assert.Equal(t, "", List(nil).Basename())
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".cpp", Extension("src/foo.cpp"))
	assert.Equal(t, "", Extension("Makefile"))
}

func TestCloneIsIndependent(t *testing.T) {
	orig := List{"a", "b"}
	clone := orig.Clone()
	clone[0] = "x"
	assert.Equal(t, "a", orig[0])
}

func TestAppendDoesNotMutate(t *testing.T) {
	orig := List{"a"}
	appended := orig.Append("b", "c")
	assert.Equal(t, List{"a"}, orig)
	assert.Equal(t, List{"a", "b", "c"}, appended)
}
