package gcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilithGames/buildcache/src/args"
	"github.com/LilithGames/buildcache/src/process"
)

type fakeConfig struct{}

func (fakeConfig) RunDir() string      { return "." }
func (fakeConfig) RunEnv() []string    { return nil }
func (fakeConfig) RunPrefix() []string { return nil }

func TestCanHandleCommandMatchesGccAndGxx(t *testing.T) {
	cases := []struct {
		exe    string
		claims bool
	}{
		{"gcc", true},
		{"g++", true},
		{"x86_64-linux-gnu-gcc-11", true},
		{"clang", false},
		{"ld", false},
	}
	for _, c := range cases {
		w := New(c.exe, args.List{c.exe}, fakeConfig{}, process.New()).(*Wrapper)
		assert.Equal(t, c.claims, w.CanHandleCommand(), c.exe)
	}
}

func TestBuildFilesLocatesObjectArgument(t *testing.T) {
	w := New("gcc", args.List{"gcc", "-c", "a.c", "-o", "a.o"}, fakeConfig{}, process.New()).(*Wrapper)
	table := w.BuildFiles()
	obj, ok := table.Lookup("object")
	require.True(t, ok)
	assert.Equal(t, "a.o", obj.Path)
	assert.True(t, obj.Required)
}

func TestBuildFilesEmptyWithoutObjectArgument(t *testing.T) {
	w := New("gcc", args.List{"gcc", "-c", "a.c"}, fakeConfig{}, process.New()).(*Wrapper)
	assert.Nil(t, w.BuildFiles())
}

func TestRelevantArgumentsDropsIncludesDefinesAndSource(t *testing.T) {
	w := New("gcc", args.List{"gcc", "-Wall", "-Ifoo", "-I", "bar", "-DFOO=1", "-c", "a.c", "-o", "a.o"}, fakeConfig{}, process.New()).(*Wrapper)
	got := w.RelevantArguments()
	assert.Equal(t, args.List{"gcc", "-Wall", "-c"}, got)
}

func TestInputFilesReturnsSourceArgument(t *testing.T) {
	w := New("gcc", args.List{"gcc", "-c", "-Ifoo", "a.c", "-o", "a.o"}, fakeConfig{}, process.New()).(*Wrapper)
	assert.Equal(t, []string{"a.c"}, w.InputFiles())
}

func TestInputFilesEmptyWithoutSourceArgument(t *testing.T) {
	w := New("gcc", args.List{"gcc", "--version"}, fakeConfig{}, process.New()).(*Wrapper)
	assert.Nil(t, w.InputFiles())
}

func TestCapabilitiesPublishesDirectModeAndHardLinks(t *testing.T) {
	w := New("gcc", args.List{"gcc"}, fakeConfig{}, process.New()).(*Wrapper)
	caps := w.Capabilities()
	assert.Contains(t, caps, "direct_mode")
	assert.Contains(t, caps, "hard_links")
	assert.Contains(t, caps, "create_target_dirs")
}

func TestPreprocessSourceFailsFastWithoutCompileFlag(t *testing.T) {
	w := New("gcc", args.List{"gcc", "-o", "app", "a.o", "b.o"}, fakeConfig{}, process.New()).(*Wrapper)
	_, err := w.PreprocessSource()
	assert.Error(t, err)
}

func TestPreprocessorCommandDropsCompileFlagsAndAddsEP(t *testing.T) {
	cmd := preprocessorCommand(args.List{"gcc", "-c", "a.c", "-o", "a.o"}, "/tmp/out.i")
	assert.Equal(t, args.List{"gcc", "a.c", "-E", "-P", "-o", "/tmp/out.i"}, cmd)
}

func TestDependencyCommandDropsCompileFlagsAndAddsM(t *testing.T) {
	cmd := dependencyCommand(args.List{"gcc", "-c", "a.c", "-o", "a.o"})
	assert.Equal(t, args.List{"gcc", "a.c", "-M"}, cmd)
}

func TestParseMakeDependsExtractsFilesAfterColon(t *testing.T) {
	output := "a.o: a.c \\\n  a.h \\\n  b.h\n"
	assert.Equal(t, []string{"a.c", "a.h", "b.h"}, parseMakeDepends(output))
}

func TestParseMakeDependsNoColonReturnsNil(t *testing.T) {
	assert.Nil(t, parseMakeDepends("garbage"))
}
