// Package gcc implements a Wrapper for the GCC/G++ compiler family, grounded directly on
// gcc_wrapper.cpp: it claims any command whose basename mentions gcc or g++, filters
// include/define/source-file arguments out of the relevant-arguments set (they're already
// captured by the preprocessed source), and drives the compiler itself to produce both the
// preprocessed source and the implicit header dependency list.
package gcc

import (
	"fmt"
	"os"
	"strings"

	"github.com/LilithGames/buildcache/src/args"
	"github.com/LilithGames/buildcache/src/dispatch"
	"github.com/LilithGames/buildcache/src/files"
	"github.com/LilithGames/buildcache/src/process"
	"github.com/LilithGames/buildcache/src/wrapper"
)

func init() {
	dispatch.Register(New)
}

// Wrapper wraps a GCC or G++ invocation.
type Wrapper struct {
	wrapper.Base
}

// New constructs a Wrapper for the given invocation. Satisfies wrapper.Factory.
func New(exePath string, argv args.List, cfg wrapper.Config, executor *process.Executor) wrapper.Wrapper {
	return &Wrapper{Base: wrapper.Base{UnresolvedArgs: argv, Exe: exePath, Cfg: cfg, Executor: executor}}
}

// CanHandleCommand claims any invocation whose basename mentions gcc or g++.
func (w *Wrapper) CanHandleCommand() bool {
	base := w.UnresolvedArgs.Basename()
	return strings.Contains(base, "gcc") || strings.Contains(base, "g++")
}

// Capabilities publishes hard-link materialization, target-directory creation, and
// direct-mode support (the source file is the sole direct-mode input).
func (w *Wrapper) Capabilities() []string {
	return []string{"direct_mode", "hard_links", "create_target_dirs"}
}

// BuildFiles declares the object file named by -o as the sole required output.
func (w *Wrapper) BuildFiles() files.Table {
	obj, ok := objectFile(w.UnresolvedArgs)
	if !ok {
		return nil
	}
	var t files.Table
	t.Add(files.ExpectedFile{Role: "object", Path: obj, Required: true})
	return t
}

// ProgramID runs the compiler's --version, mirroring gcc_wrapper.cpp's get_compiler_id: the
// version string is far cheaper to obtain than a digest of the whole executable and is what
// actually changes between compiler releases.
func (w *Wrapper) ProgramID() (string, error) {
	result, err := w.Executor.Run(w.Cfg.RunDir(), w.Cfg.RunEnv(), args.List{w.Exe, "--version"})
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("gcc: --version exited %d", result.ExitCode)
	}
	return string(result.Stdout), nil
}

// RelevantArguments filters out include paths, macro definitions, and the source file
// itself from the resolved arguments, since all three are already absorbed into the
// preprocessed source that forms the rest of the cache key. The output-naming flags -o, -MF
// and -MT are dropped together with the value that follows each. Kept: everything else,
// with the compiler path reduced to its basename.
func (w *Wrapper) RelevantArguments() args.List {
	resolved, err := w.ResolveArgs()
	if err != nil {
		return nil
	}
	if len(resolved) == 0 {
		return nil
	}
	filtered := args.List{resolved.Basename()}
	skipNext := true // the first token (compiler path) was already handled above
	for _, arg := range resolved {
		if skipNext {
			skipNext = false
			continue
		}
		if arg == "-I" || arg == "-MF" || arg == "-MT" || arg == "-o" {
			skipNext = true
			continue
		}
		ext := args.Extension(arg)
		isSourceFile := ext == ".c" || ext == ".cpp" || ext == ".cc" || ext == ".cxx"
		isUnwanted := strings.HasPrefix(arg, "-I") || strings.HasPrefix(arg, "-D") || isSourceFile
		if !isUnwanted {
			filtered = append(filtered, arg)
		}
	}
	return filtered
}

// InputFiles returns the single source file argument, enabling direct mode.
func (w *Wrapper) InputFiles() []string {
	if src, ok := sourceFile(w.UnresolvedArgs); ok {
		return []string{src}
	}
	return nil
}

// PreprocessSource reruns the compiler with -E -P in place of -c, capturing preprocessed
// source to a temp file exactly as make_preprocessor_cmd does, and returns its contents.
// Mirrors gcc_wrapper.cpp::preprocess_source's own early check: without -c this isn't an
// object-file compilation (e.g. a link-only invocation the basename match still claims), so
// fail fast instead of running the compiler only to have -E -P fail confusingly downstream.
func (w *Wrapper) PreprocessSource() ([]byte, error) {
	resolved, err := w.ResolveArgs()
	if err != nil {
		return nil, err
	}
	if !hasFlag(resolved, "-c") {
		return nil, fmt.Errorf("gcc: not an object file compilation command")
	}
	tmp, err := os.CreateTemp("", "bcache-pp-*.i")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := preprocessorCommand(resolved, tmpPath)
	result, err := w.Executor.Run(w.Cfg.RunDir(), w.Cfg.RunEnv(), cmd)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("gcc: preprocessing failed with exit %d: %s", result.ExitCode, result.Stderr)
	}
	return os.ReadFile(tmpPath)
}

// ImplicitInputFiles reruns the compiler with -M to list header dependencies, mirroring the
// original's approach of asking the compiler itself which files it read.
func (w *Wrapper) ImplicitInputFiles() []string {
	resolved, err := w.ResolveArgs()
	if err != nil {
		return nil
	}
	cmd := dependencyCommand(resolved)
	result, err := w.Executor.Run(w.Cfg.RunDir(), w.Cfg.RunEnv(), cmd)
	if err != nil || result.ExitCode != 0 {
		return nil
	}
	return parseMakeDepends(string(result.Stdout))
}

// preprocessorCommand drops -c and -o <file>, and appends -E -P -o <preprocessedFile>.
func preprocessorCommand(resolved args.List, preprocessedFile string) args.List {
	var out args.List
	dropNext := false
	for _, arg := range resolved {
		dropThis := dropNext
		dropNext = false
		if arg == "-c" {
			dropThis = true
		} else if arg == "-o" {
			dropThis = true
			dropNext = true
		}
		if !dropThis {
			out = append(out, arg)
		}
	}
	return out.Append("-E", "-P", "-o", preprocessedFile)
}

// dependencyCommand drops -c and -o <file>, and appends -M to print header dependencies to
// stdout instead of compiling.
func dependencyCommand(resolved args.List) args.List {
	var out args.List
	dropNext := false
	for _, arg := range resolved {
		dropThis := dropNext
		dropNext = false
		if arg == "-c" {
			dropThis = true
		} else if arg == "-o" {
			dropThis = true
			dropNext = true
		}
		if !dropThis {
			out = append(out, arg)
		}
	}
	return out.Append("-M")
}

// parseMakeDepends extracts file paths from a Makefile-rule-formatted dependency listing
// ("target: dep1 dep2 \\\n  dep3 ..."), dropping the target itself.
func parseMakeDepends(output string) []string {
	output = strings.ReplaceAll(output, "\\\n", " ")
	colon := strings.Index(output, ":")
	if colon < 0 {
		return nil
	}
	fields := strings.Fields(output[colon+1:])
	return fields
}

// hasFlag reports whether flag appears verbatim among argv.
func hasFlag(argv args.List, flag string) bool {
	for _, arg := range argv {
		if arg == flag {
			return true
		}
	}
	return false
}

// objectFile returns the argument following -o, if any.
func objectFile(argv args.List) (string, bool) {
	for i, arg := range argv {
		if arg == "-o" && i+1 < len(argv) {
			return argv[i+1], true
		}
	}
	return "", false
}

// sourceFile returns the first positional argument with a recognized C/C++ source
// extension.
func sourceFile(argv args.List) (string, bool) {
	for _, arg := range argv {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		switch args.Extension(arg) {
		case ".c", ".cpp", ".cc", ".cxx":
			return arg, true
		}
	}
	return "", false
}
