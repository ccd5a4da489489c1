// Package ticc implements a Wrapper for the TI C6x compiler driver (cl6x), grounded on
// ti_c6x_wrapper.hpp. It is deliberately lighter than the gcc wrapper: cl6x's own response
// files (--cmd_file=) carry the bulk of a real invocation's arguments, and the original
// wrapper implements only preprocessor mode, publishing no direct_mode capability.
package ticc

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"

	"github.com/LilithGames/buildcache/src/args"
	"github.com/LilithGames/buildcache/src/dispatch"
	"github.com/LilithGames/buildcache/src/files"
	"github.com/LilithGames/buildcache/src/process"
	"github.com/LilithGames/buildcache/src/wrapper"
)

func init() {
	dispatch.Register(New)
}

// Wrapper wraps a TI C6x (cl6x) compiler invocation.
type Wrapper struct {
	wrapper.Base
}

// New constructs a Wrapper for the given invocation. Satisfies wrapper.Factory.
func New(exePath string, argv args.List, cfg wrapper.Config, executor *process.Executor) wrapper.Wrapper {
	return &Wrapper{Base: wrapper.Base{UnresolvedArgs: argv, Exe: exePath, Cfg: cfg, Executor: executor}}
}

// CanHandleCommand claims any invocation whose basename is cl6x, with or without a .exe
// suffix.
func (w *Wrapper) CanHandleCommand() bool {
	base := w.UnresolvedArgs.Basename()
	base = strings.TrimSuffix(base, ".exe")
	return base == "cl6x"
}

// ResolveArgs expands --cmd_file=<path> arguments, cl6x's response-file convention, in
// addition to the default @file form some cl6x front ends also accept.
func (w *Wrapper) ResolveArgs() (args.List, error) {
	expanded, err := args.ExpandResponseFiles(w.UnresolvedArgs)
	if err != nil {
		return nil, err
	}
	return expandCmdFiles(expanded)
}

// Capabilities publishes only hard-link materialization: unlike the gcc wrapper, this one
// implements no InputFiles/direct-mode support, matching the original which overrides
// nothing related to direct mode.
func (w *Wrapper) Capabilities() []string {
	return []string{"hard_links"}
}

// BuildFiles declares the object file named by -o/-fo as the sole required output. -fr names
// the object directory, not a file, so it is not used here.
func (w *Wrapper) BuildFiles() files.Table {
	resolved, err := w.ResolveArgs()
	if err != nil {
		return nil
	}
	obj, ok := objectFile(resolved)
	if !ok {
		return nil
	}
	var t files.Table
	t.Add(files.ExpectedFile{Role: "object", Path: obj, Required: true})
	return t
}

// ProgramID runs the compiler's -version, cl6x's equivalent of --version.
func (w *Wrapper) ProgramID() (string, error) {
	result, err := w.Executor.Run(w.Cfg.RunDir(), w.Cfg.RunEnv(), args.List{w.Exe, "-version"})
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("ticc: -version exited %d", result.ExitCode)
	}
	return string(result.Stdout), nil
}

// RelevantArguments drops include paths, macro definitions, and the source file, the same
// rationale as the gcc wrapper: they're absorbed into the preprocessed source instead.
func (w *Wrapper) RelevantArguments() args.List {
	resolved, err := w.ResolveArgs()
	if err != nil {
		return nil
	}
	if len(resolved) == 0 {
		return nil
	}
	filtered := args.List{resolved.Basename()}
	for _, arg := range resolved[1:] {
		ext := args.Extension(arg)
		isSourceFile := ext == ".c" || ext == ".cpp" || ext == ".cc"
		isUnwanted := strings.HasPrefix(arg, "-i") || strings.HasPrefix(arg, "-d") || isSourceFile
		if !isUnwanted {
			filtered = append(filtered, arg)
		}
	}
	return filtered
}

// PreprocessSource reruns the compiler with -ppo (preprocess only, output to stdout), the
// cl6x equivalent of gcc's -E -P.
func (w *Wrapper) PreprocessSource() ([]byte, error) {
	resolved, err := w.ResolveArgs()
	if err != nil {
		return nil, err
	}
	cmd := append(args.List{}, resolved...).Append("-ppo", "-fe-")
	result, err := w.Executor.Run(w.Cfg.RunDir(), w.Cfg.RunEnv(), cmd)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("ticc: preprocessing failed with exit %d: %s", result.ExitCode, result.Stderr)
	}
	return result.Stdout, nil
}

// expandCmdFiles resolves any "--cmd_file=<path>" or "-@<path>" token, cl6x's own
// response-file syntax, into the tokens read from the named file. Unlike gcc's @file
// convention this one uses an explicit flag prefix, so it is handled separately from
// args.ExpandResponseFiles.
func expandCmdFiles(argv args.List) (args.List, error) {
	out := make(args.List, 0, len(argv))
	for _, arg := range argv {
		path, ok := cmdFilePath(arg)
		if !ok {
			out = append(out, arg)
			continue
		}
		contents, err := readCmdFile(path)
		if err != nil {
			return nil, &args.ErrBadResponseFile{Path: path, Err: err}
		}
		out = append(out, contents...)
	}
	return out, nil
}

func readCmdFile(path string) (args.List, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tokens, err := shlex.Split(string(contents))
	if err != nil {
		return nil, err
	}
	return args.List(tokens), nil
}

func cmdFilePath(arg string) (string, bool) {
	if strings.HasPrefix(arg, "--cmd_file=") {
		return strings.TrimPrefix(arg, "--cmd_file="), true
	}
	if strings.HasPrefix(arg, "-@") && len(arg) > 2 {
		return arg[2:], true
	}
	return "", false
}

func objectFile(argv args.List) (string, bool) {
	for i, arg := range argv {
		if (arg == "-o" || arg == "-fo") && i+1 < len(argv) {
			return argv[i+1], true
		}
	}
	return "", false
}
