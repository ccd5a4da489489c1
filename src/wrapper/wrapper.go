// Package wrapper defines the capability-hooks contract (spec C5) each tool-specific
// wrapper implements, plus a Base type supplying the spec-mandated default for every hook
// so concrete wrappers only override what actually differs — the same relationship the
// original implementation gives program_wrapper_t over gcc_wrapper_t.
package wrapper

import (
	"github.com/LilithGames/buildcache/src/args"
	"github.com/LilithGames/buildcache/src/files"
	"github.com/LilithGames/buildcache/src/process"
)

// A Wrapper classifies and mediates a single tool invocation. Every hook has a sensible
// default supplied by Base; concrete wrappers embed Base and override only the hooks whose
// default is wrong for that tool.
type Wrapper interface {
	// CanHandleCommand reports whether this wrapper claims the invocation it was
	// constructed with. Has no default — every concrete wrapper must implement it.
	CanHandleCommand() bool

	// ExePath returns the resolved absolute path of the tool executable being wrapped,
	// used both as ProgramID's default hash target and as the program-ID cache's key.
	ExePath() string

	// ResolveArgs expands response files and normalizes the raw argument vector.
	ResolveArgs() (args.List, error)

	// Capabilities publishes the capability strings this wrapper supports.
	Capabilities() []string

	// BuildFiles returns the table of files the tool is expected to produce.
	BuildFiles() files.Table

	// ProgramID returns a string identifying the tool's version/identity.
	ProgramID() (string, error)

	// RelevantArguments returns the subset of resolved arguments that affect output given
	// the preprocessed source — used as base-hash key material in preprocessor mode.
	RelevantArguments() args.List

	// RelevantEnvVars returns the environment variables that affect output.
	RelevantEnvVars() map[string]string

	// InputFiles returns the input file paths hashed directly in direct mode. An empty
	// result disables direct mode for this invocation regardless of capabilities.
	InputFiles() []string

	// PreprocessSource returns the preprocessor output used as preprocessor-mode key
	// material.
	PreprocessSource() ([]byte, error)

	// ImplicitInputFiles returns dependency files (e.g. headers) discovered only by
	// preprocessing, stamped into a direct-mode cache entry for later validation.
	ImplicitInputFiles() []string

	// RunForMiss executes the tool on a cache miss.
	RunForMiss() (process.Result, error)
}

// Config is the minimal configuration view Base needs: the working directory and
// environment to run the tool under, and any prefix to prepend to the command line (e.g. a
// sandboxing wrapper binary).
type Config interface {
	RunDir() string
	RunEnv() []string
	RunPrefix() []string
}

// Base implements every Wrapper hook with the default given in spec.md's hook table.
// Concrete wrappers embed Base by value and override individual methods; CanHandleCommand
// has no meaningful default and must always be overridden.
type Base struct {
	UnresolvedArgs args.List
	Exe            string
	Cfg            Config
	Executor       *process.Executor
}

// ExePath returns the resolved executable path this wrapper was constructed with.
func (b Base) ExePath() string { return b.Exe }

// ResolveArgs returns an unchanged copy of UnresolvedArgs; wrappers that need response-file
// expansion or normalization override this.
func (b Base) ResolveArgs() (args.List, error) {
	return b.UnresolvedArgs.Clone(), nil
}

// Capabilities publishes no capabilities by default.
func (b Base) Capabilities() []string { return nil }

// BuildFiles declares no expected output files by default.
func (b Base) BuildFiles() files.Table { return nil }

// ProgramID hashes the executable file's contents; this is expensive relative to most
// wrappers' actual version strings, which is exactly why src/prgid exists to memoize it.
func (b Base) ProgramID() (string, error) {
	d, err := programIDDigest(b.Exe)
	if err != nil {
		return "", err
	}
	return d, nil
}

// RelevantArguments treats every resolved argument as relevant by default — the safest,
// most conservative choice, since omitting a relevant argument causes false cache hits.
func (b Base) RelevantArguments() args.List {
	resolved, _ := b.ResolveArgs()
	return resolved
}

// RelevantEnvVars declares no environment variables relevant by default.
func (b Base) RelevantEnvVars() map[string]string { return nil }

// InputFiles declares no direct-mode input files by default, which disables direct mode
// for wrappers that don't override it.
func (b Base) InputFiles() []string { return nil }

// PreprocessSource returns no preprocessor output by default.
func (b Base) PreprocessSource() ([]byte, error) { return nil, nil }

// ImplicitInputFiles declares no implicit inputs by default.
func (b Base) ImplicitInputFiles() []string { return nil }

// RunForMiss runs UnresolvedArgs under the configured prefix, in the configured directory
// and environment.
func (b Base) RunForMiss() (process.Result, error) {
	argv := args.List(b.Cfg.RunPrefix()).Append(b.UnresolvedArgs...)
	return b.Executor.Run(b.Cfg.RunDir(), b.Cfg.RunEnv(), argv)
}

// Factory constructs a Wrapper for a candidate invocation. Concrete wrapper packages
// register a Factory with a dispatch.Registry from their init() function.
type Factory func(exePath string, argv args.List, cfg Config, executor *process.Executor) Wrapper
