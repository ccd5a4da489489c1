// Command bcache is the wrapper binary described by spec.md §6: invoked either directly as
// "bcache <tool> <args...>" or by a symlink whose own basename names the tool, it dispatches
// to a registered Wrapper, runs the pipeline, and exits with the tool's own exit code.
package main

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/LilithGames/buildcache/src/args"
	"github.com/LilithGames/buildcache/src/cache"
	"github.com/LilithGames/buildcache/src/cli"
	logger "github.com/LilithGames/buildcache/src/cli/logging"
	"github.com/LilithGames/buildcache/src/config"
	"github.com/LilithGames/buildcache/src/dispatch"
	"github.com/LilithGames/buildcache/src/pipeline"
	"github.com/LilithGames/buildcache/src/prgid"
	"github.com/LilithGames/buildcache/src/process"

	// Concrete wrappers self-register with dispatch.Default from their init() functions;
	// importing them for side effect is how the dispatcher learns about them at all.
	_ "github.com/LilithGames/buildcache/src/wrappers/gcc"
	_ "github.com/LilithGames/buildcache/src/wrappers/ticc"
)

var log = logger.Log

// bcacheOpts holds bcache's own overrides, parsed only when invoked by its own name (a
// symlink invocation leaves argv[0] as the tool name and carries no room for bcache's own
// flags).
type bcacheOpts struct {
	Verbosity  cli.Verbosity `short:"v" long:"verbosity" default:"-1" description:"Verbosity of bcache's own logging; overrides the config file if given."`
	ConfigFile string        `long:"config" description:"Extra config file layered over the usual .bcacheconfig discovery."`
}

func main() {
	os.Exit(run(os.Args))
}

// run implements the command-line surface of spec.md §6 and returns the process exit code.
// Split from main so tests can drive it without touching the real process' exit status.
func run(argv []string) int {
	opts := bcacheOpts{Verbosity: -1}
	tool, toolArgs, err := splitInvocation(argv, &opts)
	if err != nil {
		log.Error("bcache: %s", err)
		return 1
	}
	if tool == "" {
		log.Error("bcache: no tool given; invoke as 'bcache <tool> <args...>' or via a symlink named after the tool")
		return 1
	}
	invocation := args.List(append([]string{tool}, toolArgs...))

	files := configFiles()
	if opts.ConfigFile != "" {
		files = append(files, opts.ConfigFile)
	}
	cfg, err := config.ReadConfigFiles(files)
	if err != nil {
		log.Error("bcache: %s", err)
		return 1
	}
	verbosity := cli.Verbosity(cfg.Log.Verbosity)
	if opts.Verbosity >= 0 {
		verbosity = opts.Verbosity
	}
	cli.InitLogging(verbosity)

	store, err := buildStore(cfg)
	if err != nil {
		log.Error("bcache: failed to open cache: %s", err)
		return execUncached(invocation)
	}

	cacheDir, err := cfg.AbsCacheDir()
	if err != nil {
		log.Warning("bcache: failed to resolve cache directory, program-id cache disabled: %s", err)
		cacheDir = os.TempDir()
	}
	programIDs := prgid.Open(cacheDir)

	executor := process.New()
	w, ok := dispatch.Default.Dispatch(invocation, cfg, executor)
	if !ok {
		log.Debug("bcache: no wrapper claims %q, running directly", tool)
		return execUncached(invocation)
	}

	result, t := pipeline.Run(w, pipeline.Deps{Store: store, ProgramIDs: programIDs, Config: cfg})
	log.Debug("bcache: preprocess=%s run_for_miss=%s", t.Duration(pipeline.MarkPreprocess), t.Duration(pipeline.MarkRunForMiss))
	if !result.Handled {
		log.Debug("bcache: pipeline declined %q, running directly uncached", tool)
		return execUncached(invocation)
	}
	os.Stdout.Write(result.Stdout)
	os.Stderr.Write(result.Stderr)
	return result.ExitCode
}

// splitInvocation recovers the wrapped tool name and its arguments from argv. When bcache
// is invoked by its own name, argv[1:] is parsed for bcache's own flags (populating opts) up
// to the first non-option token, which names the tool; everything after that, flags
// included, passes through untouched. When invoked through a symlink whose basename already
// names the tool, argv[0] is the tool and no flag parsing of bcache's own options happens.
func splitInvocation(argv []string, opts *bcacheOpts) (tool string, toolArgs []string, err error) {
	if len(argv) == 0 {
		return "", nil, nil
	}
	if filepath.Base(argv[0]) != "bcache" {
		return argv[0], argv[1:], nil
	}
	_, extra, err := cli.ParseFlags("bcache", opts, argv[1:])
	if err != nil {
		return "", nil, err
	}
	if len(extra) == 0 {
		return "", nil, nil
	}
	return extra[0], extra[1:], nil
}

// configFiles returns the ordered list of config files to layer, machine-wide first, then
// per-repo, then the uncommitted local override, mirroring the priority spec.md §6 implies
// for a read-only configuration snapshot.
func configFiles() []string {
	return []string{
		config.MachineFileName,
		config.FileName,
		config.LocalFileName,
	}
}

// buildStore composes the configured cache backends into a single Store: the local
// directory cache always, plus a remote HTTP cache when one is configured.
func buildStore(cfg *config.Configuration) (cache.Store, error) {
	dir, err := cfg.AbsCacheDir()
	if err != nil {
		return nil, err
	}
	local, err := cache.NewDirCache(filepath.Join(dir, "objects"))
	if err != nil {
		return nil, err
	}
	if cfg.Cache.HTTPUrl == "" {
		return local, nil
	}
	remote := cache.NewHTTPCache(cfg.Cache.HTTPUrl, !cfg.Cache.ReadOnly, cfg.HTTPTimeout())
	return cache.Multiplex(local, remote), nil
}

// execUncached runs invocation directly with inherited standard streams and the current
// process' environment and working directory, propagating its exit code exactly. This is
// the degraded-but-correct fallback path of spec.md §7: no wrapper claimed the command, or
// the pipeline caught a failure and declined to handle it.
func execUncached(invocation args.List) int {
	cmd := exec.Command(invocation[0], invocation[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		log.Error("bcache: failed to run %s: %s", invocation[0], err)
		return 1
	}
	return 0
}
