// Package pipeline implements the orchestration state machine (spec C7): given a resolved
// wrapper instance, it computes the preprocessor-mode and (optionally) direct-mode cache
// keys, attempts a cache hit, and on miss runs the tool and records a new entry. This is
// the central algorithm the rest of the module exists to serve.
package pipeline

import (
	"path/filepath"
	"time"

	"github.com/LilithGames/buildcache/src/args"
	"github.com/LilithGames/buildcache/src/cache"
	logger "github.com/LilithGames/buildcache/src/cli/logging"
	"github.com/LilithGames/buildcache/src/config"
	"github.com/LilithGames/buildcache/src/digest"
	"github.com/LilithGames/buildcache/src/files"
	"github.com/LilithGames/buildcache/src/prgid"
	"github.com/LilithGames/buildcache/src/wrapper"
	"github.com/LilithGames/buildcache/src/wrapper/capabilities"
)

var log = logger.Log

// A Result is the outcome of one pipeline invocation. Handled is false when the pipeline
// gave up on a failure (a failing step, or a panic recovered at its outer boundary) and the
// caller should fall back to running the tool directly, uncached (spec.md §7's
// degraded-but-correct path).
type Result struct {
	Handled  bool
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Deps bundles the pipeline's external dependencies: the composed cache store, the
// program-ID memoization store, and the active configuration.
type Deps struct {
	Store      cache.Store
	ProgramIDs *prgid.Store
	Config     *config.Configuration
}

// Run executes the state machine of spec.md §4.7 against w, returning the outcome and the
// telemetry marks recorded along the way. Any panic escaping a wrapper hook is recovered at
// this single outer boundary and converted to an unhandled Result, exactly mirroring the
// original implementation's catch-all guard.
func Run(w wrapper.Wrapper, deps Deps) (result Result, t Telemetry) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered panic in pipeline: %v", r)
			result = Result{Handled: false}
		}
	}()
	result = run(w, deps, &t)
	return result, t
}

func run(w wrapper.Wrapper, deps Deps, t *Telemetry) Result {
	// Step 1: resolve args.
	var resolved args.List
	if err := t.mark(MarkResolveArgs, func() error {
		var err error
		resolved, err = w.ResolveArgs()
		return err
	}); err != nil {
		log.Debug("Resolving arguments failed, unhandled: %s", err)
		return Result{Handled: false}
	}

	// Step 2: capabilities.
	var published []string
	t.mark(MarkGetCapabilities, func() error {
		published = w.Capabilities()
		return nil
	})
	mask := capabilities.New(published, deps.Config)

	// Step 3: expected files.
	var expected files.Table
	t.mark(MarkGetBuildFiles, func() error {
		expected = w.BuildFiles()
		return nil
	})

	// Step 4: base hasher.
	h := digest.New()
	if err := t.mark(MarkHashExtraFiles, func() error {
		for _, path := range deps.Config.Cache.HashExtraFiles {
			if err := h.UpdateFile(path); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		log.Debug("Hashing extra files failed, unhandled: %s", err)
		return Result{Handled: false}
	}

	var programID string
	if err := t.mark(MarkGetPrgID, func() error {
		var err error
		programID, err = programIDCached(w, deps.ProgramIDs, deps.Config.ProgramIDTTL())
		return err
	}); err != nil {
		log.Debug("Getting program ID failed, unhandled: %s", err)
		return Result{Handled: false}
	}
	h.UpdateString(programID)

	var relevantArgs args.List
	t.mark(MarkFilterArgs, func() error {
		relevantArgs = w.RelevantArguments()
		return nil
	})
	h.UpdateStrings(relevantArgs)
	h.UpdateSortedEnv(w.RelevantEnvVars())

	// Step 5: direct-mode attempt.
	var directDigest digest.Digest
	if mask.DirectMode {
		if result, hit := attemptDirectMode(w, h, resolved, mask, expected, deps, t, &directDigest); hit {
			return result
		}
	}

	// Step 6: preprocessor mode.
	var preprocessed []byte
	if err := t.mark(MarkPreprocess, func() error {
		var err error
		preprocessed, err = w.PreprocessSource()
		if err != nil {
			return &ErrPreprocessFailed{Err: err}
		}
		return nil
	}); err != nil {
		log.Debug("Preprocessing failed, unhandled: %s", err)
		return Result{Handled: false}
	}
	h.Update(preprocessed)
	hash := h.Sum()

	// Step 7: primary lookup.
	entry, hit, err := deps.Store.Lookup(hash, expected, mask.HardLinks, mask.CreateTargetDirs)
	if err != nil {
		log.Warning("%s, treating as miss", &ErrStorageFault{Op: "lookup", Err: err})
		hit = false
	}
	if hit {
		if !directDigest.IsZero() {
			if err := deps.Store.AddDirect(directDigest, hash, w.ImplicitInputFiles()); err != nil {
				log.Warning("Failed to install direct-mode entry: %s", err)
			}
		}
		log.Info("Cache hit: %s", hash)
		return Result{Handled: true, ExitCode: entry.ExitCode, Stdout: entry.Stdout, Stderr: entry.Stderr}
	}

	// Step 8: miss handling.
	log.Info("Cache miss: %s", hash)
	if deps.Config.Cache.TerminateOnMiss {
		return Result{Handled: true, ExitCode: 1}
	}

	// Step 9: run the tool.
	var exitCode int
	var stdout, stderr []byte
	if err := t.mark(MarkRunForMiss, func() error {
		res, err := w.RunForMiss()
		if err != nil {
			return err
		}
		exitCode, stdout, stderr = res.ExitCode, res.Stdout, res.Stderr
		return nil
	}); err != nil {
		log.Debug("Running the tool failed to launch, unhandled: %s", err)
		return Result{Handled: false}
	}

	// Steps 10-11: insertion gate.
	if exitCode == 0 && !deps.Config.Cache.ReadOnly {
		compression := cache.None
		if deps.Config.Cache.Compress {
			compression = cache.All
		}
		newEntry := cache.Entry{Compression: compression, Stdout: stdout, Stderr: stderr, ExitCode: exitCode}
		if err := deps.Store.Add(hash, newEntry, expected, mask.HardLinks); err != nil {
			log.Warning("%s", &ErrStorageFault{Op: "add", Err: err})
		} else if !directDigest.IsZero() {
			if err := deps.Store.AddDirect(directDigest, hash, w.ImplicitInputFiles()); err != nil {
				log.Warning("Failed to install direct-mode entry: %s", err)
			}
		}
	}

	// Step 12: return.
	return Result{Handled: true, ExitCode: exitCode, Stdout: stdout, Stderr: stderr}
}

// attemptDirectMode computes the direct-mode digest and probes the cache for it. hit is
// true only when a servable direct-mode entry was actually found; on any other outcome
// (empty InputFiles, hashing failure, cache miss, storage fault) control falls through to
// preprocessor mode, with *directDigest left set whenever a digest was actually computed so
// the caller can opportunistically install it after a later hit or store.
func attemptDirectMode(w wrapper.Wrapper, base *digest.Hasher, resolved args.List, mask capabilities.Mask, expected files.Table, deps Deps, t *Telemetry, directDigest *digest.Digest) (Result, bool) {
	inputs := w.InputFiles()
	if len(inputs) == 0 {
		return Result{}, false
	}

	hd := base.Clone()
	hd.InjectSeparator()
	hd.UpdateStrings(resolved)

	if err := t.mark(MarkHashInputFiles, func() error {
		for _, input := range inputs {
			abs, err := filepath.Abs(input)
			if err != nil {
				return err
			}
			hd.UpdateString(abs)
			hd.InjectSeparator()
			if err := hd.UpdateFile(input); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		log.Debug("Direct-mode input hashing failed, falling back to preprocessor mode: %s", err)
		return Result{}, false
	}

	*directDigest = hd.Sum()
	entry, hit, err := deps.Store.LookupDirect(*directDigest, expected, mask.HardLinks, mask.CreateTargetDirs)
	if err != nil {
		log.Warning("%s, treating as miss", &ErrStorageFault{Op: "lookup_direct", Err: err})
		return Result{}, false
	}
	if !hit {
		return Result{}, false
	}
	log.Info("Direct-mode cache hit: %s", *directDigest)
	return Result{Handled: true, ExitCode: entry.ExitCode, Stdout: entry.Stdout, Stderr: entry.Stderr}, true
}

// programIDCached memoizes w.ProgramID() in the program-ID store, keyed by a fast
// non-cryptographic fingerprint of the tool executable's identity (path, size, mtime) so
// repeated invocations of the same compiler binary skip recomputing its (potentially
// expensive) program ID.
func programIDCached(w wrapper.Wrapper, store *prgid.Store, ttl time.Duration) (string, error) {
	key, err := prgid.ExecutableKey(w.ExePath())
	if err != nil {
		return w.ProgramID()
	}
	if value, ok := store.Get(key); ok {
		return value, nil
	}
	value, err := w.ProgramID()
	if err != nil {
		return "", err
	}
	store.Put(key, value, ttl)
	return value, nil
}
