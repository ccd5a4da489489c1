// Package dispatch implements the wrapper dispatcher (spec C8/§4.8): resolving argv[0] to
// an executable path and finding the first registered wrapper willing to claim it. Concrete
// wrapper packages self-register with the default Registry from their init() function, the
// same driver-table idiom database/sql and image use for pluggable implementations.
package dispatch

import (
	"os/exec"

	"github.com/LilithGames/buildcache/src/args"
	"github.com/LilithGames/buildcache/src/process"
	"github.com/LilithGames/buildcache/src/wrapper"
)

// A Registry holds an ordered list of wrapper constructors. Order is registration order;
// the first Factory whose product claims the invocation wins.
type Registry struct {
	factories []wrapper.Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends f to the registry.
func (r *Registry) Register(f wrapper.Factory) {
	r.factories = append(r.factories, f)
}

// Dispatch resolves argv[0] to an absolute path where possible and returns the first
// registered wrapper that claims the invocation. The second return is false if argv is
// empty or no registered wrapper claims it, in which case the caller should run the command
// directly, uncached.
func (r *Registry) Dispatch(argv args.List, cfg wrapper.Config, executor *process.Executor) (wrapper.Wrapper, bool) {
	if len(argv) == 0 {
		return nil, false
	}
	exePath := resolveExePath(argv[0])
	for _, factory := range r.factories {
		w := factory(exePath, argv, cfg, executor)
		if w.CanHandleCommand() {
			return w, true
		}
	}
	return nil, false
}

// resolveExePath resolves name to an absolute path via PATH lookup, falling back to the
// literal argument unresolved so a tool that isn't itself PATH-resolvable (e.g. invoked by
// its own absolute path already) can still be classified.
func resolveExePath(name string) string {
	if abs, err := exec.LookPath(name); err == nil {
		return abs
	}
	return name
}

// Default is the process-wide registry concrete wrapper packages register themselves with.
var Default = NewRegistry()

// Register adds f to Default. Called from concrete wrapper packages' init() functions.
func Register(f wrapper.Factory) {
	Default.Register(f)
}
