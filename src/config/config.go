// Package config implements the read-only configuration snapshot (spec C9) the pipeline
// consumes: cache behaviour flags, the cache backends to use, and program-ID cache tuning.
// Loaded from INI-style files with gcfg, following the same nested-struct-of-plain-fields
// convention the teacher uses for its own repo configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/gcfg.v1"

	logger "github.com/LilithGames/buildcache/src/cli/logging"
)

var log = logger.Log

// FileName is the name of the per-repo/per-tree config file, normally checked in.
const FileName = ".bcacheconfig"

// LocalFileName overrides FileName on the local machine and is not normally checked in.
const LocalFileName = ".bcacheconfig.local"

// MachineFileName holds machine-wide settings. It is layered first, so FileName and
// LocalFileName override it.
const MachineFileName = "/etc/bcacheconfig"

// A Configuration is the fully resolved set of options the pipeline and cache layer read.
// Every field mirrors an option named in spec.md §6 or an ambient-stack need (cache
// location, remote URL, verbosity, program-ID TTL); nothing here is mutated once loaded.
type Configuration struct {
	Cache struct {
		Dir             string
		HTTPUrl         string
		HTTPTimeout     int
		HardLinks       bool
		Compress        bool
		ReadOnly        bool
		TerminateOnMiss bool
		HashExtraFiles  []string
	}
	Direct struct {
		Enabled bool
	}
	ProgramID struct {
		TTLSeconds int
	}
	Log struct {
		Verbosity int
	}
	Run struct {
		Dir    string
		Prefix []string
	}
}

func readConfigFile(config *Configuration, filename string) error {
	if err := gcfg.ReadFileInto(config, filename); err != nil && os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	log.Debug("Reading config from %s...", filename)
	return nil
}

// DefaultConfiguration returns a Configuration seeded with the built-in defaults, before
// any config file is layered on top.
func DefaultConfiguration() *Configuration {
	config := Configuration{}
	config.Cache.Dir = ".bcache"
	config.Cache.HTTPTimeout = 5
	config.Cache.HardLinks = true
	config.Cache.Compress = false
	config.Cache.ReadOnly = false
	config.Cache.TerminateOnMiss = false
	config.Direct.Enabled = true
	config.ProgramID.TTLSeconds = 300
	config.Log.Verbosity = 1
	return &config
}

// ReadConfigFiles layers each named file's settings, in order, over the built-in defaults.
// A missing file is not an error; later files override earlier ones.
func ReadConfigFiles(filenames []string) (*Configuration, error) {
	config := DefaultConfiguration()
	for _, filename := range filenames {
		if err := readConfigFile(config, filename); err != nil {
			return config, fmt.Errorf("reading config %s: %w", filename, err)
		}
	}
	if config.Cache.Dir == "" {
		config.Cache.Dir = ".bcache"
	}
	return config, nil
}

// ProgramIDTTL returns the configured program-ID cache TTL as a time.Duration.
func (c *Configuration) ProgramIDTTL() time.Duration {
	return time.Duration(c.ProgramID.TTLSeconds) * time.Second
}

// HTTPTimeout returns the configured remote-cache request timeout as a time.Duration.
func (c *Configuration) HTTPTimeout() time.Duration {
	return time.Duration(c.Cache.HTTPTimeout) * time.Second
}

// DirectModeAllowed reports whether the configuration permits direct-mode capability
// activation, satisfying capabilities.ConfigView.
func (c *Configuration) DirectModeAllowed() bool {
	return c.Direct.Enabled
}

// HardLinksAllowed reports whether the configuration permits hard-link materialization,
// satisfying capabilities.ConfigView.
func (c *Configuration) HardLinksAllowed() bool {
	return c.Cache.HardLinks
}

// RunDir returns the directory the wrapped tool should be run in, satisfying
// wrapper.Config. An empty Run.Dir means the current working directory.
func (c *Configuration) RunDir() string {
	return c.Run.Dir
}

// RunEnv returns the environment the wrapped tool should be run under, satisfying
// wrapper.Config. bcache does not filter or rewrite the process environment; wrappers that
// need specific variables visible to the cache key say so via RelevantEnvVars instead.
func (c *Configuration) RunEnv() []string {
	return os.Environ()
}

// RunPrefix returns the argument tokens to prepend to the wrapped tool's command line,
// satisfying wrapper.Config. Empty by default; set Run.Prefix to route invocations through
// a sandboxing or remote-execution shim, the way the teacher's sandbox tool is invoked.
func (c *Configuration) RunPrefix() []string {
	return c.Run.Prefix
}

// AbsCacheDir returns the configured cache directory, resolved to an absolute path.
func (c *Configuration) AbsCacheDir() (string, error) {
	if filepath.IsAbs(c.Cache.Dir) {
		return c.Cache.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, c.Cache.Dir), nil
}
