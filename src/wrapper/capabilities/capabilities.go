// Package capabilities derives the four-flag capability mask (spec §3) that a wrapper's
// published capability strings are reduced to, once masked against user configuration.
package capabilities

import (
	logger "github.com/LilithGames/buildcache/src/cli/logging"
)

var log = logger.Log

// Capability string names a wrapper may publish from its Capabilities() hook.
const (
	CreateTargetDirs = "create_target_dirs"
	DirectMode       = "direct_mode"
	ForceDirectMode  = "force_direct_mode"
	HardLinks        = "hard_links"
)

// ConfigView is the subset of configuration Mask needs to gate capabilities. Kept as a
// small local interface rather than importing src/config directly, so this package has no
// dependency on the configuration file format.
type ConfigView interface {
	DirectModeAllowed() bool
	HardLinksAllowed() bool
}

// A Mask is the resolved, per-invocation capability set: which behaviours are actually
// active, after intersecting what the wrapper publishes with what configuration permits.
type Mask struct {
	CreateTargetDirs bool
	DirectMode       bool
	ForceDirectMode  bool
	HardLinks        bool
}

// New builds a Mask from the capability strings a wrapper publishes and the active
// configuration view. A capability absent from published is never active regardless of
// configuration; a capability present but disabled in configuration is active only if
// ForceDirectMode is also published (direct mode only — the one capability with a force
// override, which turns direct mode on unconditionally, regardless of configuration).
// Unknown strings are logged at ERROR and dropped.
func New(published []string, cfg ConfigView) Mask {
	var m Mask
	for _, cap := range published {
		switch cap {
		case CreateTargetDirs:
			m.CreateTargetDirs = true
		case DirectMode:
			m.DirectMode = cfg.DirectModeAllowed()
		case ForceDirectMode:
			m.ForceDirectMode = true
		case HardLinks:
			m.HardLinks = cfg.HardLinksAllowed()
		default:
			log.Error("Unknown capability %q published by wrapper, ignoring", cap)
		}
	}
	if m.ForceDirectMode {
		m.DirectMode = true
	}
	return m
}
