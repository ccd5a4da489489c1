// Package cli contains process-wide concerns: logging setup and signal handling.
// It deliberately stays small since every other package depends on it.
package cli

import (
	"os"

	clilogging "github.com/peterebden/go-cli-init/v5/logging"
	"github.com/peterebden/go-deferred-regex"
	"golang.org/x/term"
	"gopkg.in/op/go-logging.v1"

	logger "github.com/LilithGames/buildcache/src/cli/logging"
)

var log = logger.Log

// StdErrIsATerminal is true if the process' stderr is an interactive TTY.
var StdErrIsATerminal = IsATerminal(os.Stderr)

// StripAnsi is a regex to find & replace ANSI console escape sequences.
var StripAnsi = deferredregex.DeferredRegex{Re: "\x1b[^m]+m"}

// A Verbosity is used as a flag to define logging verbosity.
type Verbosity int

// MinVerbosity and MaxVerbosity bound the -v flag, re-exported from go-cli-init so bcache's
// own flag validation stays consistent with the verbosity conventions used elsewhere in the
// ecosystem this module was drawn from.
const (
	MinVerbosity = Verbosity(clilogging.MinVerbosity)
	MaxVerbosity = Verbosity(clilogging.MaxVerbosity)
)

// InitLogging initialises the process-wide logging backend at the given verbosity.
// 0 is warnings and above; each increment enables one more level of detail down to DEBUG.
func InitLogging(verbosity Verbosity) {
	if verbosity < MinVerbosity {
		verbosity = MinVerbosity
	} else if verbosity > MaxVerbosity {
		verbosity = MaxVerbosity
	}
	level := logging.WARNING + logging.Level(verbosity)
	if level < logging.CRITICAL {
		level = logging.CRITICAL
	} else if level > logging.DEBUG {
		level = logging.DEBUG
	}
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), logFormatter(StdErrIsATerminal))
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)
}

func logFormatter(coloured bool) logging.Formatter {
	formatStr := "%{time:15:04:05.000} %{level:7s} %{module}: %{message}"
	if coloured {
		formatStr = "%{color}" + formatStr + "%{color:reset}"
	}
	return logging.MustStringFormatter(formatStr)
}

// HTTPLogWrapper adapts a go-logging logger to retryablehttp's LeveledLogger interface,
// so the HTTP cache backend's retry logging goes through the same pipe as everything else.
type HTTPLogWrapper struct {
	Log *logging.Logger
}

// Error logs at error level.
func (w *HTTPLogWrapper) Error(msg string, keysAndValues ...interface{}) {
	w.Log.Errorf("%v: %v", msg, keysAndValues)
}

// Info logs at info level.
func (w *HTTPLogWrapper) Info(msg string, keysAndValues ...interface{}) {
	w.Log.Infof("%v: %v", msg, keysAndValues)
}

// Debug logs at debug level.
func (w *HTTPLogWrapper) Debug(msg string, keysAndValues ...interface{}) {
	w.Log.Debugf("%v: %v", msg, keysAndValues)
}

// Warn logs at warning level.
func (w *HTTPLogWrapper) Warn(msg string, keysAndValues ...interface{}) {
	w.Log.Warningf("%v: %v", msg, keysAndValues)
}

// IsATerminal returns true if the given file is an interactive TTY.
func IsATerminal(file *os.File) bool {
	return term.IsTerminal(int(file.Fd()))
}
