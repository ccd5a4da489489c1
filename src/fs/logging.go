package fs

import (
	logger "github.com/LilithGames/buildcache/src/cli/logging"
)

var log = logger.Log
