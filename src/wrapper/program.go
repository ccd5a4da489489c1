package wrapper

import (
	"github.com/LilithGames/buildcache/src/digest"
)

// programIDDigest hashes the executable file's contents and returns its hex digest,
// forming the default ProgramID for wrappers that don't query "--version" or similar.
func programIDDigest(exePath string) (string, error) {
	h := digest.New()
	if err := h.UpdateFile(exePath); err != nil {
		return "", err
	}
	return h.Sum().String(), nil
}
