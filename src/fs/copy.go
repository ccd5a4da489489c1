package fs

import (
	"os"
)

// CopyOrLinkFile either copies or hardlinks a file based on the link argument.
// Falls back to a copy if link fails and fallback is true.
func CopyOrLinkFile(from, to string, fromMode, toMode os.FileMode, link, fallback bool) error {
	if link {
		if (fromMode & os.ModeSymlink) != 0 {
			// Don't try to hard-link to a symlink, that doesn't work reliably across all platforms.
			// Instead recreate an equivalent symlink in the new location.
			dest, err := os.Readlink(from)
			if err != nil {
				return err
			}
			return os.Symlink(dest, to)
		}
		if err := os.Link(from, to); err == nil || !fallback {
			return err
		}

		// Linking would ignore toMode, using the same mode as the from file. We should make the fallback work the same
		// here.
		info, err := os.Lstat(from)
		if err != nil {
			return err
		}
		toMode = info.Mode()
	}
	return CopyFile(from, to, toMode)
}
