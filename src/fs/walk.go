package fs

import (
	"os"

	"github.com/karrick/godirwalk"
)

type Mode interface {
	IsDir() bool
	IsSymlink() bool
	IsRegular() bool

	ModeType() os.FileMode
}

type mode os.FileMode

func (m mode) IsDir() bool {
	return os.FileMode(m).IsDir()
}

func (m mode) IsRegular() bool {
	return os.FileMode(m).IsRegular()
}

func (m mode) IsSymlink() bool {
	return os.FileMode(m)&os.ModeSymlink != 0
}

func (m mode) ModeType() os.FileMode {
	return os.FileMode(m)
}

// WalkMode walks the tree rooted at rootPath, calling callback once per entry with a Mode
// describing its file type. Used by the dir cache to sum up the bytes it has stored on disk.
// N.B. This only includes the bits of the mode that determine the mode type, not the permissions.
func WalkMode(rootPath string, callback func(name string, mode Mode) error) error {
	// Compatibility with filepath.Walk which allows passing a file as the root argument.
	if info, err := os.Lstat(rootPath); err != nil {
		return err
	} else if !info.IsDir() {
		return callback(rootPath, mode(info.Mode()))
	}
	return godirwalk.Walk(rootPath, &godirwalk.Options{Callback: func(name string, info *godirwalk.Dirent) error {
		return callback(name, info)
	}})
}
