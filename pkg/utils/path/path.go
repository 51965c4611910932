// Package path resolves user-given path strings into absolute paths.
package path

import (
	"os"
	"path/filepath"
	"strings"
)

const tilde = "~" + string(filepath.Separator)

func expandTilde(pathstring string) (string, error) {
	if !strings.HasPrefix(pathstring, tilde) {
		return pathstring, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, pathstring[len(tilde):]), nil
}

// Resolve makes pathstring absolute, expanding a leading "~/" to the
// user's home directory. Relative paths are taken from the working
// directory.
func Resolve(pathstring string) (string, error) {
	p, err := expandTilde(pathstring)
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

// ResolveAt is Resolve, but relative paths are taken from base instead
// of the working directory.
func ResolveAt(base string, pathstring string) (string, error) {
	p, err := expandTilde(pathstring)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	return filepath.Abs(filepath.Join(base, p))
}
