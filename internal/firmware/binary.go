package firmware

import (
	"os"
	"os/exec"
	"path/filepath"
)

// defaultLookPath and defaultStatPath are the production os/exec- and
// os-backed implementations; Updater.lookPath/statPath are swapped for
// fakes in tests. No pack example pulls in a dedicated "which"-style
// library for this (the original used the `which` crate, but spawning and
// locating external binaries is squarely os/exec's job in Go, and nothing
// in the retrieved corpus reaches past it for that concern).
func defaultLookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func defaultStatPath(path string) error {
	_, err := os.Stat(path)
	return err
}

// resolveBinary implements spec.md §4.6's binary resolution: prefer an
// executable named tool on the search path, fall back to
// <cwd>/utils/<tool>, otherwise ErrMissingTool.
func (u *Updater) resolveBinary(tool string) (string, error) {
	if path, err := u.lookPath(tool); err == nil {
		return path, nil
	}

	fallback := filepath.Join(u.toolsDir, tool)
	if err := u.statPath(fallback); err == nil {
		return fallback, nil
	}

	return "", ErrMissingTool{Tool: tool}
}
