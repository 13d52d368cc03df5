package firmware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUpdater(lookPath func(string) (string, error), statPath func(string) error) *Updater {
	u := New(Config{ToolsDir: "utils"})
	u.lookPath = lookPath
	u.statPath = statPath
	return u
}

func TestResolveBinaryPrefersPath(t *testing.T) {
	u := newTestUpdater(
		func(name string) (string, error) { return "/usr/bin/" + name, nil },
		func(string) error { return errors.New("should not be consulted") },
	)

	path, err := u.resolveBinary("stm32flash")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/stm32flash", path)
}

func TestResolveBinaryFallsBackToToolsDir(t *testing.T) {
	u := newTestUpdater(
		func(string) (string, error) { return "", errors.New("not found") },
		func(path string) error {
			if path == "utils/stm32flash" {
				return nil
			}
			return errors.New("unexpected path")
		},
	)

	path, err := u.resolveBinary("stm32flash")
	require.NoError(t, err)
	assert.Equal(t, "utils/stm32flash", path)
}

func TestResolveBinaryMissing(t *testing.T) {
	u := newTestUpdater(
		func(string) (string, error) { return "", errors.New("not found") },
		func(string) error { return errors.New("not found") },
	)

	_, err := u.resolveBinary("stm32flash")
	require.Error(t, err)
	assert.Equal(t, ErrMissingTool{Tool: "stm32flash"}, err)
}
