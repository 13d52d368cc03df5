package firmware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultManifestCoversAllFamilies(t *testing.T) {
	assert := assert.New(t)
	m := DefaultManifest()

	assert.Contains(m, FamilyPing1DRev1)
	assert.Contains(m, FamilyPing1DRev2)
	assert.Contains(m, FamilyPing360)
	assert.Equal("Ping-V3.29_auto.hex", m[FamilyPing1DRev1].File)
	assert.Equal("Ping2-V1.1.0_auto.hex", m[FamilyPing1DRev2].File)
	assert.Equal("Ping360-V3.3.8_auto.hex", m[FamilyPing360].File)
}

func TestCachePathUsesFamilyDirectory(t *testing.T) {
	u := New(Config{CacheDir: "firmwares"})

	path, err := u.cachePath(FamilyPing360)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("firmwares", "ping360", "Ping360-V3.3.8_auto.hex"), path)
}

func TestEnsureCachedReturnsExistingFileWithoutFetching(t *testing.T) {
	dir := t.TempDir()
	cacheFile := filepath.Join(dir, "ping360", "Ping360-V3.3.8_auto.hex")
	require.NoError(t, os.MkdirAll(filepath.Dir(cacheFile), 0o755))
	require.NoError(t, os.WriteFile(cacheFile, []byte("existing"), 0o644))

	fetchCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetchCalled = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	manifest := DefaultManifest()
	entry := manifest[FamilyPing360]
	entry.URL = server.URL
	manifest[FamilyPing360] = entry

	u := New(Config{CacheDir: dir, Manifest: manifest})

	path, err := u.ensureCached(context.Background(), FamilyPing360)
	require.NoError(t, err)
	assert.Equal(t, cacheFile, path)
	assert.False(t, fetchCalled)
}

func TestEnsureCachedFetchesAndWritesAtomically(t *testing.T) {
	dir := t.TempDir()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "firmware-bytes")
	}))
	defer server.Close()

	manifest := DefaultManifest()
	entry := manifest[FamilyPing360]
	entry.URL = server.URL
	manifest[FamilyPing360] = entry

	u := New(Config{CacheDir: dir, Manifest: manifest})

	path, err := u.ensureCached(context.Background(), FamilyPing360)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "firmware-bytes", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestEnsureCachedLeavesNoFileOnFetchFailure(t *testing.T) {
	dir := t.TempDir()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	manifest := DefaultManifest()
	entry := manifest[FamilyPing360]
	entry.URL = server.URL
	manifest[FamilyPing360] = entry

	u := New(Config{CacheDir: dir, Manifest: manifest})

	_, err := u.ensureCached(context.Background(), FamilyPing360)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "ping360", "Ping360-V3.3.8_auto.hex"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}
