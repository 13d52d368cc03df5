package firmware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ManifestEntry is one family's cached-firmware coordinates: the file name
// under CacheRoot/<family>/ and the HTTPS URL to fetch it from if absent.
type ManifestEntry struct {
	File string `yaml:"file"`
	URL  string `yaml:"url"`
}

// Manifest maps a firmware Family to its cache entry. Loaded from YAML via
// LoadManifest, or built in code via DefaultManifest.
type Manifest map[Family]ManifestEntry

// DefaultManifest returns the built-in family/file/url table of spec.md
// §4.6 and §6, the same defaults production config falls back to when no
// manifest file is configured.
func DefaultManifest() Manifest {
	return Manifest{
		FamilyPing1DRev1: {
			File: "Ping-V3.29_auto.hex",
			URL:  "https://raw.githubusercontent.com/bluerobotics/ping-viewer/master/firmware/ping1d/Ping-V3.29_auto.hex",
		},
		FamilyPing1DRev2: {
			File: "Ping2-V1.1.0_auto.hex",
			URL:  "https://raw.githubusercontent.com/bluerobotics/ping-viewer/master/firmware/ping2/Ping2-V1.1.0_auto.hex",
		},
		FamilyPing360: {
			File: "Ping360-V3.3.8_auto.hex",
			URL:  "https://raw.githubusercontent.com/bluerobotics/ping-viewer/master/firmware/ping360/Ping360-V3.3.8_auto.hex",
		},
	}
}

// LoadManifest reads a family/file/url table from a YAML file, the same
// gopkg.in/yaml.v2-backed loader style internal/config.Load uses for the
// service's own TOML config (different format, same decode-into-struct
// shape).
func LoadManifest(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read firmware manifest %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrapf(err, "parse firmware manifest %s", path)
	}
	return m, nil
}

// cachePath returns the expected on-disk path for family under the
// Updater's configured cache root: firmwares/<family>/<file>.
func (u *Updater) cachePath(family Family) (string, error) {
	entry, ok := u.manifest[family]
	if !ok {
		return "", ErrUnsupportedDevice{Reason: fmt.Sprintf("no manifest entry for firmware family %q", family)}
	}
	return filepath.Join(u.cacheDir, string(family), entry.File), nil
}

// ensureCached implements spec.md §4.6's firmware resolution: if the cache
// file is already present, return its path; otherwise create the parent
// directory and fetch the manifest URL over HTTPS, writing the body
// atomically so a failed fetch never leaves a partially-written file
// (spec.md §7's "Firmware fetch" error handling).
func (u *Updater) ensureCached(ctx context.Context, family Family) (string, error) {
	path, err := u.cachePath(family)
	if err != nil {
		return "", err
	}

	if statErr := u.statPath(path); statErr == nil {
		return path, nil
	}

	entry := u.manifest[family]
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", ErrProcess{Msg: errors.Wrap(err, "create firmware cache directory").Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.URL, nil)
	if err != nil {
		return "", ErrProcess{Msg: errors.Wrap(err, "build firmware fetch request").Error()}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", ErrProcess{Msg: errors.Wrap(err, "fetch firmware").Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrProcess{Msg: fmt.Sprintf("fetch firmware: unexpected status %s", resp.Status)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".firmware-*.tmp")
	if err != nil {
		return "", ErrProcess{Msg: errors.Wrap(err, "create firmware temp file").Error()}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", ErrProcess{Msg: errors.Wrap(err, "download firmware body").Error()}
	}
	if err := tmp.Close(); err != nil {
		return "", ErrProcess{Msg: errors.Wrap(err, "close firmware temp file").Error()}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return "", ErrProcess{Msg: errors.Wrap(err, "install cached firmware").Error()}
	}

	return path, nil
}

// resolveFirmwarePath implements spec.md §4.6: a caller-supplied path wins
// (already validated to exist by Update); otherwise resolve/fetch the cache
// entry for family.
func (u *Updater) resolveFirmwarePath(ctx context.Context, req Request) (string, error) {
	if req.FirmwarePath != "" {
		return req.FirmwarePath, nil
	}
	return u.ensureCached(ctx, req.Family)
}
