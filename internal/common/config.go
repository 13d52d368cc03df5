package common

import "time"

// Config is the root, TOML-decoded service configuration. The shape mirrors
// the teacher's internal/common.Config: a handful of sub-sections, each
// owned by the package that cares about it, decoded once at startup.
type Config struct {
	Logging   LoggingConfig   `toml:"Logging"`
	Discovery DiscoveryConfig `toml:"Discovery"`
	Firmware  FirmwareConfig  `toml:"Firmware"`
}

// LoggingConfig controls the ambient logger.
type LoggingConfig struct {
	Level string `toml:"Level"`
}

// DiscoveryConfig controls the discovery service's cadence and whether the
// optional platform-integration probe is consulted.
type DiscoveryConfig struct {
	// IntervalSeconds overrides DiscoveryInterval when nonzero.
	IntervalSeconds int  `toml:"IntervalSeconds"`
	PlatformProbe   bool `toml:"PlatformProbe"`
}

// Interval resolves the configured discovery cadence, falling back to the
// spec.md §4.5 default.
func (d DiscoveryConfig) Interval() time.Duration {
	if d.IntervalSeconds <= 0 {
		return DiscoveryInterval
	}
	return time.Duration(d.IntervalSeconds) * time.Second
}

// FirmwareConfig controls where flasher binaries and cached firmware files
// are resolved from.
type FirmwareConfig struct {
	CacheDir     string `toml:"CacheDir"`
	ManifestPath string `toml:"ManifestPath"`
	ToolsDir     string `toml:"ToolsDir"`
}

// Defaults returns a Config with every spec-mandated default value filled
// in, the way jduranf-device-sdk-go's loader applies its TOML decode on top
// of zero-valued defaults.
func Defaults() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Discovery: DiscoveryConfig{
			IntervalSeconds: int(DiscoveryInterval / time.Second),
		},
		Firmware: FirmwareConfig{
			CacheDir: FirmwareCacheRoot,
			ToolsDir: "utils",
		},
	}
}
