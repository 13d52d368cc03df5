package discovery

import (
	"context"
	"path/filepath"

	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// defaultSerialGlobs enumerates the device-node naming conventions the
// sonar family's USB-serial adapters show up under on Linux.
var defaultSerialGlobs = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
}

// defaultSerialBaudrate is the rate serial_discovery probes at before the
// transport layer's own fallback list kicks in (internal/transport/serial.go).
const defaultSerialBaudrate = 115200

// SerialDiscover implements spec.md §4.5 step 2's
// "serial_discovery(skip=used_serial_paths)": enumerate local serial device
// nodes, excluding any path already in skip. Exported so internal/manager's
// AutoCreate can drive the same probe directly (spec.md §4.4), without
// waiting on the discovery service's own scheduled tick.
func SerialDiscover(ctx context.Context, skip map[string]struct{}) ([]sonar.SourceSelection, error) {
	var sources []sonar.SourceSelection

	for _, pattern := range defaultSerialGlobs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, path := range matches {
			if _, excluded := skip[path]; excluded {
				continue
			}
			sources = append(sources, sonar.SerialSource(path, defaultSerialBaudrate))
		}
	}

	return sources, nil
}
