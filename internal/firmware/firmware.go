// Package firmware implements the update subsystem of spec.md §4.6: resolve
// a flasher binary, ensure the target firmware file is cached locally, spawn
// the flasher with a bounded retry policy, parse its progress from stdout
// and stderr, and report progress/errors through an injected sink.
package firmware

import (
	"context"
	"fmt"

	kitlog "github.com/go-kit/kit/log"
	"github.com/google/uuid"

	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// Error is the firmware-update error taxonomy of spec.md §4.6, kept
// separate from pkg/sonar's device-request taxonomy since it describes
// flasher/tooling failures rather than device-manager ones.
type Error interface {
	error
	isFirmwareError()
}

// ErrMissingTool is returned when a flasher binary cannot be resolved on
// PATH or under the tools fallback directory.
type ErrMissingTool struct{ Tool string }

func (e ErrMissingTool) Error() string   { return fmt.Sprintf("firmware tool %q not found", e.Tool) }
func (ErrMissingTool) isFirmwareError()  {}

// ErrInvalidFirmwarePath is returned when a caller-supplied firmware path
// does not exist.
type ErrInvalidFirmwarePath struct{ Path string }

func (e ErrInvalidFirmwarePath) Error() string {
	return fmt.Sprintf("invalid firmware path %q", e.Path)
}
func (ErrInvalidFirmwarePath) isFirmwareError() {}

// ErrUnsupportedDevice is returned when the update is attempted against a
// source that cannot carry a firmware flash (a UDP source: flashing requires
// a raw serial link, spec.md §4.6).
type ErrUnsupportedDevice struct{ Reason string }

func (e ErrUnsupportedDevice) Error() string  { return e.Reason }
func (ErrUnsupportedDevice) isFirmwareError() {}

// ErrProcess wraps a subprocess spawn/wait failure, or an exhausted retry
// budget.
type ErrProcess struct{ Msg string }

func (e ErrProcess) Error() string  { return e.Msg }
func (ErrProcess) isFirmwareError() {}

// Family names the firmware families the manifest keys entries by,
// matching spec.md §4.6's (family, file, url) triples.
type Family string

const (
	FamilyPing1DRev1 Family = "ping1d"
	FamilyPing1DRev2 Family = "ping2"
	FamilyPing360    Family = "ping360"
)

// Request describes one flash operation, grounded in the original's
// ManualUpdate/FirmwareUpdateMode split: a caller either supplies an
// explicit firmware path or lets the updater resolve/fetch the cached
// default for the family.
type Request struct {
	Family       Family
	SerialPath   string
	FirmwarePath string // optional override; empty means "use the cache"
	DeviceID     uuid.UUID
}

// Result mirrors the original's FirmwareUpdateResult: the synchronous call
// only reports that the retry loop was started, since the flash itself runs
// in the background and reports via Sink.
type Result int

const (
	Started Result = iota
)

func (r Result) String() string {
	switch r {
	case Started:
		return "Started"
	default:
		return "Unknown"
	}
}

// Sink is the injected progress/error broadcaster of spec.md §4.6's
// "the updater calls an injected broadcaster send(message, device_id?)".
// Production wiring fans these out over the websocket server (out of scope
// per spec.md §1); tests and this package's zero value use a no-op.
type Sink interface {
	Send(message map[string]any, deviceID uuid.UUID)
}

// noopSink discards every event; the Updater's zero-value default.
type noopSink struct{}

func (noopSink) Send(map[string]any, uuid.UUID) {}

// Config configures an Updater.
type Config struct {
	Logger kitlog.Logger
	Sink   Sink

	// CacheDir roots the on-disk firmware cache layout (spec.md §6);
	// defaults to "firmwares".
	CacheDir string

	// ToolsDir is the fallback binary-resolution directory per spec.md
	// §4.6's "<cwd>/utils/<tool>"; defaults to "utils" under the process's
	// current working directory.
	ToolsDir string

	// Manifest overrides the built-in family/file/url table.
	Manifest Manifest

	// lookPath and statPath are overridden in tests; production callers
	// never set these.
	lookPath func(string) (string, error)
	statPath func(string) error
}

// Updater drives firmware updates for serial-attached devices.
type Updater struct {
	logger   kitlog.Logger
	sink     Sink
	cacheDir string
	toolsDir string
	manifest Manifest
	lookPath func(string) (string, error)
	statPath func(string) error
}

// New constructs an Updater.
func New(cfg Config) *Updater {
	logger := cfg.Logger
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = noopSink{}
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = "firmwares"
	}
	toolsDir := cfg.ToolsDir
	if toolsDir == "" {
		toolsDir = "utils"
	}
	manifest := cfg.Manifest
	if manifest == nil {
		manifest = DefaultManifest()
	}
	lookPath := cfg.lookPath
	if lookPath == nil {
		lookPath = defaultLookPath
	}
	statPath := cfg.statPath
	if statPath == nil {
		statPath = defaultStatPath
	}

	return &Updater{
		logger:   logger,
		sink:     sink,
		cacheDir: cacheDir,
		toolsDir: toolsDir,
		manifest: manifest,
		lookPath: lookPath,
		statPath: statPath,
	}
}

// sourceSerialPath rejects UDP sources per spec.md §4.6's "UDP sources are
// rejected for firmware flashing: flashing requires a raw serial link."
func sourceSerialPath(source sonar.SourceSelection) (string, error) {
	if source.Kind != sonar.SourceSerial {
		return "", ErrUnsupportedDevice{Reason: "firmware flashing requires a serial source"}
	}
	return source.Path, nil
}

// Update starts the appropriate flasher orchestration for req.Family in the
// background and returns once the retry loop has been spawned; completion is
// reported through onDone and, continuously, through the Sink.
func (u *Updater) Update(ctx context.Context, source sonar.SourceSelection, req Request, onDone func(success bool)) (Result, error) {
	serialPath, err := sourceSerialPath(source)
	if err != nil {
		return 0, err
	}
	req.SerialPath = serialPath

	if req.FirmwarePath != "" {
		if statErr := u.statPath(req.FirmwarePath); statErr != nil {
			return 0, ErrInvalidFirmwarePath{Path: req.FirmwarePath}
		}
	}

	switch req.Family {
	case FamilyPing1DRev1, FamilyPing1DRev2:
		return u.updatePing1D(ctx, req, onDone)
	case FamilyPing360:
		return u.updatePing360(ctx, req, onDone)
	default:
		return 0, ErrUnsupportedDevice{Reason: fmt.Sprintf("unknown firmware family %q", req.Family)}
	}
}

func (u *Updater) progress(percent float64, deviceID uuid.UUID) {
	msg := map[string]any{
		"type":    "firmware_progress",
		"percent": percent,
	}
	if percent >= 100 {
		msg["status"] = "completed"
	}
	u.sink.Send(msg, deviceID)
}

func (u *Updater) errorEvent(message string, deviceID uuid.UUID) {
	u.sink.Send(map[string]any{
		"type":    "firmware_progress",
		"status":  "error",
		"message": message,
	}, deviceID)
}
