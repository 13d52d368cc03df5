// Package discovery implements the free-standing discovery task of spec.md
// §4.5: a periodic sweep that probes for reachable devices, filters out ones
// already known, identifies the rest, and publishes their DeviceInfo for the
// Manager to adopt with a real Create call.
package discovery

import (
	"context"

	kitlog "github.com/go-kit/kit/log"
	"github.com/robfig/cron/v3"

	"github.com/bluerobotics-go/sonarfleetd/internal/common"
	"github.com/bluerobotics-go/sonarfleetd/internal/fanout"
	"github.com/bluerobotics-go/sonarfleetd/internal/hashid"
	"github.com/bluerobotics-go/sonarfleetd/internal/transport"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// PlatformProber is the optional platform-integration collaborator of
// spec.md §4.5 step 2. A nil Config.PlatformProbe leaves the core discovery
// loop unchanged, matching spec.md §9's "pluggable provider... core
// unchanged when it is absent."
type PlatformProber interface {
	Probe(ctx context.Context) ([]sonar.SourceSelection, error)
}

// Config configures a Service.
type Config struct {
	Logger kitlog.Logger

	// Schedule is a robfig/cron spec; defaults to "@every 30s" (spec.md
	// §4.5's 30-second cadence).
	Schedule string

	PlatformProbe PlatformProber

	// Open opens a transport stream for a candidate source. Defaults to
	// transport.Open.
	Open func(sonar.SourceSelection) (transport.Stream, error)

	// Resolve classifies an opened stream and fetches its properties,
	// mirroring manager's pre-spawn Create phase. Required.
	Resolve func(ctx context.Context, stream transport.Stream) (sonar.DeviceInfo, error)

	// NetworkDiscover performs the UDP broadcast autodiscovery sweep of
	// spec.md §4.5 step 2, returning any responders' sources. Defaults to
	// the built-in NetworkDiscover.
	NetworkDiscover func(ctx context.Context) ([]sonar.SourceSelection, error)

	// SerialDiscover enumerates local serial candidates not in skip,
	// per spec.md §4.5 step 2's serial_discovery(skip=...). Defaults to the
	// built-in SerialDiscover.
	SerialDiscover func(ctx context.Context, skip map[string]struct{}) ([]sonar.SourceSelection, error)

	// UsePlatformProbe, when true and PlatformProbe is non-nil, adds the
	// platform probe's candidates to every tick and suppresses the serial
	// sweep, matching discovery_service.rs: network discovery always runs,
	// the platform probe is additive when present, and serial discovery is
	// skipped only while the platform probe is in use.
	UsePlatformProbe bool
}

// Service is the discovery task. Construct with New and drive it with Run.
type Service struct {
	logger   kitlog.Logger
	schedule string

	platformProbe    PlatformProber
	usePlatformProbe bool
	open             func(sonar.SourceSelection) (transport.Stream, error)
	resolve          func(ctx context.Context, stream transport.Stream) (sonar.DeviceInfo, error)
	networkDiscover  func(ctx context.Context) ([]sonar.SourceSelection, error)
	serialDiscover   func(ctx context.Context, skip map[string]struct{}) ([]sonar.SourceSelection, error)

	output     *fanout.Bus[sonar.DeviceInfo]
	deviceKeys map[string]struct{}
	knownIn    chan []sonar.DeviceInfo
}

// New constructs a Service. cfg.Resolve must be non-nil.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "@every 30s"
	}
	open := cfg.Open
	if open == nil {
		open = transport.Open
	}
	networkDiscover := cfg.NetworkDiscover
	if networkDiscover == nil {
		networkDiscover = NetworkDiscover
	}
	serialDiscover := cfg.SerialDiscover
	if serialDiscover == nil {
		serialDiscover = SerialDiscover
	}

	return &Service{
		logger:           logger,
		schedule:         schedule,
		platformProbe:    cfg.PlatformProbe,
		usePlatformProbe: cfg.UsePlatformProbe,
		open:             open,
		resolve:          cfg.Resolve,
		networkDiscover:  networkDiscover,
		serialDiscover:   serialDiscover,
		output:           fanout.New[sonar.DeviceInfo](),
		deviceKeys:       make(map[string]struct{}),
		knownIn:          make(chan []sonar.DeviceInfo, common.DiscoveryKnownCapacity),
	}
}

// PublishKnownDevices feeds the Manager's current registry snapshot into the
// Service's non-blocking known-devices input (spec.md §4.5 step 1). A full
// channel drops the oldest pending snapshot, since only the latest matters.
func (s *Service) PublishKnownDevices(infos []sonar.DeviceInfo) {
	select {
	case s.knownIn <- infos:
	default:
		select {
		case <-s.knownIn:
		default:
		}
		select {
		case s.knownIn <- infos:
		default:
		}
	}
}

// Subscribe returns a channel of newly discovered DeviceInfo values, capacity
// common.DiscoveryOutputCapacity, for the Manager to adopt via Create.
func (s *Service) Subscribe() chan sonar.DeviceInfo {
	return s.output.Subscribe(common.DiscoveryOutputCapacity)
}

// Run drives the Service's cron-scheduled tick loop until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	defer s.output.Close()

	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() { s.tick(ctx) })
	if err != nil {
		return err
	}

	c.Start()
	defer c.Stop()

	common.Info(s.logger).Log("event", "discovery started", "schedule", s.schedule)
	<-ctx.Done()
	common.Info(s.logger).Log("event", "discovery stopping")
	return nil
}

// tick implements one iteration of spec.md §4.5's numbered steps.
func (s *Service) tick(ctx context.Context) {
	s.drainKnownDevices()

	candidates := s.buildCandidates(ctx)
	for _, candidate := range candidates {
		key := candidate.Key()
		if _, known := s.deviceKeys[key]; known {
			continue
		}

		info, err := s.createProbe(ctx, candidate)
		if err != nil {
			common.Warn(s.logger).Log("event", "discovery probe failed", "source", candidate.String(), "error", err)
			continue
		}

		common.Info(s.logger).Log("event", "discovered device", "id", info.ID, "source", candidate.String())
		s.output.Publish(info)
	}
}

// drainKnownDevices implements step 1: a non-blocking drain that, on update,
// rebuilds device_keys from scratch.
func (s *Service) drainKnownDevices() {
	select {
	case infos := <-s.knownIn:
		keys := make(map[string]struct{}, len(infos))
		for _, info := range infos {
			keys[info.Source.Key()] = struct{}{}
		}
		s.deviceKeys = keys
	default:
	}
}

// buildCandidates implements step 2. The platform probe (when enabled) and
// network discovery both always run; serial discovery only runs when the
// platform probe is not in use, matching discovery_service.rs's
// `#[cfg(not(feature = "blueos-extension"))]` gating of its own serial
// sweep.
func (s *Service) buildCandidates(ctx context.Context) []sonar.SourceSelection {
	var candidates []sonar.SourceSelection

	if s.usePlatformProbe && s.platformProbe != nil {
		sources, err := s.platformProbe.Probe(ctx)
		if err != nil {
			common.Warn(s.logger).Log("event", "platform probe failed", "error", err)
		} else {
			candidates = append(candidates, sources...)
		}
	}

	if sources, err := s.networkDiscover(ctx); err != nil {
		common.Warn(s.logger).Log("event", "network discovery failed", "error", err)
	} else {
		candidates = append(candidates, sources...)
	}

	if !(s.usePlatformProbe && s.platformProbe != nil) {
		skip := make(map[string]struct{}, len(s.deviceKeys))
		for key := range s.deviceKeys {
			skip[key] = struct{}{}
		}
		sources, err := s.serialDiscover(ctx, skip)
		if err != nil {
			common.Warn(s.logger).Log("event", "serial discovery failed", "error", err)
		} else {
			candidates = append(candidates, sources...)
		}
	}

	return candidates
}

// createProbe implements spec.md §4.5's "factory used here does not spawn an
// actor — it only produces a DeviceInfo": open, resolve, close.
func (s *Service) createProbe(ctx context.Context, source sonar.SourceSelection) (sonar.DeviceInfo, error) {
	stream, err := s.open(source)
	if err != nil {
		return sonar.DeviceInfo{}, err
	}
	defer stream.Close()

	info, err := s.resolve(ctx, stream)
	if err != nil {
		return sonar.DeviceInfo{}, err
	}

	info.ID = hashid.UUID(source)
	info.Source = source
	info.Status = sonar.Stopped
	return info, nil
}
