// Package manager implements the Device Manager of spec.md §4.4: a
// single-threaded event loop owning a keyed registry of device actors,
// reconciling status before each request the way the teacher's device
// manager guards its registry from its own goroutine only.
package manager

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bluerobotics-go/sonarfleetd/internal/common"
	"github.com/bluerobotics-go/sonarfleetd/internal/deviceactor"
	"github.com/bluerobotics-go/sonarfleetd/internal/discovery"
	"github.com/bluerobotics-go/sonarfleetd/internal/driver"
	"github.com/bluerobotics-go/sonarfleetd/internal/hashid"
	"github.com/bluerobotics-go/sonarfleetd/internal/transport"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// SampleSink is the injected collaborator a running device forwards its
// continuous-mode samples to (the websocket broadcaster in the original
// system). Production wiring supplies a real implementation; this module
// never implements one itself, per spec.md §6.
type SampleSink interface {
	Publish(deviceID uuid.UUID, sample driver.Sample)
}

// noopSink is the zero-value stand-in used when Config.Sink is nil.
type noopSink struct{}

func (noopSink) Publish(uuid.UUID, driver.Sample) {}

// CodecFactory builds the protocol-level request/response driver over an
// opened transport stream. This module never implements one itself — the
// real ping-protocol codec is an external collaborator per spec.md §1 — so
// production wiring (cmd/sonarsvc) must supply one.
type CodecFactory func(stream io.ReadWriteCloser) driver.PingTransport

// Config configures a Manager.
type Config struct {
	Logger    kitlog.Logger
	Listeners []Listener
	Sink      SampleSink
	// Open opens a transport stream for a source selection. Defaults to
	// transport.Open.
	Open func(sonar.SourceSelection) (transport.Stream, error)
	// Codec is required: see CodecFactory.
	Codec CodecFactory
}

type managerEnvelope struct {
	ctx     context.Context
	request sonar.Request
	respond chan<- managerResult
}

type managerResult struct {
	answer sonar.Answer
	err    error
}

// Manager is the Device Manager. Construct with New and drive it by calling
// Run in its own goroutine; every other method is safe to call concurrently
// because they only ever talk to Run through the mailbox.
type Manager struct {
	mailbox   chan managerEnvelope
	closed    chan struct{}
	logger    kitlog.Logger
	listeners []Listener
	sink      SampleSink
	open      func(sonar.SourceSelection) (transport.Stream, error)
	codec     CodecFactory

	registry *registry
}

// New constructs a Manager. cfg.Codec must be non-nil; everything else has a
// sane default.
func New(cfg Config) *Manager {
	open := cfg.Open
	if open == nil {
		open = transport.Open
	}
	sink := cfg.Sink
	if sink == nil {
		sink = noopSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	return &Manager{
		mailbox:   make(chan managerEnvelope, common.ManagerMailboxCapacity),
		closed:    make(chan struct{}),
		logger:    logger,
		listeners: cfg.Listeners,
		sink:      sink,
		open:      open,
		codec:     cfg.Codec,
		registry:  newRegistry(),
	}
}

// Submit sends req to the Manager's mailbox and waits for its Answer. It
// returns sonar.ErrMailboxClosed if the Manager has stopped.
func (m *Manager) Submit(ctx context.Context, req sonar.Request) (sonar.Answer, error) {
	respond := make(chan managerResult, 1)
	select {
	case m.mailbox <- managerEnvelope{ctx: ctx, request: req, respond: respond}:
	case <-m.closed:
		return sonar.Answer{}, sonar.ErrMailboxClosed{Msg: "manager"}
	case <-ctx.Done():
		return sonar.Answer{}, ctx.Err()
	}

	select {
	case result := <-respond:
		return result.answer, result.err
	case <-m.closed:
		return sonar.Answer{}, sonar.ErrMailboxClosed{Msg: "manager"}
	case <-ctx.Done():
		return sonar.Answer{}, ctx.Err()
	}
}

// Run is the Manager's single-threaded event loop. It returns when ctx is
// canceled, after which further Submit calls fail with ErrMailboxClosed.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.closed)
	common.Info(m.logger).Log("event", "manager started")

	for {
		select {
		case <-ctx.Done():
			common.Info(m.logger).Log("event", "manager stopping")
			return
		case env := <-m.mailbox:
			m.reconcileStatus()
			answer, err := m.handle(env.ctx, env.request)
			env.respond <- managerResult{answer: answer, err: err}
		}
	}
}

// reconcileStatus transitions every registered device whose actor goroutine
// has already exited to Stopped, per spec.md §4.4's "before handling each
// message" rule.
func (m *Manager) reconcileStatus() {
	m.registry.visitAll(func(e *entry) {
		select {
		case <-e.done:
			if e.info.Status != sonar.Stopped {
				e.info.Status = sonar.Stopped
				m.dispatch(Event{Type: EventStatusChanged, Device: e.info})
			}
		default:
		}
	})
}

func (m *Manager) handle(ctx context.Context, req sonar.Request) (sonar.Answer, error) {
	switch req.Command {
	case sonar.CmdCreate:
		return m.create(ctx, req.Source, req.DeviceSelection)
	case sonar.CmdAutoCreate:
		return m.autoCreate(ctx)
	case sonar.CmdDelete:
		return m.deleteDevice(req.ID)
	case sonar.CmdList:
		return m.list(), nil
	case sonar.CmdInfo:
		return m.info(req.ID)
	case sonar.CmdSearch:
		return sonar.Answer{}, sonar.ErrNotImplemented{Request: "Search"}
	case sonar.CmdGetDeviceHandler:
		return m.getDeviceHandler(req.ID)
	case sonar.CmdModifyDevice:
		return m.modifyDevice(req.ID, req.Modify)
	case sonar.CmdEnableContinuousMode:
		return m.enableContinuousMode(ctx, req.ID)
	case sonar.CmdDisableContinuousMode:
		return m.disableContinuousMode(ctx, req.ID)
	default:
		return sonar.Answer{}, sonar.ErrNotImplemented{Request: req.Command.String()}
	}
}

func (m *Manager) dispatch(e Event) {
	for _, listener := range m.listeners {
		listener(e)
	}
}

// create implements spec.md §4.4 Create.
func (m *Manager) create(ctx context.Context, source sonar.SourceSelection, selection sonar.DeviceSelection) (sonar.Answer, error) {
	id := hashid.UUID(source)
	if m.registry.has(id) {
		return sonar.Answer{}, sonar.ErrDeviceAlreadyExist{ID: id}
	}

	stream, err := m.open(source)
	if err != nil {
		return sonar.Answer{}, err
	}

	transportDriver := m.codec(stream)

	variant, resolved, err := m.buildVariant(ctx, transportDriver, selection)
	if err != nil {
		_ = stream.Close()
		return sonar.Answer{}, err
	}

	properties, err := fetchProperties(ctx, variant)
	if err != nil {
		_ = stream.Close()
		return sonar.Answer{}, err
	}

	a, handle := deviceactor.New(variant, stream, m.logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run()
	}()

	info := sonar.DeviceInfo{
		ID:         id,
		Source:     source,
		Status:     sonar.Running,
		DeviceType: resolved,
		Properties: &properties,
	}

	m.registry.add(id, &entry{info: info, handle: handle, done: done})
	m.dispatch(Event{Type: EventCreated, Device: info})
	common.Info(m.logger).Log("event", "device created", "id", id, "type", resolved)

	return m.enableContinuousMode(ctx, id)
}

// buildVariant resolves Auto to a concrete variant via TryUpgrade, per
// spec.md §4.4 step 3.
func (m *Manager) buildVariant(ctx context.Context, pt driver.PingTransport, selection sonar.DeviceSelection) (driver.Variant, sonar.DeviceSelection, error) {
	switch selection {
	case sonar.Ping1D:
		return driver.Variant{Ping1D: driver.NewPing1D(pt)}, sonar.Ping1D, nil
	case sonar.Ping360:
		return driver.Variant{Ping360: driver.NewPing360(pt)}, sonar.Ping360, nil
	case sonar.Common:
		return driver.Variant{Common: driver.NewCommon(pt)}, sonar.Common, nil
	default: // Auto
		base := driver.NewCommon(pt)
		var lastErr error
		for attempt := 0; attempt < common.UpgradeMaxAttempts; attempt++ {
			if attempt > 0 {
				if stopErr := driver.ForceStopContinuousMode(ctx, pt); stopErr != nil {
					common.Debug(m.logger).Log("event", "force stop continuous mode failed", "error", stopErr)
				}
				time.Sleep(common.UpgradeRetryDelay)
			}
			result, err := driver.TryUpgrade(ctx, base)
			if err != nil {
				lastErr = err
				continue
			}
			switch result {
			case driver.UpgradePing1D:
				return driver.Variant{Ping1D: driver.NewPing1D(pt)}, sonar.Ping1D, nil
			case driver.UpgradePing360:
				return driver.Variant{Ping360: driver.NewPing360(pt)}, sonar.Ping360, nil
			}
			lastErr = fmt.Errorf("could not classify device")
		}
		return driver.Variant{}, sonar.Auto, sonar.ErrDevice{Inner: lastErr}
	}
}

// fetchProperties fetches the resolved variant's properties, per spec.md
// §4.4 step 4.
func fetchProperties(ctx context.Context, variant driver.Variant) (sonar.DeviceProperties, error) {
	base := variant.Base()
	if base == nil {
		return sonar.DeviceProperties{}, nil
	}

	info, err := base.DeviceInformation(ctx)
	if err != nil {
		return sonar.DeviceProperties{}, err
	}
	version, err := base.ProtocolVersion(ctx)
	if err != nil {
		return sonar.DeviceProperties{}, err
	}
	commonProps := sonar.CommonProperties{DeviceInformation: info, ProtocolVersion: version}

	switch {
	case variant.Ping1D != nil:
		return sonar.DeviceProperties{Ping1D: &sonar.Ping1DProperties{Common: commonProps}}, nil
	case variant.Ping360 != nil:
		settings, err := variant.Ping360.DeviceData(ctx)
		if err != nil {
			return sonar.DeviceProperties{}, err
		}
		return sonar.DeviceProperties{Ping360: &sonar.Ping360Properties{
			Common:               commonProps,
			ContinuousModeConfig: settings,
		}}, nil
	default:
		return sonar.DeviceProperties{Common: &commonProps}, nil
	}
}

// autoCreate implements spec.md §4.4 AutoCreate: probe for serial and
// network sources not already registered, then Create each as Auto,
// collecting the successes and logging the failures. Grounded directly on
// the original's auto_create() (original_source/src/device/manager/mod.rs:449-481),
// which drives the same serial_discovery/network_discovery primitives
// discovery_service.rs exposes rather than waiting on an external caller to
// supply a source list.
func (m *Manager) autoCreate(ctx context.Context) (sonar.Answer, error) {
	skip := make(map[string]struct{})
	m.registry.visitAll(func(e *entry) {
		if e.info.Source.Kind == sonar.SourceSerial {
			skip[e.info.Source.Path] = struct{}{}
		}
	})

	var candidates []sonar.SourceSelection
	if sources, err := discovery.SerialDiscover(ctx, skip); err != nil {
		common.Warn(m.logger).Log("event", "auto-create serial discovery failed", "error", err)
	} else {
		candidates = append(candidates, sources...)
	}
	if sources, err := discovery.NetworkDiscover(ctx); err != nil {
		common.Warn(m.logger).Log("event", "auto-create network discovery failed", "error", err)
	} else {
		candidates = append(candidates, sources...)
	}

	var created []sonar.DeviceInfo
	for _, source := range candidates {
		if m.registry.has(hashid.UUID(source)) {
			continue
		}
		answer, err := m.create(ctx, source, sonar.Auto)
		if err != nil {
			common.Warn(m.logger).Log("event", "auto-create failed", "source", source.String(), "error", err)
			continue
		}
		created = append(created, answer.DeviceInfo...)
	}

	return sonar.Answer{Kind: sonar.AnswerDeviceInfoList, DeviceInfo: created}, nil
}

func (m *Manager) deleteDevice(id uuid.UUID) (sonar.Answer, error) {
	e, ok := m.registry.remove(id)
	if !ok {
		return sonar.Answer{}, sonar.ErrDeviceNotExist{ID: id}
	}
	e.handle.Close()
	m.dispatch(Event{Type: EventDeleted, Device: e.info})
	return sonar.Answer{Kind: sonar.AnswerDeviceInfoList, DeviceInfo: []sonar.DeviceInfo{e.info}}, nil
}

func (m *Manager) list() sonar.Answer {
	infos := make([]sonar.DeviceInfo, 0, m.registry.len())
	m.registry.visitAll(func(e *entry) { infos = append(infos, e.info) })
	return sonar.Answer{Kind: sonar.AnswerDeviceInfoList, DeviceInfo: infos}
}

func (m *Manager) info(id uuid.UUID) (sonar.Answer, error) {
	e, ok := m.registry.get(id)
	if !ok {
		return sonar.Answer{}, sonar.ErrDeviceNotExist{ID: id}
	}
	return sonar.Answer{Kind: sonar.AnswerDeviceInfoList, DeviceInfo: []sonar.DeviceInfo{e.info}}, nil
}

func (m *Manager) getDeviceHandler(id uuid.UUID) (sonar.Answer, error) {
	e, ok := m.registry.get(id)
	if !ok {
		return sonar.Answer{}, sonar.ErrDeviceNotExist{ID: id}
	}
	return sonar.Answer{Kind: sonar.AnswerInnerDeviceHandler, DeviceID: id, Handler: e.handle}, nil
}

// modifyDevice implements spec.md §4.4 ModifyDevice(id, Ip(new_ip)).
func (m *Manager) modifyDevice(id uuid.UUID, modify sonar.Modify) (sonar.Answer, error) {
	e, ok := m.registry.get(id)
	if !ok {
		return sonar.Answer{}, sonar.ErrDeviceNotExist{ID: id}
	}
	if e.info.Source.Kind != sonar.SourceUDP {
		return sonar.Answer{}, sonar.ErrOther{Msg: "ModifyDevice(Ip) is only defined for UDP sources"}
	}

	if err := sendModifyIPDatagram(e.info.Source.IP, modify.NewIP); err != nil {
		return sonar.Answer{}, errors.Wrap(err, "send SetSS1IP datagram")
	}

	return m.deleteDevice(id)
}

func sendModifyIPDatagram(currentIP string, newIP string) error {
	raddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", currentIP, common.ModifyIPCommandPort))
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Write([]byte(fmt.Sprintf(common.ModifyIPMessageFmt, newIP)))
	return err
}

// enableContinuousMode implements spec.md §4.4 EnableContinuousMode.
func (m *Manager) enableContinuousMode(ctx context.Context, id uuid.UUID) (sonar.Answer, error) {
	e, ok := m.registry.get(id)
	if !ok {
		return sonar.Answer{}, sonar.ErrDeviceNotExist{ID: id}
	}
	if e.info.Status != sonar.Running {
		return sonar.Answer{}, sonar.ErrDeviceStatus{Current: e.info.Status, ID: id}
	}

	if err := m.startVariantStreaming(ctx, e); err != nil {
		return sonar.Answer{}, err
	}

	samples, err := e.handle.Subscribe()
	if err != nil {
		return sonar.Answer{}, err
	}
	forwardCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go forwardSamples(forwardCtx, id, samples, m.sink)

	if err := e.handle.StartSampling(deviceactor.Period{Milliseconds: 200}); err != nil {
		cancel()
		return sonar.Answer{}, err
	}

	e.info.Status = sonar.ContinuousMode
	m.dispatch(Event{Type: EventStatusChanged, Device: e.info})

	return sonar.Answer{Kind: sonar.AnswerDeviceInfoList, DeviceInfo: []sonar.DeviceInfo{e.info}}, nil
}

// startVariantStreaming runs the variant's startup routine before sampling
// begins: Ping360 writes its stored continuous-mode settings and enables
// auto-transmit, Ping1D enables periodic distance, Common is a no-op.
func (m *Manager) startVariantStreaming(ctx context.Context, e *entry) error {
	switch {
	case e.info.DeviceType == sonar.Ping1D:
		resp, err := requestFor(ctx, e, driver.EnablePeriodicDistanceRequest(true))
		_ = resp
		return err
	case e.info.DeviceType == sonar.Ping360:
		settings := sonar.DefaultContinuousModeSettings()
		if e.info.Properties.Ping360 != nil {
			settings = e.info.Properties.Ping360.ContinuousModeConfig
		}
		if _, err := requestFor(ctx, e, driver.TransducerRequest(settings)); err != nil {
			return err
		}
		_, err := requestFor(ctx, e, driver.SetAutoTransmitRequest(true))
		return err
	default:
		return nil
	}
}

func requestFor(ctx context.Context, e *entry, req driver.PingRequest) (driver.PingResponse, error) {
	return e.handle.Request(ctx, req)
}

// disableContinuousMode implements spec.md §4.4 DisableContinuousMode.
func (m *Manager) disableContinuousMode(ctx context.Context, id uuid.UUID) (sonar.Answer, error) {
	e, ok := m.registry.get(id)
	if !ok {
		return sonar.Answer{}, sonar.ErrDeviceNotExist{ID: id}
	}
	if e.info.Status != sonar.ContinuousMode {
		return sonar.Answer{}, sonar.ErrDeviceStatus{Current: e.info.Status, ID: id}
	}

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if err := e.handle.StopSampling(); err != nil {
		return sonar.Answer{}, err
	}

	if err := m.stopVariantStreaming(ctx, e); err != nil {
		return sonar.Answer{}, err
	}

	e.info.Status = sonar.Running
	m.dispatch(Event{Type: EventStatusChanged, Device: e.info})

	return sonar.Answer{Kind: sonar.AnswerDeviceInfoList, DeviceInfo: []sonar.DeviceInfo{e.info}}, nil
}

func (m *Manager) stopVariantStreaming(ctx context.Context, e *entry) error {
	switch e.info.DeviceType {
	case sonar.Ping1D:
		_, err := requestFor(ctx, e, driver.EnablePeriodicDistanceRequest(false))
		return err
	case sonar.Ping360:
		if _, err := requestFor(ctx, e, driver.SetAutoTransmitRequest(false)); err != nil {
			return err
		}
		_, err := requestFor(ctx, e, driver.MotorOffRequest())
		return err
	default:
		return nil
	}
}

func forwardSamples(ctx context.Context, id uuid.UUID, samples <-chan driver.Sample, sink SampleSink) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			sink.Publish(id, sample)
		}
	}
}
