// Package deviceactor implements the per-device actor of spec.md §4.3: a
// single-threaded loop owning one transport+driver, serializing requests
// from a bounded mailbox, with an optional internal sampling loop that
// publishes periodic samples to subscribers while continuous mode runs.
package deviceactor

import (
	"context"
	"io"
	"time"

	kitlog "github.com/go-kit/kit/log"

	"github.com/bluerobotics-go/sonarfleetd/internal/common"
	"github.com/bluerobotics-go/sonarfleetd/internal/driver"
	"github.com/bluerobotics-go/sonarfleetd/internal/fanout"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// Handle is the sender half of an actor's mailbox: the only thing the
// Manager and facade hold onto, never the actor itself (spec.md §9 "Cyclic
// handles").
type Handle struct {
	pingCh      chan pingEnvelope
	upgradeCh   chan upgradeEnvelope
	subscribeCh chan subscribeEnvelope
	controlCh   chan controlEnvelope
}

// sendOrMailboxClosed recovers a send-on-closed-channel panic into
// sonar.ErrMailboxClosed. This covers the race spec.md §4.7 implies between
// a facade's GetDeviceHandler and its follow-up direct send: Delete can
// close the handle in between, and Go (unlike a tokio mpsc) panics rather
// than returning an error on a closed-channel send.
func sendOrMailboxClosed(send func() bool) (sent bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = sonar.ErrMailboxClosed{Msg: "device actor mailbox closed"}
		}
	}()
	return send(), nil
}

// Request sends a variant-specific request and waits for its answer, or a
// sonar.ErrDevice wrapping the transport/protocol failure. It never returns
// mailbox-closed as a special case to the caller beyond sonar.ErrMailboxClosed,
// per spec.md §4.7.
func (h Handle) Request(ctx context.Context, req driver.PingRequest) (driver.PingResponse, error) {
	respond := make(chan pingResult, 1)
	sent, err := sendOrMailboxClosed(func() bool {
		select {
		case h.pingCh <- pingEnvelope{ctx: ctx, request: req, respond: respond}:
			return true
		case <-ctx.Done():
			return false
		}
	})
	if err != nil {
		return nil, err
	}
	if !sent {
		return nil, ctx.Err()
	}

	select {
	case result := <-respond:
		return result.response, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryUpgrade asks the actor to probe and classify its device, used only
// during Create per spec.md §4.3.
func (h Handle) TryUpgrade(ctx context.Context) (driver.UpgradeResult, error) {
	respond := make(chan upgradeResult, 1)
	sent, err := sendOrMailboxClosed(func() bool {
		select {
		case h.upgradeCh <- upgradeEnvelope{ctx: ctx, respond: respond}:
			return true
		case <-ctx.Done():
			return false
		}
	})
	if err != nil {
		return driver.UpgradeUnknown, err
	}
	if !sent {
		return driver.UpgradeUnknown, ctx.Err()
	}

	select {
	case result := <-respond:
		return result.result, result.err
	case <-ctx.Done():
		return driver.UpgradeUnknown, ctx.Err()
	}
}

// Subscribe returns a fresh receive channel of the actor's sample stream.
func (h Handle) Subscribe() (chan driver.Sample, error) {
	respond := make(chan chan driver.Sample, 1)
	_, err := sendOrMailboxClosed(func() bool {
		h.subscribeCh <- subscribeEnvelope{respond: respond}
		return true
	})
	if err != nil {
		return nil, err
	}
	return <-respond, nil
}

// StartSampling starts the actor's internal sampling loop at the given
// period. Called by the Manager as part of EnableContinuousMode.
func (h Handle) StartSampling(period Period) error {
	respond := make(chan error, 1)
	_, err := sendOrMailboxClosed(func() bool {
		h.controlCh <- controlEnvelope{start: true, period: period, respond: respond}
		return true
	})
	if err != nil {
		return err
	}
	return <-respond
}

// StopSampling stops the actor's internal sampling loop, without sending any
// shutdown command to the device itself — per spec.md §5, the Manager is
// responsible for running the device-specific shutdown routine immediately
// after this returns.
func (h Handle) StopSampling() error {
	respond := make(chan error, 1)
	_, err := sendOrMailboxClosed(func() bool {
		h.controlCh <- controlEnvelope{start: false, respond: respond}
		return true
	})
	if err != nil {
		return err
	}
	return <-respond
}

// Close tears down the actor: closing every mailbox channel causes Run's
// receive loop to return, which in turn closes the transport and the sample
// bus. This is the Go equivalent of dropping the actor's JoinHandle in the
// reference implementation (spec.md §4.4 "dropping the entry aborts actor
// and broadcast tasks"). Callers must call it at most once.
func (h Handle) Close() {
	close(h.pingCh)
	close(h.upgradeCh)
	close(h.subscribeCh)
	close(h.controlCh)
}

// Actor owns one transport+driver pair and serializes every request to it.
type Actor struct {
	variant   driver.Variant
	transport io.Closer
	logger    kitlog.Logger

	pingCh      chan pingEnvelope
	upgradeCh   chan upgradeEnvelope
	subscribeCh chan subscribeEnvelope
	controlCh   chan controlEnvelope

	samples *fanout.Bus[driver.Sample]

	sampleStop  chan struct{}
	sampleDone  chan struct{}
	sampling    bool
}

// New constructs an Actor over variant/transport and returns it paired with
// the Handle other components use to talk to it. The Actor itself is never
// exposed outside this package; callers must call Run in a goroutine.
func New(variant driver.Variant, transport io.Closer, logger kitlog.Logger) (*Actor, Handle) {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	a := &Actor{
		variant:     variant,
		transport:   transport,
		logger:      logger,
		pingCh:      make(chan pingEnvelope, common.ActorMailboxCapacity),
		upgradeCh:   make(chan upgradeEnvelope, 1),
		subscribeCh: make(chan subscribeEnvelope, 1),
		controlCh:   make(chan controlEnvelope, 1),
		samples:     fanout.New[driver.Sample](),
	}

	handle := Handle{
		pingCh:      a.pingCh,
		upgradeCh:   a.upgradeCh,
		subscribeCh: a.subscribeCh,
		controlCh:   a.controlCh,
	}

	return a, handle
}

// Run is the actor's single-threaded event loop. It returns when its
// mailbox channels are all closed (Close was called); transport I/O errors
// during a request never terminate it, per spec.md §4.3.
func (a *Actor) Run() {
	defer func() {
		a.stopSamplingLocked()
		_ = a.transport.Close()
		a.samples.Close()
		common.Debug(a.logger).Log("event", "actor terminated")
	}()

	for {
		select {
		case env, ok := <-a.pingCh:
			if !ok {
				return
			}
			a.handlePing(env)

		case env, ok := <-a.upgradeCh:
			if !ok {
				return
			}
			a.handleUpgrade(env)

		case env, ok := <-a.subscribeCh:
			if !ok {
				return
			}
			env.respond <- a.samples.Subscribe(common.ActorMailboxCapacity)

		case env, ok := <-a.controlCh:
			if !ok {
				return
			}
			a.handleControl(env)
		}
	}
}

func (a *Actor) handlePing(env pingEnvelope) {
	response, reqErr := driver.Dispatch(env.ctx, a.variant, env.request)
	if reqErr != nil {
		common.Warn(a.logger).Log("event", "request failed", "error", reqErr)
		env.respond <- pingResult{err: sonar.ErrDevice{Inner: reqErr}}
		return
	}
	env.respond <- pingResult{response: response}
}

func (a *Actor) handleUpgrade(env upgradeEnvelope) {
	result, err := driver.TryUpgrade(env.ctx, a.variant.Base())
	if err != nil {
		env.respond <- upgradeResult{err: sonar.ErrDevice{Inner: err}}
		return
	}
	env.respond <- upgradeResult{result: result}
}

func (a *Actor) handleControl(env controlEnvelope) {
	if env.start {
		a.startSamplingLocked(env.period)
		env.respond <- nil
		return
	}
	a.stopSamplingLocked()
	env.respond <- nil
}

func (a *Actor) startSamplingLocked(period Period) {
	if a.sampling {
		return
	}
	a.sampling = true
	a.sampleStop = make(chan struct{})
	a.sampleDone = make(chan struct{})

	interval := time.Duration(period.Milliseconds) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	go a.sampleLoop(interval, a.sampleStop, a.sampleDone)
}

func (a *Actor) stopSamplingLocked() {
	if !a.sampling {
		return
	}
	a.sampling = false
	close(a.sampleStop)
	<-a.sampleDone
}

// sampleLoop is the actor's "optional broadcast loop" (spec.md §2): it polls
// the device at interval and publishes each sample. It runs independently
// of the mailbox loop so a slow subscriber never blocks request handling.
func (a *Actor) sampleLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := context.Background()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sample, err := fetchSample(ctx, a.variant)
			if err != nil {
				common.Debug(a.logger).Log("event", "sample fetch failed", "error", err)
				continue
			}
			if sample != nil {
				a.samples.Publish(*sample)
			}
		}
	}
}

func fetchSample(ctx context.Context, variant driver.Variant) (*driver.Sample, error) {
	switch {
	case variant.Ping1D != nil:
		distance, err := variant.Ping1D.Distance(ctx)
		if err != nil {
			return nil, err
		}
		return &driver.Sample{Ping1D: &distance}, nil
	case variant.Ping360 != nil:
		step, err := variant.Ping360.ScanStep(ctx)
		if err != nil {
			return nil, err
		}
		return &driver.Sample{Ping360: &step}, nil
	default:
		// Common: spec.md §9 open question (b) — no-op sampling.
		return nil, nil
	}
}
