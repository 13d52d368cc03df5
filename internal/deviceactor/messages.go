package deviceactor

import (
	"context"

	"github.com/bluerobotics-go/sonarfleetd/internal/driver"
)

// pingEnvelope is the mailbox message for a variant-specific request
// passthrough (spec.md §4.3): a request plus the channel its answer is
// delivered on.
type pingEnvelope struct {
	ctx      context.Context
	request  driver.PingRequest
	respond  chan<- pingResult
}

type pingResult struct {
	response driver.PingResponse
	err      error
}

// upgradeEnvelope requests TryUpgrade; used only during Create, per spec.md
// §4.3.
type upgradeEnvelope struct {
	ctx     context.Context
	respond chan<- upgradeResult
}

type upgradeResult struct {
	result driver.UpgradeResult
	err    error
}

// subscribeEnvelope requests a fresh sample subscription.
type subscribeEnvelope struct {
	respond chan<- chan driver.Sample
}

// controlEnvelope starts or stops the actor's internal sampling loop, which
// the Manager drives as part of EnableContinuousMode/DisableContinuousMode.
type controlEnvelope struct {
	start    bool
	period   Period
	respond  chan<- error
}

// Period expresses how often the actor's sampling loop polls the device.
type Period struct {
	Milliseconds uint32
}
