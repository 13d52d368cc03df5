package discovery

import (
	"context"
	"io"
	"time"

	"github.com/bluerobotics-go/sonarfleetd/internal/common"
	"github.com/bluerobotics-go/sonarfleetd/internal/driver"
	"github.com/bluerobotics-go/sonarfleetd/internal/transport"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// NewResolver builds the standard Config.Resolve function: classify a
// Common endpoint via TryUpgrade, then fetch the resolved variant's
// properties. This is the discovery-only half of spec.md §4.4 Create
// (steps 2-4), reimplemented here rather than shared with internal/manager
// because the two call sites never produce a persistent registry entry or
// spawn an actor — the only overlap is the classify/fetch shape itself.
func NewResolver(codec func(stream io.ReadWriteCloser) driver.PingTransport) func(ctx context.Context, stream transport.Stream) (sonar.DeviceInfo, error) {
	return func(ctx context.Context, stream transport.Stream) (sonar.DeviceInfo, error) {
		pt := codec(stream)
		base := driver.NewCommon(pt)

		// Retry TryUpgrade up to common.UpgradeMaxAttempts times with a
		// common.UpgradeRetryDelay backoff, per spec.md §7: between
		// attempts, force-stop continuous mode on the source so a device
		// still streaming from a prior incarnation doesn't desync the next
		// classification probe.
		var result driver.UpgradeResult
		var lastErr error
		for attempt := 0; attempt < common.UpgradeMaxAttempts; attempt++ {
			if attempt > 0 {
				_ = driver.ForceStopContinuousMode(ctx, pt)
				time.Sleep(common.UpgradeRetryDelay)
			}
			result, lastErr = driver.TryUpgrade(ctx, base)
			if lastErr == nil {
				break
			}
		}
		if lastErr != nil {
			return sonar.DeviceInfo{}, sonar.ErrDevice{Inner: lastErr}
		}

		var variant driver.Variant
		var selection sonar.DeviceSelection
		switch result {
		case driver.UpgradePing1D:
			variant, selection = driver.Variant{Ping1D: driver.NewPing1D(pt)}, sonar.Ping1D
		case driver.UpgradePing360:
			variant, selection = driver.Variant{Ping360: driver.NewPing360(pt)}, sonar.Ping360
		default:
			return sonar.DeviceInfo{}, sonar.ErrDevice{Inner: errUnclassified}
		}

		info, err := base.DeviceInformation(ctx)
		if err != nil {
			return sonar.DeviceInfo{}, err
		}
		version, err := base.ProtocolVersion(ctx)
		if err != nil {
			return sonar.DeviceInfo{}, err
		}
		commonProps := sonar.CommonProperties{DeviceInformation: info, ProtocolVersion: version}

		properties := sonar.DeviceProperties{}
		switch selection {
		case sonar.Ping1D:
			properties.Ping1D = &sonar.Ping1DProperties{Common: commonProps}
		case sonar.Ping360:
			settings, err := variant.Ping360.DeviceData(ctx)
			if err != nil {
				return sonar.DeviceInfo{}, err
			}
			properties.Ping360 = &sonar.Ping360Properties{Common: commonProps, ContinuousModeConfig: settings}
		}

		return sonar.DeviceInfo{
			DeviceType: selection,
			Properties: &properties,
		}, nil
	}
}

var errUnclassified = sonar.ErrOther{Msg: "device did not resolve to a known variant"}
