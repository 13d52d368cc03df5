package driver

import (
	"context"
	"strings"
)

// UpgradeResult is what TryUpgrade resolves a Common endpoint to.
type UpgradeResult int

const (
	UpgradeUnknown UpgradeResult = iota
	UpgradePing1D
	UpgradePing360
)

func (r UpgradeResult) String() string {
	switch r {
	case UpgradePing1D:
		return "Ping1D"
	case UpgradePing360:
		return "Ping360"
	default:
		return "Unknown"
	}
}

// TryUpgrade probes a Common-variant endpoint's reported device identity and
// classifies it, per spec.md §4.2's "emits one of {Unknown, Ping1D,
// Ping360}". The reference firmware reports its model name as part of
// DeviceInformation; this module only inspects that string (the wire
// protocol's identity message framing is the external ping-protocol
// collaborator's concern, not this module's).
func TryUpgrade(ctx context.Context, base Device) (UpgradeResult, error) {
	info, err := base.DeviceInformation(ctx)
	if err != nil {
		return UpgradeUnknown, err
	}

	switch {
	case strings.Contains(info, "Ping360"):
		return UpgradePing360, nil
	case strings.Contains(info, "Ping1D"):
		return UpgradePing1D, nil
	default:
		return UpgradeUnknown, nil
	}
}
