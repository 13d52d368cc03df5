// Package driver wraps an opened transport with a typed request/response
// client per device variant, per spec.md §4.2. The actual ping-protocol wire
// codec is out of scope (spec.md §1 calls it out as an external
// collaborator, consumed here only through the PingTransport interface).
package driver

import (
	"context"

	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// PingTransport is the injected request/response driver every Device uses to
// talk to its transport. A production build supplies an implementation over
// the real ping-protocol codec; tests supply a fake.
type PingTransport interface {
	// Request sends req and waits for the matching response, or returns an
	// error if the transport failed or the device reported a protocol
	// error.
	Request(ctx context.Context, req PingRequest) (PingResponse, error)
}

// PingRequest is an opaque, variant-specific request value. Concrete shapes
// live alongside each variant (e.g. ping1DDistanceRequest, ping360TransducerRequest).
type PingRequest interface{ isPingRequest() }

// PingResponse is an opaque, variant-specific response value.
type PingResponse interface{ isPingResponse() }

// Device is the capability every variant exposes, per spec.md §4.2 and the
// "Polymorphism over variants" note in §9: a closed sum type with a shared
// base capability plus per-variant extensions, dispatched exhaustively.
type Device interface {
	DeviceInformation(ctx context.Context) (string, error)
	ProtocolVersion(ctx context.Context) (string, error)
}

// Ping1DDevice adds the Ping1D-specific operations.
type Ping1DDevice interface {
	Device
	Distance(ctx context.Context) (Ping1DDistance, error)
	EnablePeriodicDistance(ctx context.Context, enable bool) error
}

// Ping360Device adds the Ping360-specific operations.
type Ping360Device interface {
	Device
	DeviceData(ctx context.Context) (sonar.ContinuousModeSettings, error)
	Transducer(ctx context.Context, settings sonar.ContinuousModeSettings) error
	SetAutoTransmit(ctx context.Context, enable bool) error
	MotorOff(ctx context.Context) error
	// ScanStep reads the next auto-transmit scan response while continuous
	// mode is running: one angle step's echo profile.
	ScanStep(ctx context.Context) (Ping360Sample, error)
}

// Ping1DDistance is the distance sample a Ping1D device reports.
type Ping1DDistance struct {
	DistanceMM uint32
	Confidence uint8
}

// Ping360Sample is one scan step's echo profile.
type Ping360Sample struct {
	Angle uint16
	Data  []byte
}

// Sample is the tagged union of what the actor's sampling loop publishes
// while continuous mode is running. Exactly one field is populated,
// matching the device's variant.
type Sample struct {
	Ping1D  *Ping1DDistance
	Ping360 *Ping360Sample
}

// Variant is the closed sum type a New* constructor returns: exactly one of
// the three fields is non-nil.
type Variant struct {
	Common  Device
	Ping1D  Ping1DDevice
	Ping360 Ping360Device
}

// Kind reports which variant is populated.
func (v Variant) Kind() sonar.DeviceSelection {
	switch {
	case v.Ping360 != nil:
		return sonar.Ping360
	case v.Ping1D != nil:
		return sonar.Ping1D
	case v.Common != nil:
		return sonar.Common
	default:
		return sonar.Auto
	}
}

// Base returns the shared Device capability regardless of variant.
func (v Variant) Base() Device {
	switch {
	case v.Ping360 != nil:
		return v.Ping360
	case v.Ping1D != nil:
		return v.Ping1D
	default:
		return v.Common
	}
}
