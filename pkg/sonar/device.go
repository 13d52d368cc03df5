package sonar

import "github.com/google/uuid"

// DeviceSelection is the declared (or resolved) device variant.
type DeviceSelection int

const (
	Auto DeviceSelection = iota
	Common
	Ping1D
	Ping360
)

func (d DeviceSelection) String() string {
	switch d {
	case Common:
		return "Common"
	case Ping1D:
		return "Ping1D"
	case Ping360:
		return "Ping360"
	default:
		return "Auto"
	}
}

// DeviceStatus is the lifecycle state of a registered device.
type DeviceStatus int

const (
	Stopped DeviceStatus = iota
	Running
	ContinuousMode
)

func (s DeviceStatus) String() string {
	switch s {
	case Running:
		return "Running"
	case ContinuousMode:
		return "ContinuousMode"
	default:
		return "Stopped"
	}
}

// CommonProperties is the metadata every device variant carries.
type CommonProperties struct {
	DeviceInformation string `json:"device_information"`
	ProtocolVersion   string `json:"protocol_version"`
}

// Ping1DProperties is a Ping1D device's metadata.
type Ping1DProperties struct {
	Common CommonProperties `json:"common"`
}

// ContinuousModeSettings holds the Ping360 scan parameters the manager seeds
// at creation time and re-applies whenever continuous mode is (re-)enabled.
// Defaults per spec: NumberOfSamples=1200, StartAngle=0, StopAngle=399,
// NumSteps=1, Delay=0.
type ContinuousModeSettings struct {
	Mode               uint8   `json:"mode"`
	Gain               uint8   `json:"gain"`
	TransmitDuration   uint16  `json:"transmit_duration"`
	SamplePeriod       uint16  `json:"sample_period"`
	TransmitFrequency  uint16  `json:"transmit_frequency"`
	NumberOfSamples    uint16  `json:"number_of_samples"`
	StartAngle         uint16  `json:"start_angle"`
	StopAngle          uint16  `json:"stop_angle"`
	NumSteps           uint8   `json:"num_steps"`
	Delay              uint16  `json:"delay"`
}

// DefaultContinuousModeSettings returns the seed values spec.md §3 names.
func DefaultContinuousModeSettings() ContinuousModeSettings {
	return ContinuousModeSettings{
		NumberOfSamples: 1200,
		StartAngle:      0,
		StopAngle:       399,
		NumSteps:        1,
		Delay:           0,
	}
}

// Ping360Properties is a Ping360 device's metadata.
type Ping360Properties struct {
	Common               CommonProperties       `json:"common"`
	ContinuousModeConfig ContinuousModeSettings `json:"continuous_mode_settings"`
}

// DeviceProperties is the tagged union of per-variant metadata. Exactly one
// field is populated, matching DeviceType in DeviceInfo.
type DeviceProperties struct {
	Common  *CommonProperties  `json:"common,omitempty"`
	Ping1D  *Ping1DProperties  `json:"ping1d,omitempty"`
	Ping360 *Ping360Properties `json:"ping360,omitempty"`
}

// DeviceInfo is the identity record returned to callers: everything about a
// device except its live handler.
type DeviceInfo struct {
	ID         uuid.UUID         `json:"id"`
	Source     SourceSelection   `json:"source"`
	Status     DeviceStatus      `json:"status"`
	DeviceType DeviceSelection   `json:"device_type"`
	Properties *DeviceProperties `json:"properties,omitempty"`
}
