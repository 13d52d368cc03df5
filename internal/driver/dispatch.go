package driver

import (
	"context"
	"fmt"

	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// Dispatch routes an opaque PingRequest to the concrete method its variant
// exposes and wraps the result back into a PingResponse. It is the single
// place that knows the mapping between request/response pairs and Device
// methods, so the actor's mailbox loop (internal/deviceactor) never needs to
// know a variant's concrete type.
func Dispatch(ctx context.Context, variant Variant, req PingRequest) (PingResponse, error) {
	switch r := req.(type) {
	case commonRequest:
		base := variant.Base()
		switch r.op {
		case "device_information":
			info, err := base.DeviceInformation(ctx)
			if err != nil {
				return nil, err
			}
			return commonResponse{deviceInformation: info}, nil
		case "protocol_version":
			version, err := base.ProtocolVersion(ctx)
			if err != nil {
				return nil, err
			}
			return commonResponse{protocolVersion: version}, nil
		default:
			return nil, sonar.ErrNotImplemented{Request: r.op}
		}

	case ping1DDistanceRequest:
		if variant.Ping1D == nil {
			return nil, sonar.ErrNotImplemented{Request: "distance"}
		}
		distance, err := variant.Ping1D.Distance(ctx)
		if err != nil {
			return nil, err
		}
		return ping1DDistanceResponse{distance: distance}, nil

	case ping1DPeriodicRequest:
		if variant.Ping1D == nil {
			return nil, sonar.ErrNotImplemented{Request: "enable_periodic_distance"}
		}
		if err := variant.Ping1D.EnablePeriodicDistance(ctx, r.enable); err != nil {
			return nil, err
		}
		return ping1DAckResponse{}, nil

	case ping360DeviceDataRequest:
		if variant.Ping360 == nil {
			return nil, sonar.ErrNotImplemented{Request: "device_data"}
		}
		settings, err := variant.Ping360.DeviceData(ctx)
		if err != nil {
			return nil, err
		}
		return ping360DeviceDataResponse{settings: settings}, nil

	case ping360TransducerRequest:
		if variant.Ping360 == nil {
			return nil, sonar.ErrNotImplemented{Request: "transducer"}
		}
		if err := variant.Ping360.Transducer(ctx, r.settings); err != nil {
			return nil, err
		}
		return ping360AckResponse{}, nil

	case ping360AutoTransmitRequest:
		if variant.Ping360 == nil {
			return nil, sonar.ErrNotImplemented{Request: "set_auto_transmit"}
		}
		if err := variant.Ping360.SetAutoTransmit(ctx, r.enable); err != nil {
			return nil, err
		}
		return ping360AckResponse{}, nil

	case ping360MotorOffRequest:
		if variant.Ping360 == nil {
			return nil, sonar.ErrNotImplemented{Request: "motor_off"}
		}
		if err := variant.Ping360.MotorOff(ctx); err != nil {
			return nil, err
		}
		return ping360AckResponse{}, nil

	case ping360ScanStepRequest:
		if variant.Ping360 == nil {
			return nil, sonar.ErrNotImplemented{Request: "scan_step"}
		}
		sample, err := variant.Ping360.ScanStep(ctx)
		if err != nil {
			return nil, err
		}
		return ping360ScanStepResponse{sample: sample}, nil

	default:
		return nil, sonar.ErrNotImplemented{Request: fmt.Sprintf("%T", req)}
	}
}

// DeviceInformationRequest/ProtocolVersionRequest/DistanceRequest/... are the
// exported constructors for the opaque request values, used by callers
// outside this package (the facade) that need to build a PingRequest without
// reaching into unexported fields.
func DeviceInformationRequest() PingRequest { return commonRequest{op: "device_information"} }
func ProtocolVersionRequest() PingRequest   { return commonRequest{op: "protocol_version"} }

func DistanceRequest() PingRequest { return ping1DDistanceRequest{} }
func EnablePeriodicDistanceRequest(enable bool) PingRequest {
	return ping1DPeriodicRequest{enable: enable}
}

func DeviceDataRequest() PingRequest { return ping360DeviceDataRequest{} }
func TransducerRequest(settings sonar.ContinuousModeSettings) PingRequest {
	return ping360TransducerRequest{settings: settings}
}
func SetAutoTransmitRequest(enable bool) PingRequest { return ping360AutoTransmitRequest{enable: enable} }
func MotorOffRequest() PingRequest                   { return ping360MotorOffRequest{} }
func ScanStepRequest() PingRequest                   { return ping360ScanStepRequest{} }

// DistanceFromResponse/DeviceDataFromResponse extract the useful payload from
// a PingResponse the facade received back from the actor, for callers that
// need typed access rather than passing the opaque value through to a wire
// encoder.
func DistanceFromResponse(resp PingResponse) (Ping1DDistance, bool) {
	r, ok := resp.(ping1DDistanceResponse)
	if !ok {
		return Ping1DDistance{}, false
	}
	return r.distance, true
}

func DeviceDataFromResponse(resp PingResponse) (sonar.ContinuousModeSettings, bool) {
	r, ok := resp.(ping360DeviceDataResponse)
	if !ok {
		return sonar.ContinuousModeSettings{}, false
	}
	return r.settings, true
}

func DeviceInformationFromResponse(resp PingResponse) (string, bool) {
	r, ok := resp.(commonResponse)
	if !ok || r.deviceInformation == "" {
		return "", false
	}
	return r.deviceInformation, true
}

func ProtocolVersionFromResponse(resp PingResponse) (string, bool) {
	r, ok := resp.(commonResponse)
	if !ok || r.protocolVersion == "" {
		return "", false
	}
	return r.protocolVersion, true
}
