package driver

import "context"

// commonRequest/commonResponse carry the two base operations spec.md §4.2
// requires of every variant.
type commonRequest struct{ op string }

func (commonRequest) isPingRequest() {}

type commonResponse struct {
	deviceInformation string
	protocolVersion   string
}

func (commonResponse) isPingResponse() {}

// commonDevice implements Device over a PingTransport. Ping1D and Ping360
// embed it to get the base capability for free, matching the reference
// implementation's device_information()/protocol_version() on every variant.
type commonDevice struct {
	transport PingTransport
}

// NewCommon builds the generic Common variant over transport.
func NewCommon(transport PingTransport) Device {
	return &commonDevice{transport: transport}
}

func (d *commonDevice) DeviceInformation(ctx context.Context) (string, error) {
	resp, err := d.transport.Request(ctx, commonRequest{op: "device_information"})
	if err != nil {
		return "", err
	}
	return resp.(commonResponse).deviceInformation, nil
}

func (d *commonDevice) ProtocolVersion(ctx context.Context) (string, error) {
	resp, err := d.transport.Request(ctx, commonRequest{op: "protocol_version"})
	if err != nil {
		return "", err
	}
	return resp.(commonResponse).protocolVersion, nil
}

// ForceStopContinuousMode sends the Common endpoint's "stop streaming"
// request, per spec.md §7's auto-upgrade retry step: between failed
// TryUpgrade attempts, the caller clears any continuous-mode stream a prior
// incarnation of the device may have left running, so the next probe sees a
// quiescent device rather than an unsolicited stream of samples. Best-effort
// like the reference implementation's own turnoff_device_continuous_mode —
// callers never let a failure here abort the retry loop (internal/manager
// logs it; internal/discovery's resolver discards it).
func ForceStopContinuousMode(ctx context.Context, transport PingTransport) error {
	_, err := transport.Request(ctx, commonRequest{op: "stop_continuous_mode"})
	return err
}
