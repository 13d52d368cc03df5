package driver

import (
	"context"

	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

type ping360DeviceDataRequest struct{}

func (ping360DeviceDataRequest) isPingRequest() {}

type ping360TransducerRequest struct{ settings sonar.ContinuousModeSettings }

func (ping360TransducerRequest) isPingRequest() {}

type ping360AutoTransmitRequest struct{ enable bool }

func (ping360AutoTransmitRequest) isPingRequest() {}

type ping360MotorOffRequest struct{}

func (ping360MotorOffRequest) isPingRequest() {}

type ping360ScanStepRequest struct{}

func (ping360ScanStepRequest) isPingRequest() {}

type ping360DeviceDataResponse struct{ settings sonar.ContinuousModeSettings }

func (ping360DeviceDataResponse) isPingResponse() {}

type ping360ScanStepResponse struct{ sample Ping360Sample }

func (ping360ScanStepResponse) isPingResponse() {}

type ping360AckResponse struct{}

func (ping360AckResponse) isPingResponse() {}

// ping360Device is the Ping360 variant: a 360-degree scanning sonar adding
// transducer step control and device-wide scan settings.
type ping360Device struct {
	commonDevice
}

// NewPing360 builds the Ping360 variant over transport.
func NewPing360(transport PingTransport) Ping360Device {
	return &ping360Device{commonDevice{transport: transport}}
}

func (d *ping360Device) DeviceData(ctx context.Context) (sonar.ContinuousModeSettings, error) {
	resp, err := d.transport.Request(ctx, ping360DeviceDataRequest{})
	if err != nil {
		return sonar.ContinuousModeSettings{}, err
	}
	return resp.(ping360DeviceDataResponse).settings, nil
}

func (d *ping360Device) Transducer(ctx context.Context, settings sonar.ContinuousModeSettings) error {
	_, err := d.transport.Request(ctx, ping360TransducerRequest{settings: settings})
	return err
}

func (d *ping360Device) SetAutoTransmit(ctx context.Context, enable bool) error {
	_, err := d.transport.Request(ctx, ping360AutoTransmitRequest{enable: enable})
	return err
}

func (d *ping360Device) MotorOff(ctx context.Context) error {
	_, err := d.transport.Request(ctx, ping360MotorOffRequest{})
	return err
}

func (d *ping360Device) ScanStep(ctx context.Context) (Ping360Sample, error) {
	resp, err := d.transport.Request(ctx, ping360ScanStepRequest{})
	if err != nil {
		return Ping360Sample{}, err
	}
	return resp.(ping360ScanStepResponse).sample, nil
}
