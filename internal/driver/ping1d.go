package driver

import "context"

type ping1DDistanceRequest struct{}

func (ping1DDistanceRequest) isPingRequest() {}

type ping1DPeriodicRequest struct{ enable bool }

func (ping1DPeriodicRequest) isPingRequest() {}

type ping1DDistanceResponse struct {
	distance Ping1DDistance
}

func (ping1DDistanceResponse) isPingResponse() {}

type ping1DAckResponse struct{}

func (ping1DAckResponse) isPingResponse() {}

// ping1DDevice is the Ping1D variant: a single-beam rangefinder adding
// distance sampling to the common capability.
type ping1DDevice struct {
	commonDevice
}

// NewPing1D builds the Ping1D variant over transport.
func NewPing1D(transport PingTransport) Ping1DDevice {
	return &ping1DDevice{commonDevice{transport: transport}}
}

func (d *ping1DDevice) Distance(ctx context.Context) (Ping1DDistance, error) {
	resp, err := d.transport.Request(ctx, ping1DDistanceRequest{})
	if err != nil {
		return Ping1DDistance{}, err
	}
	return resp.(ping1DDistanceResponse).distance, nil
}

func (d *ping1DDevice) EnablePeriodicDistance(ctx context.Context, enable bool) error {
	_, err := d.transport.Request(ctx, ping1DPeriodicRequest{enable: enable})
	return err
}
