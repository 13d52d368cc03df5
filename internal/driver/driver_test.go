package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	deviceInformation string
	protocolVersion   string
}

func (f *fakeTransport) Request(ctx context.Context, req PingRequest) (PingResponse, error) {
	switch r := req.(type) {
	case commonRequest:
		return commonResponse{deviceInformation: f.deviceInformation, protocolVersion: f.protocolVersion}, nil
	case ping360DeviceDataRequest:
		return ping360DeviceDataResponse{}, nil
	default:
		_ = r
		return ping360AckResponse{}, nil
	}
}

func TestTryUpgradeClassifiesPing360(t *testing.T) {
	common := NewCommon(&fakeTransport{deviceInformation: "Ping360 rev2"})

	result, err := TryUpgrade(context.Background(), common)
	require.NoError(t, err)
	assert.Equal(t, UpgradePing360, result)
}

func TestTryUpgradeClassifiesPing1D(t *testing.T) {
	common := NewCommon(&fakeTransport{deviceInformation: "Ping1D rev1"})

	result, err := TryUpgrade(context.Background(), common)
	require.NoError(t, err)
	assert.Equal(t, UpgradePing1D, result)
}

func TestTryUpgradeClassifiesUnknown(t *testing.T) {
	common := NewCommon(&fakeTransport{deviceInformation: "SomethingElse"})

	result, err := TryUpgrade(context.Background(), common)
	require.NoError(t, err)
	assert.Equal(t, UpgradeUnknown, result)
}

func TestForceStopContinuousModeSendsRequest(t *testing.T) {
	transport := &fakeTransport{}
	err := ForceStopContinuousMode(context.Background(), transport)
	require.NoError(t, err)
}

func TestPing360VariantKind(t *testing.T) {
	v := Variant{Ping360: NewPing360(&fakeTransport{})}
	assert.Equal(t, "Ping360", v.Kind().String())
	assert.NotNil(t, v.Base())
}
