package facade

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluerobotics-go/sonarfleetd/internal/deviceactor"
	"github.com/bluerobotics-go/sonarfleetd/internal/driver"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

type fakeManager struct {
	submit func(ctx context.Context, req sonar.Request) (sonar.Answer, error)
}

func (f *fakeManager) Submit(ctx context.Context, req sonar.Request) (sonar.Answer, error) {
	return f.submit(ctx, req)
}

type fakeTransport struct{}

func (fakeTransport) DeviceInformation(context.Context) (string, error) { return "Ping1D", nil }
func (fakeTransport) ProtocolVersion(context.Context) (string, error)   { return "1.0", nil }
func (fakeTransport) Distance(context.Context) (driver.Ping1DDistance, error) {
	return driver.Ping1DDistance{DistanceMM: 900, Confidence: 70}, nil
}
func (fakeTransport) EnablePeriodicDistance(context.Context, bool) error { return nil }

type fakeCloser struct{}

func (fakeCloser) Close() error { return nil }

func TestSubmitForwardsNonPingRequestsToManager(t *testing.T) {
	require := require.New(t)
	var seen sonar.Request
	manager := &fakeManager{submit: func(_ context.Context, req sonar.Request) (sonar.Answer, error) {
		seen = req
		return sonar.Answer{Kind: sonar.AnswerDeviceInfoList}, nil
	}}

	f := New(manager, nil)
	_, err := f.Submit(context.Background(), sonar.Request{Command: sonar.CmdList})
	require.NoError(err)
	require.Equal(sonar.CmdList, seen.Command)
}

func TestSubmitPingGoesDirectToActorHandle(t *testing.T) {
	require := require.New(t)

	actor, handle := deviceactor.New(driver.Variant{Ping1D: fakeTransport{}}, fakeCloser{}, nil)
	go actor.Run()
	defer handle.Close()

	deviceID := uuid.New()
	var getHandlerCalls int
	manager := &fakeManager{submit: func(_ context.Context, req sonar.Request) (sonar.Answer, error) {
		require.Equal(sonar.CmdGetDeviceHandler, req.Command)
		getHandlerCalls++
		return sonar.Answer{Kind: sonar.AnswerInnerDeviceHandler, DeviceID: deviceID, Handler: handle}, nil
	}}

	f := New(manager, nil)
	answer, err := f.Submit(context.Background(), sonar.Request{
		Command:       sonar.CmdPing,
		ID:            deviceID,
		DeviceRequest: driver.DistanceRequest(),
	})
	require.NoError(err)
	require.Equal(1, getHandlerCalls)

	distance, ok := driver.DistanceFromResponse(answer.Message.(driver.PingResponse))
	require.True(ok)
	require.Equal(uint32(900), distance.DistanceMM)
}

func TestSubmitPingSurfacesMailboxClosed(t *testing.T) {
	assert := assert.New(t)

	actor, handle := deviceactor.New(driver.Variant{Ping1D: fakeTransport{}}, fakeCloser{}, nil)
	go actor.Run()
	handle.Close()

	manager := &fakeManager{submit: func(_ context.Context, req sonar.Request) (sonar.Answer, error) {
		return sonar.Answer{Kind: sonar.AnswerInnerDeviceHandler, Handler: handle}, nil
	}}

	f := New(manager, nil)
	_, err := f.Submit(context.Background(), sonar.Request{
		Command:       sonar.CmdPing,
		DeviceRequest: driver.DistanceRequest(),
	})
	assert.Error(err)
	assert.IsType(sonar.ErrMailboxClosed{}, err)
}
