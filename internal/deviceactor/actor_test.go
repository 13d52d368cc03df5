package deviceactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluerobotics-go/sonarfleetd/internal/driver"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

type fakeTransport struct {
	distance driver.Ping1DDistance
}

func (f *fakeTransport) DeviceInformation(context.Context) (string, error) { return "Ping1D", nil }
func (f *fakeTransport) ProtocolVersion(context.Context) (string, error)   { return "1.0", nil }
func (f *fakeTransport) Distance(context.Context) (driver.Ping1DDistance, error) {
	return f.distance, nil
}
func (f *fakeTransport) EnablePeriodicDistance(context.Context, bool) error { return nil }

type fakeCloser struct{ closed bool }

func (f *fakeCloser) Close() error { f.closed = true; return nil }

func TestActorServesRequestsUntilClosed(t *testing.T) {
	require := require.New(t)
	transport := &fakeTransport{distance: driver.Ping1DDistance{DistanceMM: 1500, Confidence: 80}}
	closer := &fakeCloser{}

	actor, handle := New(driver.Variant{Ping1D: transport}, closer, nil)
	go actor.Run()

	resp, err := handle.Request(context.Background(), driver.DistanceRequest())
	require.NoError(err)

	distance, ok := driver.DistanceFromResponse(resp)
	require.True(ok)
	require.Equal(uint32(1500), distance.DistanceMM)

	handle.Close()
	// Give Run's defer a moment to tear down the transport.
	require.Eventually(func() bool { return closer.closed }, time.Second, 10*time.Millisecond)
}

func TestActorRequestAfterCloseReturnsMailboxClosed(t *testing.T) {
	assert := assert.New(t)
	transport := &fakeTransport{}
	actor, handle := New(driver.Variant{Ping1D: transport}, &fakeCloser{}, nil)
	go actor.Run()

	handle.Close()
	time.Sleep(10 * time.Millisecond)

	_, err := handle.Request(context.Background(), driver.DistanceRequest())
	assert.Error(err)
	assert.IsType(sonar.ErrMailboxClosed{}, err)
}

func TestActorSamplingPublishesUntilStopped(t *testing.T) {
	require := require.New(t)
	transport := &fakeTransport{distance: driver.Ping1DDistance{DistanceMM: 42, Confidence: 10}}
	actor, handle := New(driver.Variant{Ping1D: transport}, &fakeCloser{}, nil)
	go actor.Run()
	defer handle.Close()

	samples, err := handle.Subscribe()
	require.NoError(err)

	require.NoError(handle.StartSampling(Period{Milliseconds: 10}))

	select {
	case sample := <-samples:
		require.NotNil(sample.Ping1D)
		require.Equal(uint32(42), sample.Ping1D.DistanceMM)
	case <-time.After(time.Second):
		t.Fatal("expected a sample to be published")
	}

	require.NoError(handle.StopSampling())
}
