package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluerobotics-go/sonarfleetd/internal/transport"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

type fakeStream struct{}

func (fakeStream) Read([]byte) (int, error)  { return 0, nil }
func (fakeStream) Write([]byte) (int, error) { return 0, nil }
func (fakeStream) Close() error              { return nil }

func fixedResolver(deviceType sonar.DeviceSelection) func(ctx context.Context, stream transport.Stream) (sonar.DeviceInfo, error) {
	return func(context.Context, transport.Stream) (sonar.DeviceInfo, error) {
		return sonar.DeviceInfo{DeviceType: deviceType}, nil
	}
}

// ready subscribes to a freshly-constructed Service's output bus without
// starting the cron loop, so tick can be driven directly.
func ready(svc *Service) chan sonar.DeviceInfo {
	return svc.Subscribe()
}

func TestTickPublishesUnknownSourcesOnly(t *testing.T) {
	require := require.New(t)

	source := sonar.SerialSource("/dev/ttyUSB0", 115200)

	svc := New(Config{
		Resolve: fixedResolver(sonar.Ping1D),
		Open:    func(sonar.SourceSelection) (transport.Stream, error) { return fakeStream{}, nil },
		NetworkDiscover: func(context.Context) ([]sonar.SourceSelection, error) {
			return nil, nil
		},
		SerialDiscover: func(ctx context.Context, skip map[string]struct{}) ([]sonar.SourceSelection, error) {
			if _, excluded := skip[source.Key()]; excluded {
				return nil, nil
			}
			return []sonar.SourceSelection{source}, nil
		},
	})

	sub := ready(svc)
	svc.tick(context.Background())

	select {
	case info := <-sub:
		require.Equal(sonar.Ping1D, info.DeviceType)
		require.Equal(source.Key(), info.Source.Key())
	case <-time.After(time.Second):
		t.Fatal("expected a published DeviceInfo")
	}
}

func TestTickSkipsSourcesAlreadyKnown(t *testing.T) {
	require := require.New(t)

	source := sonar.SerialSource("/dev/ttyUSB0", 115200)
	var serialCalls int

	svc := New(Config{
		Resolve: fixedResolver(sonar.Ping1D),
		Open:    func(sonar.SourceSelection) (transport.Stream, error) { return fakeStream{}, nil },
		NetworkDiscover: func(context.Context) ([]sonar.SourceSelection, error) {
			return nil, nil
		},
		SerialDiscover: func(ctx context.Context, skip map[string]struct{}) ([]sonar.SourceSelection, error) {
			serialCalls++
			if _, excluded := skip[source.Key()]; excluded {
				return nil, nil
			}
			return []sonar.SourceSelection{source}, nil
		},
	})

	sub := ready(svc)

	svc.PublishKnownDevices([]sonar.DeviceInfo{{Source: source}})
	// drainKnownDevices runs at the top of tick; give the non-blocking send
	// in PublishKnownDevices a moment to land before the drain reads it.
	time.Sleep(10 * time.Millisecond)
	svc.tick(context.Background())

	select {
	case <-sub:
		t.Fatal("did not expect a publish for an already-known source")
	case <-time.After(100 * time.Millisecond):
	}

	require.Equal(1, serialCalls)
}

func TestBuildCandidatesSkipsSerialWhenPlatformProbeInUse(t *testing.T) {
	assert := assert.New(t)

	var serialCalled bool
	svc := New(Config{
		Resolve:          fixedResolver(sonar.Ping1D),
		UsePlatformProbe: true,
		PlatformProbe:    stubProber{},
		NetworkDiscover: func(context.Context) ([]sonar.SourceSelection, error) {
			return nil, nil
		},
		SerialDiscover: func(context.Context, map[string]struct{}) ([]sonar.SourceSelection, error) {
			serialCalled = true
			return nil, nil
		},
	})

	candidates := svc.buildCandidates(context.Background())
	assert.False(serialCalled)
	assert.Len(candidates, 1)
}

func TestBuildCandidatesCombinesNetworkAndSerialWithoutPlatformProbe(t *testing.T) {
	assert := assert.New(t)

	svc := New(Config{
		Resolve: fixedResolver(sonar.Ping1D),
		NetworkDiscover: func(context.Context) ([]sonar.SourceSelection, error) {
			return []sonar.SourceSelection{sonar.UdpSource("10.0.0.9", 9090)}, nil
		},
		SerialDiscover: func(context.Context, map[string]struct{}) ([]sonar.SourceSelection, error) {
			return []sonar.SourceSelection{sonar.SerialSource("/dev/ttyUSB1", 115200)}, nil
		},
	})

	candidates := svc.buildCandidates(context.Background())
	assert.Len(candidates, 2)
}

type stubProber struct{}

func (stubProber) Probe(context.Context) ([]sonar.SourceSelection, error) {
	return []sonar.SourceSelection{sonar.UdpSource("10.0.0.5", 9090)}, nil
}
