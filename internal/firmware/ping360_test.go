package firmware

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

func TestRunPing360BootloaderSuccessOnCleanExit(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeBinary(t, dir, "ping360-bootloader", `echo "writing application..."
echo "verifying application..."
echo "writing configuration...ok"
echo "starting application...ok"`, 0)

	sink := &recordingSink{}
	u := New(Config{Sink: sink})

	err := u.runPing360Bootloader(context.Background(), bin, "fw.hex", "/dev/ttyUSB0", uuid.New())
	require.NoError(t, err)

	var percents []float64
	for _, m := range sink.messages {
		if pct, ok := m["percent"].(float64); ok {
			percents = append(percents, pct)
		}
	}
	require.Len(t, percents, 4)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
	assert.Equal(t, 100.0, percents[len(percents)-1])
}

func TestRunPing360BootloaderSucceedsDespiteNonzeroExitWhenMilestonesSeen(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeBinary(t, dir, "ping360-bootloader", `echo "writing configuration...ok"
echo "starting application...ok"`, 1)

	u := New(Config{})
	err := u.runPing360Bootloader(context.Background(), bin, "fw.hex", "/dev/ttyUSB0", uuid.New())
	assert.NoError(t, err)
}

func TestRunPing360BootloaderFailsOnExitWithoutMilestones(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeBinary(t, dir, "ping360-bootloader", `echo "connection refused"`, 1)

	u := New(Config{})
	err := u.runPing360Bootloader(context.Background(), bin, "fw.hex", "/dev/ttyUSB0", uuid.New())
	assert.Error(t, err)
}

func TestUpdatePing360RejectsUdpSource(t *testing.T) {
	u := New(Config{})
	_, err := u.Update(context.Background(), sonar.UdpSource("10.0.0.5", 9090), Request{Family: FamilyPing360}, func(bool) {})
	require.Error(t, err)
	assert.IsType(t, ErrUnsupportedDevice{}, err)
}

func TestResolveFirmwarePathPrefersCallerOverride(t *testing.T) {
	dir := t.TempDir()
	u := New(Config{CacheDir: dir})

	path, err := u.resolveFirmwarePath(context.Background(), Request{FirmwarePath: filepath.Join(dir, "custom.hex")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "custom.hex"), path)
}
