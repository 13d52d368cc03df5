package firmware

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluerobotics-go/sonarfleetd/internal/common"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// recordingSink captures every Send call for assertion.
type recordingSink struct {
	messages []map[string]any
}

func (s *recordingSink) Send(message map[string]any, deviceID uuid.UUID) {
	s.messages = append(s.messages, message)
}

// writeFakeBinary drops an executable shell script at dir/name that prints
// body to stdout and exits with the given code.
func writeFakeBinary(t *testing.T, dir, name, body string, exitCode int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\nexit " + itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestRunStm32FlashPhaseReportsProgressAndSucceeds(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeBinary(t, dir, "stm32flash", `echo "Writing at address 0x08004000 ( 21.25%)"
echo "Wrote and verified address 0x08020378 (...100.00%) Done."`, 0)

	sink := &recordingSink{}
	u := New(Config{Sink: sink})

	outcome := u.runStm32FlashPhase(context.Background(), bin, []string{"-v", "/dev/ttyUSB0"}, "write", uuid.New())
	assert.Equal(t, flashSuccess, outcome)

	var sawPercents []float64
	for _, m := range sink.messages {
		if pct, ok := m["percent"].(float64); ok {
			sawPercents = append(sawPercents, pct)
		}
	}
	require.Len(t, sawPercents, 2)
	assert.InDelta(t, 21.25, sawPercents[0], 0.01)
	assert.InDelta(t, 100, sawPercents[1], 0.01)
}

func TestRunStm32FlashPhaseClassifiesPortBusy(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeBinary(t, dir, "stm32flash", `echo "Can't get write lock"`, 1)

	u := New(Config{})
	outcome := u.runStm32FlashPhase(context.Background(), bin, []string{"-v", "/dev/ttyUSB0"}, "write", uuid.New())
	assert.Equal(t, flashPortBusy, outcome)
}

func TestRunStm32FlashPhaseClassifiesOtherError(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeBinary(t, dir, "stm32flash", `echo "unexpected failure"`, 7)

	u := New(Config{})
	outcome := u.runStm32FlashPhase(context.Background(), bin, []string{"-v", "/dev/ttyUSB0"}, "write", uuid.New())
	assert.Equal(t, flashOtherError, outcome)
}

func TestStm32FlashWriteArgsOmitsWriteFlagWithoutFirmwarePath(t *testing.T) {
	args := stm32FlashWriteArgs("", "/dev/ttyUSB0")
	assert.Equal(t, []string{"-v", "/dev/ttyUSB0"}, args)

	args = stm32FlashWriteArgs("fw.hex", "/dev/ttyUSB0")
	assert.Equal(t, []string{"-w", "fw.hex", "-v", "/dev/ttyUSB0"}, args)
}

func TestStm32FlashGoArgsUsesFixedAddress(t *testing.T) {
	args := stm32FlashGoArgs("/dev/ttyUSB0")
	assert.Equal(t, []string{"-g", "0x08000000", "/dev/ttyUSB0"}, args)
}

func TestUpdatePing1DRetriesThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	attemptFile := filepath.Join(dir, "attempts")

	// A stateful fake: fails its first call, succeeds on the second,
	// tracked via a counter file since each invocation is a fresh process.
	bin := writeFakeBinary(t, dir, "stm32flash", `
count=0
if [ -f "`+attemptFile+`" ]; then
  count=$(cat "`+attemptFile+`")
fi
count=$((count+1))
echo "$count" > "`+attemptFile+`"
if [ "$1" = "-g" ]; then
  exit 0
fi
if [ "$count" -ge 2 ]; then
  echo "Wrote and verified address 0x08020378 (...100.00%) Done."
  exit 0
fi
echo "transient failure"
`, 1)

	firmwarePath := filepath.Join(dir, "fw.hex")
	require.NoError(t, os.WriteFile(firmwarePath, []byte("fw"), 0o644))

	sink := &recordingSink{}
	u := New(Config{Sink: sink, CacheDir: dir})
	u.lookPath = func(string) (string, error) { return bin, nil }

	done := make(chan bool, 1)
	_, err := u.Update(context.Background(), sonar.SerialSource("/dev/ttyUSB0", 115200), Request{
		Family:       FamilyPing1DRev1,
		FirmwarePath: firmwarePath,
	}, func(success bool) { done <- success })
	require.NoError(t, err)

	select {
	case success := <-done:
		assert.True(t, success)
	case <-time.After(common.Stm32FlashRetryDelay + 2*time.Second):
		t.Fatal("update did not complete in time")
	}
}
