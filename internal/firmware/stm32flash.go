package firmware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bluerobotics-go/sonarfleetd/internal/common"
)

// flashOutcome classifies an stm32flash phase's exit status, per spec.md
// §4.6: "code 1 or 2 → PortBusy (retry eligible); other nonzero →
// OtherError (retry eligible); success → Success."
type flashOutcome int

const (
	flashSuccess flashOutcome = iota
	flashPortBusy
	flashOtherError
)

// updatePing1D implements spec.md §4.6's two-phase stm32flash orchestration:
// resolve the binary and firmware, then spawn a background retry loop that
// runs write+verify followed by GO only on success.
func (u *Updater) updatePing1D(ctx context.Context, req Request, onDone func(bool)) (Result, error) {
	binPath, err := u.resolveBinary(common.ToolStm32Flash)
	if err != nil {
		return 0, err
	}
	fwPath, err := u.resolveFirmwarePath(ctx, req)
	if err != nil {
		return 0, err
	}

	go u.runStm32FlashRetryLoop(ctx, binPath, fwPath, req.SerialPath, req.DeviceID, onDone)

	return Started, nil
}

func (u *Updater) runStm32FlashRetryLoop(ctx context.Context, binPath, fwPath, serialPath string, deviceID uuid.UUID, onDone func(bool)) {
	u.progress(0, deviceID)

	writeArgs := stm32FlashWriteArgs(fwPath, serialPath)
	goArgs := stm32FlashGoArgs(serialPath)

	for attempt := 1; attempt <= common.Stm32FlashMaxAttempts; attempt++ {
		outcome := u.runStm32FlashPhase(ctx, binPath, writeArgs, "write", deviceID)
		if outcome == flashSuccess {
			outcome = u.runStm32FlashPhase(ctx, binPath, goArgs, "GO", deviceID)
		}

		if outcome == flashSuccess {
			u.progress(100, deviceID)
			onDone(true)
			return
		}

		if attempt == common.Stm32FlashMaxAttempts {
			u.errorEvent(fmt.Sprintf("firmware update failed after %d attempts", attempt), deviceID)
			onDone(false)
			return
		}

		u.errorEvent(fmt.Sprintf("stm32flash attempt %d failed, retrying in %s", attempt, common.Stm32FlashRetryDelay), deviceID)
		select {
		case <-ctx.Done():
			onDone(false)
			return
		case <-time.After(common.Stm32FlashRetryDelay):
		}
	}
}

func stm32FlashWriteArgs(fwPath, serialPath string) []string {
	var args []string
	if fwPath != "" {
		args = append(args, "-w", fwPath)
	}
	args = append(args, "-v", serialPath)
	return args
}

func stm32FlashGoArgs(serialPath string) []string {
	return []string{"-g", common.Stm32FlashGoAddress, serialPath}
}

// runStm32FlashPhase spawns one stm32flash phase, streaming its stdout and
// stderr through the progress parser concurrently with waiting on the
// process, then classifies the result.
func (u *Updater) runStm32FlashPhase(ctx context.Context, binPath string, args []string, phase string, deviceID uuid.UUID) flashOutcome {
	cmd := exec.CommandContext(ctx, binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		u.errorEvent(fmt.Sprintf("stm32flash %s: %v", phase, err), deviceID)
		return flashOtherError
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		u.errorEvent(fmt.Sprintf("stm32flash %s: %v", phase, err), deviceID)
		return flashOtherError
	}

	if err := cmd.Start(); err != nil {
		u.errorEvent(fmt.Sprintf("stm32flash %s: spawn failed: %v", phase, err), deviceID)
		return flashOtherError
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); u.streamStm32FlashProgress(stdout, deviceID) }()
	go func() { defer wg.Done(); u.streamStm32FlashProgress(stderr, deviceID) }()
	wg.Wait()

	err = cmd.Wait()
	if err == nil {
		return flashSuccess
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case 1, 2:
			u.errorEvent(fmt.Sprintf("stm32flash %s failed - port may be busy (exit code %d)", phase, exitErr.ExitCode()), deviceID)
			return flashPortBusy
		}
	}
	u.errorEvent(fmt.Sprintf("stm32flash %s failed: %v", phase, err), deviceID)
	return flashOtherError
}

// streamStm32FlashProgress reads lines from r, broadcasting any that parse
// as a progress percentage.
func (u *Updater) streamStm32FlashProgress(r io.Reader, deviceID uuid.UUID) {
	scanner := newProgressScanner(r)
	for scanner.Scan() {
		if pct, ok := parseStm32FlashProgress(scanner.Text()); ok {
			u.progress(pct, deviceID)
		}
	}
}
