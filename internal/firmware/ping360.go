package firmware

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bluerobotics-go/sonarfleetd/internal/common"
)

// updatePing360 implements spec.md §4.6's single-phase ping360-bootloader
// orchestration: resolve the binary and firmware, then spawn a background
// retry loop.
func (u *Updater) updatePing360(ctx context.Context, req Request, onDone func(bool)) (Result, error) {
	binPath, err := u.resolveBinary(common.ToolPing360Bootloader)
	if err != nil {
		return 0, err
	}
	fwPath, err := u.resolveFirmwarePath(ctx, req)
	if err != nil {
		return 0, err
	}

	go u.runPing360RetryLoop(ctx, binPath, fwPath, req.SerialPath, req.DeviceID, onDone)

	return Started, nil
}

func (u *Updater) runPing360RetryLoop(ctx context.Context, binPath, fwPath, serialPath string, deviceID uuid.UUID, onDone func(bool)) {
	u.progress(0, deviceID)

	for attempt := 1; attempt <= common.Ping360BootloaderMaxAttempts; attempt++ {
		err := u.runPing360Bootloader(ctx, binPath, fwPath, serialPath, deviceID)
		if err == nil {
			u.progress(100, deviceID)
			onDone(true)
			return
		}

		if attempt == common.Ping360BootloaderMaxAttempts {
			u.errorEvent(fmt.Sprintf("Ping360 firmware update failed after %d attempts: %v", attempt, err), deviceID)
			onDone(false)
			return
		}

		u.errorEvent(fmt.Sprintf("Ping360 firmware update attempt %d failed, retrying in %s: %v", attempt, common.Ping360BootloaderRetryDelay, err), deviceID)
		select {
		case <-ctx.Done():
			onDone(false)
			return
		case <-time.After(common.Ping360BootloaderRetryDelay):
		}
	}
}

// runPing360Bootloader spawns one ping360-bootloader attempt, scans its
// stdout/stderr for progress milestones, and applies spec.md §4.6's
// success-despite-exit heuristic: a nonzero exit still counts as success if
// both the config-write and app-start milestones were observed (the tool is
// known to return 1 on a benign post-flash path).
func (u *Updater) runPing360Bootloader(ctx context.Context, binPath, fwPath, serialPath string, deviceID uuid.UUID) error {
	cmd := exec.CommandContext(ctx, binPath, serialPath, fwPath, "--bootloader")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ping360-bootloader: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ping360-bootloader: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ping360-bootloader: spawn failed: %w", err)
	}

	var mu sync.Mutex
	var sawConfigWrite, sawAppStart bool

	scanLines := func(scanner *bufio.Scanner, wg *sync.WaitGroup) {
		defer wg.Done()
		for scanner.Scan() {
			mu.Lock()
			if pct, ok := matchPing360Milestone(scanner.Text(), &sawConfigWrite, &sawAppStart); ok {
				mu.Unlock()
				u.progress(pct, deviceID)
				continue
			}
			mu.Unlock()
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(newProgressScanner(stdout), &wg)
	go scanLines(newProgressScanner(stderr), &wg)
	wg.Wait()

	waitErr := cmd.Wait()
	if waitErr == nil {
		return nil
	}

	mu.Lock()
	benign := sawConfigWrite && sawAppStart
	mu.Unlock()

	var exitErr *exec.ExitError
	if benign && errors.As(waitErr, &exitErr) {
		return nil
	}

	return fmt.Errorf("ping360-bootloader failed for device %s on port %s with firmware %s: %w", deviceID, serialPath, fwPath, waitErr)
}
