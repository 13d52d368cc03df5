// Package common collects the ambient constants, configuration shape and
// logging setup shared by every other package, mirroring the teacher's own
// internal/common split between consts.go, config and a package-level logger.
package common

import "time"

// Mailbox and broadcast channel capacities, named per spec.md §5 rather than
// left as magic numbers at each call site.
const (
	ManagerMailboxCapacity  = 10
	ActorMailboxCapacity    = 10
	DiscoveryKnownCapacity  = 1
	DiscoveryOutputCapacity = 10
)

// Auto-upgrade retry policy, spec.md §4.4 step 3.
const (
	UpgradeMaxAttempts = 3
	UpgradeRetryDelay  = 100 * time.Millisecond
)

// Discovery cadence, spec.md §4.5.
const DiscoveryInterval = 30 * time.Second

// IP-change datagram, spec.md §4.4 ModifyDevice and §6.
const (
	ModifyIPCommandPort = 30303
	ModifyIPMessageFmt  = "SetSS1IP %s"
)

// Network discovery autodiscovery port, spec.md §4.5 and §6.
const NetworkDiscoveryPort = 30303

// Firmware tool names, spec.md §4.6.
const (
	ToolStm32Flash        = "stm32flash"
	ToolPing360Bootloader = "ping360-bootloader"
)

// Firmware retry policy, spec.md §4.6. stm32flash retries at a 5,000 ms
// delay (spec.md §8 scenario 4 is explicit about this); see DESIGN.md's
// Open Question decisions for the 5,000 ms vs. 10,000 ms discrepancy this
// resolves.
const (
	Stm32FlashMaxAttempts        = 3
	Stm32FlashRetryDelay         = 5000 * time.Millisecond
	Ping360BootloaderMaxAttempts = 3
	Ping360BootloaderRetryDelay  = 10000 * time.Millisecond
)

// Stm32FlashGoAddress is the fixed application start address for the GO
// phase of an stm32flash update (spec.md §4.6, §6).
const Stm32FlashGoAddress = "0x08000000"

// Firmware cache layout, spec.md §4.6, §6.
const FirmwareCacheRoot = "firmwares"
