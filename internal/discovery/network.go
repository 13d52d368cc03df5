package discovery

import (
	"context"
	"net"
	"time"

	"github.com/bluerobotics-go/sonarfleetd/internal/common"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// autodiscoveryPacket is the datagram broadcast to solicit responders. Its
// exact framing is the ping-protocol codec's concern (out of scope per
// spec.md §1); this module only needs something a listening device
// recognizes well enough to answer, so it sends the same request/response
// pair every other client on the network would also send.
var autodiscoveryPacket = []byte("discovery")

// networkDiscoveryTimeout bounds how long NetworkDiscover waits for
// responders before returning what it collected so far.
const networkDiscoveryTimeout = 2 * time.Second

// NetworkDiscover implements spec.md §4.5 step 2's "network_discovery()":
// broadcast the autodiscovery packet on NetworkDiscoveryPort and collect
// responders, synchronous best-effort. Exported so internal/manager's
// AutoCreate can drive the same probe directly (spec.md §4.4), without
// waiting on the discovery service's own scheduled tick.
func NetworkDiscover(ctx context.Context) ([]sonar.SourceSelection, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: common.NetworkDiscoveryPort}
	if _, err := conn.WriteToUDP(autodiscoveryPacket, broadcastAddr); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(networkDiscoveryTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetReadDeadline(deadline)

	seen := make(map[string]struct{})
	var sources []sonar.SourceSelection
	buf := make([]byte, 1500)

	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		if n == 0 || addr == nil {
			continue
		}
		if _, dup := seen[addr.IP.String()]; dup {
			continue
		}
		seen[addr.IP.String()] = struct{}{}
		sources = append(sources, sonar.UdpSource(addr.IP.String(), uint16(addr.Port)))
	}

	return sources, nil
}
