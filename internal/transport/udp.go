package transport

import (
	"fmt"
	"net"
)

// openUDP connects a datagram socket to ip:port and wraps it as a Stream.
// Unlike a serial line there is no baud to set or buffer to flush; a
// connected *net.UDPConn already satisfies Stream.
func openUDP(ip string, port uint16) (Stream, error) {
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return nil, wrapSourceErr(err, "resolve udp address")
	}

	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, wrapSourceErr(err, "dial udp")
	}

	return conn, nil
}
