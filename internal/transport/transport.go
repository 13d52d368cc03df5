// Package transport opens the duplex byte stream a device driver talks
// over, per spec.md §4.1: a UDP datagram stream or a serial line.
package transport

import (
	"io"

	"github.com/pkg/errors"

	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// Stream is the opaque duplex byte stream a driver wraps with its typed
// request/response client.
type Stream interface {
	io.ReadWriteCloser
}

// Open opens the given source, returning a Stream or a sonar.ErrDeviceSource
// on any open/configure/flush failure.
func Open(source sonar.SourceSelection) (Stream, error) {
	switch source.Kind {
	case sonar.SourceUDP:
		return openUDP(source.IP, source.Port)
	case sonar.SourceSerial:
		return openSerial(source.Path, source.Baudrate)
	default:
		return nil, sonar.ErrDeviceSource{Msg: "unknown source kind"}
	}
}

func wrapSourceErr(err error, msg string) error {
	return sonar.ErrDeviceSource{Msg: errors.Wrap(err, msg).Error()}
}
