package transport

import (
	"io"
	"time"

	"github.com/goburrow/serial"
)

// fallbackBaudrates is the fixed list of rates tried, in order, when the
// requested baud does not appear to be the line's current configuration.
// 115200 is most ping devices' factory default, hence first.
var fallbackBaudrates = []int{115200, 57600, 9600}

// flusher is implemented by goburrow/serial's port on platforms that expose
// tcflush(2); buffer-clearing is best-effort where it is not.
type flusher interface {
	Flush() error
}

// openSerial opens path at baudrate in raw mode, runs the pre-routine that
// probes the line at the requested rate and falls back through a fixed
// list, then clears RX/TX buffers.
func openSerial(path string, baudrate uint32) (Stream, error) {
	cfg := &serial.Config{
		Address:  path,
		BaudRate: int(baudrate),
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  200 * time.Millisecond,
	}

	port, err := serial.Open(cfg)
	if err != nil {
		return nil, wrapSourceErr(err, "open serial port")
	}

	if !probeBaudrate(port) {
		// The line doesn't talk at the requested rate; try the fixed
		// fallback list to find what it's currently configured at, then
		// reopen once more at the rate the caller actually asked for.
		for _, fallback := range fallbackBaudrates {
			if fallback == int(baudrate) {
				continue
			}

			_ = port.Close()
			probeCfg := *cfg
			probeCfg.BaudRate = fallback
			probePort, openErr := serial.Open(&probeCfg)
			if openErr != nil {
				continue
			}

			found := probeBaudrate(probePort)
			_ = probePort.Close()
			if found {
				break
			}
		}

		port, err = serial.Open(cfg)
		if err != nil {
			return nil, wrapSourceErr(err, "reopen serial port at requested baudrate")
		}
	}

	if f, ok := port.(flusher); ok {
		if err := f.Flush(); err != nil {
			_ = port.Close()
			return nil, wrapSourceErr(err, "flush serial buffers")
		}
	}

	return port, nil
}

// probeBaudrate performs a short, best-effort read to see whether the line
// is currently configured at the port's open baudrate: framing garbage at
// the wrong rate typically yields either a read error or a timeout with
// zero bytes, while the correct rate yields readable bytes. This is a
// heuristic stand-in for the reference implementation's device-protocol-aware
// probe, which this module does not have (the ping-protocol codec is an
// external collaborator per spec.md §1).
func probeBaudrate(port io.ReadWriteCloser) bool {
	buf := make([]byte, 16)
	n, err := port.Read(buf)
	return err == nil && n > 0
}
