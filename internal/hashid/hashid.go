// Package hashid implements the identity invariant of spec.md §3: a
// SourceSelection's id is the zero-extended UUID form of a deterministic
// 64-bit hash of the source.
//
// hash/maphash is deliberately avoided: its seed is process-random, which
// would break the "two managers that observe the same SourceSelection derive
// the same id" invariant across restarts. FNV-1a has none of that, which is
// exactly the property spec.md §8 "Deterministic identity" requires.
package hashid

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/google/uuid"

	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// Hash64 returns the deterministic 64-bit digest of a SourceSelection.
func Hash64(source sonar.SourceSelection) uint64 {
	h := fnv.New64a()

	// Write a kind tag first so that, e.g., a serial path never collides
	// with a UDP "ip:port" string that happens to match it byte-for-byte.
	_, _ = h.Write([]byte{byte(source.Kind)})

	switch source.Kind {
	case sonar.SourceUDP:
		_, _ = h.Write([]byte(source.IP))
		var portBuf [2]byte
		binary.BigEndian.PutUint16(portBuf[:], source.Port)
		_, _ = h.Write(portBuf[:])
	case sonar.SourceSerial:
		_, _ = h.Write([]byte(source.Path))
		var baudBuf [4]byte
		binary.BigEndian.PutUint32(baudBuf[:], source.Baudrate)
		_, _ = h.Write(baudBuf[:])
	}

	return h.Sum64()
}

// UUID builds the device id for a source: the hash's bytes occupy the low
// 64 bits (the UUID's last 8 bytes), the high 64 bits are zero. This is the
// "Hash⇒UUID round-trip" invariant of spec.md §8.
func UUID(source sonar.SourceSelection) uuid.UUID {
	var id uuid.UUID // zero-valued: high 8 bytes already zero
	binary.BigEndian.PutUint64(id[8:], Hash64(source))
	return id
}
