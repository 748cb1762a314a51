// Package beacon implements the Beacon Engine: periodic beacon
// broadcast/receive, the parent-selection state machine, and
// stability-adaptive beacon pacing.
package beacon

import "encoding/binary"

// Size is the wire length of an encoded beacon frame: seqn:u16 | metric:u16.
const Size = 4

// Frame is the beacon wire payload.
type Frame struct {
	Seqn   uint16
	Metric uint16
}

// Encode packs f into its little-endian wire form.
func Encode(f Frame) []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint16(buf[0:2], f.Seqn)
	binary.LittleEndian.PutUint16(buf[2:4], f.Metric)
	return buf
}

// Decode parses a beacon frame. It returns false if b is not exactly
// Size bytes long — frame-type discrimination by length depends on
// exact-length matching.
func Decode(b []byte) (Frame, bool) {
	if len(b) != Size {
		return Frame{}, false
	}
	return Frame{
		Seqn:   binary.LittleEndian.Uint16(b[0:2]),
		Metric: binary.LittleEndian.Uint16(b[2:4]),
	}, true
}
