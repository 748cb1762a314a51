package forwarding

import "ConvergeCast/internal/meshaddr"

// ChildType discriminates the two child-control message kinds.
type ChildType uint8

const (
	// AddChild announces a new child to its chosen parent.
	AddChild ChildType = 0xA1
	// RemoveChild announces a departing child to its former parent.
	RemoveChild ChildType = 0xA2
)

// ChildControlSize is the wire length of a child-control frame:
// type:u8 | child:addr.
const ChildControlSize = 1 + meshaddr.Size

// ChildControl is the child-membership control wire payload.
type ChildControl struct {
	Type  ChildType
	Child meshaddr.Addr
}

// EncodeChildControl packs c into its wire form.
func EncodeChildControl(c ChildControl) []byte {
	buf := make([]byte, ChildControlSize)
	buf[0] = byte(c.Type)
	copy(buf[1:], c.Child[:])
	return buf
}

// DecodeChildControl parses a child-control frame. Returns false if b is
// not exactly ChildControlSize bytes long.
func DecodeChildControl(b []byte) (ChildControl, bool) {
	if len(b) != ChildControlSize {
		return ChildControl{}, false
	}
	var c ChildControl
	c.Type = ChildType(b[0])
	copy(c.Child[:], b[1:])
	return c, true
}
