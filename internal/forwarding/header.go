// Package forwarding implements the Forwarding Engine: the collection
// header, the send path with route lookup, the receive dispatch (by
// payload length) across child-control/topology-report/data frames, and
// hop-limit enforcement.
package forwarding

import "ConvergeCast/internal/meshaddr"

// HeaderSize is the wire length of the collection header:
// source:addr | dest:addr | hops:u8.
const HeaderSize = meshaddr.Size*2 + 1

// Header is the collection header prepended to every data packet.
type Header struct {
	Source meshaddr.Addr
	Dest   meshaddr.Addr
	Hops   uint8
}

// EncodeData prepends hdr to payload, producing the wire frame
// unicast to the next hop.
func EncodeData(hdr Header, payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	off := 0
	copy(out[off:off+meshaddr.Size], hdr.Source[:])
	off += meshaddr.Size
	copy(out[off:off+meshaddr.Size], hdr.Dest[:])
	off += meshaddr.Size
	out[off] = hdr.Hops
	off++
	copy(out[off:], payload)
	return out
}

// DecodeData splits wire into its Header and the trailing application
// payload. It returns ok=false if wire is shorter than HeaderSize.
func DecodeData(wire []byte) (hdr Header, payload []byte, ok bool) {
	if len(wire) < HeaderSize {
		return Header{}, nil, false
	}
	off := 0
	copy(hdr.Source[:], wire[off:off+meshaddr.Size])
	off += meshaddr.Size
	copy(hdr.Dest[:], wire[off:off+meshaddr.Size])
	off += meshaddr.Size
	hdr.Hops = wire[off]
	off++
	return hdr, wire[off:], true
}
