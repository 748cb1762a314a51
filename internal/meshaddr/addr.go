// Package meshaddr defines the fixed-width link address used throughout
// the mesh routing core, standing in for the reference deployment's
// linkaddr_t.
package meshaddr

import (
	"fmt"
	"strconv"
)

// Size is the width, in bytes, of a link address (2 bytes in the
// reference deployment).
const Size = 2

// Addr is an opaque fixed-width link-layer identifier.
type Addr [Size]byte

// Null is the distinguished "no address" value (linkaddr_null).
var Null = Addr{}

// IsNull reports whether a equals the distinguished null address.
func (a Addr) IsNull() bool {
	return a == Null
}

// Equal reports whether a and b identify the same link address.
func (a Addr) Equal(b Addr) bool {
	return a == b
}

// Less provides a total order over addresses, used only for deterministic
// iteration/output (e.g. sorted routing-table dumps); it has no protocol
// meaning.
func (a Addr) Less(b Addr) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// String renders the address as colon-separated hex bytes, e.g. "01:00".
func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x", a[0], a[1])
}

// FromUint16 builds an Addr from a 16-bit node number, the convention used
// throughout this module's tests and simulation tooling ("node 2" => 02:00).
func FromUint16(n uint16) Addr {
	return Addr{byte(n), byte(n >> 8)}
}

// Parse accepts either the "xx:xx" hex form produced by String, or a plain
// decimal node number as produced by FromUint16, and is used to read node
// addresses out of YAML config and command-line flags.
func Parse(s string) (Addr, error) {
	var b0, b1 byte
	if n, err := fmt.Sscanf(s, "%02x:%02x", &b0, &b1); err == nil && n == 2 {
		return Addr{b0, b1}, nil
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return Addr{}, fmt.Errorf("meshaddr: invalid address %q", s)
	}
	return FromUint16(uint16(n)), nil
}
