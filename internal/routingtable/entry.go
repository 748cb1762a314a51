package routingtable

import (
	"ConvergeCast/internal/meshaddr"
	"time"
)

// RouteType classifies how a routing entry was learned. The zero value is
// intentionally not a valid route type, so a forgotten initialization is
// loud rather than silently acting as the lowest-priority route.
type RouteType int

const (
	_ RouteType = iota
	// Neighbor is a one-hop link learned directly from a beacon.
	Neighbor
	// Topology is a route learned from a topology report (sink-side
	// subtree knowledge).
	Topology
	// Parent is the next hop toward the sink.
	Parent
	// Self identifies this node.
	Self
)

// Priority returns the arbitration priority of t; higher wins ties
// (SELF=4 > PARENT=3 > TOPOLOGY=2 > NEIGHBOR=1).
func (t RouteType) Priority() int {
	switch t {
	case Self:
		return 4
	case Parent:
		return 3
	case Topology:
		return 2
	case Neighbor:
		return 1
	default:
		return 0
	}
}

func (t RouteType) String() string {
	switch t {
	case Self:
		return "SELF"
	case Parent:
		return "PARENT"
	case Topology:
		return "TOPOLOGY"
	case Neighbor:
		return "NEIGHBOR"
	default:
		return "UNKNOWN"
	}
}

// Entry is one routing-table row: a mapping-valued record describing how
// to reach Destination.
type Entry struct {
	Destination meshaddr.Addr
	NextHop     meshaddr.Addr
	Type        RouteType
	Metric      uint16
	RSSI        int16
	LastUpdated time.Time
}
