package forwarding

import (
	"errors"

	"ConvergeCast/internal/logger"
	"ConvergeCast/internal/meshaddr"
	"ConvergeCast/internal/routingtable"
	"ConvergeCast/internal/subtree"
	"ConvergeCast/internal/topology"
	"ConvergeCast/internal/tunables"
)

// ErrNoRoute is returned by Send when the routing table has no route
// (exact or parent-fallback) to the requested destination.
var ErrNoRoute = errors.New("forwarding: no route to destination")

// Kind classifies an inbound unicast frame by its payload length, per
// the receive dispatch.
type Kind int

const (
	KindUnknown Kind = iota
	KindChildControl
	KindTopologyReport
	KindData
)

// ClassifyByLength infers the frame kind from its wire length. Frame
// types must have distinct lengths for this to be unambiguous; this is
// fragile but preserved for wire compatibility with deployed nodes.
func ClassifyByLength(n int) Kind {
	switch n {
	case ChildControlSize:
		return KindChildControl
	case topology.Size:
		return KindTopologyReport
	default:
		if n >= HeaderSize {
			return KindData
		}
		return KindUnknown
	}
}

// Engine implements send/receive/child-control handling over a shared
// routing table and subtree registry.
type Engine struct {
	self   meshaddr.Addr
	isSink bool
	rt     *routingtable.RoutingTable
	sub    *subtree.Registry
	tun    tunables.Tunables
	lgr    logger.Logger
}

// New creates a forwarding Engine for self.
func New(self meshaddr.Addr, isSink bool, rt *routingtable.RoutingTable, sub *subtree.Registry, tun tunables.Tunables, lgr logger.Logger) *Engine {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	return &Engine{self: self, isSink: isSink, rt: rt, sub: sub, tun: tun, lgr: lgr}
}

// Send resolves dest via the routing table and builds the wire frame to
// unicast to the resolved next hop. It returns ErrNoRoute if no route
// exists (the protocol's send() return code -1; unlike the reference's fixed
// packetbuf, Go's payload is already a owned []byte so header-allocation
// failure (-2) cannot occur here — see DESIGN.md).
func (e *Engine) Send(dest meshaddr.Addr, payload []byte) (wire []byte, nextHop meshaddr.Addr, err error) {
	route, ok := e.rt.Lookup(dest)
	if !ok {
		return nil, meshaddr.Addr{}, ErrNoRoute
	}
	hdr := Header{Source: e.self, Dest: dest, Hops: 0}
	return EncodeData(hdr, payload), route.NextHop, nil
}

// DataOutcome describes what the owning connection must do with an
// inbound data frame.
type DataOutcome struct {
	Dropped bool

	Delivered bool
	Source    meshaddr.Addr
	Hops      uint8
	Payload   []byte

	Forward     bool
	ForwardWire []byte
	Dest        meshaddr.Addr
	NextHop     meshaddr.Addr
	HopsLeft    uint8
}

// ReceiveData processes an inbound data frame per the receive
// path: hop-limit enforcement, local delivery, or onward forwarding.
func (e *Engine) ReceiveData(wire []byte) DataOutcome {
	hdr, payload, ok := DecodeData(wire)
	if !ok {
		return DataOutcome{Dropped: true}
	}
	if uint16(hdr.Hops)+1 > uint16(e.tun.MaxPathLength) {
		e.lgr.Debug("forwarding: dropped, hop-limit exceeded", logger.F("hops", hdr.Hops))
		return DataOutcome{Dropped: true}
	}
	hdr.Hops++

	if hdr.Dest == e.self {
		return DataOutcome{Delivered: true, Source: hdr.Source, Hops: hdr.Hops, Payload: payload}
	}

	route, ok := e.rt.Lookup(hdr.Dest)
	if !ok {
		e.lgr.Debug("forwarding: dropped, no route to forward", logger.FAddr("dest", hdr.Dest))
		return DataOutcome{Dropped: true}
	}
	return DataOutcome{
		Forward:     true,
		ForwardWire: EncodeData(hdr, payload),
		Dest:        hdr.Dest,
		NextHop:     route.NextHop,
		HopsLeft:    e.tun.MaxPathLength - hdr.Hops,
	}
}

// ApplyAddChild installs a TOPOLOGY route for child via from on receipt
// of an ADD_CHILD control frame, and folds child into the subtree
// registry on a non-sink node.
func (e *Engine) ApplyAddChild(child, from meshaddr.Addr) {
	e.rt.Add(child, from, routingtable.Topology, tunables.ChildRouteMetric, tunables.RSSIThreshold)
	if !e.isSink {
		e.sub.AppendIfAbsent(child)
	}
}

// ApplyRemoveChild processes a departing child: scrubs its whole
// subtree, removes its direct route, and reinstalls it as a NEIGHBOR via
// the sender (the two are, after all, still radio neighbors). It reports
// whether the caller should emit a topology report afterward — this
// always requests the emission, though internal/conn still gates the
// actual unicast on a parent being present.
func (e *Engine) ApplyRemoveChild(child, from meshaddr.Addr) (emitReport bool) {
	for _, dest := range e.rt.DeleteByNextHop(child) {
		e.sub.RemoveFirstOccurrence(dest)
	}
	e.rt.Delete(child, child)
	e.sub.RemoveFirstOccurrence(child)
	e.rt.Add(child, from, routingtable.Neighbor, tunables.ChildRouteMetric, tunables.RSSIThreshold)
	return true
}
