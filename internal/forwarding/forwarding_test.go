package forwarding

import (
	"testing"

	"ConvergeCast/internal/meshaddr"
	"ConvergeCast/internal/routingtable"
	"ConvergeCast/internal/subtree"
	"ConvergeCast/internal/tunables"
)

func addr(n uint16) meshaddr.Addr { return meshaddr.FromUint16(n) }

func newTestEngine(self meshaddr.Addr, isSink bool) (*Engine, *routingtable.RoutingTable, *subtree.Registry) {
	rt := routingtable.New(self, isSink)
	sub := subtree.New(self)
	return New(self, isSink, rt, sub, tunables.Defaults(), nil), rt, sub
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	hdr := Header{Source: addr(1), Dest: addr(2), Hops: 3}
	wire := EncodeData(hdr, []byte("payload"))
	got, payload, ok := DecodeData(wire)
	if !ok || got != hdr || string(payload) != "payload" {
		t.Fatalf("round trip mismatch: got %+v %q ok=%v", got, payload, ok)
	}
}

func TestClassifyByLength(t *testing.T) {
	if ClassifyByLength(ChildControlSize) != KindChildControl {
		t.Fatal("expected child-control classification")
	}
	if ClassifyByLength(topologyReportSizeForTest()) != KindTopologyReport {
		t.Fatal("expected topology-report classification")
	}
	if ClassifyByLength(HeaderSize) != KindData {
		t.Fatal("expected bare header (empty payload) to classify as data")
	}
	if ClassifyByLength(1) != KindUnknown {
		t.Fatal("expected undersized frame to classify as unknown")
	}
}

func TestSendFailsWithoutRoute(t *testing.T) {
	e, _, _ := newTestEngine(addr(1), false)
	_, _, err := e.Send(addr(99), []byte("x"))
	if err != ErrNoRoute {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestSendBuildsWireFrameToNextHop(t *testing.T) {
	self := addr(2)
	e, rt, _ := newTestEngine(self, false)
	rt.Add(addr(1), addr(1), routingtable.Parent, 1, -40)

	wire, nextHop, err := e.Send(addr(1), []byte("data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nextHop != addr(1) {
		t.Fatalf("expected next hop addr(1), got %v", nextHop)
	}
	hdr, payload, ok := DecodeData(wire)
	if !ok || hdr.Source != self || hdr.Dest != addr(1) || hdr.Hops != 0 || string(payload) != "data" {
		t.Fatalf("unexpected wire frame: %+v %q ok=%v", hdr, payload, ok)
	}
}

func TestReceiveDataDeliversToSelf(t *testing.T) {
	self := addr(3)
	e, _, _ := newTestEngine(self, false)
	wire := EncodeData(Header{Source: addr(1), Dest: self, Hops: 2}, []byte("hi"))

	out := e.ReceiveData(wire)
	if !out.Delivered || out.Hops != 3 || out.Source != addr(1) || string(out.Payload) != "hi" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestReceiveDataHopLimitDrop(t *testing.T) {
	// the scenario 5.
	self := addr(9)
	e, _, _ := newTestEngine(self, false)
	wire := EncodeData(Header{Source: addr(1), Dest: addr(2), Hops: uint8(tunables.MaxPathLength)}, []byte("x"))

	out := e.ReceiveData(wire)
	if !out.Dropped || out.Forward {
		t.Fatalf("expected frame at max hops to be dropped, got %+v", out)
	}
}

func TestReceiveDataForwardsOnward(t *testing.T) {
	self := addr(2)
	e, rt, _ := newTestEngine(self, false)
	rt.Add(addr(3), addr(3), routingtable.Neighbor, 5, -40)

	wire := EncodeData(Header{Source: addr(1), Dest: addr(3), Hops: 0}, []byte("x"))
	out := e.ReceiveData(wire)
	if !out.Forward || out.NextHop != addr(3) {
		t.Fatalf("expected forward to addr(3), got %+v", out)
	}
	hdr, _, _ := DecodeData(out.ForwardWire)
	if hdr.Hops != 1 {
		t.Fatalf("expected hops incremented to 1, got %d", hdr.Hops)
	}
}

func TestReceiveDataDropsOnMissingRoute(t *testing.T) {
	self := addr(2)
	e, _, _ := newTestEngine(self, true)
	wire := EncodeData(Header{Source: addr(1), Dest: addr(99), Hops: 0}, []byte("x"))
	out := e.ReceiveData(wire)
	if !out.Dropped {
		t.Fatal("expected drop when no route exists to forward destination")
	}
}

func TestApplyAddChildInstallsTopologyRouteAndSubtree(t *testing.T) {
	self := addr(1)
	e, rt, sub := newTestEngine(self, false)
	e.ApplyAddChild(addr(5), addr(2))

	entry, ok := rt.Lookup(addr(5))
	if !ok || entry.Type != routingtable.Topology || entry.NextHop != addr(2) {
		t.Fatalf("expected TOPOLOGY route via addr(2), got %+v ok=%v", entry, ok)
	}
	if !sub.Contains(addr(5)) {
		t.Fatal("expected child added to subtree on non-sink")
	}
}

func TestApplyAddChildSinkDoesNotTouchSubtree(t *testing.T) {
	self := addr(1)
	e, _, sub := newTestEngine(self, true)
	e.ApplyAddChild(addr(5), addr(2))
	if sub.Contains(addr(5)) {
		t.Fatal("sink should not add children to its own subtree registry")
	}
}

func TestApplyRemoveChildScrubsAndReinstallsNeighbor(t *testing.T) {
	self := addr(1)
	e, rt, sub := newTestEngine(self, false)
	rt.Add(addr(5), addr(6), routingtable.Topology, 2, -95)
	rt.Add(addr(6), addr(6), routingtable.Topology, 1, -95)
	sub.AppendIfAbsent(addr(6))
	sub.AppendIfAbsent(addr(5))

	emit := e.ApplyRemoveChild(addr(6), addr(7))
	if !emit {
		t.Fatal("expected ApplyRemoveChild to request a topology report emission")
	}
	if _, ok := rt.Lookup(addr(5)); ok {
		t.Fatal("expected descendant of removed child to be scrubbed")
	}
	entry, ok := rt.Lookup(addr(6))
	if !ok || entry.Type != routingtable.Neighbor || entry.NextHop != addr(7) {
		t.Fatalf("expected child reinstalled as NEIGHBOR via sender, got %+v ok=%v", entry, ok)
	}
	if sub.Contains(addr(5)) {
		t.Fatal("expected removed child's descendant to be scrubbed from the subtree registry")
	}
	if sub.Contains(addr(6)) {
		t.Fatal("expected removed child itself to be scrubbed from the subtree registry")
	}
}

func topologyReportSizeForTest() int {
	return meshaddr.Size + 2 + 2 + tunables.MaxSubtreeSize*meshaddr.Size
}
