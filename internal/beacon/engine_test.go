package beacon

import (
	"testing"
	"time"

	"ConvergeCast/internal/meshaddr"
	"ConvergeCast/internal/routingtable"
	"ConvergeCast/internal/subtree"
	"ConvergeCast/internal/tunables"
)

func addr(n uint16) meshaddr.Addr { return meshaddr.FromUint16(n) }

func noJitter() time.Duration { return 0 }

func newTestEngine(self meshaddr.Addr, isSink bool) (*Engine, *routingtable.RoutingTable, *subtree.Registry) {
	rt := routingtable.New(self, isSink)
	sub := subtree.New(self)
	e := New(self, isSink, rt, sub, tunables.Defaults(), nil)
	return e, rt, sub
}

func TestTwoNodeTreeScenario(t *testing.T) {
	// the scenario 1: A=sink, B non-sink. One beacon exchange.
	a := addr(1)
	b := addr(2)

	be, _, _ := newTestEngine(b, false)
	now := time.Unix(1000, 0)

	out := be.HandleReceive(a, Frame{Seqn: 0, Metric: 0}, -40, now, noJitter)
	if out.Dropped {
		t.Fatal("beacon should not be dropped")
	}
	parent, ok := be.Parent()
	if !ok || parent != a {
		t.Fatalf("expected B to adopt A as parent, got %v ok=%v", parent, ok)
	}
	if be.Metric() != 1 {
		t.Fatalf("expected metric 1, got %d", be.Metric())
	}
	if !out.HasAddChild || out.SendAddChildTo != a {
		t.Fatalf("expected ADD_CHILD to be sent to A, got %+v", out)
	}
	if !out.EmitTopologyReport {
		t.Fatal("expected topology report emission on fresh parent adoption")
	}
}

func TestRSSIGateDropsWeakBeacon(t *testing.T) {
	be, _, _ := newTestEngine(addr(2), false)
	out := be.HandleReceive(addr(1), Frame{Seqn: 0, Metric: 0}, -100, time.Now(), noJitter)
	if !out.Dropped {
		t.Fatal("expected beacon below RSSI threshold to be dropped")
	}
	if _, ok := be.Parent(); ok {
		t.Fatal("no parent should be adopted from a dropped beacon")
	}
}

func TestSeqnGateDropsStaleBeacon(t *testing.T) {
	be, _, _ := newTestEngine(addr(2), false)
	be.HandleReceive(addr(1), Frame{Seqn: 5, Metric: 0}, -40, time.Now(), noJitter)
	out := be.HandleReceive(addr(3), Frame{Seqn: 2, Metric: 0}, -40, time.Now(), noJitter)
	if !out.Dropped {
		t.Fatal("expected beacon with seqn older than observed to be dropped")
	}
}

func TestLoopPreventionScenario(t *testing.T) {
	// the scenario 4: X is in B's subtree; B must not adopt X.
	b := addr(2)
	x := addr(99)
	be, _, sub := newTestEngine(b, false)

	// B currently parented on some other node C first.
	c := addr(3)
	now := time.Unix(2000, 0)
	be.HandleReceive(c, Frame{Seqn: 0, Metric: 0}, -40, now, noJitter)
	if p, _ := be.Parent(); p != c {
		t.Fatalf("expected B parented on C, got %v", p)
	}

	sub.AppendIfAbsent(x)

	later := now.Add(41 * time.Second)
	out := be.HandleReceive(x, Frame{Seqn: 0, Metric: 0}, -40, later, noJitter)
	if out.HasAddChild {
		t.Fatal("X is in B's subtree, must not be adopted as parent")
	}
	if p, _ := be.Parent(); p != c {
		t.Fatalf("B's parent must remain C, got %v", p)
	}
}

func TestParentSwitchScenario(t *testing.T) {
	// the scenario 3.
	b := addr(2)
	c := addr(3)
	d := addr(4)
	be, _, _ := newTestEngine(b, false)

	now := time.Unix(3000, 0)
	be.HandleReceive(c, Frame{Seqn: 0, Metric: 0}, -40, now, noJitter)

	later := now.Add(41 * time.Second)
	out := be.HandleReceive(d, Frame{Seqn: 0, Metric: 0}, -40, later, noJitter)

	if !out.HasRemoveChild || out.SendRemoveChildTo != c {
		t.Fatalf("expected REMOVE_CHILD sent to old parent C, got %+v", out)
	}
	if !out.HasAddChild || out.SendAddChildTo != d {
		t.Fatalf("expected ADD_CHILD sent to new parent D, got %+v", out)
	}
	if p, _ := be.Parent(); p != d {
		t.Fatalf("expected B's parent to switch to D, got %v", p)
	}
}

func TestParentSwitchIntervalDamps(t *testing.T) {
	b := addr(2)
	c := addr(3)
	d := addr(4)
	be, _, _ := newTestEngine(b, false)

	now := time.Unix(4000, 0)
	be.HandleReceive(c, Frame{Seqn: 0, Metric: 0}, -40, now, noJitter)

	soon := now.Add(5 * time.Second)
	out := be.HandleReceive(d, Frame{Seqn: 0, Metric: 0}, -40, soon, noJitter)
	if out.HasAddChild {
		t.Fatal("parent switch inside the minimum switch interval must be suppressed")
	}
	if p, _ := be.Parent(); p != c {
		t.Fatalf("parent must remain C, got %v", p)
	}
}

func TestStabilityDoublesInterval(t *testing.T) {
	b := addr(2)
	c := addr(3)
	be, _, _ := newTestEngine(b, false)

	now := time.Unix(5000, 0)
	be.HandleReceive(c, Frame{Seqn: 0, Metric: 0}, -40, now, noJitter)
	initial := be.Interval()
	if initial != tunables.BeaconMinInterval {
		t.Fatalf("expected interval reset to MIN after adoption, got %v", initial)
	}

	for i := 0; i < tunables.StabilityThreshold; i++ {
		now = now.Add(1 * time.Second)
		be.HandleReceive(c, Frame{Seqn: 0, Metric: 0}, -40, now, noJitter)
	}
	if be.Interval() != initial*2 {
		t.Fatalf("expected interval doubled after stability threshold, got %v want %v", be.Interval(), initial*2)
	}
}

func TestSinkNeverAdoptsParent(t *testing.T) {
	be, _, _ := newTestEngine(addr(1), true)
	be.HandleReceive(addr(2), Frame{Seqn: 0, Metric: 0}, -40, time.Now(), noJitter)
	if _, ok := be.Parent(); ok {
		t.Fatal("sink must never adopt a parent")
	}
}

func TestNonParentNeighborInstalled(t *testing.T) {
	be, rt, _ := newTestEngine(addr(2), false)
	now := time.Now()
	// Adopt a parent one hop from the sink first (own metric becomes 1),
	// so the metric-200 beacon below fails the adoption test (201 > 1).
	be.HandleReceive(addr(1), Frame{Seqn: 0, Metric: 0}, -40, now, noJitter)
	sender := addr(5)
	be.HandleReceive(sender, Frame{Seqn: 0, Metric: 200}, -40, now, noJitter)

	e, ok := rt.Lookup(sender)
	if !ok || e.Type != routingtable.Neighbor {
		t.Fatalf("expected NEIGHBOR route for non-adopted sender, got %+v ok=%v", e, ok)
	}
}

func TestSinkFireAdvancesSeqnAndReschedules(t *testing.T) {
	be, _, _ := newTestEngine(addr(1), true)
	r1 := be.Fire()
	if !r1.Reschedule {
		t.Fatal("sink must always self-reschedule its beacon timer")
	}
	r2 := be.Fire()
	if r2.Frame.Seqn != r1.Frame.Seqn+1 {
		t.Fatalf("expected sink to advance seqn each fire, got %d then %d", r1.Frame.Seqn, r2.Frame.Seqn)
	}
}

func TestNonSinkFireDoesNotReschedule(t *testing.T) {
	be, _, _ := newTestEngine(addr(2), false)
	r := be.Fire()
	if r.Reschedule {
		t.Fatal("non-sink beacon fire must not self-reschedule; only HandleReceive re-arms it")
	}
}
