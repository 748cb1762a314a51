package topology

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
	return New(self, rt, sub, tunables.Defaults(), nil), rt, sub
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{Node: addr(5), Metric: 3, SubtreeSize: 2}
	f.Subtree[0] = addr(6)
	f.Subtree[1] = addr(7)

	b := Encode(f)
	if len(b) != Size {
		t.Fatalf("expected encoded length %d, got %d", Size, len(b))
	}
	got, ok := Decode(b)
	if !ok {
		t.Fatal("decode failed")
	}
	if got != f {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, f)
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	if _, ok := Decode([]byte{1, 2, 3}); ok {
		t.Fatal("expected decode of short buffer to fail")
	}
}

func TestEnqueueArmsTimerOnceAndDropsWhenFull(t *testing.T) {
	e, _, _ := newTestEngine(addr(1), true)

	arm, dropped := e.Enqueue(Frame{Node: addr(2)})
	if !arm || dropped {
		t.Fatalf("first enqueue should arm timer, got arm=%v dropped=%v", arm, dropped)
	}
	arm2, dropped2 := e.Enqueue(Frame{Node: addr(3)})
	if arm2 || dropped2 {
		t.Fatalf("second enqueue should not rearm or drop, got arm=%v dropped=%v", arm2, dropped2)
	}

	for i := 0; i < tunables.MaxBufferedReports; i++ {
		e.Enqueue(Frame{Node: addr(uint16(10 + i))})
	}
	_, droppedFull := e.Enqueue(Frame{Node: addr(250)})
	if !droppedFull {
		t.Fatal("expected enqueue beyond capacity to be dropped")
	}
}

func TestFlushAppliesReportsToRoutingTableAndSubtree(t *testing.T) {
	sink := addr(1)
	e, rt, sub := newTestEngine(sink, true)

	reporter := addr(2)
	f := Frame{Node: reporter, Metric: 1, SubtreeSize: 1}
	f.Subtree[0] = addr(3)

	e.Enqueue(f)
	n := e.Flush()
	if n != 1 {
		t.Fatalf("expected 1 report applied, got %d", n)
	}

	entry, ok := rt.Lookup(reporter)
	if !ok || entry.Type != routingtable.Topology || entry.Metric != 1 {
		t.Fatalf("expected TOPOLOGY route for reporter, got %+v ok=%v", entry, ok)
	}
	grandchild, ok := rt.Lookup(addr(3))
	if !ok || grandchild.Type != routingtable.Topology || grandchild.Metric != 2 || grandchild.NextHop != reporter {
		t.Fatalf("expected TOPOLOGY route for grandchild via reporter, got %+v ok=%v", grandchild, ok)
	}
	if !sub.Contains(addr(3)) {
		t.Fatal("expected grandchild folded into subtree registry")
	}
}

func TestApplyScrubsStaleDescendantsOnRepeatedReports(t *testing.T) {
	sink := addr(1)
	e, rt, sub := newTestEngine(sink, true)
	reporter := addr(2)

	first := Frame{Node: reporter, Metric: 1, SubtreeSize: 1}
	first.Subtree[0] = addr(3)
	e.Enqueue(first)
	e.Flush()

	if !sub.Contains(addr(3)) {
		t.Fatal("expected grandchild folded into subtree registry after first report")
	}

	// Grandchild addr(3) re-parents elsewhere; reporter's new report
	// no longer claims it.
	second := Frame{Node: reporter, Metric: 1, SubtreeSize: 0}
	e.Enqueue(second)
	e.Flush()

	if _, ok := rt.Lookup(addr(3)); ok {
		t.Fatal("expected stale grandchild route to be scrubbed by delete_by_next_hop")
	}
	if _, ok := rt.Lookup(reporter); !ok {
		t.Fatal("reporter's own route should still exist")
	}
	if sub.Contains(addr(3)) {
		t.Fatal("expected stale grandchild to also be scrubbed from the subtree registry")
	}
}

func TestBuildReportPullsLiveRoutingTableState(t *testing.T) {
	self := addr(2)
	e, rt, _ := newTestEngine(self, false)
	rt.Add(addr(3), addr(3), routingtable.Topology, 1, -95)

	f := e.BuildReport(1)
	if f.Node != self || f.Metric != 1 {
		t.Fatalf("unexpected report header: %+v", f)
	}
	found := false
	for i := uint16(0); i < f.SubtreeSize; i++ {
		if f.Subtree[i] == addr(3) {
			found = true
		}
	}
	if !found {
		t.Fatal("expected topology destination to appear in built report")
	}
}
