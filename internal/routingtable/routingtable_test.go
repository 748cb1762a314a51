package routingtable

import (
	"testing"
	"time"

	"ConvergeCast/internal/meshaddr"
)

func addr(n uint16) meshaddr.Addr { return meshaddr.FromUint16(n) }

func TestNewInstallsSelfEntry(t *testing.T) {
	self := addr(1)
	rt := New(self, true)
	e, ok := rt.Lookup(self)
	if !ok || e.Type != Self || e.Metric != 0 {
		t.Fatalf("sink self entry = %+v, ok=%v, want metric 0", e, ok)
	}

	rt2 := New(addr(2), false)
	e2, ok := rt2.Lookup(addr(2))
	if !ok || e2.Type != Self || e2.Metric == 0 {
		t.Fatalf("non-sink self entry = %+v, ok=%v, want nonzero metric", e2, ok)
	}
}

func TestAddRejectsNonSelfRouteToOwnAddress(t *testing.T) {
	self := addr(1)
	rt := New(self, false)
	if rt.Add(self, addr(9), Parent, 1, -40) {
		t.Fatal("expected Add to reject non-SELF route to own address")
	}
}

func TestAddPriorityArbitration(t *testing.T) {
	rt := New(addr(1), false)
	dest := addr(5)

	if !rt.Add(dest, addr(5), Neighbor, 100, -60) {
		t.Fatal("initial neighbor add should succeed")
	}
	// Here stored is Neighbor(1). Topology(2) has higher priority, should overwrite.
	if !rt.Add(dest, addr(6), Topology, 50, -70) {
		t.Fatal("higher priority add should succeed")
	}
	e, ok := rt.Lookup(dest)
	if !ok || e.Type != Topology || e.NextHop != addr(6) {
		t.Fatalf("expected overwritten Topology entry, got %+v", e)
	}

	// Lower priority than stored Topology, different next hop: dropped.
	if rt.Add(dest, addr(7), Neighbor, 10, -50) {
		t.Fatal("lower priority add with different next-hop should be dropped")
	}
	e2, _ := rt.Lookup(dest)
	if e2.Type != Topology || e2.NextHop != addr(6) {
		t.Fatalf("entry should remain Topology/addr(6), got %+v", e2)
	}

	// Lower priority, same next hop: touch only.
	if !rt.Add(dest, addr(6), Neighbor, 10, -50) {
		t.Fatal("lower priority add with matching next-hop should refresh")
	}
	e3, _ := rt.Lookup(dest)
	if e3.Type != Topology {
		t.Fatalf("refresh-only update must not change type, got %+v", e3)
	}
}

func TestLookupParentFallback(t *testing.T) {
	rt := New(addr(1), false)
	dest := addr(42)

	if _, ok := rt.Lookup(dest); ok {
		t.Fatal("expected no route before parent adopted")
	}

	rt.Add(addr(2), addr(2), Parent, 1, -50)
	e, ok := rt.Lookup(dest)
	if !ok || e.Type != Parent {
		t.Fatalf("expected parent fallback route, got %+v ok=%v", e, ok)
	}
}

func TestLookupSinkHasNoParentFallback(t *testing.T) {
	rt := New(addr(1), true)
	if _, ok := rt.Lookup(addr(99)); ok {
		t.Fatal("sink must not fall back to a parent route it cannot have")
	}
}

func TestDeleteByNextHopSparesSelf(t *testing.T) {
	self := addr(1)
	rt := New(self, false)
	rt.Add(addr(2), self, Neighbor, 10, -40)
	rt.Add(addr(3), self, Topology, 20, -40)

	removed := rt.DeleteByNextHop(self)
	for _, r := range removed {
		if r == self {
			t.Fatal("DeleteByNextHop must never remove the SELF entry")
		}
	}
	if _, ok := rt.Lookup(self); !ok {
		t.Fatal("self entry must survive DeleteByNextHop")
	}
	if _, ok := rt.Lookup(addr(2)); ok {
		t.Fatal("addr(2) should have been removed")
	}
	if _, ok := rt.Lookup(addr(3)); ok {
		t.Fatal("addr(3) should have been removed")
	}
}

func TestPurgeExcludesSelfAndParent(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := now
	rt := New(addr(1), false, WithClock(func() time.Time { return clock }))

	rt.Add(addr(2), addr(2), Parent, 1, -40)
	rt.Add(addr(3), addr(2), Topology, 5, -40)

	clock = now.Add(10 * time.Hour)
	removed := rt.Purge(clock)

	found := map[meshaddr.Addr]bool{}
	for _, r := range removed {
		found[r] = true
	}
	if found[addr(1)] || found[addr(2)] {
		t.Fatalf("purge must not remove SELF or PARENT entries, removed=%v", removed)
	}
	if !found[addr(3)] {
		t.Fatalf("expected stale TOPOLOGY entry to be purged, removed=%v", removed)
	}
	if _, ok := rt.Lookup(addr(2)); !ok {
		t.Fatal("parent entry must still be present after purge")
	}
}

func TestDeleteRequiresMatchingNextHop(t *testing.T) {
	rt := New(addr(1), false)
	rt.Add(addr(2), addr(9), Neighbor, 1, -50)

	if rt.Delete(addr(2), addr(8)) {
		t.Fatal("delete with wrong next-hop must fail")
	}
	if !rt.Delete(addr(2), addr(9)) {
		t.Fatal("delete with correct next-hop must succeed")
	}
	if _, ok := rt.Lookup(addr(2)); ok {
		t.Fatal("entry should be gone after delete")
	}
}

func TestSlabExhaustion(t *testing.T) {
	rt := New(addr(1), false, WithCapacity(2))
	// capacity 2: slot 0 already used by SELF entry.
	if !rt.Add(addr(2), addr(2), Neighbor, 1, -50) {
		t.Fatal("expected room for one more entry")
	}
	if rt.Add(addr(3), addr(3), Neighbor, 1, -50) {
		t.Fatal("expected slab exhaustion to reject further inserts")
	}
}

func TestTopologyAndSelfAddrsRespectsLimit(t *testing.T) {
	self := addr(1)
	rt := New(self, true)
	for i := uint16(2); i < 10; i++ {
		rt.Add(addr(i), addr(2), Topology, 5, -40)
	}
	got := rt.TopologyAndSelfAddrs(3)
	if len(got) != 3 {
		t.Fatalf("expected limit of 3 addresses, got %d", len(got))
	}
}
