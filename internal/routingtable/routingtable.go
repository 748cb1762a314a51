// Package routingtable implements the Routing Table: an unordered
// collection of entries keyed by destination address, with
// priority-weighted insert-or-update, lookup with parent fallback,
// deletion by (destination,next-hop) or by next-hop, and age-based
// purge.
//
// Storage is a fixed-capacity slab with a free list: same operations,
// bounded worst-case memory, no fragmentation, generalizing the same
// fixed-size-slice idiom a conventional routing table already uses for
// its successor/de Bruijn lists.
package routingtable

import (
	"ConvergeCast/internal/logger"
	"ConvergeCast/internal/meshaddr"
	"ConvergeCast/internal/tunables"
	"sync"
	"time"
)

// DefaultCapacity bounds the number of simultaneously-installed routing
// entries. The reference firmware allocates entries from the platform
// heap with no hard cap; this module instead uses a generously sized
// fixed slab so the table never allocates once running.
const DefaultCapacity = 64

type slot struct {
	used  bool
	entry Entry
}

// RoutingTable is the per-connection routing state. It is safe for
// concurrent use; the single-actor internal/conn.Connection serializes
// access anyway, but the table does not rely on that for correctness so
// it can be exercised directly from tests.
type RoutingTable struct {
	mu sync.Mutex

	logger logger.Logger
	clock  func() time.Time

	self   meshaddr.Addr
	isSink bool

	slots []slot
	free  []int
	index map[meshaddr.Addr]int

	cleanupInterval time.Duration
}

// New creates a RoutingTable for self, installing its SELF entry. A
// non-sink node's SELF entry carries tunables.NoParentMetric until a
// parent is adopted; a sink's SELF entry carries metric 0 by definition.
func New(self meshaddr.Addr, isSink bool, opts ...Option) *RoutingTable {
	rt := &RoutingTable{
		logger:          &logger.NopLogger{},
		clock:           time.Now,
		self:            self,
		isSink:          isSink,
		slots:           make([]slot, DefaultCapacity),
		free:            make([]int, DefaultCapacity),
		index:           make(map[meshaddr.Addr]int, DefaultCapacity),
		cleanupInterval: tunables.CleanupInterval,
	}
	for i := 0; i < DefaultCapacity; i++ {
		rt.free[i] = DefaultCapacity - 1 - i
	}
	for _, opt := range opts {
		opt(rt)
	}

	selfMetric := tunables.NoParentMetric
	if isSink {
		selfMetric = 0
	}
	rt.insertLocked(Entry{
		Destination: self,
		NextHop:     self,
		Type:        Self,
		Metric:      selfMetric,
		RSSI:        0,
		LastUpdated: rt.clock(),
	})
	rt.logger.Debug("routing table initialized", logger.FAddr("self", self), logger.F("is_sink", isSink))
	return rt
}

// Self returns the address this table is owned by.
func (rt *RoutingTable) Self() meshaddr.Addr { return rt.self }

// IsSink reports whether this table belongs to the sink node.
func (rt *RoutingTable) IsSink() bool { return rt.isSink }

// Add installs or updates the route to dest per the priority-arbitration
// rule:
//
//   - if an entry for dest exists and the incoming priority >= stored
//     priority, overwrite (next_hop, type, metric, rssi) and touch
//     last_updated;
//   - if incoming priority is lower, leave the entry but still refresh
//     last_updated iff the next-hop matches; otherwise drop the update;
//   - if no entry exists, insert a new one.
//
// The guard "only the SELF entry may have destination = this node" is
// enforced unconditionally: any other attempt to install dest == self is
// rejected and reported via the bool return (false == not installed).
func (rt *RoutingTable) Add(dest, nextHop meshaddr.Addr, typ RouteType, metric uint16, rssi int16) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if dest == rt.self && typ != Self {
		rt.logger.Warn("Add: rejected attempt to install non-SELF route to own address",
			logger.FAddr("dest", dest), logger.F("type", typ.String()))
		return false
	}

	now := rt.clock()
	if idx, ok := rt.index[dest]; ok {
		cur := &rt.slots[idx].entry
		if typ.Priority() >= cur.Type.Priority() {
			cur.NextHop = nextHop
			cur.Type = typ
			cur.Metric = metric
			cur.RSSI = rssi
			cur.LastUpdated = now
			rt.logger.Debug("Add: entry overwritten",
				logger.FAddr("dest", dest), logger.FAddr("next_hop", nextHop), logger.F("type", typ.String()), logger.F("metric", metric))
			return true
		}
		if cur.NextHop == nextHop {
			cur.LastUpdated = now
			rt.logger.Debug("Add: lower-priority refresh only", logger.FAddr("dest", dest))
			return true
		}
		rt.logger.Debug("Add: dropped, lower priority and different next-hop",
			logger.FAddr("dest", dest), logger.F("incoming_type", typ.String()), logger.F("stored_type", cur.Type.String()))
		return false
	}

	if !rt.insertLocked(Entry{
		Destination: dest,
		NextHop:     nextHop,
		Type:        typ,
		Metric:      metric,
		RSSI:        rssi,
		LastUpdated: now,
	}) {
		rt.logger.Warn("Add: slab exhausted, route not installed", logger.FAddr("dest", dest))
		return false
	}
	rt.logger.Debug("Add: new entry installed",
		logger.FAddr("dest", dest), logger.FAddr("next_hop", nextHop), logger.F("type", typ.String()), logger.F("metric", metric))
	return true
}

// insertLocked allocates a free slot for e and indexes it. Caller holds mu.
func (rt *RoutingTable) insertLocked(e Entry) bool {
	if len(rt.free) == 0 {
		return false
	}
	idx := rt.free[len(rt.free)-1]
	rt.free = rt.free[:len(rt.free)-1]
	rt.slots[idx] = slot{used: true, entry: e}
	rt.index[e.Destination] = idx
	return true
}

// removeLocked frees the slot holding dest. Caller holds mu.
func (rt *RoutingTable) removeLocked(dest meshaddr.Addr) bool {
	idx, ok := rt.index[dest]
	if !ok {
		return false
	}
	rt.slots[idx] = slot{}
	delete(rt.index, dest)
	rt.free = append(rt.free, idx)
	return true
}

// Lookup resolves dest to a routing entry: an exact match on destination,
// or — on a non-sink node — the PARENT entry as a default route. Returns
// false if neither exists.
func (rt *RoutingTable) Lookup(dest meshaddr.Addr) (Entry, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if idx, ok := rt.index[dest]; ok {
		return rt.slots[idx].entry, true
	}
	if rt.isSink {
		return Entry{}, false
	}
	for _, s := range rt.slots {
		if s.used && s.entry.Type == Parent {
			return s.entry, true
		}
	}
	return Entry{}, false
}

// Delete removes the unique entry matching both dest and nextHop.
func (rt *RoutingTable) Delete(dest, nextHop meshaddr.Addr) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	idx, ok := rt.index[dest]
	if !ok || rt.slots[idx].entry.NextHop != nextHop {
		return false
	}
	rt.removeLocked(dest)
	rt.logger.Debug("Delete: entry removed", logger.FAddr("dest", dest), logger.FAddr("next_hop", nextHop))
	return true
}

// DeleteByNextHop removes every entry whose next-hop equals nextHop,
// except the SELF entry, which must never be removed, regardless of sink
// status (see DESIGN.md for why the narrower "except on the sink" wording
// was widened here). It returns the destinations removed, so callers can
// also scrub the subtree registry.
func (rt *RoutingTable) DeleteByNextHop(nextHop meshaddr.Addr) []meshaddr.Addr {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var removed []meshaddr.Addr
	for i := range rt.slots {
		s := &rt.slots[i]
		if !s.used || s.entry.Type == Self || s.entry.NextHop != nextHop {
			continue
		}
		removed = append(removed, s.entry.Destination)
	}
	for _, dest := range removed {
		rt.removeLocked(dest)
	}
	if len(removed) > 0 {
		rt.logger.Debug("DeleteByNextHop: entries removed",
			logger.FAddr("next_hop", nextHop), logger.F("count", len(removed)))
	}
	return removed
}

// Purge removes every entry other than SELF and PARENT whose
// LastUpdated + cleanup_interval < now, returning the destinations removed.
func (rt *RoutingTable) Purge(now time.Time) []meshaddr.Addr {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var removed []meshaddr.Addr
	for i := range rt.slots {
		s := &rt.slots[i]
		if !s.used || s.entry.Type == Self || s.entry.Type == Parent {
			continue
		}
		if s.entry.LastUpdated.Add(rt.cleanupInterval).Before(now) {
			removed = append(removed, s.entry.Destination)
		}
	}
	for _, dest := range removed {
		rt.removeLocked(dest)
	}
	if len(removed) > 0 {
		rt.logger.Debug("Purge: entries aged out", logger.F("count", len(removed)))
	}
	return removed
}

// Parent returns the current PARENT entry, if any.
func (rt *RoutingTable) Parent() (Entry, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, s := range rt.slots {
		if s.used && s.entry.Type == Parent {
			return s.entry, true
		}
	}
	return Entry{}, false
}

// Snapshot returns a copy of every installed entry, for introspection
// (cmd/meshctl, tests) and for DebugLog.
func (rt *RoutingTable) Snapshot() []Entry {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]Entry, 0, len(rt.index))
	for _, s := range rt.slots {
		if s.used {
			out = append(out, s.entry)
		}
	}
	return out
}

// TopologyAndSelfAddrs returns up to limit addresses among the TOPOLOGY-
// and SELF-typed destinations currently known, for topology-report
// emission. It always pulls live state — the topology engine caches
// nothing.
func (rt *RoutingTable) TopologyAndSelfAddrs(limit int) []meshaddr.Addr {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]meshaddr.Addr, 0, limit)
	for _, s := range rt.slots {
		if len(out) >= limit {
			break
		}
		if s.used && (s.entry.Type == Topology || s.entry.Type == Self) {
			out = append(out, s.entry.Destination)
		}
	}
	return out
}

// DebugLog emits a single structured DEBUG log line with the full table
// contents, the direct analogue of a conventional RoutingTable.DebugLog.
func (rt *RoutingTable) DebugLog() {
	entries := rt.Snapshot()
	rows := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]any{
			"dest":     e.Destination.String(),
			"next_hop": e.NextHop.String(),
			"type":     e.Type.String(),
			"metric":   e.Metric,
		})
	}
	rt.logger.Debug("RoutingTable snapshot", logger.F("entries", rows))
}
