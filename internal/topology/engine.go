package topology

import (
	"ConvergeCast/internal/logger"
	"ConvergeCast/internal/meshaddr"
	"ConvergeCast/internal/routingtable"
	"ConvergeCast/internal/subtree"
	"ConvergeCast/internal/tunables"
)

// Engine owns the ingress report buffer and applies reports to the
// routing table and subtree registry. It holds no timer itself: the
// owning internal/conn.Connection arms the single-shot batch delay and
// calls Flush when it fires.
type Engine struct {
	self meshaddr.Addr
	rt   *routingtable.RoutingTable
	sub  *subtree.Registry
	tun  tunables.Tunables
	lgr  logger.Logger

	pending []Frame
}

// New creates a topology Engine for self.
func New(self meshaddr.Addr, rt *routingtable.RoutingTable, sub *subtree.Registry, tun tunables.Tunables, lgr logger.Logger) *Engine {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	return &Engine{self: self, rt: rt, sub: sub, tun: tun, lgr: lgr}
}

// Enqueue appends r to the pending buffer. It reports dropped=true and
// logs if the buffer is full, and armTimer=true the moment the buffer
// transitions from empty to non-empty — the caller should arm the batch
// delay timer exactly once per batch, the same way the reference
// firmware's report_timer_active flag guards a single ctimer_set per
// batch.
func (e *Engine) Enqueue(r Frame) (armTimer bool, dropped bool) {
	if len(e.pending) >= e.tun.MaxBufferedReports {
		e.lgr.Warn("topology: report buffer full, dropping report", logger.FAddr("node", r.Node))
		return false, true
	}
	e.pending = append(e.pending, r)
	return len(e.pending) == 1, false
}

// PendingCount reports how many reports are currently buffered.
func (e *Engine) PendingCount() int { return len(e.pending) }

// Flush applies every buffered report in arrival order and clears the
// buffer. It returns the number of reports applied, so the caller can
// decide whether an aggregated upward report is warranted (it is,
// whenever count > 0 and a parent exists).
func (e *Engine) Flush() int {
	reports := e.pending
	e.pending = nil
	for _, r := range reports {
		e.apply(r)
	}
	return len(reports)
}

func (e *Engine) apply(r Frame) {
	// Step 1: scrub stale descendants previously reachable via this
	// reporter — handles re-parenting grandchildren. Anything dropped
	// from the routing table must also leave the subtree registry, or a
	// node that has genuinely re-parented elsewhere stays wrongly
	// shielded by the loop-avoidance check in beacon adoption.
	for _, dest := range e.rt.DeleteByNextHop(r.Node) {
		e.sub.RemoveFirstOccurrence(dest)
	}

	// Step 2: the reporter itself becomes a TOPOLOGY destination.
	e.rt.Add(r.Node, r.Node, routingtable.Topology, r.Metric, tunables.RSSIThreshold)

	// Step 3 & 4: each reported subtree address becomes a TOPOLOGY
	// destination one hop further, and is folded into our own subtree
	// registry if not already present.
	for i := uint16(0); i < r.SubtreeSize && int(i) < len(r.Subtree); i++ {
		a := r.Subtree[i]
		if a.IsNull() {
			continue
		}
		e.rt.Add(a, r.Node, routingtable.Topology, r.Metric+1, tunables.RSSIThreshold)
		e.sub.AppendIfAbsent(a)
	}
}

// BuildReport composes the report this node should emit upward, pulling
// the current subtree contents from the RT at build time rather than a
// cached snapshot.
func (e *Engine) BuildReport(metric uint16) Frame {
	addrs := e.rt.TopologyAndSelfAddrs(tunables.MaxSubtreeSize)
	var f Frame
	f.Node = e.self
	f.Metric = metric
	n := copy(f.Subtree[:], addrs)
	f.SubtreeSize = uint16(n)
	return f
}
