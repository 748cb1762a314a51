package beacon

import (
	"time"

	"ConvergeCast/internal/logger"
	"ConvergeCast/internal/meshaddr"
	"ConvergeCast/internal/routingtable"
	"ConvergeCast/internal/subtree"
	"ConvergeCast/internal/tunables"
)

// Engine owns the per-connection beacon state machine: parent address,
// current path metric, highest observed beacon sequence number,
// stability counter, switch/forward timestamps, and the current beacon
// interval.
//
// It holds no goroutines or timers of its own — the owning
// internal/conn.Connection runs a single event-loop goroutine (a task
// actor) that serializes every call into Engine and owns the actual
// timers, so the state above needs no locking of its own.
type Engine struct {
	self   meshaddr.Addr
	isSink bool
	rt     *routingtable.RoutingTable
	sub    *subtree.Registry
	tun    tunables.Tunables
	logger logger.Logger

	parent            meshaddr.Addr
	metric            uint16
	beaconSeqn        uint16
	parentRSSI        int16
	stableCounter     int
	lastParentChange  time.Time
	lastBeaconForward time.Time
	currentInterval   time.Duration
}

// New creates a beacon Engine for self. A sink starts with metric 0 and
// beacon interval INITIAL; a non-sink starts parentless with the
// no-parent metric sentinel and no armed interval (it only beacons
// reactively, per Fire's doc comment).
func New(self meshaddr.Addr, isSink bool, rt *routingtable.RoutingTable, sub *subtree.Registry, tun tunables.Tunables, lgr logger.Logger) *Engine {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	metric := tunables.NoParentMetric
	if isSink {
		metric = 0
	}
	return &Engine{
		self:            self,
		isSink:          isSink,
		rt:              rt,
		sub:             sub,
		tun:             tun,
		logger:          lgr,
		metric:          metric,
		currentInterval: tun.BeaconInitialInterval,
	}
}

// Parent returns the current parent address and whether one is adopted.
func (e *Engine) Parent() (meshaddr.Addr, bool) {
	return e.parent, !e.parent.IsNull()
}

// Metric returns the current path metric to the sink.
func (e *Engine) Metric() uint16 { return e.metric }

// Seqn returns the highest observed beacon sequence number.
func (e *Engine) Seqn() uint16 { return e.beaconSeqn }

// Interval returns the current beacon broadcast interval.
func (e *Engine) Interval() time.Duration { return e.currentInterval }

// FireResult describes what the owning connection should do when the
// armed beacon timer fires.
type FireResult struct {
	Frame Frame
	// Reschedule is true if the connection should re-arm the beacon
	// timer after RescheduleAfter. A non-sink's timer fires once per
	// arming and is not self-rescheduling — only a beacon reception
	// (HandleReceive) re-arms it, mirroring the reference firmware's
	// beacon_timer_cb which reschedules only "if (conn->is_sink)".
	Reschedule      bool
	RescheduleAfter time.Duration
}

// Fire builds the beacon frame to broadcast when the timer elapses. Only
// the sink advances its own sequence number and self-reschedules.
func (e *Engine) Fire() FireResult {
	f := Frame{Seqn: e.beaconSeqn, Metric: e.metric}
	if e.isSink {
		e.beaconSeqn++
		return FireResult{Frame: f, Reschedule: true, RescheduleAfter: e.currentInterval}
	}
	return FireResult{Frame: f}
}

// Outcome reports the side effects of a beacon reception that the owning
// connection must carry out: child-control frames to unicast, whether to
// emit a topology report, and how to re-arm the beacon timer.
type Outcome struct {
	Dropped bool

	SendRemoveChildTo meshaddr.Addr
	HasRemoveChild    bool

	SendAddChildTo meshaddr.Addr
	HasAddChild    bool

	EmitTopologyReport bool

	Reschedule      bool
	RescheduleAfter time.Duration
}

// JitterFunc returns a forwarding delay uniformly distributed in [0, 1s),
// injected so tests can make it deterministic.
type JitterFunc func() time.Duration

// HandleReceive runs the parent-selection state machine against a
// received beacon: RSSI/seqn gate, candidate-adoption test, stability
// path, neighbor-route fallback.
func (e *Engine) HandleReceive(from meshaddr.Addr, f Frame, rssi int16, now time.Time, jitter JitterFunc) Outcome {
	if rssi < e.tun.RSSIThreshold || f.Seqn < e.beaconSeqn {
		return Outcome{Dropped: true}
	}

	// Interior nodes echo the highest seqn they observe. The reference
	// C firmware this module is modeled on leaves beacon_seqn frozen on
	// non-sink nodes except via this echo path, which this module treats
	// as an oversight rather than intended behavior (see DESIGN.md).
	if f.Seqn > e.beaconSeqn {
		e.beaconSeqn = f.Seqn
	}

	var out Outcome
	parentSet := false
	shouldForward := false

	if !e.isSink && f.Metric+1 <= e.metric {
		adopt := from != e.parent && !e.sub.Contains(from) &&
			(e.lastParentChange.IsZero() || now.Sub(e.lastParentChange) >= e.tun.MinParentSwitchInterval)

		if adopt {
			if !e.parent.IsNull() {
				out.SendRemoveChildTo, out.HasRemoveChild = e.parent, true
				e.rt.Delete(e.parent, e.parent)
			}
			e.parent = from
			e.lastParentChange = now
			e.currentInterval = e.tun.BeaconMinInterval
			e.lastBeaconForward = now
			e.stableCounter = 0
			e.metric = f.Metric + 1
			e.parentRSSI = rssi
			shouldForward = true

			e.rt.Add(from, from, routingtable.Parent, e.metric, rssi)
			out.SendAddChildTo, out.HasAddChild = from, true
			out.EmitTopologyReport = true
			parentSet = true

			e.logger.Info("beacon: parent adopted",
				logger.FAddr("parent", from), logger.F("metric", e.metric))
		} else {
			e.stableCounter++
			if e.stableCounter >= e.tun.StabilityThreshold {
				e.currentInterval *= 2
				if e.currentInterval > e.tun.BeaconMaxInterval {
					e.currentInterval = e.tun.BeaconMaxInterval
				}
				e.stableCounter = 0
			}
			parentSet = true

			if now.Sub(e.lastBeaconForward) > e.tun.BeaconSilentLimit {
				shouldForward = true
				e.lastBeaconForward = now
				out.EmitTopologyReport = true
			}
		}
	}

	if !parentSet {
		e.rt.Add(from, from, routingtable.Neighbor, f.Metric+1, rssi)
	}

	out.Reschedule = true
	if !e.isSink && shouldForward {
		out.RescheduleAfter = jitter()
	} else {
		out.RescheduleAfter = e.currentInterval
	}
	return out
}
