package conn

import (
	"context"

	"ConvergeCast/internal/beacon"
	"ConvergeCast/internal/forwarding"
	"ConvergeCast/internal/linklayer"
	"ConvergeCast/internal/logger"
	"ConvergeCast/internal/meshaddr"
	"ConvergeCast/internal/telemetry/routetrace"
	"ConvergeCast/internal/topology"
)

// All handle* and on*Fire methods below run only on the actor goroutine
// (posted via enqueue from link-layer callbacks or timers), so they may
// touch rt/sub/bc/tp/fw directly without additional synchronization.

func (c *Connection) handleBeaconFrame(f linklayer.Frame) {
	frame, ok := beacon.Decode(f.Payload)
	if !ok {
		c.logger.Debug("conn: dropped malformed beacon frame", logger.FAddr("from", f.From))
		return
	}
	out := c.bc.HandleReceive(f.From, frame, f.RSSI, c.clock(), c.jitter)
	if out.Dropped {
		return
	}
	if out.HasAddChild {
		var oldParent meshaddr.Addr
		if out.HasRemoveChild {
			oldParent = out.SendRemoveChildTo
		}
		_, span := routetrace.StartParentSwitch(c.ctx, oldParent, out.SendAddChildTo)
		span.End()
	}
	if out.HasRemoveChild {
		c.sendChildControl(out.SendRemoveChildTo, forwarding.RemoveChild)
	}
	if out.HasAddChild {
		c.sendChildControl(out.SendAddChildTo, forwarding.AddChild)
	}
	if out.EmitTopologyReport {
		c.emitTopologyReport()
	}
	if out.Reschedule {
		c.armBeaconTimer(out.RescheduleAfter)
	}
}

func (c *Connection) handleUnicastFrame(f linklayer.Frame) {
	switch forwarding.ClassifyByLength(len(f.Payload)) {
	case forwarding.KindChildControl:
		c.handleChildControl(f)
	case forwarding.KindTopologyReport:
		c.handleTopologyReport(f)
	case forwarding.KindData:
		c.handleData(f)
	default:
		c.logger.Debug("conn: dropped frame of unrecognized length",
			logger.FAddr("from", f.From), logger.F("len", len(f.Payload)))
	}
}

func (c *Connection) handleChildControl(f linklayer.Frame) {
	cc, ok := forwarding.DecodeChildControl(f.Payload)
	if !ok {
		return
	}
	switch cc.Type {
	case forwarding.AddChild:
		c.fw.ApplyAddChild(cc.Child, f.From)
	case forwarding.RemoveChild:
		if c.fw.ApplyRemoveChild(cc.Child, f.From) {
			c.emitTopologyReport()
		}
	}
}

func (c *Connection) handleTopologyReport(f linklayer.Frame) {
	report, ok := topology.Decode(f.Payload)
	if !ok {
		return
	}
	armTimer, dropped := c.tp.Enqueue(report)
	if dropped {
		return
	}
	if armTimer {
		c.armReportTimer(c.tun.ReportBatchDelay)
	}
}

func (c *Connection) handleData(f linklayer.Frame) {
	out := c.fw.ReceiveData(f.Payload)
	if out.Dropped {
		return
	}
	if out.Delivered {
		if c.recv != nil {
			c.recv(out.Source, out.Hops, out.Payload)
		}
		return
	}
	if out.Forward {
		spanCtx, span := routetrace.StartForward(c.ctx, out.Dest, out.NextHop, int(out.HopsLeft))
		ctx, cancel := context.WithTimeout(spanCtx, sendTimeout)
		defer cancel()
		if err := c.link.Unicast().Send(ctx, out.ForwardWire, out.NextHop); err != nil {
			c.logger.Warn("conn: forward failed", logger.FAddr("next_hop", out.NextHop), logger.F("err", err))
		}
		span.End()
	}
}

func (c *Connection) onBeaconTimerFire() {
	result := c.bc.Fire()
	ctx, cancel := context.WithTimeout(c.ctx, sendTimeout)
	defer cancel()
	if err := c.link.Broadcast().Send(ctx, beacon.Encode(result.Frame)); err != nil {
		c.logger.Warn("conn: beacon broadcast failed", logger.F("err", err))
	}
	if result.Reschedule {
		c.armBeaconTimer(result.RescheduleAfter)
	}
}

func (c *Connection) onReportTimerFire() {
	_, span := routetrace.StartReportApply(c.ctx, c.tp.PendingCount())
	defer span.End()
	if c.tp.Flush() > 0 {
		c.emitTopologyReport()
	}
}

func (c *Connection) onCleanupTick() {
	removed := c.rt.Purge(c.clock())
	for _, dest := range removed {
		c.sub.RemoveFirstOccurrence(dest)
	}
	if len(removed) > 0 {
		c.logger.Debug("conn: purged stale routes", logger.F("count", len(removed)))
	}
}

// emitTopologyReport unicasts the current report to the adopted parent.
// It is a no-op on the sink or when no parent is adopted yet — the
// equivalent guard the reference firmware applies before every
// send_topology_report call.
func (c *Connection) emitTopologyReport() {
	if c.isSink {
		return
	}
	parent, ok := c.bc.Parent()
	if !ok {
		return
	}
	report := c.tp.BuildReport(c.bc.Metric())
	wire := topology.Encode(report)
	ctx, cancel := context.WithTimeout(c.ctx, sendTimeout)
	defer cancel()
	if err := c.link.Unicast().Send(ctx, wire, parent); err != nil {
		c.logger.Warn("conn: topology report send failed", logger.FAddr("parent", parent), logger.F("err", err))
	}
}

func (c *Connection) sendChildControl(to meshaddr.Addr, typ forwarding.ChildType) {
	wire := forwarding.EncodeChildControl(forwarding.ChildControl{Type: typ, Child: c.self})
	ctx, cancel := context.WithTimeout(c.ctx, sendTimeout)
	defer cancel()
	if err := c.link.Unicast().Send(ctx, wire, to); err != nil {
		c.logger.Warn("conn: child-control send failed", logger.FAddr("to", to), logger.F("type", typ), logger.F("err", err))
	}
}
