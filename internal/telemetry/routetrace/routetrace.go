// Package routetrace wraps the send, forwarding, topology-report-apply and
// parent-switch paths with spans, the direct analogue of a conventional
// lookuptrace package's "only trace the operations worth looking at"
// filter — adapted here from a gRPC interceptor pair (there is no RPC
// boundary in this module) to four plain span-scoping helpers called
// straight from internal/conn.
package routetrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ConvergeCast/internal/meshaddr"
)

var tracer = otel.Tracer("mesh/routetrace")

// StartSend scopes a span around one outbound Connection.Send call.
func StartSend(ctx context.Context, dest meshaddr.Addr, payloadLen int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "mesh.send", trace.WithAttributes(
		attribute.String("mesh.dest", dest.String()),
		attribute.Int("mesh.payload_len", payloadLen),
	))
}

// StartForward scopes a span around one hop of data-frame forwarding.
func StartForward(ctx context.Context, dest, nextHop meshaddr.Addr, hopsLeft int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "mesh.forward", trace.WithAttributes(
		attribute.String("mesh.dest", dest.String()),
		attribute.String("mesh.next_hop", nextHop.String()),
		attribute.Int("mesh.hops_left", hopsLeft),
	))
}

// StartReportApply scopes a span around one topology-report flush/apply.
func StartReportApply(ctx context.Context, bufferedCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "mesh.report_apply", trace.WithAttributes(
		attribute.Int("mesh.buffered_reports", bufferedCount),
	))
}

// StartParentSwitch scopes a span around one parent-adoption decision.
func StartParentSwitch(ctx context.Context, oldParent, newParent meshaddr.Addr) (context.Context, trace.Span) {
	return tracer.Start(ctx, "mesh.parent_switch", trace.WithAttributes(
		attribute.String("mesh.old_parent", oldParent.String()),
		attribute.String("mesh.new_parent", newParent.String()),
	))
}
