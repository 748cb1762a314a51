// Package linklayer defines the link-layer contract consumed by the
// routing core: one-hop broadcast, one-hop link-layer-ACKed unicast, and
// per-frame RSSI.
//
// The reference deployment exposes this as a set of C callback-based APIs
// (broadcast_open/send, unicast_open/send, packetbuf_*). Go has no
// equivalent of a borrowed scratch packetbuf, so frames are plain []byte
// values and the RSSI of an inbound frame travels alongside it in Frame
// rather than being queried back out of a shared buffer.
package linklayer

import (
	"context"
	"errors"
	"time"

	"ConvergeCast/internal/meshaddr"
)

// ErrNoACK is returned by Unicaster.Send when the link-layer ACK never
// arrives — the destination is out of range, unreachable, or the frame
// was lost in flight.
var ErrNoACK = errors.New("linklayer: unicast not acknowledged")

// Frame is one inbound link-layer delivery: the raw payload, the address
// that sent it, and the channel's measurement of signal quality.
type Frame struct {
	Payload []byte
	From    meshaddr.Addr
	RSSI    int16
}

// RecvFunc is invoked once per inbound frame. Per the ("all
// control-plane callbacks... run to completion without suspension and
// must not block"), implementations must return promptly; the routing
// core never blocks inside a RecvFunc.
type RecvFunc func(Frame)

// Broadcaster is the one-hop broadcast channel (the protocol's
// broadcast_open/broadcast_send) used exclusively by the Beacon Engine.
type Broadcaster interface {
	// Open installs recv as the callback for inbound broadcast frames on
	// this channel. It may be called at most once per Broadcaster.
	Open(recv RecvFunc) error
	// Send broadcasts payload to every node within radio range.
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Unicaster is the one-hop, link-layer-ACKed unicast channel (the protocol's
// unicast_open/unicast_send) used by the Topology-Report and Forwarding
// Engines, which share a single channel per the ("combined
// Topology/Forwarding receive dispatcher").
type Unicaster interface {
	Open(recv RecvFunc) error
	// Send unicasts payload to dest, blocking for the link-layer ACK (or
	// ctx's deadline, whichever comes first).
	Send(ctx context.Context, payload []byte, dest meshaddr.Addr) error
	Close() error
}

// Link bundles the two channels a connection opens at channel_base and
// channel_base+1 respectively.
type Link interface {
	Broadcast() Broadcaster
	Unicast() Unicaster
	// Self returns the link address this Link is bound to.
	Self() meshaddr.Addr
}

// Clock is the monotonic time source the core consults for pacing,
// purge ages, and switch-interval gating (the protocol's clock_time()).
// Abstracted so tests can drive simulated time.
type Clock interface {
	Now() time.Time
}
