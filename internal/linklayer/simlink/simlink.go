// Package simlink provides an in-process, in-memory linklayer.Link for
// deterministic scenario tests (the end-to-end scenarios): a
// shared Medium fans broadcast and unicast frames out to every registered
// node, with per-pair RSSI and optional loss injection standing in for
// real radio propagation.
//
// This is the direct analogue of a conventional in-memory connection-pool
// bookkeeping, generalized from a gRPC-dial cache to a zero-network fake
// transport.
package simlink

import (
	"context"
	"sync"

	"ConvergeCast/internal/linklayer"
	"ConvergeCast/internal/meshaddr"
)

// Medium is the shared fake radio environment. Every node.Link obtained
// from the same Medium can reach every other node registered on it.
type Medium struct {
	mu    sync.Mutex
	nodes map[meshaddr.Addr]*Link

	// rssi maps an ordered (from,to) pair to the simulated signal
	// strength; pairs absent from the map default to DefaultRSSI.
	rssi map[[2]meshaddr.Addr]int16

	// dropped, when present for a (from,to) pair, makes delivery fail.
	dropped map[[2]meshaddr.Addr]bool
}

// DefaultRSSI is used for any (from,to) pair not explicitly configured.
const DefaultRSSI int16 = -60

// NewMedium creates an empty shared medium.
func NewMedium() *Medium {
	return &Medium{
		nodes:   make(map[meshaddr.Addr]*Link),
		rssi:    make(map[[2]meshaddr.Addr]int16),
		dropped: make(map[[2]meshaddr.Addr]bool),
	}
}

// SetRSSI fixes the simulated signal strength observed by to when from
// transmits.
func (m *Medium) SetRSSI(from, to meshaddr.Addr, rssi int16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rssi[[2]meshaddr.Addr{from, to}] = rssi
}

// SetDropped controls whether frames from "from" reach "to" at all,
// modeling a severed or out-of-range link independent of RSSI.
func (m *Medium) SetDropped(from, to meshaddr.Addr, dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[[2]meshaddr.Addr{from, to}] = dropped
}

func (m *Medium) rssiFor(from, to meshaddr.Addr) int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.rssi[[2]meshaddr.Addr{from, to}]; ok {
		return v
	}
	return DefaultRSSI
}

func (m *Medium) isDropped(from, to meshaddr.Addr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[[2]meshaddr.Addr{from, to}]
}

// Join registers self on the medium and returns its Link handle. Calling
// Join twice for the same address replaces the prior handle.
func (m *Medium) Join(self meshaddr.Addr) *Link {
	l := &Link{medium: m, self: self}
	l.bcast = &broadcaster{link: l}
	l.ucast = &unicaster{link: l}
	m.mu.Lock()
	m.nodes[self] = l
	m.mu.Unlock()
	return l
}

// Leave removes self from the medium; frames addressed to or from it stop
// being delivered.
func (m *Medium) Leave(self meshaddr.Addr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, self)
}

func (m *Medium) snapshot() []*Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Link, 0, len(m.nodes))
	for _, l := range m.nodes {
		out = append(out, l)
	}
	return out
}

func (m *Medium) lookup(addr meshaddr.Addr) (*Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.nodes[addr]
	return l, ok
}

// Link is one node's view of the Medium, implementing linklayer.Link.
type Link struct {
	medium *Medium
	self   meshaddr.Addr
	bcast  *broadcaster
	ucast  *unicaster
}

var _ linklayer.Link = (*Link)(nil)

func (l *Link) Self() meshaddr.Addr              { return l.self }
func (l *Link) Broadcast() linklayer.Broadcaster { return l.bcast }
func (l *Link) Unicast() linklayer.Unicaster     { return l.ucast }

type broadcaster struct {
	link *Link
	recv linklayer.RecvFunc
}

func (b *broadcaster) Open(recv linklayer.RecvFunc) error {
	b.recv = recv
	return nil
}

func (b *broadcaster) Send(ctx context.Context, payload []byte) error {
	for _, peer := range b.link.medium.snapshot() {
		if peer.self == b.link.self {
			continue
		}
		if b.link.medium.isDropped(b.link.self, peer.self) {
			continue
		}
		if peer.bcast.recv == nil {
			continue
		}
		frame := linklayer.Frame{
			Payload: append([]byte(nil), payload...),
			From:    b.link.self,
			RSSI:    b.link.medium.rssiFor(b.link.self, peer.self),
		}
		peer.bcast.recv(frame)
	}
	return nil
}

func (b *broadcaster) Close() error { return nil }

type unicaster struct {
	link *Link
	recv linklayer.RecvFunc
}

func (u *unicaster) Open(recv linklayer.RecvFunc) error {
	u.recv = recv
	return nil
}

func (u *unicaster) Send(ctx context.Context, payload []byte, dest meshaddr.Addr) error {
	if u.link.medium.isDropped(u.link.self, dest) {
		return linklayer.ErrNoACK
	}
	peer, ok := u.link.medium.lookup(dest)
	if !ok || peer.ucast.recv == nil {
		return linklayer.ErrNoACK
	}
	frame := linklayer.Frame{
		Payload: append([]byte(nil), payload...),
		From:    u.link.self,
		RSSI:    u.link.medium.rssiFor(u.link.self, dest),
	}
	peer.ucast.recv(frame)
	return nil
}

func (u *unicaster) Close() error { return nil }
