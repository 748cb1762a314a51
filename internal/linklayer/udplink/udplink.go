// Package udplink implements linklayer.Link over real UDP sockets: a
// broadcast channel whose socket writes each frame to every endpoint in
// an explicit peer list, and a unicast channel that sends to every
// destination from one shared UDP socket, with an application-level ACK
// frame standing in for link-layer ACKing, since UDP itself gives none.
// Pending ACKs are tracked in a map keyed by destination endpoint.
package udplink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"ConvergeCast/internal/linklayer"
	"ConvergeCast/internal/logger"
	"ConvergeCast/internal/meshaddr"
)

// AddrBook resolves mesh link addresses to UDP endpoints, and back;
// deployment glue mapping logical node IDs to link addresses provides an
// implementation. The reverse direction is what lets the receive path
// label an inbound frame with the mesh address of whoever actually sent
// it, rather than the only address the UDP socket itself knows.
type AddrBook interface {
	Resolve(a meshaddr.Addr) (*net.UDPAddr, bool)
	ReverseResolve(u *net.UDPAddr) (meshaddr.Addr, bool)
}

// StaticAddrBook is the simplest AddrBook: a fixed map, suitable for
// simulation harnesses and static deployments (internal/bootstrap).
// ReverseResolve scans the same entries on every call; no reverse index
// is kept.
type StaticAddrBook map[meshaddr.Addr]*net.UDPAddr

func (b StaticAddrBook) Resolve(a meshaddr.Addr) (*net.UDPAddr, bool) {
	v, ok := b[a]
	return v, ok
}

func (b StaticAddrBook) ReverseResolve(u *net.UDPAddr) (meshaddr.Addr, bool) {
	for a, v := range b {
		if v.IP.Equal(u.IP) && v.Port == u.Port {
			return a, true
		}
	}
	return meshaddr.Addr{}, false
}

// ackTimeout bounds how long Unicast.Send waits for the application-level
// ACK before reporting linklayer.ErrNoACK.
const ackTimeout = 2 * time.Second

// Link is a UDP-backed linklayer.Link bound to self.
type Link struct {
	self     meshaddr.Addr
	book     AddrBook
	lgr      logger.Logger
	bcastPkt *net.UDPConn
	ucastPkt *net.UDPConn

	bcast *broadcaster
	ucast *unicaster
}

var _ linklayer.Link = (*Link)(nil)

// New binds a broadcast socket on broadcastAddr and a unicast socket on
// unicastAddr, both owned by self.
func New(self meshaddr.Addr, book AddrBook, broadcastAddr, unicastAddr *net.UDPAddr, lgr logger.Logger) (*Link, error) {
	bc, err := net.ListenUDP("udp", broadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("udplink: listen broadcast: %w", err)
	}
	uc, err := net.ListenUDP("udp", unicastAddr)
	if err != nil {
		bc.Close()
		return nil, fmt.Errorf("udplink: listen unicast: %w", err)
	}
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	l := &Link{self: self, book: book, lgr: lgr, bcastPkt: bc, ucastPkt: uc}
	l.bcast = &broadcaster{link: l}
	l.ucast = &unicaster{link: l, pending: make(map[string]chan struct{})}
	return l, nil
}

func (l *Link) Self() meshaddr.Addr              { return l.self }
func (l *Link) Broadcast() linklayer.Broadcaster { return l.bcast }
func (l *Link) Unicast() linklayer.Unicaster     { return l.ucast }

// Close releases both sockets.
func (l *Link) Close() error {
	err1 := l.bcastPkt.Close()
	err2 := l.ucastPkt.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

const ackMagic = byte(0xFF)

type broadcaster struct {
	link *Link
	mu   sync.Mutex
	dest []*net.UDPAddr
}

// Peers sets the full set of broadcast-reachable UDP endpoints; the
// reference deployment's radio broadcast has no such configuration step,
// but a UDP "broadcast" needs an explicit fan-out list or a subnet
// broadcast address.
func (b *broadcaster) Peers(addrs []*net.UDPAddr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dest = addrs
}

func (b *broadcaster) Open(recv linklayer.RecvFunc) error {
	go readLoop(b.link.bcastPkt, func(payload []byte, from *net.UDPAddr) {
		sender, ok := b.link.book.ReverseResolve(from)
		if !ok {
			b.link.lgr.Debug("udplink: dropped broadcast frame from unknown sender",
				logger.F("from", from.String()))
			return
		}
		recv(linklayer.Frame{Payload: payload, From: sender, RSSI: 0})
	})
	return nil
}

func (b *broadcaster) Send(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	dests := append([]*net.UDPAddr(nil), b.dest...)
	b.mu.Unlock()
	for _, d := range dests {
		if _, err := b.link.bcastPkt.WriteToUDP(payload, d); err != nil {
			b.link.lgr.Warn("broadcast send failed", logger.F("dest", d.String()), logger.F("err", err.Error()))
		}
	}
	return nil
}

func (b *broadcaster) Close() error { return nil }

type unicaster struct {
	link *Link

	mu      sync.Mutex
	recv    linklayer.RecvFunc
	pending map[string]chan struct{}
}

func (u *unicaster) Open(recv linklayer.RecvFunc) error {
	u.mu.Lock()
	u.recv = recv
	u.mu.Unlock()
	go readLoop(u.link.ucastPkt, u.handle)
	return nil
}

func (u *unicaster) handle(payload []byte, from *net.UDPAddr) {
	if len(payload) == 1 && payload[0] == ackMagic {
		u.mu.Lock()
		if ch, ok := u.pending[from.String()]; ok {
			close(ch)
			delete(u.pending, from.String())
		}
		u.mu.Unlock()
		return
	}
	// Send the application-level ACK back before dispatching, so the
	// sender's Send() unblocks promptly regardless of how long recv takes.
	u.link.ucastPkt.WriteToUDP([]byte{ackMagic}, from)

	u.mu.Lock()
	recv := u.recv
	u.mu.Unlock()
	if recv == nil {
		return
	}
	sender, ok := u.link.book.ReverseResolve(from)
	if !ok {
		u.link.lgr.Debug("udplink: dropped unicast frame from unknown sender",
			logger.F("from", from.String()))
		return
	}
	recv(linklayer.Frame{Payload: payload, From: sender, RSSI: 0})
}

func (u *unicaster) Send(ctx context.Context, payload []byte, dest meshaddr.Addr) error {
	udpAddr, ok := u.link.book.Resolve(dest)
	if !ok {
		return fmt.Errorf("udplink: no address for %s: %w", dest, linklayer.ErrNoACK)
	}

	ch := make(chan struct{})
	key := udpAddr.String()
	u.mu.Lock()
	u.pending[key] = ch
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		delete(u.pending, key)
		u.mu.Unlock()
	}()

	if _, err := u.link.ucastPkt.WriteToUDP(payload, udpAddr); err != nil {
		return err
	}

	timeout := time.NewTimer(ackTimeout)
	defer timeout.Stop()
	select {
	case <-ch:
		return nil
	case <-timeout.C:
		return linklayer.ErrNoACK
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *unicaster) Close() error { return nil }

func readLoop(conn *net.UDPConn, handle func(payload []byte, from *net.UDPAddr)) {
	buf := make([]byte, 2048)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		handle(payload, from)
	}
}
