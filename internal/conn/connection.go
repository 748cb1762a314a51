// Package conn implements the application-facing Connection: the
// single-actor object that wires the Routing Table, Subtree Registry,
// Beacon Engine, Topology-Report Engine, and Forwarding Engine together
// and exposes the application contract (open, send, recv callback).
//
// The underlying protocol assumes a single-threaded cooperative
// scheduler where timer callbacks and radio-receive callbacks run one
// at a time from the same event context, so no locks are required
// around connection state. Go has no such guarantee — link-layer
// callbacks and timers fire on arbitrary goroutines — so Connection
// reproduces the same effective serialization with a task-actor
// goroutine consuming a command channel. Timers and link callbacks only
// post closures to that channel; all mutation happens inside those
// closures rather than under a shared mutex.
package conn

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"ConvergeCast/internal/beacon"
	"ConvergeCast/internal/forwarding"
	"ConvergeCast/internal/linklayer"
	"ConvergeCast/internal/logger"
	"ConvergeCast/internal/meshaddr"
	"ConvergeCast/internal/routingtable"
	"ConvergeCast/internal/subtree"
	"ConvergeCast/internal/telemetry/routetrace"
	"ConvergeCast/internal/topology"
	"ConvergeCast/internal/tunables"
)

// RecvFunc is invoked when a data packet addressed to this node
// completes its route (the protocol's recv(source, hops) callback).
type RecvFunc func(source meshaddr.Addr, hops uint8, payload []byte)

// sendTimeout bounds how long a single outbound unicast (data, control,
// or report) waits for the link-layer ACK.
const sendTimeout = 5 * time.Second

// Connection is the per-node routing-core instance. It is created once
// per process/simulated node and lives for the process lifetime, per
// the "Lifecycles".
type Connection struct {
	self   meshaddr.Addr
	isSink bool
	tun    tunables.Tunables
	logger logger.Logger
	link   linklayer.Link
	clock  func() time.Time
	jitter func() time.Duration

	rt  *routingtable.RoutingTable
	sub *subtree.Registry
	bc  *beacon.Engine
	tp  *topology.Engine
	fw  *forwarding.Engine

	recv RecvFunc

	cmds chan func()
	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu            sync.Mutex
	beaconTimer   *time.Timer
	reportTimer   *time.Timer
	cleanupTicker *time.Ticker
}

// Option configures optional Connection behavior.
type Option func(*Connection)

// WithLogger attaches a structured logger; the default is a no-op.
func WithLogger(l logger.Logger) Option {
	return func(c *Connection) { c.logger = l }
}

// WithTunables overrides the default protocol tunables.
func WithTunables(t tunables.Tunables) Option {
	return func(c *Connection) { c.tun = t }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Connection) { c.clock = clock }
}

// WithJitter overrides the beacon-forwarding jitter source, for
// deterministic tests.
func WithJitter(jitter func() time.Duration) Option {
	return func(c *Connection) { c.jitter = jitter }
}

// New constructs a Connection bound to self over link, installing the
// SELF route. The connection does not start processing until Open.
func New(self meshaddr.Addr, isSink bool, link linklayer.Link, opts ...Option) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		self:   self,
		isSink: isSink,
		tun:    tunables.Defaults(),
		logger: &logger.NopLogger{},
		link:   link,
		clock:  time.Now,
		cmds:   make(chan func(), 64),
		ctx:    ctx,
		stop:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.jitter == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(seedFromAddr(self))))
		c.jitter = func() time.Duration {
			return time.Duration(rng.Int63n(int64(tunables.BeaconForwardJitter)))
		}
	}

	c.rt = routingtable.New(self, isSink, routingtable.WithLogger(c.logger), routingtable.WithClock(c.clock))
	c.sub = subtree.New(self)
	c.bc = beacon.New(self, isSink, c.rt, c.sub, c.tun, c.logger)
	c.tp = topology.New(self, c.rt, c.sub, c.tun, c.logger)
	c.fw = forwarding.New(self, isSink, c.rt, c.sub, c.tun, c.logger)
	return c
}

func seedFromAddr(a meshaddr.Addr) uint16 {
	return uint16(a[0]) | uint16(a[1])<<8
}

// RoutingTable exposes the underlying table for introspection
// (cmd/meshctl, tests).
func (c *Connection) RoutingTable() *routingtable.RoutingTable { return c.rt }

// Subtree exposes the underlying subtree registry for introspection.
func (c *Connection) Subtree() *subtree.Registry { return c.sub }

// Parent returns the currently adopted parent, if any.
func (c *Connection) Parent() (meshaddr.Addr, bool) { return c.bc.Parent() }

// Metric returns the current path metric to the sink.
func (c *Connection) Metric() uint16 { return c.bc.Metric() }

// Open installs the connection's channels and starts its actor loop and
// timers, per the open() contract: installs the SELF route
// (already done in New), starts the cleanup timer, and on the sink, arms
// the initial beacon broadcast.
func (c *Connection) Open(recv RecvFunc) error {
	c.recv = recv

	if err := c.link.Broadcast().Open(func(f linklayer.Frame) {
		c.enqueue(func() { c.handleBeaconFrame(f) })
	}); err != nil {
		return err
	}
	if err := c.link.Unicast().Open(func(f linklayer.Frame) {
		c.enqueue(func() { c.handleUnicastFrame(f) })
	}); err != nil {
		return err
	}

	c.wg.Add(1)
	go c.loop()

	c.startCleanupTicker()
	if c.isSink {
		c.armBeaconTimer(c.tun.BeaconInitialInterval)
	}
	return nil
}

// Close stops the actor loop and all timers. It does not close the
// underlying Link, which callers may share across connections.
func (c *Connection) Close() error {
	c.stop()
	c.mu.Lock()
	if c.beaconTimer != nil {
		c.beaconTimer.Stop()
	}
	if c.reportTimer != nil {
		c.reportTimer.Stop()
	}
	if c.cleanupTicker != nil {
		c.cleanupTicker.Stop()
	}
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}

func (c *Connection) loop() {
	defer c.wg.Done()
	for {
		select {
		case f := <-c.cmds:
			f()
		case <-c.ctx.Done():
			return
		}
	}
}

// enqueue posts f to run on the actor goroutine. It is safe to call from
// any goroutine (link-layer callbacks, timers, Send).
func (c *Connection) enqueue(f func()) {
	select {
	case c.cmds <- f:
	case <-c.ctx.Done():
	}
}

// Send implements the send(conn, dest) contract: enqueue == nil
// error, no route == forwarding.ErrNoRoute, link-layer send failure ==
// whatever the Link returns.
func (c *Connection) Send(dest meshaddr.Addr, payload []byte) error {
	spanCtx, span := routetrace.StartSend(c.ctx, dest, len(payload))
	defer span.End()

	result := make(chan error, 1)
	c.enqueue(func() {
		wire, nextHop, err := c.fw.Send(dest, payload)
		if err != nil {
			result <- err
			return
		}
		ctx, cancel := context.WithTimeout(spanCtx, sendTimeout)
		defer cancel()
		result <- c.link.Unicast().Send(ctx, wire, nextHop)
	})
	select {
	case err := <-result:
		return err
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}
