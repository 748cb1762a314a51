package routingtable

import (
	"ConvergeCast/internal/logger"
	"ConvergeCast/internal/meshaddr"
	"time"
)

type Option func(*RoutingTable)

// WithLogger sets the logger used by the routing table.
func WithLogger(l logger.Logger) Option {
	return func(rt *RoutingTable) {
		rt.logger = l
	}
}

// WithClock overrides the time source, for deterministic tests of
// age-based purge behavior.
func WithClock(clock func() time.Time) Option {
	return func(rt *RoutingTable) {
		rt.clock = clock
	}
}

// WithCapacity overrides the default slab capacity. Must be applied
// before New installs the SELF entry, which New guarantees by running
// options before that insert.
func WithCapacity(n int) Option {
	return func(rt *RoutingTable) {
		rt.slots = make([]slot, n)
		rt.free = make([]int, n)
		for i := 0; i < n; i++ {
			rt.free[i] = n - 1 - i
		}
		rt.index = make(map[meshaddr.Addr]int, n)
	}
}

// WithCleanupInterval overrides the default purge age threshold.
func WithCleanupInterval(d time.Duration) Option {
	return func(rt *RoutingTable) {
		rt.cleanupInterval = d
	}
}
