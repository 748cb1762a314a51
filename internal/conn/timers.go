package conn

import "time"

// armBeaconTimer (re)arms the single-shot beacon timer to fire after d,
// stopping any previously armed timer first. Called from the actor
// goroutine only.
func (c *Connection) armBeaconTimer(d time.Duration) {
	c.mu.Lock()
	if c.beaconTimer != nil {
		c.beaconTimer.Stop()
	}
	c.beaconTimer = time.AfterFunc(d, func() {
		c.enqueue(c.onBeaconTimerFire)
	})
	c.mu.Unlock()
}

// armReportTimer arms the single-shot batch-delay timer for a freshly
// started report batch. It refuses to stomp an already-armed timer,
// mirroring the reference firmware's report_timer_active guard — Enqueue
// only asks for an arm on the empty-to-non-empty transition, so this
// should never race, but the guard keeps a stray extra call harmless.
func (c *Connection) armReportTimer(d time.Duration) {
	c.mu.Lock()
	if c.reportTimer != nil {
		c.mu.Unlock()
		return
	}
	c.reportTimer = time.AfterFunc(d, func() {
		c.mu.Lock()
		c.reportTimer = nil
		c.mu.Unlock()
		c.enqueue(c.onReportTimerFire)
	})
	c.mu.Unlock()
}

// startCleanupTicker starts the periodic routing-table purge ticker and
// a goroutine that posts each tick onto the actor.
func (c *Connection) startCleanupTicker() {
	c.mu.Lock()
	c.cleanupTicker = time.NewTicker(c.tun.CleanupInterval)
	ticker := c.cleanupTicker
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				c.enqueue(c.onCleanupTick)
			case <-c.ctx.Done():
				return
			}
		}
	}()
}
