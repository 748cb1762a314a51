package simharness

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"ConvergeCast/internal/logger"
	"ConvergeCast/internal/simharness/writer"
)

// Harness drives one end-to-end containerized scenario: bring up a
// network of meshnode containers, poll each node's debug endpoint for
// its current parent, and record every observed parent change to a
// Writer until the configured duration elapses.
type Harness struct {
	docker *DockerHarness
	cfg    Config
	lgr    logger.Logger
	out    writer.Writer
}

// New builds a Harness. w may be writer.NopWriter{} to discard events.
func New(docker *DockerHarness, cfg Config, lgr logger.Logger, w writer.Writer) *Harness {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	if w == nil {
		w = writer.NopWriter{}
	}
	return &Harness{docker: docker, cfg: cfg, lgr: lgr, out: w}
}

// Run creates the network and containers, polls for cfg.Duration, and
// tears everything down before returning. It records a "parent_switch"
// row each time a node's reported parent changes, and a "no_route" row
// when a node's reply changes to reporting no parent.
func (h *Harness) Run(ctx context.Context) error {
	if err := h.docker.CreateNetwork(ctx); err != nil {
		return err
	}
	defer func() {
		if err := h.docker.Close(context.Background()); err != nil {
			h.lgr.Warn("simharness: teardown failed", logger.F("err", err))
		}
	}()

	if err := h.docker.StartAll(ctx); err != nil {
		return err
	}

	deadline := time.Now().Add(h.cfg.Duration)
	lastParent := make(map[string]string)

	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	var trafficTicker *time.Ticker
	var trafficC <-chan time.Time
	if h.cfg.TrafficRate > 0 {
		trafficTicker = time.NewTicker(time.Duration(float64(time.Second) / h.cfg.TrafficRate))
		defer trafficTicker.Stop()
		trafficC = trafficTicker.C
	}

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.pollOnce(ctx, lastParent)
		case <-trafficC:
			h.runTrafficWave(ctx)
		}
	}

	return h.out.Flush()
}

// runTrafficWave picks a random sender and a different random destination
// among the currently discovered nodes and issues one unicast via the
// sender's debug endpoint, recording the round-trip latency of the send
// command itself (the first-hop ACK latency, not end-to-end delivery,
// since the debug protocol has no delivery-confirmation query).
func (h *Harness) runTrafficWave(ctx context.Context) {
	endpoints, err := h.docker.Discover(ctx)
	if err != nil {
		h.lgr.Warn("simharness: discover failed", logger.F("err", err))
		return
	}
	if len(endpoints) < 2 {
		return
	}

	sender := endpoints[rand.Intn(len(endpoints))]
	senderAddr, ok := h.cfg.nodeAddr(sender)
	if !ok {
		return
	}
	dest := endpoints[rand.Intn(len(endpoints))]
	destAddr, ok := h.cfg.nodeAddr(dest)
	if !ok || destAddr == senderAddr {
		return
	}

	payload := strings.Repeat("x", h.cfg.TrafficPayloadSize)
	start := time.Now()
	reply, err := queryDebug(ctx, sender, fmt.Sprintf("send %s %s", destAddr, payload))
	latency := time.Since(start)

	event := "send_ok"
	if err != nil || strings.HasPrefix(reply, "error") {
		event = "send_failed"
	}
	if werr := h.out.WriteRow(sender, event, latency); werr != nil {
		h.lgr.Warn("simharness: write row failed", logger.F("err", werr))
	}
}

func (h *Harness) pollOnce(ctx context.Context, lastParent map[string]string) {
	endpoints, err := h.docker.Discover(ctx)
	if err != nil {
		h.lgr.Warn("simharness: discover failed", logger.F("err", err))
		return
	}
	for _, ep := range endpoints {
		reply, err := queryDebug(ctx, ep, "parent")
		if err != nil {
			h.lgr.Debug("simharness: query failed", logger.F("endpoint", ep), logger.F("err", err))
			continue
		}
		if reply == lastParent[ep] {
			continue
		}
		lastParent[ep] = reply
		event := "parent_switch"
		if reply == "no parent" {
			event = "no_route"
		}
		if err := h.out.WriteRow(ep, event, 0); err != nil {
			h.lgr.Warn("simharness: write row failed", logger.F("err", err))
		}
	}
}

// queryDebug sends one command to a node's debug endpoint and returns
// its single-line reply.
func queryDebug(ctx context.Context, endpoint, cmd string) (string, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return "", fmt.Errorf("simharness: dial %s: %w", endpoint, err)
	}
	defer nc.Close()

	if _, err := fmt.Fprintf(nc, "%s\n", cmd); err != nil {
		return "", fmt.Errorf("simharness: write to %s: %w", endpoint, err)
	}
	reply, err := bufio.NewReader(nc).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("simharness: read from %s: %w", endpoint, err)
	}
	return strings.TrimSpace(reply), nil
}
