package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ConvergeCast/internal/bootstrap"
	"ConvergeCast/internal/conn"
	"ConvergeCast/internal/config"
	"ConvergeCast/internal/linklayer"
	"ConvergeCast/internal/linklayer/udplink"
	"ConvergeCast/internal/logger"
	zapfactory "ConvergeCast/internal/logger/zap"
	"ConvergeCast/internal/meshaddr"
	"ConvergeCast/internal/server"
	"ConvergeCast/internal/telemetry"
)

var defaultConfigPath = "config/node/config.yaml"

// debugPort is the fixed TCP port internal/server listens on for
// cmd/meshctl and internal/simharness to attach to; it rides alongside
// the UDP link ports on the same bind host.
const debugPort = 9100

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Enabled {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	self, err := meshaddr.Parse(cfg.Node.ID)
	if err != nil {
		log.Fatalf("invalid node.id: %v", err)
	}
	lgr = lgr.Named("meshnode").With(logger.FAddr("self", self))
	lgr.Info("meshnode initializing", logger.F("sink", cfg.Node.IsSink))

	shutdown, err := telemetry.InitTracer(cfg.Telemetry, "meshnode", self)
	if err != nil {
		lgr.Error("failed to initialize telemetry", logger.F("err", err))
		os.Exit(1)
	}
	defer func() { _ = shutdown(context.Background()) }()

	link, addrBook, err := buildLink(self, cfg.Node.Link, lgr)
	if err != nil {
		lgr.Error("failed to initialize link layer", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Debug("link layer initialized", logger.F("transport", cfg.Node.Link.Transport))

	c := conn.New(self, cfg.Node.IsSink, link,
		conn.WithLogger(lgr.Named("conn")),
		conn.WithTunables(cfg.ResolvedTunables()),
	)

	boot, err := bootstrap.New(context.Background(), cfg.Node.Bootstrap, lgr.Named("bootstrap"))
	if err != nil {
		lgr.Error("failed to initialize bootstrap", logger.F("err", err))
		os.Exit(1)
	}
	discoverCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	peers, err := boot.Discover(discoverCtx)
	cancel()
	if err != nil {
		lgr.Error("bootstrap discovery failed", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Info("bootstrap discovery complete", logger.F("peers", peers))
	if addrBook != nil {
		applyPeers(addrBook, link.Broadcast(), peers, lgr)
	}

	if err := c.Open(func(source meshaddr.Addr, hops uint8, payload []byte) {
		lgr.Info("data delivered", logger.FAddr("source", source),
			logger.F("hops", hops), logger.F("bytes", len(payload)))
	}); err != nil {
		lgr.Error("failed to open connection", logger.F("err", err))
		os.Exit(1)
	}
	defer c.Close()

	dbgLis, err := net.Listen("tcp", fmt.Sprintf(":%d", debugPort))
	if err != nil {
		lgr.Error("failed to start debug listener", logger.F("err", err))
		os.Exit(1)
	}
	dbgServer, err := server.New(dbgLis, c, server.WithLogger(lgr.Named("debug")))
	if err != nil {
		lgr.Error("failed to initialize debug server", logger.F("err", err))
		os.Exit(1)
	}
	go func() {
		if err := dbgServer.Start(); err != nil {
			lgr.Warn("debug server stopped", logger.F("err", err))
		}
	}()
	defer dbgServer.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	selfEndpoint := fmt.Sprintf("%s:%d", cfg.Node.Link.BindHost, debugPort)
	if host, err := cfg.Node.Link.ResolvedBindHost(); err == nil {
		selfEndpoint = fmt.Sprintf("%s:%d", host, debugPort)
	}

	registerCtx, regCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := boot.Register(registerCtx, cfg.Node.ID, selfEndpoint); err != nil {
		lgr.Warn("node registration failed", logger.F("err", err))
	}
	regCancel()
	defer func() {
		deregisterCtx, deregCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer deregCancel()
		if err := boot.Deregister(deregisterCtx, cfg.Node.ID, selfEndpoint); err != nil {
			lgr.Warn("node deregistration failed", logger.F("err", err))
		}
	}()

	lgr.Info("meshnode running")
	<-ctx.Done()
	lgr.Info("shutdown signal received, stopping")
}

// buildLink constructs the configured linklayer.Link. Under transport=sim
// a standalone process has no other process to share an in-memory medium
// with, so sim mode is only meaningful inside cmd/meshsim; buildLink
// rejects it here with a clear message instead of silently running an
// isolated node.
func buildLink(self meshaddr.Addr, cfg config.LinkConfig, lgr logger.Logger) (linklayer.Link, udplink.StaticAddrBook, error) {
	switch cfg.Transport {
	case "udp":
		bcastAddr, err := cfg.BroadcastUDPAddr()
		if err != nil {
			return nil, nil, fmt.Errorf("meshnode: broadcast addr: %w", err)
		}
		ucastAddr, err := cfg.UnicastUDPAddr()
		if err != nil {
			return nil, nil, fmt.Errorf("meshnode: unicast addr: %w", err)
		}
		book := make(udplink.StaticAddrBook)
		link, err := udplink.New(self, book, bcastAddr, ucastAddr, lgr.Named("udplink"))
		if err != nil {
			return nil, nil, err
		}
		return link, book, nil
	case "sim":
		return nil, nil, fmt.Errorf("meshnode: transport=sim is only supported inside cmd/meshsim")
	default:
		return nil, nil, fmt.Errorf("meshnode: unsupported link transport %q", cfg.Transport)
	}
}

// applyPeers parses bootstrap peer strings of the form "addr@host:port"
// (the convention cmd/meshnode and internal/simharness's containers use
// to publish both a node's mesh address and its reachable UDP endpoint,
// since plain host:port alone has no way to answer book.Resolve) into
// book, and hands the resulting UDP endpoint list to the broadcaster as
// its UDP "radio range."
func applyPeers(book udplink.StaticAddrBook, bcast linklayer.Broadcaster, peers []string, lgr logger.Logger) []*net.UDPAddr {
	var udpAddrs []*net.UDPAddr
	for _, p := range peers {
		addrStr, endpoint, ok := strings.Cut(p, "@")
		if !ok {
			lgr.Warn("dropping malformed peer entry, expected addr@host:port", logger.F("peer", p))
			continue
		}
		peerAddr, err := meshaddr.Parse(addrStr)
		if err != nil {
			lgr.Warn("dropping peer with unparseable address", logger.F("peer", p), logger.F("err", err))
			continue
		}
		udpAddr, err := net.ResolveUDPAddr("udp", endpoint)
		if err != nil {
			lgr.Warn("dropping peer with unresolvable endpoint", logger.F("peer", p), logger.F("err", err))
			continue
		}
		book[peerAddr] = udpAddr
		udpAddrs = append(udpAddrs, udpAddr)
	}
	if b, ok := bcast.(interface{ Peers([]*net.UDPAddr) }); ok {
		b.Peers(udpAddrs)
	}
	return udpAddrs
}
