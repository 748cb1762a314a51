package bootstrap

import (
	"context"
	"testing"

	"ConvergeCast/internal/config"
	"ConvergeCast/internal/logger"
)

func TestStaticBootstrapDiscoverReturnsConfiguredPeers(t *testing.T) {
	b := NewStaticBootstrap([]string{"10.0.0.1:9000", "10.0.0.2:9000"})
	peers, err := b.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(peers))
	}
}

func TestStaticBootstrapRegisterIsNoop(t *testing.T) {
	b := NewStaticBootstrap(nil)
	if err := b.Register(context.Background(), "01:00", "10.0.0.1:9000"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := b.Deregister(context.Background(), "01:00", "10.0.0.1:9000"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(context.Background(), config.BootstrapConfig{Mode: "carrier-pigeon"}, &logger.NopLogger{})
	if err == nil {
		t.Fatal("expected an error for an unknown bootstrap mode")
	}
}

func TestResolveBootstrapStaticReturnsPeersVerbatim(t *testing.T) {
	cfg := config.BootstrapConfig{Mode: "static", Peers: []string{"10.0.0.5:9000"}}
	peers, err := ResolveBootstrap(cfg, &logger.NopLogger{})
	if err != nil {
		t.Fatalf("ResolveBootstrap: %v", err)
	}
	if len(peers) != 1 || peers[0] != "10.0.0.5:9000" {
		t.Fatalf("unexpected peers: %v", peers)
	}
}

func TestSplitEndpoint(t *testing.T) {
	host, port, err := splitEndpoint("10.0.0.1:9000")
	if err != nil {
		t.Fatalf("splitEndpoint: %v", err)
	}
	if host != "10.0.0.1" || port != 9000 {
		t.Fatalf("got host=%q port=%d", host, port)
	}
}
