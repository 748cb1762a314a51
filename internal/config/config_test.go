package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, yamlBody string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validSinkYAML = `
node:
  id: "00:00"
  isSink: true
  link:
    transport: sim
  bootstrap:
    mode: static
logger:
  enabled: true
  level: info
  encoding: console
  mode: stdout
telemetry:
  tracing:
    enabled: false
`

func TestLoadConfigValidSink(t *testing.T) {
	path := writeTempConfig(t, validSinkYAML)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cfg.ValidateConfig(); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
	if cfg.Node.ID != "00:00" || !cfg.Node.IsSink {
		t.Fatalf("unexpected node config: %+v", cfg.Node)
	}
}

func TestValidateConfigRejectsMissingPeersOnNonSink(t *testing.T) {
	path := writeTempConfig(t, `
node:
  id: "01:00"
  isSink: false
  link:
    transport: sim
  bootstrap:
    mode: static
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cfg.ValidateConfig(); err == nil {
		t.Fatal("expected ValidateConfig to reject a non-sink static node with no peers")
	}
}

func TestValidateConfigRejectsUnknownTransport(t *testing.T) {
	path := writeTempConfig(t, `
node:
  id: "01:00"
  link:
    transport: carrier-pigeon
  bootstrap:
    mode: static
    peers: ["02:00"]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cfg.ValidateConfig(); err == nil {
		t.Fatal("expected ValidateConfig to reject an unknown link transport")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validSinkYAML)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	t.Setenv("NODE_ID", "05:00")
	t.Setenv("BOOTSTRAP_PEERS", "01:00,02:00,03:00")
	t.Setenv("LOGGER_LEVEL", "debug")

	cfg.ApplyEnvOverrides()

	if cfg.Node.ID != "05:00" {
		t.Errorf("NODE_ID override not applied: got %q", cfg.Node.ID)
	}
	if len(cfg.Node.Bootstrap.Peers) != 3 {
		t.Errorf("BOOTSTRAP_PEERS override not applied: got %v", cfg.Node.Bootstrap.Peers)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("LOGGER_LEVEL override not applied: got %q", cfg.Logger.Level)
	}
}

func TestResolvedTunablesOverridesOnlyNonZeroFields(t *testing.T) {
	path := writeTempConfig(t, `
node:
  id: "00:00"
  isSink: true
  link:
    transport: sim
  bootstrap:
    mode: static
tunables:
  beaconMinInterval: 5s
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	resolved := cfg.ResolvedTunables()
	if resolved.BeaconMinInterval != 5*time.Second {
		t.Errorf("expected overridden BeaconMinInterval=5s, got %s", resolved.BeaconMinInterval)
	}
	if resolved.BeaconMaxInterval == 0 {
		t.Error("expected BeaconMaxInterval to fall back to package default, got zero")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error loading a missing config file")
	}
}
