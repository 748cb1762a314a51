package simharness

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Image:           "meshnode:test",
		Network:         "mesh-net",
		ContainerPrefix: "meshsim",
		NodeCount:       3,
		DebugPort:       9100,
		Duration:        time.Second,
		PollInterval:    100 * time.Millisecond,
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsTooFewNodes(t *testing.T) {
	cfg := validConfig()
	cfg.NodeCount = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for nodeCount < 2")
	}
}

func TestValidateRejectsMissingImage(t *testing.T) {
	cfg := validConfig()
	cfg.Image = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for empty image")
	}
}

func TestContainerNameIncludesIndex(t *testing.T) {
	cfg := validConfig()
	if got := cfg.containerName(0); got != "meshsim-0" {
		t.Fatalf("got %q", got)
	}
	if got := cfg.containerName(2); got != "meshsim-2" {
		t.Fatalf("got %q", got)
	}
}
