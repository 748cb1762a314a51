package simharness

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config drives one containerized simulation run: how many nodes to
// start, on what image and network, and for how long to drive the
// scenario before collecting results.
type Config struct {
	Image           string        `yaml:"image"`            // meshnode image reference
	Network         string        `yaml:"network"`          // Docker bridge network name
	ContainerPrefix string        `yaml:"containerPrefix"`   // e.g. "meshsim"
	NodeCount       int           `yaml:"nodeCount"`         // including the sink
	DebugPort       int           `yaml:"debugPort"`         // internal/server debug port inside each container
	Duration        time.Duration `yaml:"duration"`          // how long to let the scenario run
	PollInterval    time.Duration `yaml:"pollInterval"`      // how often to sample parent/routes
	CSVPath         string        `yaml:"csvPath"`           // "" disables CSV output

	// TrafficRate is the aggregate rate, across all simulated senders, of
	// random-destination unicasts the traffic generator issues via each
	// node's debug endpoint. 0 disables traffic generation and leaves the
	// harness doing nothing but parent/route polling.
	TrafficRate        float64 `yaml:"trafficRate"`
	TrafficPayloadSize int     `yaml:"trafficPayloadSize"`
}

// Validate checks the fields Run needs to make sense of before touching
// the Docker API.
func (c Config) Validate() error {
	if c.Image == "" {
		return fmt.Errorf("simharness: image must not be empty")
	}
	if c.Network == "" {
		return fmt.Errorf("simharness: network must not be empty")
	}
	if c.NodeCount < 2 {
		return fmt.Errorf("simharness: nodeCount must be >= 2 (got %d)", c.NodeCount)
	}
	if c.DebugPort <= 0 {
		return fmt.Errorf("simharness: debugPort must be > 0 (got %d)", c.DebugPort)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("simharness: duration must be > 0 (got %v)", c.Duration)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("simharness: pollInterval must be > 0 (got %v)", c.PollInterval)
	}
	if c.TrafficRate < 0 {
		return fmt.Errorf("simharness: trafficRate must be >= 0 (got %f)", c.TrafficRate)
	}
	if c.TrafficRate > 0 && c.TrafficPayloadSize <= 0 {
		return fmt.Errorf("simharness: trafficPayloadSize must be > 0 when trafficRate > 0 (got %d)", c.TrafficPayloadSize)
	}
	return nil
}

// containerName returns the name assigned to node index i (0 is always
// the sink).
func (c Config) containerName(i int) string {
	return fmt.Sprintf("%s-%d", c.ContainerPrefix, i)
}

// nodeAddr recovers the mesh address StartNode assigned a container from
// its debug endpoint, inverting "prefix-i:port" back to "i+1" (StartNode's
// NODE_ID=i+1 convention). Returns false for any endpoint that doesn't
// match this harness's own naming scheme.
func (c Config) nodeAddr(endpoint string) (string, bool) {
	host, _, ok := strings.Cut(endpoint, ":")
	if !ok {
		return "", false
	}
	idxStr := strings.TrimPrefix(host, c.ContainerPrefix+"-")
	if idxStr == host {
		return "", false
	}
	i, err := strconv.Atoi(idxStr)
	if err != nil {
		return "", false
	}
	return strconv.Itoa(i + 1), true
}
