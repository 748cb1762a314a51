// Package tunables collects the compile-time constants of the reference
// deployment as named Go constants, plus a Tunables struct so
// internal/config can override them per deployment — the reference
// firmware has no such override path, but a YAML-configured node is the
// ambient norm for this module.
package tunables

import "time"

const (
	// RSSIThreshold is the minimum received-signal strength (dBm) below
	// which beacons are ignored as unreliable links.
	RSSIThreshold int16 = -95

	// ChildRouteMetric is the placeholder metric installed for
	// child-declared routes (ADD_CHILD). Priority arbitration prevents it
	// from overriding better data; see the for why this was left an
	// opaque literal in the reference source.
	ChildRouteMetric uint16 = 100

	// NoParentMetric is the sentinel metric meaning "no parent" / infinite
	// distance to the sink.
	NoParentMetric uint16 = 65535

	// MaxPathLength is the maximum number of hops a data frame may
	// accumulate before being dropped.
	MaxPathLength uint8 = 10

	// MaxSubtreeSize bounds the subtree registry.
	MaxSubtreeSize = 10

	// MaxBufferedReports bounds the pending topology-report buffer.
	MaxBufferedReports = 7

	// MinParentSwitchInterval damps parent-adoption oscillation.
	MinParentSwitchInterval = 40 * time.Second

	// Beacon pacing bounds.
	BeaconInitialInterval = 15 * time.Second
	BeaconMinInterval     = 10 * time.Second
	BeaconMaxInterval     = 70 * time.Second

	// BeaconSilentLimit: emit a beacon/report if this much time has
	// elapsed since the last forwarded beacon.
	BeaconSilentLimit = 20 * time.Second

	// StabilityThreshold: number of consecutive same-parent beacons
	// before the beacon interval is doubled.
	StabilityThreshold = 3

	// CleanupInterval is the routing-table purge period.
	CleanupInterval = 120 * time.Second

	// ReportBatchDelay is the single-shot delay used to batch incoming
	// topology reports before applying and forwarding them upward.
	ReportBatchDelay = 6 * time.Second

	// BeaconForwardJitter bounds the uniform random delay applied before
	// forwarding/re-broadcasting a beacon, to decorrelate collisions.
	BeaconForwardJitter = 1 * time.Second
)

// Tunables bundles every override-able knob above so it can be loaded from
// YAML and threaded through the connection. Zero-value fields are replaced
// with the package defaults by Defaults().Merge.
type Tunables struct {
	RSSIThreshold           int16         `yaml:"rssiThreshold"`
	MaxPathLength           uint8         `yaml:"maxPathLength"`
	MaxSubtreeSize          int           `yaml:"maxSubtreeSize"`
	MaxBufferedReports      int           `yaml:"maxBufferedReports"`
	MinParentSwitchInterval time.Duration `yaml:"minParentSwitchInterval"`
	BeaconInitialInterval   time.Duration `yaml:"beaconInitialInterval"`
	BeaconMinInterval       time.Duration `yaml:"beaconMinInterval"`
	BeaconMaxInterval       time.Duration `yaml:"beaconMaxInterval"`
	BeaconSilentLimit       time.Duration `yaml:"beaconSilentLimit"`
	StabilityThreshold      int           `yaml:"stabilityThreshold"`
	CleanupInterval         time.Duration `yaml:"cleanupInterval"`
	ReportBatchDelay        time.Duration `yaml:"reportBatchDelay"`
}

// Defaults returns the Tunables matching the reference deployment exactly.
func Defaults() Tunables {
	return Tunables{
		RSSIThreshold:           RSSIThreshold,
		MaxPathLength:           MaxPathLength,
		MaxSubtreeSize:          MaxSubtreeSize,
		MaxBufferedReports:      MaxBufferedReports,
		MinParentSwitchInterval: MinParentSwitchInterval,
		BeaconInitialInterval:   BeaconInitialInterval,
		BeaconMinInterval:       BeaconMinInterval,
		BeaconMaxInterval:       BeaconMaxInterval,
		BeaconSilentLimit:       BeaconSilentLimit,
		StabilityThreshold:      StabilityThreshold,
		CleanupInterval:         CleanupInterval,
		ReportBatchDelay:        ReportBatchDelay,
	}
}

// Merge overlays any non-zero field of override onto the receiver, returning
// the result. Used by internal/config to apply partial YAML overrides on
// top of Defaults().
func (t Tunables) Merge(override Tunables) Tunables {
	out := t
	if override.RSSIThreshold != 0 {
		out.RSSIThreshold = override.RSSIThreshold
	}
	if override.MaxPathLength != 0 {
		out.MaxPathLength = override.MaxPathLength
	}
	if override.MaxSubtreeSize != 0 {
		out.MaxSubtreeSize = override.MaxSubtreeSize
	}
	if override.MaxBufferedReports != 0 {
		out.MaxBufferedReports = override.MaxBufferedReports
	}
	if override.MinParentSwitchInterval != 0 {
		out.MinParentSwitchInterval = override.MinParentSwitchInterval
	}
	if override.BeaconInitialInterval != 0 {
		out.BeaconInitialInterval = override.BeaconInitialInterval
	}
	if override.BeaconMinInterval != 0 {
		out.BeaconMinInterval = override.BeaconMinInterval
	}
	if override.BeaconMaxInterval != 0 {
		out.BeaconMaxInterval = override.BeaconMaxInterval
	}
	if override.BeaconSilentLimit != 0 {
		out.BeaconSilentLimit = override.BeaconSilentLimit
	}
	if override.StabilityThreshold != 0 {
		out.StabilityThreshold = override.StabilityThreshold
	}
	if override.CleanupInterval != 0 {
		out.CleanupInterval = override.CleanupInterval
	}
	if override.ReportBatchDelay != 0 {
		out.ReportBatchDelay = override.ReportBatchDelay
	}
	return out
}
