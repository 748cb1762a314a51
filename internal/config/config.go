// Package config loads and validates the YAML-configured shape of a mesh
// node: which tunables it overrides, which link transport it binds, how it
// discovers and announces itself to the rest of the deployment, and how it
// logs and traces.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ConvergeCast/internal/logger"
	"ConvergeCast/internal/tunables"
)

// FileLoggerConfig configures the lumberjack-backed rotating file sink used
// when LoggerConfig.Mode == "file".
type FileLoggerConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

// LoggerConfig configures the zap-backed logger.Logger built by
// internal/logger/zap.New.
type LoggerConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Level    string           `yaml:"level"`
	Encoding string           `yaml:"encoding"`
	Mode     string           `yaml:"mode"`
	File     FileLoggerConfig `yaml:"file"`
}

// TracingConfig selects the OpenTelemetry trace exporter internal/telemetry
// wires up.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// TelemetryConfig wraps every observability concern beyond logging.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// LinkConfig selects and configures the linklayer.Link implementation a
// node binds: the in-process simlink.Medium for simulation, or udplink for
// a real deployment.
type LinkConfig struct {
	// Transport is "sim" or "udp".
	Transport string `yaml:"transport"`

	// BindHost, BroadcastPort and UnicastPort configure udplink.New; unused
	// under transport=sim.
	BindHost      string `yaml:"bindHost"`
	BroadcastPort int    `yaml:"broadcastPort"`
	UnicastPort   int    `yaml:"unicastPort"`

	// BroadcastAddr is a UDP subnet broadcast address (e.g.
	// "192.168.1.255:9000"). It is parsed but not read by cmd/meshnode:
	// the udplink broadcaster's Peers fan-out list is built from the
	// bootstrap peers instead. A real radio reaches every node in range
	// with no such configuration; UDP has no equivalent of a shared
	// collision domain, so the fan-out list has to be named explicitly.
	BroadcastAddr string `yaml:"broadcastAddr"`
}

// Route53Config names the hosted zone an SRV-based bootstrap source or
// registrar publishes node addresses into.
type Route53Config struct {
	HostedZoneID string `yaml:"hostedZoneId"`
	DomainSuffix string `yaml:"domainSuffix"`
	TTL          int64  `yaml:"ttl"`
}

// CoreDNSConfig names the etcd cluster a CoreDNS-backed registrar writes
// SRV records into.
type CoreDNSConfig struct {
	EtcdEndpoints []string `yaml:"etcdEndpoints"`
	BasePath      string   `yaml:"basePath"`
	Domain        string   `yaml:"domain"`
}

// RegisterConfig configures the backend this node announces its own
// address to once it has joined, so peers discovering by DNS or Route53
// can find it. Unused by nodes that only consume a static peer list.
type RegisterConfig struct {
	Enabled bool          `yaml:"enabled"`
	Type    string        `yaml:"type"`
	TTL     int64         `yaml:"ttl"`
	Route53 Route53Config `yaml:"route53"`
	CoreDNS CoreDNSConfig `yaml:"coredns"`
}

// BootstrapConfig configures how a node resolves the set of peer addresses
// it opens link-layer channels toward before any beacon has been heard.
type BootstrapConfig struct {
	// Mode is "static", "dns" or "route53".
	Mode  string   `yaml:"mode"`
	Peers []string `yaml:"peers"`

	// DNS lookup fields, read when Mode == "dns".
	DNSName  string `yaml:"dnsName"`
	SRV      bool   `yaml:"srv"`
	Service  string `yaml:"service"`
	Proto    string `yaml:"proto"`
	Resolver string `yaml:"resolver"`
	Port     int    `yaml:"port"`

	// Route53 is read when Mode == "route53".
	Route53 Route53Config `yaml:"route53"`

	// Register, if Enabled, publishes this node's own address through the
	// named backend once bootstrap discovery completes.
	Register RegisterConfig `yaml:"register"`
}

// NodeConfig identifies and configures the single node a process runs.
type NodeConfig struct {
	// ID is this node's mesh address: either the "xx:xx" hex form produced
	// by meshaddr.Addr.String, or a decimal node number.
	ID     string `yaml:"id"`
	IsSink bool   `yaml:"isSink"`

	Link      LinkConfig      `yaml:"link"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// Config is the top-level shape of a node's YAML configuration file.
type Config struct {
	Node      NodeConfig        `yaml:"node"`
	Tunables  tunables.Tunables `yaml:"tunables"`
	Logger    LoggerConfig      `yaml:"logger"`
	Telemetry TelemetryConfig   `yaml:"telemetry"`
}

// LoadConfig reads and parses the YAML file at path.
//
// This performs only syntactic parsing; call ValidateConfig afterward to
// check for missing or inconsistent fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnvOverrides overlays environment variables on top of a loaded
// Config, so a deployment can override a handful of node-specific fields
// without templating the YAML file.
//
// Supported overrides:
//
//	NODE_ID              -> cfg.Node.ID
//	NODE_IS_SINK         -> cfg.Node.IsSink
//	LINK_TRANSPORT       -> cfg.Node.Link.Transport
//	LINK_BIND_HOST       -> cfg.Node.Link.BindHost
//	LINK_BROADCAST_PORT  -> cfg.Node.Link.BroadcastPort
//	LINK_UNICAST_PORT    -> cfg.Node.Link.UnicastPort
//	BOOTSTRAP_MODE       -> cfg.Node.Bootstrap.Mode
//	BOOTSTRAP_PEERS      -> cfg.Node.Bootstrap.Peers (comma-separated)
//	BOOTSTRAP_DNSNAME    -> cfg.Node.Bootstrap.DNSName
//	REGISTER_ENABLED     -> cfg.Node.Bootstrap.Register.Enabled
//	LOGGER_LEVEL         -> cfg.Logger.Level
//	LOGGER_ENCODING      -> cfg.Logger.Encoding
//	LOGGER_MODE          -> cfg.Logger.Mode
//	LOGGER_FILE_PATH     -> cfg.Logger.File.Path
//	TRACE_ENABLED        -> cfg.Telemetry.Tracing.Enabled
//	TRACE_EXPORTER       -> cfg.Telemetry.Tracing.Exporter
//	TRACE_ENDPOINT       -> cfg.Telemetry.Tracing.Endpoint
func (cfg *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NODE_ID"); v != "" {
		cfg.Node.ID = v
	}
	if v := os.Getenv("NODE_IS_SINK"); v != "" {
		cfg.Node.IsSink = asBool(v)
	}
	if v := os.Getenv("LINK_TRANSPORT"); v != "" {
		cfg.Node.Link.Transport = v
	}
	if v := os.Getenv("LINK_BIND_HOST"); v != "" {
		cfg.Node.Link.BindHost = v
	}
	if v := os.Getenv("LINK_BROADCAST_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Node.Link.BroadcastPort = n
		}
	}
	if v := os.Getenv("LINK_UNICAST_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Node.Link.UnicastPort = n
		}
	}
	if v := os.Getenv("BOOTSTRAP_MODE"); v != "" {
		cfg.Node.Bootstrap.Mode = v
	}
	if v := os.Getenv("BOOTSTRAP_PEERS"); v != "" {
		cfg.Node.Bootstrap.Peers = strings.Split(v, ",")
	}
	if v := os.Getenv("BOOTSTRAP_DNSNAME"); v != "" {
		cfg.Node.Bootstrap.DNSName = v
	}
	if v := os.Getenv("REGISTER_ENABLED"); v != "" {
		cfg.Node.Bootstrap.Register.Enabled = asBool(v)
	}
	if v := os.Getenv("LOGGER_ENABLED"); v != "" {
		cfg.Logger.Enabled = asBool(v)
	}
	if v := os.Getenv("LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("LOGGER_ENCODING"); v != "" {
		cfg.Logger.Encoding = v
	}
	if v := os.Getenv("LOGGER_MODE"); v != "" {
		cfg.Logger.Mode = v
	}
	if v := os.Getenv("LOGGER_FILE_PATH"); v != "" {
		cfg.Logger.File.Path = v
	}
	if v := os.Getenv("TRACE_ENABLED"); v != "" {
		cfg.Telemetry.Tracing.Enabled = asBool(v)
	}
	if v := os.Getenv("TRACE_EXPORTER"); v != "" {
		cfg.Telemetry.Tracing.Exporter = v
	}
	if v := os.Getenv("TRACE_ENDPOINT"); v != "" {
		cfg.Telemetry.Tracing.Endpoint = v
	}
}

func asBool(v string) bool {
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

// ValidateConfig performs structural validation of the loaded
// configuration: required fields, enum-like fields, and port ranges. It
// does not check protocol-level consistency of Tunables (e.g.
// BeaconMinInterval <= BeaconMaxInterval); internal/beacon clamps those at
// use rather than rejecting them at load time.
//
// All detected issues accumulate into a single returned error rather than
// failing on the first one.
func (cfg *Config) ValidateConfig() error {
	var errs []string

	if cfg.Node.ID == "" {
		errs = append(errs, "node.id is required")
	}

	switch cfg.Node.Link.Transport {
	case "sim":
	case "udp":
		if cfg.Node.Link.BindHost == "" {
			errs = append(errs, "node.link.bindHost is required for transport=udp")
		}
		if cfg.Node.Link.BroadcastPort <= 0 || cfg.Node.Link.UnicastPort <= 0 {
			errs = append(errs, "node.link.broadcastPort and unicastPort must be > 0 for transport=udp")
		}
	default:
		errs = append(errs, fmt.Sprintf("node.link.transport must be sim or udp, got %q", cfg.Node.Link.Transport))
	}

	b := cfg.Node.Bootstrap
	switch b.Mode {
	case "static":
		for _, p := range b.Peers {
			if _, _, err := net.SplitHostPort(p); err != nil && cfg.Node.Link.Transport == "udp" {
				errs = append(errs, fmt.Sprintf("invalid peer address %q in node.bootstrap.peers: %v", p, err))
			}
		}
		if len(b.Peers) == 0 && !cfg.Node.IsSink {
			errs = append(errs, "node.bootstrap.peers is required for mode=static on a non-sink node")
		}
	case "dns":
		if b.DNSName == "" {
			errs = append(errs, "node.bootstrap.dnsName is required for mode=dns")
		}
		if !b.SRV && b.Port <= 0 {
			errs = append(errs, "node.bootstrap.port must be > 0 when mode=dns and srv=false")
		}
	case "route53":
		if b.Route53.HostedZoneID == "" {
			errs = append(errs, "node.bootstrap.route53.hostedZoneId is required for mode=route53")
		}
	default:
		errs = append(errs, fmt.Sprintf("node.bootstrap.mode must be static, dns or route53, got %q", b.Mode))
	}

	if b.Register.Enabled {
		switch b.Register.Type {
		case "route53":
			if b.Register.Route53.HostedZoneID == "" {
				errs = append(errs, "node.bootstrap.register.route53.hostedZoneId is required when register.type=route53")
			}
		case "coredns":
			if len(b.Register.CoreDNS.EtcdEndpoints) == 0 {
				errs = append(errs, "node.bootstrap.register.coredns.etcdEndpoints is required when register.type=coredns")
			}
		default:
			errs = append(errs, fmt.Sprintf("node.bootstrap.register.type must be route53 or coredns, got %q", b.Register.Type))
		}
		if b.Register.TTL <= 0 {
			errs = append(errs, "node.bootstrap.register.ttl must be > 0 when register.enabled=true")
		}
	}

	if cfg.Logger.Enabled {
		switch cfg.Logger.Level {
		case "debug", "info", "warn", "error":
		default:
			errs = append(errs, fmt.Sprintf("logger.level must be debug, info, warn or error, got %q", cfg.Logger.Level))
		}
		switch cfg.Logger.Encoding {
		case "console", "json":
		default:
			errs = append(errs, fmt.Sprintf("logger.encoding must be console or json, got %q", cfg.Logger.Encoding))
		}
		switch cfg.Logger.Mode {
		case "stdout":
		case "file":
			if cfg.Logger.File.Path == "" {
				errs = append(errs, "logger.file.path is required when logger.mode=file")
			}
			if cfg.Logger.File.MaxSize < 0 || cfg.Logger.File.MaxBackups < 0 || cfg.Logger.File.MaxAge < 0 {
				errs = append(errs, "logger.file.* values must be non-negative")
			}
		default:
			errs = append(errs, fmt.Sprintf("logger.mode must be stdout or file, got %q", cfg.Logger.Mode))
		}
	}

	if cfg.Telemetry.Tracing.Enabled {
		switch cfg.Telemetry.Tracing.Exporter {
		case "stdout":
		default:
			errs = append(errs, fmt.Sprintf("telemetry.tracing.exporter must be stdout, got %q", cfg.Telemetry.Tracing.Exporter))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig dumps the main fields of cfg at DEBUG, for start-of-day
// troubleshooting.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("node config",
		logger.F("node.id", cfg.Node.ID),
		logger.F("node.isSink", cfg.Node.IsSink),
		logger.F("node.link.transport", cfg.Node.Link.Transport),
		logger.F("node.link.bindHost", cfg.Node.Link.BindHost),
		logger.F("node.link.broadcastPort", cfg.Node.Link.BroadcastPort),
		logger.F("node.link.unicastPort", cfg.Node.Link.UnicastPort),
		logger.F("node.bootstrap.mode", cfg.Node.Bootstrap.Mode),
		logger.F("node.bootstrap.peers", cfg.Node.Bootstrap.Peers),
		logger.F("node.bootstrap.dnsName", cfg.Node.Bootstrap.DNSName),
		logger.F("node.bootstrap.register.enabled", cfg.Node.Bootstrap.Register.Enabled),
		logger.F("node.bootstrap.register.type", cfg.Node.Bootstrap.Register.Type),
	)
	lgr.Debug("tunables",
		logger.F("rssiThreshold", cfg.Tunables.RSSIThreshold),
		logger.F("maxPathLength", cfg.Tunables.MaxPathLength),
		logger.F("maxSubtreeSize", cfg.Tunables.MaxSubtreeSize),
		logger.F("maxBufferedReports", cfg.Tunables.MaxBufferedReports),
		logger.F("beaconInitialInterval", cfg.Tunables.BeaconInitialInterval.String()),
		logger.F("beaconMinInterval", cfg.Tunables.BeaconMinInterval.String()),
		logger.F("beaconMaxInterval", cfg.Tunables.BeaconMaxInterval.String()),
		logger.F("cleanupInterval", cfg.Tunables.CleanupInterval.String()),
		logger.F("reportBatchDelay", cfg.Tunables.ReportBatchDelay.String()),
	)
	lgr.Debug("logger config",
		logger.F("logger.enabled", cfg.Logger.Enabled),
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),
		logger.F("logger.file.path", cfg.Logger.File.Path),
	)
	lgr.Debug("telemetry config",
		logger.F("telemetry.tracing.enabled", cfg.Telemetry.Tracing.Enabled),
		logger.F("telemetry.tracing.exporter", cfg.Telemetry.Tracing.Exporter),
		logger.F("telemetry.tracing.endpoint", cfg.Telemetry.Tracing.Endpoint),
	)
}

// ResolvedTunables merges cfg's YAML overrides onto the package defaults,
// for handing straight to conn.New via conn.WithTunables.
func (cfg *Config) ResolvedTunables() tunables.Tunables {
	return tunables.Defaults().Merge(cfg.Tunables)
}
