package simharness

import (
	"fmt"

	"ConvergeCast/internal/configloader"
	"ConvergeCast/internal/logger"
)

// CSVConfig controls whether simulation events are persisted, mirroring
// the teacher tester's CSVConfig.
type CSVConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RunConfig is the root configuration for cmd/meshsim: the harness
// scenario plus the ambient logging and CSV-export settings a standalone
// binary needs that Config itself has no business knowing about.
type RunConfig struct {
	Logger configloader.LoggerConfig `yaml:"logger"`
	CSV    CSVConfig                 `yaml:"csv"`
	Sim    Config                    `yaml:"sim"`
}

// LoadRunConfig reads path and applies environment overrides, the same
// two-step load tester.Load performs.
func LoadRunConfig(path string) (*RunConfig, error) {
	cfg := &RunConfig{}
	if err := configloader.LoadYAML(path, cfg); err != nil {
		return nil, err
	}

	configloader.OverrideBool(&cfg.Logger.Active, "LOGGER_ACTIVE")
	configloader.OverrideString(&cfg.Logger.Level, "LOGGER_LEVEL")
	configloader.OverrideString(&cfg.Logger.Encoding, "LOGGER_ENCODING")
	configloader.OverrideString(&cfg.Logger.Mode, "LOGGER_MODE")
	configloader.OverrideString(&cfg.Logger.File.Path, "LOGGER_FILE_PATH")

	configloader.OverrideBool(&cfg.CSV.Enabled, "CSV_ENABLED")
	configloader.OverrideString(&cfg.CSV.Path, "CSV_PATH")

	configloader.OverrideString(&cfg.Sim.Image, "SIM_IMAGE")
	configloader.OverrideString(&cfg.Sim.Network, "SIM_NETWORK")
	configloader.OverrideString(&cfg.Sim.ContainerPrefix, "SIM_CONTAINER_PREFIX")
	configloader.OverrideInt(&cfg.Sim.NodeCount, "SIM_NODE_COUNT")
	configloader.OverrideInt(&cfg.Sim.DebugPort, "SIM_DEBUG_PORT")
	configloader.OverrideDuration(&cfg.Sim.Duration, "SIM_DURATION")
	configloader.OverrideDuration(&cfg.Sim.PollInterval, "SIM_POLL_INTERVAL")
	configloader.OverrideFloat(&cfg.Sim.TrafficRate, "SIM_TRAFFIC_RATE")
	configloader.OverrideInt(&cfg.Sim.TrafficPayloadSize, "SIM_TRAFFIC_PAYLOAD_SIZE")

	return cfg, nil
}

// Validate checks both the logger/CSV ambient fields and the embedded
// scenario Config.
func (c *RunConfig) Validate() error {
	if c.Logger.Active {
		switch c.Logger.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logger.level must be one of [debug, info, warn, error], got %q", c.Logger.Level)
		}
	}
	if c.CSV.Enabled && c.CSV.Path == "" {
		return fmt.Errorf("csv.path must be set when csv.enabled = true")
	}
	return c.Sim.Validate()
}

// LogConfig logs the loaded configuration at INFO level.
func (c *RunConfig) LogConfig(lgr logger.Logger) {
	lgr.Info("loaded meshsim configuration",
		logger.F("logger.active", c.Logger.Active),
		logger.F("logger.level", c.Logger.Level),
		logger.F("csv.enabled", c.CSV.Enabled),
		logger.F("csv.path", c.CSV.Path),
		logger.F("sim.image", c.Sim.Image),
		logger.F("sim.network", c.Sim.Network),
		logger.F("sim.nodeCount", c.Sim.NodeCount),
		logger.F("sim.duration", c.Sim.Duration.String()),
		logger.F("sim.pollInterval", c.Sim.PollInterval.String()),
		logger.F("sim.trafficRate", c.Sim.TrafficRate),
	)
}
