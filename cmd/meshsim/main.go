package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ConvergeCast/internal/config"
	"ConvergeCast/internal/logger"
	zapfactory "ConvergeCast/internal/logger/zap"
	"ConvergeCast/internal/simharness"
	"ConvergeCast/internal/simharness/writer"
)

var defaultConfigPath = "config/meshsim/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := simharness.LoadRunConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(config.LoggerConfig{
			Enabled:  cfg.Logger.Active,
			Level:    cfg.Logger.Level,
			Encoding: cfg.Logger.Encoding,
			Mode:     cfg.Logger.Mode,
			File:     config.FileLoggerConfig(cfg.Logger.File),
		})
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	var w writer.Writer
	if cfg.CSV.Enabled {
		w, err = writer.NewCSVWriter(cfg.CSV.Path)
		if err != nil {
			lgr.Error("failed to initialize CSV writer", logger.F("err", err))
			os.Exit(1)
		}
	} else {
		w = writer.NopWriter{}
	}
	defer w.Close()

	docker, err := simharness.NewDockerHarness(cfg.Sim, lgr.Named("docker"))
	if err != nil {
		lgr.Error("failed to initialize docker harness", logger.F("err", err))
		os.Exit(1)
	}

	h := simharness.New(docker, cfg.Sim, lgr.Named("harness"), w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		lgr.Warn("received termination signal", logger.F("signal", sig.String()))
		cancel()
	}()

	start := time.Now()
	if err := h.Run(ctx); err != nil {
		lgr.Error("simulation run failed", logger.F("err", err))
	}
	lgr.Info("simulation finished", logger.F("elapsed", time.Since(start)))
}
