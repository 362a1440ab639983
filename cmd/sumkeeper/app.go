package main

import (
	"fmt"

	"github.com/Ning0612/Sumkeeper/internal/config"
	"github.com/Ning0612/Sumkeeper/internal/events"
	"github.com/Ning0612/Sumkeeper/internal/logger"
	"github.com/Ning0612/Sumkeeper/internal/service"
	"github.com/Ning0612/Sumkeeper/internal/state"
)

// app bundles what every subcommand needs
type app struct {
	cfg     *config.Config
	bus     *events.Bus
	history *state.Manager
	svc     *service.ChecksumService
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return nil, fmt.Errorf("failed to initialise logger: %w", err)
	}

	history, err := state.NewManager(cfg.Storage.StateDir)
	if err != nil {
		logger.Shutdown()
		return nil, err
	}

	bus := events.NewBus(logger.Get())
	svc, err := service.NewChecksumService(service.Options{
		Config:  cfg,
		Bus:     bus,
		History: history,
		Logger:  logger.Get(),
	})
	if err != nil {
		history.Close()
		logger.Shutdown()
		return nil, err
	}

	return &app{cfg: cfg, bus: bus, history: history, svc: svc}, nil
}

// Close releases the service, the history database and the logger
func (a *app) Close() {
	a.svc.Close()
	if err := a.history.Close(); err != nil {
		logger.Get().Warn("failed to close history", "error", err)
	}
	logger.Shutdown()
}
