package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"robotrelay/internal/core/domain"
	"robotrelay/internal/core/services"
	"robotrelay/internal/infrastructure/bridge"
	"robotrelay/pkg/config"
	"robotrelay/pkg/logger"
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	// The bridge runs attended next to the robot; console encoding reads
	// better there than production JSON.
	zapLogger := logger.NewConsole(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	b := bridge.New(bridge.Config{
		RobotID:           domain.RobotID(cfg.Robot.ID),
		RobotURL:          fmt.Sprintf("ws://%s:%d", cfg.Robot.IP, cfg.Robot.Port),
		RelayURL:          cfg.Bridge.RelayURL,
		TelemetryInterval: cfg.Bridge.TelemetryInterval,
		GripperInterval:   cfg.Bridge.GripperInterval,
		StateInterval:     cfg.Bridge.StateInterval,
		HeartbeatInterval: cfg.Bridge.HeartbeatInterval,
		RetryDelay:        cfg.Bridge.RetryDelay,
	}, services.NewLogEvents(log), nil, log)

	log.Infow("bridge starting",
		"robot_id", cfg.Robot.ID,
		"robot", fmt.Sprintf("%s:%d", cfg.Robot.IP, cfg.Robot.Port),
		"relay", cfg.Bridge.RelayURL,
	)
	b.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Infow("received shutdown signal", "signal", sig)

	b.Stop()
	log.Info("bridge stopped")
}
