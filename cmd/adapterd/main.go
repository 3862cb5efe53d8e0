package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/visiona/sscape-adapter/internal/config"
	"github.com/visiona/sscape-adapter/internal/core"
	"github.com/visiona/sscape-adapter/internal/source"
)

const defaultConfigPath = "config/adapter.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	replayPath := flag.String("replay", "", "Replay a JSON-lines metadata file instead of waiting for a pipeline")
	replayCamera := flag.String("replay-camera", "", "Camera id to replay into (defaults to the first configured camera)")
	replayFPS := flag.Float64("replay-fps", 0, "Replay pace in frames per second (0 = unpaced)")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting scenescape adapter",
		"config", *configPath,
		"debug", *debug,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	service, err := core.NewService(cfg)
	if err != nil {
		slog.Error("failed to create adapter service", "error", err)
		os.Exit(1)
	}

	if err := service.Start(); err != nil {
		slog.Error("failed to start adapter service", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *replayPath != "" {
		cameraID := *replayCamera
		if cameraID == "" {
			cameraID = cfg.Cameras[0].ID
		}
		adapter := service.Adapter(cameraID)
		if adapter == nil {
			slog.Error("replay camera not configured", "camera", cameraID)
			os.Exit(1)
		}

		go func() {
			<-sigChan
			cancel()
		}()

		replay := source.NewReplay(*replayPath, *replayFPS)
		if err := replay.Run(ctx, adapter); err != nil && err != context.Canceled {
			slog.Error("replay failed", "error", err)
		}
	} else {
		sig := <-sigChan
		slog.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := service.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("scenescape adapter stopped")
}
