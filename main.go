// Package main implements Zoneguard, a CLI application that watches a video
// source for people or other target objects entering a restricted zone.
//
// The operator draws the zone on the first frame. Every following frame is
// run through a YOLO object detector; a target whose box centre falls inside
// the zone raises the alert: a few snapshots are written to disk, one email
// is sent with the first snapshot attached, and an alarm sound is played.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clalos/zoneguard/internal/alarm"
	"github.com/clalos/zoneguard/internal/alert"
	"github.com/clalos/zoneguard/internal/detect"
	"github.com/clalos/zoneguard/internal/metrics"
	"github.com/clalos/zoneguard/internal/notify"
	"github.com/clalos/zoneguard/internal/vision"
	"github.com/clalos/zoneguard/internal/watch"
	"github.com/clalos/zoneguard/internal/zone"
)

const windowName = "Zoneguard"

// setupLogger configures structured logging based on the specified format.
func setupLogger(format string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "kv":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func main() {
	config, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(config.LogFormat)
	slog.SetDefault(logger)

	logger.Info("Starting Zoneguard",
		"source", config.Source,
		"model", config.Model,
		"targets", config.Targets,
		"results_dir", config.ResultsDir,
		"max_snapshots", config.MaxSnapshots,
		"width", config.Width,
		"confidence", config.Confidence,
		"headless", config.Headless,
		"log_format", config.LogFormat,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Received shutdown signal, stopping...")
		cancel()
	}()

	if err := run(ctx, config, logger); err != nil {
		logger.Error("Detector failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Zoneguard stopped")
}

// run wires the components together and runs one session.
func run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if err := os.MkdirAll(config.ResultsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	classes := detect.COCOClasses
	if config.ClassFile != "" {
		var err error
		if classes, err = detect.LoadClassFile(config.ClassFile); err != nil {
			return fmt.Errorf("failed to load classes: %w", err)
		}
	}

	detector, err := vision.NewYOLO(vision.YOLOConfig{
		Model:   config.Model,
		Classes: classes,
		Backend: config.DNNBackend,
		Target:  config.DNNTarget,
		Params: detect.Params{
			ProbabilityThreshold: float32(config.Confidence),
			NmsIouThreshold:      float32(config.NMS),
		},
	}, logger)
	if err != nil {
		return err
	}
	defer detector.Close()

	runMetrics := metrics.New()
	if config.MetricsAddr != "" {
		go func() {
			if err := runMetrics.Serve(ctx, config.MetricsAddr, logger); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// The controller treats a nil interface as a disabled channel, so the
	// concrete values are only assigned on success.
	var notifier alert.Notifier
	mailer, err := notify.Dial(ctx, config.Mail, logger)
	switch {
	case errors.Is(err, notify.ErrDisabled):
		logger.Debug("Email alerts disabled", "reason", err)
	case err != nil:
		logger.Error("Failed to authenticate email, alerts will not be emailed", "error", err)
	default:
		defer mailer.Close()
		notifier = mailer
	}

	var sound alert.Alarm
	if config.Alarm != "" {
		player, err := alarm.Load(config.Alarm, logger)
		if err != nil {
			return err
		}
		defer player.Close()
		sound = player
	} else {
		logger.Debug("Alarm sound disabled")
	}

	editor := zone.NewEditor()
	if preset := config.PresetZone(); preset != nil {
		for _, pt := range preset {
			editor.AddPoint(pt.X, pt.Y)
		}
		if err := editor.Confirm(); err != nil {
			return err
		}
	}

	var display watch.Display = vision.NullDisplay{}
	if !config.Headless {
		window := vision.NewWindow(windowName)
		defer window.Close()
		display = window
	}

	session := watch.NewSession(watch.Config{
		Width:        config.Width,
		Targets:      config.TargetSet(),
		MaxSnapshots: config.MaxSnapshots,
	}, watch.Components{
		Open: func() (watch.Source, error) {
			capture, err := vision.OpenStream(config.Source)
			if err != nil {
				return nil, err
			}
			return capture, nil
		},
		Detector:   detector,
		Display:    display,
		Snapshots:  vision.SnapshotWriter{Dir: config.ResultsDir},
		Controller: alert.NewController(notifier, sound, logger),
		Editor:     editor,
		Metrics:    runMetrics,
	}, logger)

	_, err = session.Run(ctx)
	return err
}
