// rover: reactive colour-labelling and obstacle-avoiding controller for a
// differential-drive robot in the simulator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/journal"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/bridge"
	"github.com/teslashibe/go-rover/pkg/classify"
	"github.com/teslashibe/go-rover/pkg/classify/cloud"
	"github.com/teslashibe/go-rover/pkg/classify/onnx"
	"github.com/teslashibe/go-rover/pkg/controller"
	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/telemetry"
	"github.com/teslashibe/go-rover/pkg/vision"
)

var version = "0.1.0"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	flag.StringVar(&cfg.SimURL, "sim", cfg.SimURL, "Simulator supervisor WebSocket URL")
	flag.StringVar(&cfg.Profile, "profile", cfg.Profile, "Colour threshold profile: loose or strict")
	flag.DurationVar(&cfg.TimeStep, "timestep", cfg.TimeStep, "Control timestep (0 = simulator basic time step)")
	flag.IntVar(&cfg.TelemetryPort, "port", cfg.TelemetryPort, "Telemetry HTTP port (0 = disabled)")
	flag.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "SQLite journal path (empty = disabled)")
	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "ONNX model for the optional classifier")
	flag.StringVar(&cfg.LabelsPath, "labels", cfg.LabelsPath, "Labels file for the ONNX model")
	flag.StringVar(&cfg.VisionAPIKey, "vision-key", cfg.VisionAPIKey, "Cloud Vision API key")
	flag.BoolVar(&cfg.VisionUseADC, "vision-adc", cfg.VisionUseADC, "Use Application Default Credentials for Cloud Vision")
	flag.DurationVar(&cfg.ClassifyPause, "classify-pause", cfg.ClassifyPause, "Hold time after a classification")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	dryRun := flag.Bool("dry-run", false, "Run the built-in scripted scenario instead of connecting to the simulator")
	debug := flag.Bool("debug", false, "Log every telemetry HTTP request")
	flag.Parse()

	log.Init(cfg.LogLevel)

	fmt.Println()
	fmt.Println("🤖 go-rover v" + version)
	fmt.Println()

	if err := run(cfg, *dryRun, *debug); err != nil {
		log.Error("rover failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, dryRun, debug bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	thresholds, err := vision.ProfileByName(cfg.Profile)
	if err != nil {
		return err
	}

	// Devices
	var (
		provider robot.Provider
		stepper  robot.Stepper
		basic    time.Duration
	)
	if dryRun {
		bot := demoScript(config.DefaultTimeStep)
		provider, stepper, basic = bot, bot, bot.BasicTimeStep()
		log.Info("dry run: using scripted robot")
	} else {
		client, err := bridge.Dial(ctx, cfg.SimURL)
		if err != nil {
			return fmt.Errorf("connect to simulator: %w", err)
		}
		defer client.Close()
		provider, stepper, basic = client, client, client.BasicTimeStep()
	}

	devices, err := robot.Acquire(provider, stepper)
	if err != nil {
		return fmt.Errorf("acquire devices: %w", err)
	}

	ctrlCfg := controller.DefaultConfig()
	ctrlCfg.Thresholds = thresholds
	ctrlCfg.ClassifyPause = cfg.ClassifyPause
	ctrlCfg.TimeStep = cfg.TimeStep
	if ctrlCfg.TimeStep <= 0 {
		ctrlCfg.TimeStep = basic
	}
	if ctrlCfg.TimeStep <= 0 {
		ctrlCfg.TimeStep = config.DefaultTimeStep
	}

	// Run identity and journal
	runID := uuid.NewString()
	sinks := []controller.EventSink{controller.NewConsoleSink(os.Stdout)}

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		if runID, err = j.StartRun(ctx, thresholds.Name); err != nil {
			return err
		}
		defer func() {
			if err := j.EndRun(context.Background()); err != nil {
				log.Warn("journal end run", "error", err)
			}
		}()
		sinks = append(sinks, j)
	}

	// Telemetry
	if cfg.TelemetryPort > 0 {
		hub := telemetry.NewHub(telemetry.DefaultConfig(), runID, thresholds.Name)
		sinks = append(sinks, hub)

		app := telemetry.NewApp(hub, debug)
		go func() {
			if err := telemetry.Serve(ctx, app, fmt.Sprintf(":%d", cfg.TelemetryPort)); err != nil {
				log.Error("telemetry server", "error", err)
			}
		}()
	}

	classifier := buildClassifier(ctx, cfg)
	defer classifier.Close()

	ctrl, err := controller.New(ctrlCfg, devices,
		controller.WithRunID(runID),
		controller.WithClassifier(classifier),
		controller.WithSinks(sinks...),
	)
	if err != nil {
		return err
	}

	err = ctrl.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("interrupted, shutting down")
		return nil
	}
	return err
}

// buildClassifier assembles the optional classifier from whatever backends
// are configured. Backend failures are logged and leave the classifier
// absent; they never stop the rover.
func buildClassifier(ctx context.Context, cfg config.Config) classify.Optional {
	var backends []classify.Classifier

	if cfg.ModelPath != "" {
		oc := onnx.DefaultConfig()
		oc.ModelPath = cfg.ModelPath
		oc.LabelsPath = cfg.LabelsPath
		c, err := onnx.New(oc)
		if err != nil {
			log.Warn("onnx classifier unavailable", "model", cfg.ModelPath, "error", err)
		} else {
			backends = append(backends, c)
		}
	}

	if cfg.VisionAPIKey != "" || cfg.VisionUseADC {
		cc := cloud.DefaultConfig()
		cc.APIKey = cfg.VisionAPIKey
		c, err := cloud.New(ctx, cc)
		if err != nil {
			log.Warn("cloud vision classifier unavailable", "error", err)
		} else {
			backends = append(backends, c)
		}
	}

	switch len(backends) {
	case 0:
		return classify.Absent()
	case 1:
		return classify.Present(backends[0])
	}
	chain, err := classify.NewChain(backends...)
	if err != nil {
		log.Warn("classifier chain", "error", err)
		return classify.Absent()
	}
	return classify.Present(chain)
}
