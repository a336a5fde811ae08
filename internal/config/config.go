// Package config provides configuration helpers for go-rover commands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults used when the environment does not override them.
const (
	DefaultSimURL        = "ws://127.0.0.1:10020/controller"
	DefaultTelemetryPort = 8090
	DefaultProfile       = "loose"
	DefaultLogLevel      = "info"
	DefaultTimeStep      = 64 * time.Millisecond
)

// Config is the runtime configuration of the rover binary.
type Config struct {
	SimURL        string        // Simulator supervisor WebSocket URL
	TelemetryPort int           // 0 disables the telemetry server
	Profile       string        // Colour threshold profile: "loose" or "strict"
	TimeStep      time.Duration // Control timestep; 0 means use the simulator's basic time step
	JournalPath   string        // SQLite journal file; empty disables journaling
	LogLevel      string

	// Optional classifier
	ModelPath     string        // ONNX model for the local classifier
	LabelsPath    string        // One label per line, index-aligned with the model output
	VisionAPIKey  string        // Cloud Vision API key
	VisionUseADC  bool          // Use Application Default Credentials for Cloud Vision
	ClassifyPause time.Duration // Zero-velocity hold after a classification
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given). A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv builds a Config from ROVER_* environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		SimURL:        String("ROVER_SIM_URL", DefaultSimURL),
		Profile:       String("ROVER_PROFILE", DefaultProfile),
		JournalPath:   os.Getenv("ROVER_JOURNAL"),
		LogLevel:      String("LOG_LEVEL", DefaultLogLevel),
		ModelPath:     os.Getenv("ROVER_MODEL_PATH"),
		LabelsPath:    os.Getenv("ROVER_LABELS_PATH"),
		VisionAPIKey:  os.Getenv("ROVER_VISION_API_KEY"),
		ClassifyPause: 3 * time.Second,
	}

	var err error
	if cfg.TelemetryPort, err = Int("ROVER_TELEMETRY_PORT", DefaultTelemetryPort); err != nil {
		return Config{}, err
	}
	if cfg.TimeStep, err = Duration("ROVER_TIMESTEP", 0); err != nil {
		return Config{}, err
	}
	if cfg.VisionUseADC, err = Bool("ROVER_VISION_ADC", false); err != nil {
		return Config{}, err
	}
	if cfg.ClassifyPause, err = Duration("ROVER_CLASSIFY_PAUSE", cfg.ClassifyPause); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// String returns the env var or the fallback if unset.
func String(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Int parses an integer env var.
func Int(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// Bool parses a boolean env var.
func Bool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// Duration parses a duration env var. Bare integers are milliseconds.
func Duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
