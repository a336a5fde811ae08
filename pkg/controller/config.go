package controller

import (
	"time"

	"github.com/teslashibe/go-rover/pkg/navigation"
	"github.com/teslashibe/go-rover/pkg/vision"
)

// Config holds control loop settings.
type Config struct {
	// TimeStep is the duration requested from the stepper on every tick.
	TimeStep time.Duration

	// Thresholds is the colour regime used for labelling.
	Thresholds vision.Thresholds

	// Navigation tunes obstacle detection and the turn manoeuvre.
	Navigation navigation.Config

	// ClassifyPause is how long the rover holds still after a successful
	// classification. It is converted to whole ticks, rounding up.
	ClassifyPause time.Duration

	// ClassifyTimeout bounds a single classifier call (0 = no limit).
	ClassifyTimeout time.Duration
}

// DefaultConfig returns the loose profile at a 64ms timestep.
func DefaultConfig() Config {
	return Config{
		TimeStep:        64 * time.Millisecond,
		Thresholds:      vision.Loose(),
		Navigation:      navigation.DefaultConfig(),
		ClassifyPause:   3 * time.Second,
		ClassifyTimeout: 30 * time.Second,
	}
}

// PauseTicks returns ceil(ClassifyPause / TimeStep).
func (c Config) PauseTicks() int {
	if c.ClassifyPause <= 0 {
		return 0
	}
	if c.TimeStep <= 0 {
		return 1
	}
	return int((c.ClassifyPause + c.TimeStep - 1) / c.TimeStep)
}
