package navigation

import "github.com/teslashibe/go-rover/pkg/sensor"

// ObstacleAhead reports whether any front-sector reading exceeds the
// threshold. Out-of-range indices in FrontSensors are ignored.
func (c Config) ObstacleAhead(prox [sensor.ProximityChannels]float64) bool {
	for _, i := range c.FrontSensors {
		if i < 0 || i >= len(prox) {
			continue
		}
		if prox[i] > c.ObstacleThreshold {
			return true
		}
	}
	return false
}

// ObstacleAhead applies the default chassis mapping and threshold.
func ObstacleAhead(prox [sensor.ProximityChannels]float64) bool {
	return DefaultConfig().ObstacleAhead(prox)
}
