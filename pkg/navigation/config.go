// Package navigation provides reactive obstacle avoidance for a
// differential-drive base: a front-sector obstacle detector and a
// fixed-duration turn state machine.
package navigation

// Config holds the tunable parameters of obstacle avoidance.
type Config struct {
	// Detection
	ObstacleThreshold float64 // Proximity reading above which a sensor sees an obstacle
	FrontSensors      []int   // Indices of the proximity sensors covering the front sector

	// Turning
	TurnSteps   int     // Timesteps a turn lasts once triggered
	TurnLeft    float64 // Left wheel velocity while turning (rad/s)
	TurnRight   float64 // Right wheel velocity while turning (rad/s)
	CruiseLeft  float64 // Left wheel velocity while driving straight (rad/s)
	CruiseRight float64 // Right wheel velocity while driving straight (rad/s)
}

// DefaultConfig returns the e-puck tuning.
//
// FrontSensors is ps0, ps1 (front right pair) and ps5, ps6 (front left
// pair). The mapping follows the chassis sensor layout and is not
// symmetric by index.
func DefaultConfig() Config {
	return Config{
		ObstacleThreshold: 80,
		FrontSensors:      []int{0, 1, 5, 6},

		TurnSteps:   25,
		TurnLeft:    4.0,
		TurnRight:   -4.0,
		CruiseLeft:  5.0,
		CruiseRight: 5.0,
	}
}
