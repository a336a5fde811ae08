package navigation

// Mode is the state of the turn machine.
type Mode int

const (
	Straight Mode = iota
	Turning
)

func (m Mode) String() string {
	if m == Turning {
		return "turning"
	}
	return "straight"
}

// Command is a pair of wheel velocities.
type Command struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// TurnState is the persistent state of the machine. Counter is only
// meaningful while Turning and is zero otherwise.
type TurnState struct {
	Turning bool `json:"turning"`
	Counter int  `json:"counter"`
}

// Mode returns Turning or Straight.
func (s TurnState) Mode() Mode {
	if s.Turning {
		return Turning
	}
	return Straight
}

// Decision is the outcome of one step.
type Decision struct {
	Command Command
	// Triggered is true only on the tick that enters Turning.
	Triggered bool
}

// TurnMachine commits to a fixed-length turn once an obstacle is seen.
// While turning it does not look at the obstacle input at all, so a sensor
// hovering near the threshold cannot cut a turn short or restart it.
type TurnMachine struct {
	cfg   Config
	state TurnState
}

// NewTurnMachine returns a machine in Straight with counter 0.
func NewTurnMachine(cfg Config) *TurnMachine {
	return &TurnMachine{cfg: cfg}
}

// State returns a copy of the current state.
func (m *TurnMachine) State() TurnState {
	return m.state
}

// Step advances the machine by one timestep.
func (m *TurnMachine) Step(obstacleAhead bool) Decision {
	turn := Command{Left: m.cfg.TurnLeft, Right: m.cfg.TurnRight}

	if m.state.Turning {
		m.state.Counter++
		if m.state.Counter >= m.cfg.TurnSteps {
			m.state = TurnState{}
		}
		return Decision{Command: turn}
	}

	if obstacleAhead {
		m.state = TurnState{Turning: true}
		return Decision{Command: turn, Triggered: true}
	}

	return Decision{Command: Command{Left: m.cfg.CruiseLeft, Right: m.cfg.CruiseRight}}
}
