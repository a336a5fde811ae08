package navigation

import (
	"testing"
)

var (
	turnCmd   = Command{Left: 4.0, Right: -4.0}
	cruiseCmd = Command{Left: 5.0, Right: 5.0}
)

func TestTurnMachine_InitialState(t *testing.T) {
	m := NewTurnMachine(DefaultConfig())

	if s := m.State(); s.Turning || s.Counter != 0 {
		t.Errorf("initial state = %+v, want straight with counter 0", s)
	}

	d := m.Step(false)
	if d.Command != cruiseCmd || d.Triggered {
		t.Errorf("Step(false) = %+v, want cruise without trigger", d)
	}
	if m.State().Mode() != Straight {
		t.Error("should stay straight without an obstacle")
	}
}

// One obstacle tick followed by 40 ticks of arbitrary input: the trigger
// tick plus TurnSteps counted ticks turn, then cruise resumes.
func TestTurnMachine_FixedDurationTurn(t *testing.T) {
	for _, later := range []bool{false, true} {
		cfg := DefaultConfig()
		m := NewTurnMachine(cfg)

		var cmds []Command
		triggers := 0

		d := m.Step(true)
		cmds = append(cmds, d.Command)
		if d.Triggered {
			triggers++
		}
		for i := 0; i < 40; i++ {
			d = m.Step(later)
			cmds = append(cmds, d.Command)
			if d.Triggered {
				triggers++
			}
			if !later && i == cfg.TurnSteps {
				break
			}
		}

		turning := cfg.TurnSteps + 1
		for i := 0; i < turning; i++ {
			if cmds[i] != turnCmd {
				t.Fatalf("later=%v tick %d: got %+v, want turn", later, i+1, cmds[i])
			}
		}
		if later {
			// Obstacle still present when the turn ends: a new turn starts
			// immediately on the next tick.
			if cmds[turning] != turnCmd {
				t.Errorf("later=true tick %d: got %+v, want retriggered turn", turning+1, cmds[turning])
			}
			if triggers < 2 {
				t.Errorf("later=true: expected a second trigger, got %d", triggers)
			}
			continue
		}
		if cmds[turning] != cruiseCmd {
			t.Errorf("tick %d: got %+v, want cruise", turning+1, cmds[turning])
		}
		if triggers != 1 {
			t.Errorf("triggers = %d, want exactly 1", triggers)
		}
	}
}

func TestTurnMachine_IgnoresObstacleWhileTurning(t *testing.T) {
	m := NewTurnMachine(DefaultConfig())
	m.Step(true)

	for i := 1; i <= 10; i++ {
		d := m.Step(i%2 == 0)
		if d.Triggered {
			t.Fatalf("tick %d retriggered while turning", i)
		}
		if got := m.State().Counter; got != i {
			t.Fatalf("counter = %d after %d turning ticks", got, i)
		}
	}
}

func TestTurnMachine_CounterResetsOnExit(t *testing.T) {
	cfg := DefaultConfig()
	m := NewTurnMachine(cfg)
	m.Step(true)

	for i := 0; i < cfg.TurnSteps-1; i++ {
		m.Step(false)
	}
	if s := m.State(); !s.Turning || s.Counter != cfg.TurnSteps-1 {
		t.Fatalf("before final increment: %+v", s)
	}

	d := m.Step(false)
	if d.Command != turnCmd {
		t.Errorf("the 25th increment still turns, got %+v", d.Command)
	}
	if s := m.State(); s.Turning || s.Counter != 0 {
		t.Errorf("after final increment: %+v, want straight with counter 0", s)
	}
}

func TestTurnMachine_Retrigger(t *testing.T) {
	cfg := DefaultConfig()
	m := NewTurnMachine(cfg)
	m.Step(true)
	for i := 0; i < cfg.TurnSteps; i++ {
		m.Step(false)
	}
	if m.State().Turning {
		t.Fatal("turn should have finished")
	}

	d := m.Step(true)
	if !d.Triggered || d.Command != turnCmd {
		t.Errorf("obstacle right after a turn should start a new one, got %+v", d)
	}
	if s := m.State(); !s.Turning || s.Counter != 0 {
		t.Errorf("new turn state = %+v", s)
	}
}

func TestTurnMachine_CustomSteps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TurnSteps = 1
	m := NewTurnMachine(cfg)

	m.Step(true)
	m.Step(false) // counter 1 >= 1, exits
	if d := m.Step(false); d.Command != cruiseCmd {
		t.Errorf("got %+v, want cruise", d.Command)
	}
}

func TestMode_String(t *testing.T) {
	if Straight.String() != "straight" || Turning.String() != "turning" {
		t.Error("unexpected mode names")
	}
}
