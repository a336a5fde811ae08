package telemetry

import (
	"fmt"

	"github.com/teslashibe/go-rover/pkg/controller"
	"github.com/teslashibe/go-rover/pkg/protocol"
)

// EventMessage converts a controller event to its wire message.
func EventMessage(ev controller.Event) (*protocol.Message, error) {
	switch ev.Kind {
	case controller.EventSighting:
		seen := make([]string, len(ev.Seen))
		for i, l := range ev.Seen {
			seen[i] = l.String()
		}
		return protocol.NewMessage(protocol.TypeSighting, protocol.SightingData{
			RunID: ev.RunID,
			Tick:  ev.Tick,
			Label: ev.Label.String(),
			Seen:  seen,
		})

	case controller.EventObstacle:
		return protocol.NewMessage(protocol.TypeObstacle, protocol.ObstacleData{
			RunID:     ev.RunID,
			Tick:      ev.Tick,
			Proximity: ev.Proximity[:],
		})

	case controller.EventClassified:
		data := protocol.ClassifiedData{RunID: ev.RunID, Tick: ev.Tick, Label: ev.Class}
		if ev.Err != nil {
			data.Error = ev.Err.Error()
		}
		return protocol.NewMessage(protocol.TypeClassified, data)
	}
	return nil, fmt.Errorf("telemetry: unknown event kind %q", ev.Kind)
}

// StateMessage converts a snapshot to a state message.
func StateMessage(s controller.Snapshot) (*protocol.Message, error) {
	seen := s.Seen
	if seen == nil {
		seen = []string{}
	}
	return protocol.NewMessage(protocol.TypeState, protocol.StateData{
		RunID:   s.RunID,
		Tick:    s.Tick,
		Mode:    s.Mode,
		Counter: s.Counter,
		Left:    s.Command.Left,
		Right:   s.Command.Right,
		Seen:    seen,
		Paused:  s.Paused,
	})
}
