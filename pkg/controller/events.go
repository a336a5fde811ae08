package controller

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/teslashibe/go-rover/pkg/sensor"
	"github.com/teslashibe/go-rover/pkg/vision"
)

// EventKind identifies an observable controller event.
type EventKind string

const (
	EventSighting   EventKind = "sighting"
	EventObstacle   EventKind = "obstacle"
	EventClassified EventKind = "classified"
)

// Event is emitted on first sightings, turn entries and classifier results.
type Event struct {
	Kind  EventKind
	RunID string
	Tick  uint64
	At    time.Time

	// Sighting fields
	Label vision.Label
	Seen  []vision.Label

	// Obstacle fields
	Proximity [sensor.ProximityChannels]float64

	// Classified fields
	Class string
	Err   error
}

// Summary renders the seen set as "red, green".
func (e Event) Summary() string {
	return vision.Sighting{Label: e.Label, Seen: e.Seen}.Summary()
}

// EventSink receives controller output. Handlers run on the control loop
// goroutine and must not block for long.
type EventSink interface {
	HandleEvent(ctx context.Context, ev Event)
	HandleTick(ctx context.Context, res TickResult)
}

// ConsoleSink prints the human-readable lines.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink writes to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// HandleEvent implements EventSink.
func (s *ConsoleSink) HandleEvent(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case EventSighting:
		fmt.Fprintf(s.w, "I see %s\n", ev.Label)
		fmt.Fprintf(s.w, "Summary: I have previously seen: %s\n", ev.Summary())
	case EventObstacle:
		fmt.Fprintln(s.w, "Obstacle detected!!")
	case EventClassified:
		if ev.Err == nil {
			fmt.Fprintf(s.w, "Classified: %s\n", ev.Class)
		}
	}
}

// HandleTick implements EventSink.
func (s *ConsoleSink) HandleTick(context.Context, TickResult) {}
