// Package telemetry streams control loop events to WebSocket observers and
// serves the rover's HTTP status API.
package telemetry

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/controller"
	"github.com/teslashibe/go-rover/pkg/protocol"
)

// Config tunes the hub.
type Config struct {
	StateEvery    int           // broadcast a state message every N ticks (0 = never)
	LatencyWindow int           // number of recent tick durations kept for statistics
	SendBuffer    int           // messages queued per observer before it is dropped
	WriteTimeout  time.Duration // deadline for a single observer write
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		StateEvery:    10,
		LatencyWindow: 512,
		SendBuffer:    64,
		WriteTimeout:  2 * time.Second,
	}
}

// Observer is a connected telemetry client. Messages are queued and
// written by the observer's own goroutine, so a slow client never blocks
// the control loop.
type Observer struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newObserver(c *websocket.Conn, buffer int) *Observer {
	return &Observer{
		ID:        uuid.NewString(),
		Conn:      c,
		Connected: time.Now(),
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
	}
}

// enqueue queues data without blocking. It returns false when the queue
// is full or the observer is closed.
func (o *Observer) enqueue(data []byte) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.send <- data:
		return true
	default:
		return false
	}
}

// close marks the observer closed. It reports whether this call closed it.
func (o *Observer) close() bool {
	closed := false
	o.closeOnce.Do(func() {
		close(o.done)
		closed = true
	})
	return closed
}

func (o *Observer) closed() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// writeLoop drains the queue until the observer is closed or a write fails.
// It is the only goroutine that writes to Conn. Closing a hijacked conn is a
// no-op, so on exit the pending read is expired to release the handler.
func (o *Observer) writeLoop(timeout time.Duration) {
	defer func() {
		if err := o.Conn.SetReadDeadline(time.Now()); err != nil {
			log.Debug("telemetry: expire observer read", "observer", o.ID, "error", err)
		}
	}()
	for {
		select {
		case <-o.done:
			return
		case data := <-o.send:
			if timeout > 0 {
				if err := o.Conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
					log.Debug("telemetry: observer write deadline", "observer", o.ID, "error", err)
					o.close()
					return
				}
			}
			if err := o.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("telemetry: observer write failed", "observer", o.ID, "error", err)
				o.close()
				return
			}
		}
	}
}

// Hub fans controller events out to observers and keeps the latest state.
// It implements controller.EventSink.
type Hub struct {
	cfg     Config
	runID   string
	profile string
	started time.Time

	mu        sync.RWMutex
	observers map[string]*Observer
	state     controller.Snapshot
	durations []float64 // milliseconds, ring buffer
	next      int

	ticks        atomic.Uint64
	skipped      atomic.Uint64
	sightings    atomic.Uint64
	obstacles    atomic.Uint64
	classified   atomic.Uint64
	messagesSent atomic.Uint64
	dropped      atomic.Uint64
}

// NewHub creates a hub for one run.
func NewHub(cfg Config, runID, profile string) *Hub {
	defaults := DefaultConfig()
	if cfg.LatencyWindow <= 0 {
		cfg.LatencyWindow = defaults.LatencyWindow
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	return &Hub{
		cfg:       cfg,
		runID:     runID,
		profile:   profile,
		started:   time.Now(),
		observers: make(map[string]*Observer),
		durations: make([]float64, 0, cfg.LatencyWindow),
		state:     controller.Snapshot{RunID: runID, Mode: "straight", Seen: []string{}},
	}
}

// HandleEvent implements controller.EventSink.
func (h *Hub) HandleEvent(_ context.Context, ev controller.Event) {
	switch ev.Kind {
	case controller.EventSighting:
		h.sightings.Add(1)
	case controller.EventObstacle:
		h.obstacles.Add(1)
	case controller.EventClassified:
		h.classified.Add(1)
	}

	msg, err := EventMessage(ev)
	if err != nil {
		log.Warn("telemetry: encode event", "kind", ev.Kind, "error", err)
		return
	}
	h.Broadcast(msg)
}

// HandleTick implements controller.EventSink.
func (h *Hub) HandleTick(_ context.Context, res controller.TickResult) {
	n := h.ticks.Add(1)
	if res.Skipped {
		h.skipped.Add(1)
	}

	ms := float64(res.Duration) / float64(time.Millisecond)
	h.mu.Lock()
	h.state = res.State
	if len(h.durations) < h.cfg.LatencyWindow {
		h.durations = append(h.durations, ms)
	} else {
		h.durations[h.next] = ms
		h.next = (h.next + 1) % h.cfg.LatencyWindow
	}
	h.mu.Unlock()

	if h.cfg.StateEvery > 0 && n%uint64(h.cfg.StateEvery) == 0 {
		if msg, err := StateMessage(res.State); err == nil {
			h.Broadcast(msg)
		}
	}
}

// State returns the latest snapshot.
func (h *Hub) State() controller.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Latency holds tick duration statistics in milliseconds.
type Latency struct {
	Samples int     `json:"samples"`
	MeanMs  float64 `json:"mean_ms"`
	StdDev  float64 `json:"stddev_ms"`
}

// Latency summarises recent tick durations.
func (h *Hub) Latency() Latency {
	h.mu.RLock()
	durs := make([]float64, len(h.durations))
	copy(durs, h.durations)
	h.mu.RUnlock()

	switch len(durs) {
	case 0:
		return Latency{}
	case 1:
		return Latency{Samples: 1, MeanMs: durs[0]}
	}
	mean, std := stat.MeanStdDev(durs, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return Latency{Samples: len(durs), MeanMs: mean, StdDev: std}
}

// Broadcast queues a message for every observer. It never blocks: an
// observer whose queue is full is unregistered and disconnected.
func (h *Hub) Broadcast(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		log.Warn("telemetry: encode message", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	observers := make([]*Observer, 0, len(h.observers))
	for _, o := range h.observers {
		if !o.closed() {
			observers = append(observers, o)
		}
	}
	h.mu.RUnlock()

	for _, o := range observers {
		if o.enqueue(data) {
			h.messagesSent.Add(1)
			continue
		}
		h.remove(o)
		if o.close() {
			h.dropped.Add(1)
			log.Warn("telemetry: observer too slow, disconnecting", "observer", o.ID)
		}
	}
}

func (h *Hub) remove(o *Observer) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.observers[o.ID]; ok && cur == o {
		delete(h.observers, o.ID)
	}
	return len(h.observers)
}

// ObserverCount returns the number of connected observers.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// RegisterRoutes registers the event stream on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/events", websocket.New(h.handleObserver))
}

func (h *Hub) handleObserver(c *websocket.Conn) {
	o := newObserver(c, h.cfg.SendBuffer)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		o.writeLoop(h.cfg.WriteTimeout)
	}()

	h.mu.Lock()
	h.observers[o.ID] = o
	count := len(h.observers)
	h.mu.Unlock()
	log.Debug("telemetry observer connected", "observer", o.ID, "total", count)

	defer func() {
		count := h.remove(o)

		// The connection is released when this handler returns.
		o.close()
		<-writerDone
		log.Debug("telemetry observer disconnected", "observer", o.ID, "total", count)
	}()

	if msg, err := StateMessage(h.State()); err == nil {
		if data, err := msg.Bytes(); err == nil && o.enqueue(data) {
			h.messagesSent.Add(1)
		}
	}

	// Observers only listen; reads detect the close.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

// Stats contains hub statistics.
type Stats struct {
	RunID         string  `json:"run_id"`
	Profile       string  `json:"profile"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Ticks         uint64  `json:"ticks"`
	Skipped       uint64  `json:"skipped"`
	Sightings     uint64  `json:"sightings"`
	Obstacles     uint64  `json:"obstacles"`
	Classified    uint64  `json:"classified"`
	Observers     int     `json:"observers"`
	MessagesSent  uint64  `json:"messages_sent"`
	SlowDropped   uint64  `json:"slow_observers_dropped"`
	Latency       Latency `json:"tick_latency"`
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() Stats {
	return Stats{
		RunID:         h.runID,
		Profile:       h.profile,
		UptimeSeconds: time.Since(h.started).Seconds(),
		Ticks:         h.ticks.Load(),
		Skipped:       h.skipped.Load(),
		Sightings:     h.sightings.Load(),
		Obstacles:     h.obstacles.Load(),
		Classified:    h.classified.Load(),
		Observers:     h.ObserverCount(),
		MessagesSent:  h.messagesSent.Load(),
		SlowDropped:   h.dropped.Load(),
		Latency:       h.Latency(),
	}
}

// RegisterAPIRoutes registers the JSON API under api.
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	api.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(h.State())
	})

	api.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
