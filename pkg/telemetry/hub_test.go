package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-rover/pkg/controller"
	"github.com/teslashibe/go-rover/pkg/navigation"
	"github.com/teslashibe/go-rover/pkg/protocol"
	"github.com/teslashibe/go-rover/pkg/vision"
)

func tick(ms int, state controller.Snapshot) controller.TickResult {
	return controller.TickResult{Duration: time.Duration(ms) * time.Millisecond, State: state}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(DefaultConfig(), "run-1", "loose")

	assert.Equal(t, 0, hub.ObserverCount())
	assert.Equal(t, "straight", hub.State().Mode)
	assert.Equal(t, Latency{}, hub.Latency())

	stats := hub.GetStats()
	assert.Equal(t, "run-1", stats.RunID)
	assert.Equal(t, "loose", stats.Profile)
	assert.Zero(t, stats.Ticks)
}

func TestHub_HandleTick(t *testing.T) {
	hub := NewHub(DefaultConfig(), "run-1", "loose")
	ctx := context.Background()

	state := controller.Snapshot{RunID: "run-1", Tick: 3, Mode: "turning", Counter: 2, Seen: []string{"red"}}
	hub.HandleTick(ctx, tick(10, state))
	hub.HandleTick(ctx, tick(20, state))
	skipped := tick(30, state)
	skipped.Skipped = true
	hub.HandleTick(ctx, skipped)

	assert.Equal(t, state, hub.State())

	lat := hub.Latency()
	assert.Equal(t, 3, lat.Samples)
	assert.InDelta(t, 20.0, lat.MeanMs, 1e-9)
	assert.InDelta(t, 10.0, lat.StdDev, 1e-9)

	stats := hub.GetStats()
	assert.Equal(t, uint64(3), stats.Ticks)
	assert.Equal(t, uint64(1), stats.Skipped)
}

func TestHub_LatencyWindow(t *testing.T) {
	hub := NewHub(Config{LatencyWindow: 2}, "", "loose")
	ctx := context.Background()

	for _, ms := range []int{100, 4, 6} {
		hub.HandleTick(ctx, tick(ms, controller.Snapshot{}))
	}

	lat := hub.Latency()
	assert.Equal(t, 2, lat.Samples)
	assert.InDelta(t, 5.0, lat.MeanMs, 1e-9)
}

func TestHub_SingleSampleHasNoDeviation(t *testing.T) {
	hub := NewHub(DefaultConfig(), "", "loose")
	hub.HandleTick(context.Background(), tick(7, controller.Snapshot{}))

	assert.Equal(t, Latency{Samples: 1, MeanMs: 7}, hub.Latency())
}

func TestHub_CountsEvents(t *testing.T) {
	hub := NewHub(DefaultConfig(), "", "loose")
	ctx := context.Background()

	hub.HandleEvent(ctx, controller.Event{Kind: controller.EventSighting, Label: vision.Red, Seen: []vision.Label{vision.Red}})
	hub.HandleEvent(ctx, controller.Event{Kind: controller.EventObstacle})
	hub.HandleEvent(ctx, controller.Event{Kind: controller.EventObstacle})
	hub.HandleEvent(ctx, controller.Event{Kind: controller.EventClassified, Err: errors.New("boom")})

	stats := hub.GetStats()
	assert.Equal(t, uint64(1), stats.Sightings)
	assert.Equal(t, uint64(2), stats.Obstacles)
	assert.Equal(t, uint64(1), stats.Classified)
	assert.Zero(t, stats.MessagesSent)
}

func TestEventMessage(t *testing.T) {
	msg, err := EventMessage(controller.Event{
		Kind:  controller.EventSighting,
		RunID: "r",
		Tick:  4,
		Label: vision.Green,
		Seen:  []vision.Label{vision.Red, vision.Green},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeSighting, msg.Type)

	var s protocol.SightingData
	require.NoError(t, msg.ParseData(&s))
	assert.Equal(t, protocol.SightingData{RunID: "r", Tick: 4, Label: "green", Seen: []string{"red", "green"}}, s)

	msg, err = EventMessage(controller.Event{Kind: controller.EventClassified, Err: errors.New("no model")})
	require.NoError(t, err)
	var c protocol.ClassifiedData
	require.NoError(t, msg.ParseData(&c))
	assert.Equal(t, "no model", c.Error)

	_, err = EventMessage(controller.Event{Kind: "bogus"})
	assert.Error(t, err)
}

func TestApp_Endpoints(t *testing.T) {
	hub := NewHub(DefaultConfig(), "run-9", "strict")
	hub.HandleTick(context.Background(), tick(12, controller.Snapshot{
		RunID:   "run-9",
		Tick:    1,
		Mode:    "turning",
		Command: navigation.Command{Left: 4, Right: -4},
		Seen:    []string{"blue"},
	}))
	app := NewApp(hub, false)

	tests := []struct {
		path     string
		contains []string
	}{
		{"/health", []string{`"status":"ok"`, `"run_id":"run-9"`}},
		{"/api/state", []string{`"mode":"turning"`, `"seen":["blue"]`, `"left":4`}},
		{"/api/stats", []string{`"profile":"strict"`, `"ticks":1`, `"mean_ms":12`}},
		{"/metrics", []string{"rover_ticks_total 1", "rover_tick_duration_ms_mean 12.0000", "# TYPE rover_observers gauge"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, 200, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, string(body), want)
			}
		})
	}
}

func TestApp_WebSocketRequiresUpgrade(t *testing.T) {
	app := NewApp(NewHub(DefaultConfig(), "", "loose"), false)

	resp, err := app.Test(httptest.NewRequest("GET", "/ws/events", nil))
	require.NoError(t, err)
	assert.Equal(t, 426, resp.StatusCode)
}

func TestHub_StreamsEvents(t *testing.T) {
	hub := NewHub(Config{StateEvery: 1}, "run-ws", "loose")
	app := NewApp(hub, false)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() *protocol.Message {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		msg, err := protocol.ParseMessage(data)
		require.NoError(t, err)
		return msg
	}

	// Initial state on connect.
	assert.Equal(t, protocol.TypeState, read().Type)
	assert.Equal(t, 1, hub.ObserverCount())

	hub.HandleEvent(context.Background(), controller.Event{
		Kind:      controller.EventObstacle,
		RunID:     "run-ws",
		Tick:      5,
		Proximity: [8]float64{0, 0, 0, 0, 0, 90, 0, 0},
	})
	msg := read()
	require.Equal(t, protocol.TypeObstacle, msg.Type)
	var ob protocol.ObstacleData
	require.NoError(t, json.Unmarshal(msg.Data, &ob))
	assert.Equal(t, uint64(5), ob.Tick)
	assert.Equal(t, 90.0, ob.Proximity[5])

	hub.HandleTick(context.Background(), tick(1, controller.Snapshot{Tick: 6, Mode: "turning"}))
	msg = read()
	require.Equal(t, protocol.TypeState, msg.Type)
	var st protocol.StateData
	require.NoError(t, msg.ParseData(&st))
	assert.Equal(t, "turning", st.Mode)
	assert.Equal(t, []string{}, st.Seen)
}

func TestMetrics_Format(t *testing.T) {
	out := Metrics(Stats{Ticks: 3, Latency: Latency{MeanMs: 1.5, StdDev: 0.25}})

	assert.True(t, strings.HasPrefix(out, "# HELP rover_ticks_total"))
	assert.Contains(t, out, "rover_tick_duration_ms_stddev 0.2500")
	assert.False(t, strings.HasSuffix(out, "\n\n"))
}

func TestHub_StalledObserverDoesNotBlockLoop(t *testing.T) {
	hub := NewHub(Config{SendBuffer: 4, WriteTimeout: 200 * time.Millisecond}, "run-slow", "loose")
	app := NewApp(hub, false)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	// This client never reads.
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/events", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ObserverCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	ev := controller.Event{Kind: controller.EventSighting, Tick: 1, Label: vision.Red, Seen: []vision.Label{vision.Red}}
	done := make(chan time.Duration)
	go func() {
		var slowest time.Duration
		deadline := time.Now().Add(10 * time.Second)
		for hub.ObserverCount() > 0 && time.Now().Before(deadline) {
			start := time.Now()
			hub.HandleEvent(context.Background(), ev)
			if d := time.Since(start); d > slowest {
				slowest = d
			}
		}
		done <- slowest
	}()

	var slowest time.Duration
	select {
	case slowest = <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("HandleEvent blocked on an observer that is not reading")
	}

	assert.Less(t, slowest, 100*time.Millisecond)
	assert.Equal(t, 0, hub.ObserverCount())
	assert.Equal(t, uint64(1), hub.GetStats().SlowDropped)

	// The server must release the connection: draining what was queued
	// ends in a close, not a client read timeout.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "server kept the stalled observer open")
	}
}

func TestObserver_EnqueueNeverBlocks(t *testing.T) {
	o := newObserver(nil, 2)

	assert.True(t, o.enqueue([]byte("a")))
	assert.True(t, o.enqueue([]byte("b")))
	assert.False(t, o.enqueue([]byte("c")), "full queue must refuse")

	<-o.send
	assert.True(t, o.close())
	assert.False(t, o.close())
	assert.True(t, o.closed())
	assert.False(t, o.enqueue([]byte("d")), "closed observer must refuse")
}
