// Package bridge connects the control loop to a simulator supervisor over
// WebSocket. The supervisor owns the physics; the bridge exposes its
// devices through the robot interfaces.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-rover/internal/httpc"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/protocol"
	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/sensor"
)

// ErrClosed is returned when the supervisor connection is gone.
var ErrClosed = errors.New("bridge: connection closed")

// HelloTimeout bounds the wait for the supervisor's hello message.
const HelloTimeout = 10 * time.Second

// Client is one controller session with the simulator supervisor.
type Client struct {
	conn    *websocket.Conn
	hello   protocol.HelloData
	devices map[string]bool

	mu          sync.Mutex
	left, right float64
	sense       *protocol.SenseData
	frame       sensor.Frame
	frameErr    error
	decoded     bool
	stopReason  string
	closed      bool
}

// Dial connects to the supervisor and waits for its hello.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := httpc.WebSocketDialer().DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{conn: conn, devices: make(map[string]bool)}
	if err := c.readHello(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	log.Info("bridge connected",
		"url", url,
		"robot", c.hello.Robot,
		"devices", len(c.hello.Devices),
		"basic_time_step_ms", c.hello.BasicTimeStep)
	return c, nil
}

func (c *Client) readHello(ctx context.Context) error {
	deadline := time.Now().Add(HelloTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	msg, err := c.read()
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if msg.Type != protocol.TypeHello {
		return fmt.Errorf("expected hello, got %q", msg.Type)
	}
	hello, err := msg.GetHelloData()
	if err != nil {
		return fmt.Errorf("parse hello: %w", err)
	}
	c.hello = *hello
	for _, d := range hello.Devices {
		c.devices[d] = true
	}
	return nil
}

func (c *Client) read() (*protocol.Message, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.ParseMessage(data)
}

func (c *Client) write(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// BasicTimeStep returns the supervisor's basic time step.
func (c *Client) BasicTimeStep() time.Duration {
	return time.Duration(c.hello.BasicTimeStep) * time.Millisecond
}

// StopReason returns why the supervisor ended the session, if it did.
func (c *Client) StopReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopReason
}

// Step sends the buffered wheel velocities and blocks until the
// supervisor reports the next readings. It returns false when the
// supervisor stops the run, the connection fails, or ctx is cancelled.
func (c *Client) Step(ctx context.Context, d time.Duration) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	left, right := c.left, c.right
	c.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	msg, err := protocol.NewStepMessage(d.Milliseconds(), left, right)
	if err != nil {
		log.Error("bridge step encode failed", "error", err)
		return false
	}
	if err := c.write(msg); err != nil {
		log.Warn("bridge step send failed", "error", err)
		c.markClosed("send failed")
		return false
	}

	for {
		msg, err := c.read()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("bridge read failed", "error", err)
			}
			c.markClosed("read failed")
			return false
		}

		switch msg.Type {
		case protocol.TypeSense:
			sense, err := msg.GetSenseData()
			if err != nil {
				log.Warn("bridge bad sense message", "error", err)
				continue
			}
			c.mu.Lock()
			c.sense = sense
			c.frame, c.frameErr, c.decoded = nil, nil, false
			c.mu.Unlock()
			return true

		case protocol.TypeStop:
			reason := "stopped"
			if data, err := msg.GetStopData(); err == nil && data.Reason != "" {
				reason = data.Reason
			}
			c.markClosed(reason)
			return false

		default:
			log.Debug("bridge ignoring message", "type", msg.Type)
		}
	}
}

func (c *Client) markClosed(reason string) {
	c.mu.Lock()
	c.closed = true
	if c.stopReason == "" {
		c.stopReason = reason
	}
	c.mu.Unlock()
}

// Close ends the session.
func (c *Client) Close() error {
	c.markClosed("closed")
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// Device implements robot.Provider. Only devices announced in hello resolve.
func (c *Client) Device(name string) (any, error) {
	if !c.devices[name] {
		return nil, fmt.Errorf("%w: supervisor did not announce %q", robot.ErrDeviceUnavailable, name)
	}
	for i, n := range sensor.ProximityNames {
		if n == name {
			return proximity{c: c, index: i}, nil
		}
	}
	switch name {
	case robot.CameraName:
		return camera{c: c}, nil
	case robot.LeftMotorName:
		return motor{set: func(v float64) { c.mu.Lock(); c.left = v; c.mu.Unlock() }}, nil
	case robot.RightMotorName:
		return motor{set: func(v float64) { c.mu.Lock(); c.right = v; c.mu.Unlock() }}, nil
	}
	return nil, fmt.Errorf("%w: unknown device kind %q", robot.ErrDeviceUnavailable, name)
}

type proximity struct {
	c     *Client
	index int
}

func (p proximity) Read() float64 {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	if p.c.sense == nil || p.index >= len(p.c.sense.Proximity) {
		return 0
	}
	return p.c.sense.Proximity[p.index]
}

type camera struct{ c *Client }

// Capture decodes the current step's frame once and caches it.
func (cam camera) Capture() (sensor.Frame, error) {
	c := cam.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.decoded {
		return c.frame, c.frameErr
	}
	c.decoded = true
	if c.sense == nil || c.sense.Frame == nil {
		c.frameErr = robot.ErrNoFrame
		return nil, c.frameErr
	}
	c.frame, c.frameErr = c.sense.Frame.Decode()
	return c.frame, c.frameErr
}

type motor struct{ set func(float64) }

func (m motor) SetVelocity(v float64) { m.set(v) }

// Ensure Client satisfies the device interfaces the controller needs.
var (
	_ robot.Provider    = (*Client)(nil)
	_ robot.Stepper     = (*Client)(nil)
	_ robot.TimeStepper = (*Client)(nil)
)
