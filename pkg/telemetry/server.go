package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-rover/internal/log"
)

// Version is reported by /health.
var Version = "0.1.0"

// NewApp builds the Fiber app serving the hub.
func NewApp(hub *Hub, debug bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "go-rover",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
	}))
	if debug {
		app.Use(logger.New())
	}

	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"version":   Version,
			"run_id":    hub.runID,
			"observers": hub.ObserverCount(),
		})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
		return c.SendString(Metrics(hub.GetStats()))
	})

	return app
}

// Metrics renders stats in the Prometheus text format.
func Metrics(s Stats) string {
	var b strings.Builder
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("rover_ticks_total", "counter", "Processed and skipped control ticks", s.Ticks)
	metric("rover_ticks_skipped_total", "counter", "Ticks skipped for lack of a usable frame", s.Skipped)
	metric("rover_sightings_total", "counter", "First sightings of a colour", s.Sightings)
	metric("rover_obstacles_total", "counter", "Turns triggered by an obstacle", s.Obstacles)
	metric("rover_classified_total", "counter", "Classifier attempts", s.Classified)
	metric("rover_observers", "gauge", "Connected telemetry observers", s.Observers)
	metric("rover_messages_sent_total", "counter", "Messages queued for observers", s.MessagesSent)
	metric("rover_observers_dropped_total", "counter", "Observers disconnected for falling behind", s.SlowDropped)
	metric("rover_tick_duration_ms_mean", "gauge", "Mean tick duration over the recent window", fmt.Sprintf("%.4f", s.Latency.MeanMs))
	metric("rover_tick_duration_ms_stddev", "gauge", "Tick duration standard deviation over the recent window", fmt.Sprintf("%.4f", s.Latency.StdDev))

	return strings.TrimSuffix(b.String(), "\n")
}

// Serve listens on addr until ctx is cancelled.
func Serve(ctx context.Context, app *fiber.App, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("telemetry listen %s: %w", addr, err)
	}
	log.Info("telemetry listening",
		"addr", ln.Addr().String(),
		"events", "/ws/events",
		"state", "/api/state",
	)

	errCh := make(chan error, 1)
	go func() { errCh <- app.Listener(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}
