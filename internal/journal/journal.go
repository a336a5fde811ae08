// Package journal persists runs and their events to SQLite.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/controller"
)

//go:embed schema.sql
var schema string

// ErrNoRun is returned when an operation needs a started run.
var ErrNoRun = errors.New("journal: no active run")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Run is one row of the runs table.
type Run struct {
	ID        string
	Profile   string
	StartedAt time.Time
	EndedAt   time.Time // zero while running
}

// Entry is one row of the events table.
type Entry struct {
	RunID  string
	Tick   uint64
	Kind   controller.EventKind
	Label  string
	Detail string
	At     time.Time
}

// DefaultQueueSize is the number of events buffered for the writer.
const DefaultQueueSize = 256

// Option configures a Journal.
type Option func(*Journal)

// WithQueueSize sets how many events HandleEvent may buffer.
func WithQueueSize(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.queueSize = n
		}
	}
}

type queued struct {
	ev  controller.Event
	ack chan struct{} // set for Sync barriers
}

// Journal records events for the current run. It implements
// controller.EventSink: HandleEvent only queues, and a background writer
// does the inserts, so a busy database never stalls the control loop.
type Journal struct {
	db        *sql.DB
	queueSize int

	mu    sync.Mutex
	runID string

	qmu     sync.RWMutex // senders hold it shared; Close holds it exclusively
	queue   chan queued
	closed  bool
	done    chan struct{}
	dropped atomic.Uint64
}

// Open opens or creates the database at path, applies the schema and
// starts the writer.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal open %s: %w", path, err)
	}
	// One connection keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	j := &Journal{db: db, queueSize: DefaultQueueSize, done: make(chan struct{})}
	for _, opt := range opts {
		opt(j)
	}
	j.queue = make(chan queued, j.queueSize)
	go j.writeLoop()
	return j, nil
}

func (j *Journal) writeLoop() {
	defer close(j.done)
	for q := range j.queue {
		if q.ack != nil {
			close(q.ack)
			continue
		}
		if err := j.Record(context.Background(), q.ev); err != nil {
			log.Warn("journal write failed", "kind", q.ev.Kind, "tick", q.ev.Tick, "error", err)
		}
	}
}

// Sync blocks until every event queued before the call is written. A Sync
// waiting on a full queue does not hold up HandleEvent, which drops instead.
func (j *Journal) Sync(ctx context.Context) error {
	ack := make(chan struct{})

	j.qmu.RLock()
	if j.closed {
		j.qmu.RUnlock()
		return nil
	}
	select {
	case j.queue <- queued{ack: ack}:
	case <-ctx.Done():
		j.qmu.RUnlock()
		return ctx.Err()
	}
	j.qmu.RUnlock()

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Close drains the queue and closes the database.
func (j *Journal) Close() error {
	j.qmu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.qmu.Unlock()

	<-j.done
	return j.db.Close()
}

// RunID returns the active run id, or "".
func (j *Journal) RunID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runID
}

// StartRun inserts a run and makes it active.
func (j *Journal) StartRun(ctx context.Context, profile string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, profile, started_at) VALUES (?, ?, ?)`,
		id, profile, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("journal start run: %w", err)
	}

	j.mu.Lock()
	j.runID = id
	j.mu.Unlock()
	log.Info("journal run started", "run_id", id, "profile", profile)
	return id, nil
}

// EndRun flushes queued events and stamps the active run's end time.
func (j *Journal) EndRun(ctx context.Context) error {
	if err := j.Sync(ctx); err != nil {
		return err
	}

	j.mu.Lock()
	id := j.runID
	j.runID = ""
	j.mu.Unlock()

	if id == "" {
		return ErrNoRun
	}
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ? WHERE id = ?`, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("journal end run: %w", err)
	}
	return nil
}

// Record stores one event against the active run synchronously.
func (j *Journal) Record(ctx context.Context, ev controller.Event) error {
	runID := ev.RunID
	if runID == "" {
		runID = j.RunID()
	}
	if runID == "" {
		return ErrNoRun
	}

	label, detail, err := encode(ev)
	if err != nil {
		return err
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO events (run_id, tick, kind, label, detail, at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, int64(ev.Tick), string(ev.Kind), label, detail, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("journal record %s: %w", ev.Kind, err)
	}
	return nil
}

func encode(ev controller.Event) (label, detail string, err error) {
	switch ev.Kind {
	case controller.EventSighting:
		return ev.Label.String(), ev.Summary(), nil
	case controller.EventObstacle:
		b, err := json.Marshal(ev.Proximity)
		if err != nil {
			return "", "", fmt.Errorf("journal encode proximity: %w", err)
		}
		return "", string(b), nil
	case controller.EventClassified:
		if ev.Err != nil {
			return "", ev.Err.Error(), nil
		}
		return ev.Class, "", nil
	}
	return "", "", fmt.Errorf("journal: unknown event kind %q", ev.Kind)
}

// HandleEvent implements controller.EventSink. It never blocks: when the
// writer is behind and the queue is full the event is dropped and counted.
// Write failures are logged by the writer.
func (j *Journal) HandleEvent(_ context.Context, ev controller.Event) {
	if ev.RunID == "" {
		ev.RunID = j.RunID()
	}

	j.qmu.RLock()
	defer j.qmu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- queued{ev: ev}:
	default:
		n := j.dropped.Add(1)
		log.Warn("journal queue full, event dropped", "kind", ev.Kind, "tick", ev.Tick, "dropped", n)
	}
}

// HandleTick implements controller.EventSink. Ticks are not journaled.
func (j *Journal) HandleTick(context.Context, controller.TickResult) {}

// Events returns a run's events of the given kind ("" for all), oldest first.
func (j *Journal) Events(ctx context.Context, runID string, kind controller.EventKind) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, tick, kind, label, detail, at FROM events
		WHERE run_id = ? AND (? = '' OR kind = ?)
		ORDER BY tick, id`, runID, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("journal query events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			tick, at int64
			k        string
		)
		if err := rows.Scan(&e.RunID, &tick, &k, &e.Label, &e.Detail, &at); err != nil {
			return nil, fmt.Errorf("journal scan event: %w", err)
		}
		e.Tick = uint64(tick)
		e.Kind = controller.EventKind(k)
		e.At = time.UnixMilli(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sightings returns the colours first seen in a run, in order.
func (j *Journal) Sightings(ctx context.Context, runID string) ([]string, error) {
	entries, err := j.Events(ctx, runID, controller.EventSighting)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.Label
	}
	return labels, nil
}

// Runs lists runs, newest first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, profile, started_at, ended_at FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("journal query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Profile, &started, &ended); err != nil {
			return nil, fmt.Errorf("journal scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if ended.Valid {
			r.EndedAt = time.UnixMilli(ended.Int64)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
