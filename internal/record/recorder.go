// Package record stores simulation runs in a SQLite database: every event
// of the stream, the final state of each process and one summary row per
// run.
package record

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"ticksched/internal/sched"
)

// DefaultBatchSize is the number of buffered events that triggers a flush.
const DefaultBatchSize = 10000

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	recorded_at  TEXT,
	quantum_a    INTEGER,
	quantum_b    INTEGER,
	preemptive   INTEGER,
	selection    TEXT,
	clock_start  TEXT,
	start_tick   INTEGER,
	end_tick     INTEGER,
	instructions INTEGER,
	completed    INTEGER,
	avg_ready    REAL,
	max_ready    INTEGER,
	min_ready    INTEGER
);
CREATE TABLE IF NOT EXISTS events (
	run_id     TEXT,
	tick       INTEGER,
	event      TEXT,
	pid        INTEGER,
	task       INTEGER,
	kind       TEXT,
	tier       TEXT,
	priority   INTEGER,
	quantum    INTEGER,
	remaining  INTEGER,
	interrupts INTEGER
);
CREATE TABLE IF NOT EXISTS processes (
	run_id       TEXT,
	pid          INTEGER,
	priority     INTEGER,
	arrival      INTEGER,
	completed_at INTEGER,
	ready_time   INTEGER,
	interrupts   INTEGER,
	exit_tier    TEXT
);`

// Recorder writes runs into a SQLite database. Events are buffered and
// written in batches inside a transaction.
type Recorder struct {
	mu        sync.Mutex
	db        *sql.DB
	runID     string
	batchSize int
	pending   []sched.StatusEvent
	closed    bool
}

// New creates the database <name>.sqlite3 and prepares its tables. An
// empty name picks a unique one. The file must not exist yet.
func New(name string) (*Recorder, error) {
	if name == "" {
		name = "ticksched_run_" + xid.New().String()
	}
	filename := name + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	r, err := NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("recording run", "database", filename, "run", r.runID)
	return r, nil
}

// NewWithDB records into an already opened database. The recorder takes
// ownership of db and closes it on Close.
func NewWithDB(db *sql.DB) (*Recorder, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	r := &Recorder{
		db:        db,
		runID:     uuid.NewString(),
		batchSize: DefaultBatchSize,
	}
	atexit.Register(func() {
		if err := r.Close(); err != nil {
			slog.Error("closing recorder", "err", err)
		}
	})
	return r, nil
}

// RunID identifies the rows of this run in every table.
func (r *Recorder) RunID() string {
	return r.runID
}

// DB exposes the underlying database for queries.
func (r *Recorder) DB() *sql.DB {
	return r.db
}

// SetBatchSize changes how many events are buffered before a flush.
func (r *Recorder) SetBatchSize(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchSize = max(n, 1)
}

// Events returns the sink that feeds the event table. Closing the sink
// flushes buffered events but leaves the database open for RecordResult.
func (r *Recorder) Events() sched.EventSink {
	return eventSink{r}
}

type eventSink struct {
	r *Recorder
}

func (s eventSink) HandleEvent(ev sched.StatusEvent) error {
	return s.r.add(ev)
}

func (s eventSink) Close() error {
	return s.r.Flush()
}

func (r *Recorder) add(ev sched.StatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("recorder closed")
	}
	r.pending = append(r.pending, ev)
	if len(r.pending) >= r.batchSize {
		return r.flushLocked()
	}
	return nil
}

// Flush writes every buffered event.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if len(r.pending) == 0 || r.closed {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO events
		(run_id, tick, event, pid, task, kind, tier, priority, quantum, remaining, interrupts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, ev := range r.pending {
		var task, kind any
		if ev.Task >= 0 {
			task, kind = int(ev.Task), ev.TaskKind.String()
		}
		if _, err := stmt.Exec(r.runID, ev.Tick, ev.Kind.String(), ev.PID, task, kind,
			ev.Tier.String(), ev.Priority, ev.Quantum, ev.Remaining, ev.Interrupts); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.pending = r.pending[:0]
	return nil
}

// RecordResult stores the run summary and the final state of every exited
// process.
func (r *Recorder) RecordResult(cfg sched.Config, res sched.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("recorder closed")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	st := res.Stats
	if _, err := tx.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, time.Now().UTC().Format(time.RFC3339), cfg.QuantumA, cfg.QuantumB, cfg.Preemptive,
		string(cfg.Selection), string(cfg.ClockStart), st.Start, st.Runtime, st.Instructions,
		st.Completed, st.AverageReady(), st.MaxReady, st.MinReady()); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}
	for _, p := range res.Exited {
		if _, err := tx.Exec(`INSERT INTO processes VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.runID, p.PID, p.Priority, p.Arrival, p.CompletedAt, p.ReadyTime, p.Interrupts,
			p.ExitTier.String()); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert process P%d: %w", p.PID, err)
		}
	}
	return tx.Commit()
}

// Close flushes pending events and closes the database. Calling it again
// is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	err := r.flushLocked()
	r.closed = true
	return errors.Join(err, r.db.Close())
}
