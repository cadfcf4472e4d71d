package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/autopilot/internal/autopilot"
	"github.com/banshee-data/autopilot/internal/timeutil"
)

// Run records one drive. It implements autopilot.Observer. Write failures
// are logged and never reach the control loop.
type Run struct {
	db    *DB
	id    string
	clock timeutil.Clock
}

// Start inserts a new run. config is stored verbatim for later review.
func (db *DB) Start(clock timeutil.Clock, version, config string) (*Run, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	r := &Run{db: db, id: uuid.NewString(), clock: clock}
	_, err := db.Exec(
		`INSERT INTO runs (run_id, started_unix_ms, version, config) VALUES (?, ?, ?, ?)`,
		r.id, clock.Now().UnixMilli(), version, config,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	db.log.Info().Str("run_id", r.id).Msg("run started")
	return r, nil
}

var _ autopilot.Observer = (*Run)(nil)

// ID returns the run's UUID.
func (r *Run) ID() string { return r.id }

// Transition implements autopilot.Observer.
func (r *Run) Transition(t autopilot.Transition) {
	s := t.Signals
	_, err := r.db.Exec(
		`INSERT INTO transitions (
			run_id, frame_seq, at_unix_ms, from_behavior, to_behavior,
			redline, greenline, inner_loop, aligned, license, license_duration, lap
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.id, int64(t.Seq), t.At.UnixMilli(), t.From.String(), t.To.String(),
		s.Redline, s.Greenline, s.InnerLoop, s.Aligned, s.License, s.LicenseDuration, s.Lap,
	)
	if err != nil {
		r.db.log.Error().Err(err).Str("run_id", r.id).Msg("record transition")
	}
}

// Mark records a named point in the run.
func (r *Run) Mark(name string) {
	_, err := r.db.Exec(
		`INSERT INTO marks (run_id, name, at_unix_ms) VALUES (?, ?, ?)`,
		r.id, name, r.clock.Now().UnixMilli(),
	)
	if err != nil {
		r.db.log.Error().Err(err).Str("run_id", r.id).Msg("record mark")
	}
}

// Maneuvers wraps next so that every script run is timed and recorded.
func (r *Run) Maneuvers(next autopilot.Maneuvers) autopilot.Maneuvers {
	return timedManeuvers{run: r, next: next}
}

type timedManeuvers struct {
	run  *Run
	next autopilot.Maneuvers
}

func (t timedManeuvers) Run(ctx context.Context, name string) error {
	start := t.run.clock.Now()
	err := t.next.Run(ctx, name)
	var msg sql.NullString
	if err != nil {
		msg = sql.NullString{String: err.Error(), Valid: true}
	}
	_, dbErr := t.run.db.Exec(
		`INSERT INTO maneuvers (run_id, script, started_unix_ms, duration_ms, error) VALUES (?, ?, ?, ?, ?)`,
		t.run.id, name, start.UnixMilli(), t.run.clock.Now().Sub(start).Milliseconds(), msg,
	)
	if dbErr != nil {
		t.run.db.log.Error().Err(dbErr).Str("run_id", t.run.id).Msg("record maneuver")
	}
	return err
}

// Finish stamps the run with its outcome.
func (r *Run) Finish(outcome string) error {
	_, err := r.db.Exec(
		`UPDATE runs SET finished_unix_ms = ?, outcome = ? WHERE run_id = ?`,
		r.clock.Now().UnixMilli(), outcome, r.id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	r.db.log.Info().Str("run_id", r.id).Str("outcome", outcome).Msg("run finished")
	return nil
}

// Summary describes a recorded run.
type Summary struct {
	ID          string
	Started     time.Time
	Finished    time.Time // zero while running
	Outcome     string
	Transitions int
	Maneuvers   int
	Marks       []string
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Summary, error) {
	rows, err := db.Query(`
		SELECT r.run_id, r.started_unix_ms, r.finished_unix_ms, COALESCE(r.outcome, ''),
			(SELECT COUNT(*) FROM transitions t WHERE t.run_id = r.run_id),
			(SELECT COUNT(*) FROM maneuvers m WHERE m.run_id = r.run_id)
		FROM runs r
		ORDER BY r.started_unix_ms DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			s        Summary
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &started, &finished, &s.Outcome, &s.Transitions, &s.Maneuvers); err != nil {
			return nil, err
		}
		s.Started = time.UnixMilli(started)
		if finished.Valid {
			s.Finished = time.UnixMilli(finished.Int64)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		marks, err := db.marks(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Marks = marks
	}
	return out, nil
}

func (db *DB) marks(runID string) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM marks WHERE run_id = ? ORDER BY mark_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query marks: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// TransitionRecord is a stored behavior change.
type TransitionRecord struct {
	Seq  uint64
	At   time.Time
	From string
	To   string
}

// Transitions returns the behavior changes of a run in order.
func (db *DB) Transitions(runID string) ([]TransitionRecord, error) {
	rows, err := db.Query(`
		SELECT frame_seq, at_unix_ms, from_behavior, to_behavior
		FROM transitions WHERE run_id = ? ORDER BY transition_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()
	var out []TransitionRecord
	for rows.Next() {
		var (
			tr  TransitionRecord
			seq int64
			at  int64
		)
		if err := rows.Scan(&seq, &at, &tr.From, &tr.To); err != nil {
			return nil, err
		}
		tr.Seq, tr.At = uint64(seq), time.UnixMilli(at)
		out = append(out, tr)
	}
	return out, rows.Err()
}
