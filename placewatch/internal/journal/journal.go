// Package journal appends place changes and score outcomes to SQLite.
// Writes happen off the caller's goroutine; a failing or saturated journal
// drops events with a warning and never blocks the watcher.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/reviewbuddy/dbopen"
	"github.com/hazyhaar/reviewbuddy/idgen"
	"github.com/hazyhaar/reviewbuddy/place"
)

// Event kinds.
const (
	KindPlaceChanged  = "place_changed"
	KindScoreResolved = "score_resolved"
	KindReset         = "reset"
)

// Event is one journal row.
type Event struct {
	ID         string
	RunID      string
	Kind       string
	Generation uint64
	Name       string
	Address    string
	Score      string
	Current    bool
	CreatedAt  time.Time
}

// Option configures a Journal.
type Option func(*Journal)

// WithIDGenerator sets the event ID generator. Default: "evt_" + UUIDv7.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(j *Journal) { j.newID = gen }
}

// WithRunID sets the run identifier stamped on every event.
func WithRunID(id string) Option {
	return func(j *Journal) { j.runID = id }
}

// WithBuffer sets the pending event capacity. Default: 256.
func WithBuffer(n int) Option {
	return func(j *Journal) { j.buffer = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// Journal records watcher events.
type Journal struct {
	db     *sql.DB
	ownDB  bool
	newID  idgen.Generator
	runID  string
	buffer int
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	closed bool
	events chan Event
	done   chan struct{}
}

// Open opens (or creates) the journal at path.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	j := New(db, opts...)
	j.ownDB = true
	return j, nil
}

// New wraps an open database. The schema must already be applied.
func New(db *sql.DB, opts ...Option) *Journal {
	j := &Journal{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		buffer: 256,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(j)
	}
	if j.runID == "" {
		j.runID = idgen.Prefixed("run_", idgen.Default)()
	}
	j.events = make(chan Event, j.buffer)
	j.done = make(chan struct{})
	go j.writeLoop()
	return j
}

// RunID returns the identifier of this watcher run.
func (j *Journal) RunID() string { return j.runID }

// StartedAt returns the time embedded in the run ID. ok is false when the
// run ID was not generated as a UUID v7.
func (j *Journal) StartedAt() (t time.Time, ok bool) {
	t, err := idgen.Time(j.runID)
	return t, err == nil
}

// PlaceChanged records a confirmed place change.
func (j *Journal) PlaceChanged(gen uint64, r place.Record) {
	j.enqueue(Event{
		Kind:       KindPlaceChanged,
		Generation: gen,
		Name:       r.Name,
		Address:    r.Address,
		Score:      place.Loading().String(),
		Current:    true,
	})
}

// ScoreResolved records a completed fetch. current is false for results
// discarded as stale.
func (j *Journal) ScoreResolved(gen uint64, r place.Record, s place.Score, current bool) {
	j.enqueue(Event{
		Kind:       KindScoreResolved,
		Generation: gen,
		Name:       r.Name,
		Address:    r.Address,
		Score:      s.String(),
		Current:    current,
	})
}

// Reset records that the watcher forgot the tracked place.
func (j *Journal) Reset(gen uint64) {
	j.enqueue(Event{Kind: KindReset, Generation: gen, Current: true})
}

// Recent returns the latest events of this run, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT event_id, run_id, kind, generation, COALESCE(name,''), COALESCE(address,''),
		       COALESCE(score,''), current, created_at
		FROM place_events WHERE run_id = ?
		ORDER BY event_id DESC LIMIT ?`, j.runID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var gen, created int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Kind, &gen, &e.Name, &e.Address,
			&e.Score, &e.Current, &created); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Generation = uint64(gen)
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cleanup deletes events older than days. Zero keeps everything.
func (j *Journal) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := j.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	res, err := dbopen.Exec(ctx, j.db, `DELETE FROM place_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes pending events and closes the database if Open created it.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.events)
	}
	j.mu.Unlock()
	<-j.done
	if j.ownDB {
		return j.db.Close()
	}
	return nil
}

func (j *Journal) enqueue(e Event) {
	e.ID = j.newID()
	e.RunID = j.runID
	e.CreatedAt = j.now()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.events <- e:
	default:
		j.logger.Warn("journal: buffer full, event dropped", "kind", e.Kind, "generation", e.Generation)
	}
}

// writeBatch bounds how many queued events share one transaction.
const writeBatch = 64

func (j *Journal) writeLoop() {
	defer close(j.done)
	for e := range j.events {
		batch := append(make([]Event, 0, writeBatch), e)
	drain:
		for len(batch) < writeBatch {
			select {
			case next, ok := <-j.events:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		if err := j.write(context.Background(), batch); err != nil {
			j.logger.Error("journal: write failed", "events", len(batch), "error", err)
		}
	}
}

func (j *Journal) write(ctx context.Context, batch []Event) error {
	return dbopen.RunTx(ctx, j.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO place_events (
				event_id, run_id, kind, generation, name, address, score, current, created_at
			) VALUES (?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range batch {
			if _, err := stmt.ExecContext(ctx, e.ID, e.RunID, e.Kind, int64(e.Generation),
				e.Name, e.Address, e.Score, e.Current, e.CreatedAt.UnixMilli()); err != nil {
				return fmt.Errorf("insert %s: %w", e.Kind, err)
			}
		}
		return nil
	})
}
