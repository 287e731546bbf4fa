// Package store persists session and attack-cycle history in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-hunter/internal/log"
	"github.com/teslashibe/go-hunter/pkg/attack"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Session is one run of the loop from start to stop.
type Session struct {
	ID           uuid.UUID  `json:"id"`
	Started      time.Time  `json:"started"`
	Stopped      *time.Time `json:"stopped,omitempty"`
	Ticks        int64      `json:"ticks"`
	Detections   int64      `json:"detections"`
	Acquisitions int64      `json:"acquisitions"`
	Cycles       int64      `json:"cycles"`
	Reason       string     `json:"reason,omitempty"`
}

// Cycle is a persisted attack cycle.
type Cycle struct {
	Session uuid.UUID `json:"session"`
	attack.CycleStats
}

// Store is the history database.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
	lg     *slog.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, lg: log.With("component", "store")}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: migrations source: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("store: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("store: migrate instance: %w", err)
	}
	// m is not closed: that would close the shared *sql.DB
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migration up failed: %w", err)
	}
	v, _, _ := m.Version()
	s.lg.Debug("schema ready", "version", v)
	return nil
}

func (s *Store) conn() (*sql.DB, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.db, nil
}

// SaveSession inserts or updates a session.
func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return err
	}

	var stopped sql.NullInt64
	if sess.Stopped != nil {
		stopped = sql.NullInt64{Int64: sess.Stopped.UnixNano(), Valid: true}
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_ns, stopped_ns, ticks, detections, acquisitions, cycles, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stopped_ns = excluded.stopped_ns,
			ticks = excluded.ticks,
			detections = excluded.detections,
			acquisitions = excluded.acquisitions,
			cycles = excluded.cycles,
			reason = excluded.reason`,
		sess.ID.String(), sess.Started.UnixNano(), stopped,
		sess.Ticks, sess.Detections, sess.Acquisitions, sess.Cycles, sess.Reason)
	if err != nil {
		return fmt.Errorf("store: save session: %w", err)
	}
	return nil
}

// Session returns one session by ID.
func (s *Store) Session(ctx context.Context, id uuid.UUID) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return Session{}, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, started_ns, stopped_ns, ticks, detections, acquisitions, cycles, reason
		FROM sessions WHERE id = ?`, id.String())
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// RecentSessions returns up to n sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, n int) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, started_ns, stopped_ns, ticks, detections, acquisitions, cycles, reason
		FROM sessions ORDER BY started_ns DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(r scanner) (Session, error) {
	var (
		sess    Session
		id      string
		started int64
		stopped sql.NullInt64
	)
	if err := r.Scan(&id, &started, &stopped, &sess.Ticks, &sess.Detections, &sess.Acquisitions, &sess.Cycles, &sess.Reason); err != nil {
		return Session{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Session{}, fmt.Errorf("store: bad session id %q: %w", id, err)
	}
	sess.ID = parsed
	sess.Started = time.Unix(0, started)
	if stopped.Valid {
		t := time.Unix(0, stopped.Int64)
		sess.Stopped = &t
	}
	return sess, nil
}

// SaveCycle records a completed cycle for session. The session row is
// created if it does not exist yet.
func (s *Store) SaveCycle(ctx context.Context, session uuid.UUID, c attack.CycleStats) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, started_ns) VALUES (?, ?)`,
		session.String(), c.Started.UnixNano()); err != nil {
		return fmt.Errorf("store: ensure session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cycles (session_id, number, mode, started_ns, completed_ns, duration_ns, loot_taps)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.String(), c.Number, c.Mode, c.Started.UnixNano(), c.Completed.UnixNano(),
		int64(c.Duration), c.LootTaps); err != nil {
		return fmt.Errorf("store: save cycle: %w", err)
	}
	return tx.Commit()
}

// RecentCycles returns up to n cycles, most recently completed first.
func (s *Store) RecentCycles(ctx context.Context, n int) ([]Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT session_id, number, mode, started_ns, completed_ns, duration_ns, loot_taps
		FROM cycles ORDER BY completed_ns DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: query cycles: %w", err)
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		var (
			c                            Cycle
			session                      string
			started, completed, duration int64
		)
		if err := rows.Scan(&session, &c.Number, &c.Mode, &started, &completed, &duration, &c.LootTaps); err != nil {
			return nil, err
		}
		if c.Session, err = uuid.Parse(session); err != nil {
			return nil, fmt.Errorf("store: bad session id %q: %w", session, err)
		}
		c.Started = time.Unix(0, started)
		c.Completed = time.Unix(0, completed)
		c.Duration = time.Duration(duration)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
