// Package store persists generation records in SQLite. It is the source the
// report endpoints aggregate over.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	"github.com/lessonforge/api/internal/aggregate"
)

var ErrNotFound = errors.New("generation record not found")

// GenerationStore provides SQLite persistence for generation records.
type GenerationStore struct {
	db *sql.DB
}

// Filter narrows List. Zero times are unbounded; To is exclusive.
type Filter struct {
	From      time.Time
	To        time.Time
	PartnerID string
	UserID    string
}

// Open creates the database file if needed and ensures the schema exists.
func Open(path string) (*GenerationStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &GenerationStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *GenerationStore) Close() error {
	return s.db.Close()
}

func (s *GenerationStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL DEFAULT '',
		partner_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK(status IN ('queued', 'processing', 'succeeded', 'failed', 'cancelled')),
		created_at TEXT NOT NULL,
		completed_at TEXT,
		video_seconds REAL NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at);
	CREATE INDEX IF NOT EXISTS idx_generations_partner ON generations(partner_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert stores a new record. videoID is kept for lookups but is not part of
// the aggregate shape.
func (s *GenerationStore) Insert(ctx context.Context, videoID string, r aggregate.Record) error {
	query := `
	INSERT INTO generations (id, video_id, partner_id, user_id, status, created_at, completed_at, video_seconds)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, videoID, r.PartnerID, r.UserID, string(r.Status),
		formatTime(r.CreatedAt), formatTimePtr(r.CompletedAt), r.VideoSeconds)
	if err != nil {
		return fmt.Errorf("insert generation %s: %w", r.ID, err)
	}
	return nil
}

// SetStatus moves a record to a non-terminal status.
func (s *GenerationStore) SetStatus(ctx context.Context, id string, status aggregate.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE generations SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update generation %s: %w", id, err)
	}
	return expectOne(res, id)
}

// Complete records a terminal status with its completion time and rendered length.
func (s *GenerationStore) Complete(ctx context.Context, id string, status aggregate.Status, completedAt time.Time, videoSeconds float64) error {
	query := `UPDATE generations SET status = ?, completed_at = ?, video_seconds = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, string(status), formatTime(completedAt), videoSeconds, id)
	if err != nil {
		return fmt.Errorf("complete generation %s: %w", id, err)
	}
	return expectOne(res, id)
}

// Delete removes a record. It is used to roll back a submission that never
// reached the queue.
func (s *GenerationStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM generations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete generation %s: %w", id, err)
	}
	return expectOne(res, id)
}

func (s *GenerationStore) Get(ctx context.Context, id string) (*aggregate.Record, error) {
	query := `
	SELECT id, partner_id, user_id, status, created_at, completed_at, video_seconds
	FROM generations
	WHERE id = ?
	`
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get generation %s: %w", id, err)
	}
	return r, nil
}

// List returns records matching f ordered by creation time.
func (s *GenerationStore) List(ctx context.Context, f Filter) ([]aggregate.Record, error) {
	query := `
	SELECT id, partner_id, user_id, status, created_at, completed_at, video_seconds
	FROM generations
	WHERE 1 = 1`
	var args []any
	if !f.From.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, formatTime(f.To))
	}
	if f.PartnerID != "" {
		query += ` AND partner_id = ?`
		args = append(args, f.PartnerID)
	}
	if f.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []aggregate.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*aggregate.Record, error) {
	var (
		r         aggregate.Record
		status    string
		created   string
		completed sql.NullString
	)
	if err := row.Scan(&r.ID, &r.PartnerID, &r.UserID, &status, &created, &completed, &r.VideoSeconds); err != nil {
		return nil, err
	}
	r.Status = aggregate.Status(status)

	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	r.CreatedAt = t
	if completed.Valid {
		c, err := time.Parse(time.RFC3339Nano, completed.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		r.CompletedAt = &c
	}
	return &r, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("generation %s: %w", id, ErrNotFound)
	}
	return nil
}

// Timestamps are stored as fixed-width UTC strings so lexical order matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
