package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/apperr"
)

// Publish outcomes stored with each run.
const (
	PublishDone     = "published"
	PublishSkipped  = "skipped"
	PublishFailed   = "failed"
	PublishDisabled = "disabled"
)

// Run is one recorded sync.
type Run struct {
	ID             int64     `json:"id"`
	Trigger        string    `json:"trigger"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	ReportChecksum string    `json:"report_checksum"`
	ManifestBefore string    `json:"manifest_before"`
	ManifestAfter  string    `json:"manifest_after"`
	Added          int       `json:"added"`
	Modified       int       `json:"modified"`
	Deleted        int       `json:"deleted"`
	Deactivated    int       `json:"deactivated"`
	Appended       int       `json:"appended"`
	Changed        bool      `json:"changed"`
	PublishStatus  string    `json:"publish_status,omitempty"`
	PublishError   string    `json:"publish_error,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Store defines the ledger operations the sync service and the front ends use.
type Store interface {
	Record(r Run) (int64, error)
	Get(id int64) (*Run, error)
	List(limit int) ([]Run, error)
}

var _ Store = (*DB)(nil)

const runColumns = `id, trigger, started_at, finished_at, report_checksum, manifest_before,
	manifest_after, added, modified, deleted, deactivated, appended, changed,
	publish_status, publish_error, error`

// Record inserts r and returns its id.
func (db *DB) Record(r Run) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO runs (trigger, started_at, finished_at, report_checksum, manifest_before,
			manifest_after, added, modified, deleted, deactivated, appended, changed,
			publish_status, publish_error, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Trigger, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.ReportChecksum, r.ManifestBefore,
		r.ManifestAfter, r.Added, r.Modified, r.Deleted, r.Deactivated, r.Appended, r.Changed,
		r.PublishStatus, r.PublishError, r.Error)
	if err != nil {
		return 0, fmt.Errorf("history: insert run: %w", err)
	}
	return res.LastInsertId()
}

// Get returns the run with id, or apperr.ErrNotFound.
func (db *DB) Get(id int64) (*Run, error) {
	row := db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: get run: %w", err)
	}
	return r, nil
}

// List returns the most recent runs first. limit <= 0 means 20.
func (db *DB) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	err := s.Scan(&r.ID, &r.Trigger, &r.StartedAt, &r.FinishedAt, &r.ReportChecksum,
		&r.ManifestBefore, &r.ManifestAfter, &r.Added, &r.Modified, &r.Deleted,
		&r.Deactivated, &r.Appended, &r.Changed, &r.PublishStatus, &r.PublishError, &r.Error)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
