// Package db keeps a local history of analysis dispatches.
// It uses SQLite as the underlying storage and retains only the most
// recent dispatches.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Dispatch is one request sent to the analysis endpoint and what came back.
type Dispatch struct {
	ID           string
	Endpoint     string
	Payload      string
	StatusCode   int // 0 when no response was received
	ResponseBody string
	Error        string
	Duration     time.Duration
	SentAt       time.Time
}

var (
	ErrNoRecords     = errors.New("no dispatch records found")
	ErrAmbiguousID   = errors.New("id prefix matches more than one dispatch")
	ErrRecordMissing = errors.New("dispatch not found")
)

func InitDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err = db.Exec(GetSchema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return db, nil
}

// CreateDispatch stores d, assigning an ID and send time when they are unset,
// then trims the table down to the newest keep rows.
func CreateDispatch(db *sql.DB, d *Dispatch, keep int) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.SentAt.IsZero() {
		d.SentAt = time.Now()
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO dispatches (
			id, endpoint, payload, status_code, response_body, error, duration_ms, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.Endpoint,
		d.Payload,
		d.StatusCode,
		d.ResponseBody,
		d.Error,
		d.Duration.Milliseconds(),
		d.SentAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting dispatch: %w", err)
	}

	if keep > 0 {
		if _, err := tx.Exec(pruneQuery, keep); err != nil {
			return fmt.Errorf("pruning dispatches: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

const pruneQuery = `
	DELETE FROM dispatches
	WHERE id NOT IN (
		SELECT id FROM dispatches ORDER BY sent_at DESC, rowid DESC LIMIT ?
	)`

// PruneDispatches removes all but the newest keep dispatches.
func PruneDispatches(db *sql.DB, keep int) (int64, error) {
	result, err := db.Exec(pruneQuery, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning dispatches: %w", err)
	}
	return result.RowsAffected()
}

const selectColumns = `id, endpoint, payload, status_code, response_body, error, duration_ms, sent_at`

// ListDispatches returns dispatches newest first. A limit of zero lists all of them.
func ListDispatches(db *sql.DB, limit int) ([]Dispatch, error) {
	query := `SELECT ` + selectColumns + ` FROM dispatches ORDER BY sent_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dispatches []Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		dispatches = append(dispatches, d)
	}

	return dispatches, rows.Err()
}

// GetDispatch looks a dispatch up by full ID or unique ID prefix.
// The prefix is compared literally; it is not a LIKE pattern.
func GetDispatch(db *sql.DB, idPrefix string) (*Dispatch, error) {
	if idPrefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRecordMissing)
	}

	rows, err := db.Query(
		`SELECT `+selectColumns+` FROM dispatches WHERE substr(id, 1, length(?)) = ? LIMIT 2`,
		idPrefix,
		idPrefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRecordMissing, idPrefix)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, idPrefix)
	}
}

func DeleteDispatch(db *sql.DB, id string) error {
	result, err := db.Exec("DELETE FROM dispatches WHERE id = ?", id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRecordMissing, id)
	}

	return nil
}

// ClearDispatches empties the history and reports how many rows went.
func ClearDispatches(db *sql.DB) (int64, error) {
	result, err := db.Exec("DELETE FROM dispatches")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispatch(rows rowScanner) (Dispatch, error) {
	var d Dispatch
	var durationMS, sentAt int64
	err := rows.Scan(
		&d.ID,
		&d.Endpoint,
		&d.Payload,
		&d.StatusCode,
		&d.ResponseBody,
		&d.Error,
		&durationMS,
		&sentAt,
	)
	if err != nil {
		return d, err
	}
	d.Duration = time.Duration(durationMS) * time.Millisecond
	d.SentAt = time.Unix(0, sentAt)
	return d, nil
}

// GetSchema returns the SQLite schema for the history database.
func GetSchema() string {
	return `
	CREATE TABLE IF NOT EXISTS dispatches (
		id TEXT PRIMARY KEY,                 -- uuid assigned at send time
		endpoint TEXT NOT NULL,              -- URL the payload was posted to
		payload TEXT NOT NULL,               -- serialized JSON request body
		status_code INTEGER NOT NULL,        -- HTTP status, 0 on transport failure
		response_body TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',      -- transport error text, if any
		duration_ms INTEGER NOT NULL DEFAULT 0,
		sent_at INTEGER NOT NULL             -- unix nanoseconds
	);

	CREATE INDEX IF NOT EXISTS idx_dispatches_sent_at ON dispatches (sent_at);`
}
