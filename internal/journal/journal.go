// Package journal records terminal mirror failures in SQLite so a
// missed mirror can be reconciled by hand later. The correlation
// mapping itself is deliberately not persisted here; it is rebuilt
// from issue and comment bodies on every start.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded failure.
type Entry struct {
	ID        int64
	Source    string
	Action    string
	ThreadURL string
	Detail    string
	CreatedAt time.Time
}

// Journal is the failure journal. Record is best-effort: a journal
// write that fails is logged and dropped, never propagated into the
// mirror path.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the journal database at path.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		action TEXT NOT NULL,
		thread_url TEXT NOT NULL,
		detail TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &Journal{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends a failure entry.
func (j *Journal) Record(source, action, threadURL, detail string) {
	query := `
	INSERT INTO failures (source, action, thread_url, detail, created_at)
	VALUES (?, ?, ?, ?, ?)
	`
	if _, err := j.db.Exec(query, source, action, threadURL, detail, time.Now().UTC()); err != nil {
		j.logger.Error("failed to record journal entry",
			"source", source,
			"action", action,
			"error", err,
		)
	}
}

// Recent returns the latest n failure entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	query := `
	SELECT id, source, action, thread_url, detail, created_at
	FROM failures
	ORDER BY id DESC
	LIMIT ?
	`
	rows, err := j.db.Query(query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Source, &e.Action, &e.ThreadURL, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
