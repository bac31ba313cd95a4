// Package journal keeps an append-only SQLite audit of reconciliation
// passes. It records what the sync loop applied and why; it is never
// read during startup or recovery, so a fresh process always rebuilds
// from the producer.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"netmirror/internal/twin"
)

// Journal is an append-only reconciliation audit log.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		applied_at DATETIME NOT NULL,
		from_version INTEGER NOT NULL,
		to_version INTEGER NOT NULL,
		applied INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failures INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		ok INTEGER NOT NULL,
		detail TEXT,
		FOREIGN KEY (cycle_id) REFERENCES sync_cycles(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sync_items_cycle ON sync_items(cycle_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one completed reconciliation pass.
func (j *Journal) Record(ctx context.Context, fromVersion, toVersion uint64, rep *twin.Report) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sync_cycles (applied_at, from_version, to_version, applied, skipped, failures)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), fromVersion, toVersion, rep.Applied, rep.Skipped, rep.Failures)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	cycleID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("cycle id: %w", err)
	}

	for _, item := range rep.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sync_items (cycle_id, kind, subject, ok, detail) VALUES (?, ?, ?, ?, ?)`,
			cycleID, string(item.Kind), item.Subject, item.OK, item.Detail); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
	}

	return tx.Commit()
}

// CycleEntry is one journalled reconciliation pass.
type CycleEntry struct {
	ID          int64     `json:"id"`
	AppliedAt   time.Time `json:"applied_at"`
	FromVersion uint64    `json:"from_version"`
	ToVersion   uint64    `json:"to_version"`
	Applied     int       `json:"applied"`
	Skipped     int       `json:"skipped"`
	Failures    int       `json:"failures"`
}

// Recent returns the most recent cycles, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]CycleEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, applied_at, from_version, to_version, applied, skipped, failures
		 FROM sync_cycles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleEntry
	for rows.Next() {
		var e CycleEntry
		if err := rows.Scan(&e.ID, &e.AppliedAt, &e.FromVersion, &e.ToVersion,
			&e.Applied, &e.Skipped, &e.Failures); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
