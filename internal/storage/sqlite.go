package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/siteprint/siteprint/internal/types"
)

// Index is the queryable SQLite view of a run's export records.
type Index struct {
	db *sql.DB
}

// NewIndex opens (creating if needed) the index database.
func NewIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS export_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT UNIQUE NOT NULL,
		filename TEXT,
		title TEXT,
		bytes INTEGER,
		status TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER,
		exported_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_status ON export_records(status);
	CREATE INDEX IF NOT EXISTS idx_records_filename ON export_records(filename);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Index{db: db}, nil
}

// OpenIndex opens an existing index read-side; same as NewIndex but named for
// intent at the call sites that only query.
func OpenIndex(dbPath string) (*Index, error) {
	return NewIndex(dbPath)
}

// Save upserts one record, keyed by URL.
func (i *Index) Save(rec types.ExportRecord) error {
	query := `
		INSERT OR REPLACE INTO export_records
		(url, filename, title, bytes, status, error, duration_ms, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := i.db.Exec(query,
		rec.URL,
		rec.Filename,
		rec.Title,
		rec.Bytes,
		string(rec.Status),
		rec.Error,
		rec.DurationMS,
		rec.ExportedAt.Format(time.RFC3339),
	)
	return err
}

// Records returns records filtered by status; an empty status returns all,
// ordered by insertion.
func (i *Index) Records(status types.ExportStatus) ([]types.ExportRecord, error) {
	query := "SELECT url, filename, title, bytes, status, error, duration_ms, exported_at FROM export_records"
	args := make([]interface{}, 0, 1)
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY id"

	rows, err := i.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]types.ExportRecord, 0)
	for rows.Next() {
		var rec types.ExportRecord
		var status, exportedAt string
		if err := rows.Scan(&rec.URL, &rec.Filename, &rec.Title, &rec.Bytes,
			&status, &rec.Error, &rec.DurationMS, &exportedAt); err != nil {
			continue
		}
		rec.Status = types.ExportStatus(status)
		rec.ExportedAt, _ = time.Parse(time.RFC3339, exportedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats returns record counts keyed by status.
func (i *Index) Stats() (map[types.ExportStatus]int, error) {
	rows, err := i.db.Query("SELECT status, COUNT(*) FROM export_records GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[types.ExportStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			continue
		}
		stats[types.ExportStatus(status)] = count
	}
	return stats, rows.Err()
}

// Close closes the database.
func (i *Index) Close() error {
	return i.db.Close()
}
