package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"WaybackArchiver/internal/domain"
	"WaybackArchiver/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    started_at  TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    total       INTEGER NOT NULL,
    processed   INTEGER NOT NULL,
    stopped     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_results (
    run_id        TEXT NOT NULL,
    position      INTEGER NOT NULL,
    address       TEXT NOT NULL,
    outcome       TEXT NOT NULL,
    snapshot_url  TEXT NOT NULL,
    snapshot_date TEXT NOT NULL,
    details       TEXT NOT NULL,
    PRIMARY KEY (run_id, position)
);`

// HistoryRepository persists finished runs into a local SQLite database.
type HistoryRepository struct {
	db *sql.DB
}

var _ ports.ResultRepository = (*HistoryRepository)(nil)

// Open creates (or opens) the database at path and ensures the schema.
func Open(path string) (*HistoryRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &HistoryRepository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *HistoryRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveRun records the run summary and one row per processing result.
func (r *HistoryRepository) SaveRun(ctx context.Context, run domain.RunRecord, results []domain.ProcessingResult) error {
	if r == nil || r.db == nil {
		return nil
	}

	query, args, err := sq.Insert("runs").
		Columns("run_id", "started_at", "finished_at", "total", "processed", "stopped").
		Values(run.RunID, run.StartedAt, run.FinishedAt, run.Total, run.Processed, run.Stopped).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	for i, result := range results {
		var snapshotURL, snapshotDate string
		if result.Record != nil {
			snapshotURL = result.Record.SnapshotURL
			snapshotDate = result.Record.FormattedDate
		}

		query, args, err := sq.Insert("run_results").
			Columns("run_id", "position", "address", "outcome", "snapshot_url", "snapshot_date", "details").
			Values(run.RunID, i, result.Address, string(result.Outcome), snapshotURL, snapshotDate, strings.Join(result.Details, "; ")).
			ToSql()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build result insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert result %s: %w", result.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history tx: %w", err)
	}

	return nil
}

// RecentRuns lists the newest run summaries, most recent first.
func (r *HistoryRepository) RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query, args, err := sq.Select("run_id", "started_at", "finished_at", "total", "processed", "stopped").
		From("runs").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build runs select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var runs []domain.RunRecord
	for rows.Next() {
		var run domain.RunRecord
		if err := rows.Scan(&run.RunID, &run.StartedAt, &run.FinishedAt, &run.Total, &run.Processed, &run.Stopped); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return runs, nil
}
