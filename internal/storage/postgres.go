package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"paperwatch/internal/domain"
	"paperwatch/internal/ports"
)

// RunArchive mirrors pipeline run records into Postgres for long-term
// querying. A nil archive (no DSN configured) is a no-op.
type RunArchive struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.RunArchiver = (*RunArchive)(nil)

// Open connects to the archive database, or returns nil when no DSN is set.
func Open(dsn string) (*RunArchive, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	return NewRunArchive(db), nil
}

// NewRunArchive wires a sql.DB implementation.
func NewRunArchive(db *sql.DB) *RunArchive {
	return &RunArchive{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Close releases the database handle.
func (a *RunArchive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// ArchiveRun inserts the run record, replacing the row if the run id was
// already archived.
func (a *RunArchive) ArchiveRun(ctx context.Context, record domain.RunRecord) error {
	if a == nil || a.db == nil {
		return nil
	}

	filter, err := json.Marshal(record.Filter)
	if err != nil {
		return fmt.Errorf("marshal filter snapshot: %w", err)
	}
	papers, err := json.Marshal(record.Papers)
	if err != nil {
		return fmt.Errorf("marshal paper summaries: %w", err)
	}

	query, args, err := a.builder.
		Insert("run_records").
		Columns("id", "run_at", "channel", "filter", "papers_count", "papers", "artifact_name").
		Values(record.ID, record.Timestamp, record.Channel, filter, record.PapersCount, papers, record.ArtifactName).
		Suffix(`ON CONFLICT (id) DO UPDATE
		        SET papers_count = EXCLUDED.papers_count,
		            papers = EXCLUDED.papers,
		            artifact_name = EXCLUDED.artifact_name`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// RecentRuns returns the newest archived runs for a channel, most recent first.
func (a *RunArchive) RecentRuns(ctx context.Context, channel string, limit int) ([]domain.RunRecord, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}

	query, args, err := a.builder.
		Select("id", "run_at", "channel", "papers_count", "artifact_name").
		From("run_records").
		Where(sq.Eq{"channel": channel}).
		OrderBy("run_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		var r domain.RunRecord
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Channel, &r.PapersCount, &r.ArtifactName); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}
