package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Entry is one immutable record of a migration attempt.
type Entry struct {
	MigrationID       string        `json:"migration_id"`
	ArtistID          string        `json:"artist_id"`
	Kind              string        `json:"migration_kind"`
	Timestamp         time.Time     `json:"timestamp"`
	Status            string        `json:"status"`
	DryRun            bool          `json:"dry_run"`
	AlbumsTotal       int           `json:"albums_total"`
	AlbumsMigrated    int           `json:"albums_migrated"`
	AlbumsFailed      int           `json:"albums_failed"`
	AlbumsSkipped     int           `json:"albums_skipped"`
	Duration          time.Duration `json:"duration"`
	SuccessRate       float64       `json:"success_rate"`
	ScoreBefore       int           `json:"score_before"`
	ScoreAfter        int           `json:"score_after"`
	StructureBefore   string        `json:"structure_before,omitempty"`
	StructureAfter    string        `json:"structure_after,omitempty"`
	BackupPath        string        `json:"backup_path,omitempty"`
	RollbackAttempted bool          `json:"rollback_attempted"`
	RollbackSucceeded bool          `json:"rollback_succeeded"`
	Error             string        `json:"error,omitempty"`
}

// timestampLayout is fixed width so recorded_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const entryColumns = "migration_id, artist_id, migration_kind, status, dry_run, recorded_at, duration_ms, albums_total, albums_migrated, albums_failed, albums_skipped, success_rate, score_before, score_after, structure_before, structure_after, backup_path, rollback_attempted, rollback_succeeded, error_message"

// Append records entry. A zero timestamp is stamped with the current time.
func (s *Store) Append(ctx context.Context, entry Entry) (Entry, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(entry.MigrationID) == "" {
		return Entry{}, errors.New("history entry requires a migration id")
	}
	if strings.TrimSpace(entry.ArtistID) == "" {
		return Entry{}, errors.New("history entry requires an artist id")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()

	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			"INSERT INTO migrations ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			entry.MigrationID,
			entry.ArtistID,
			entry.Kind,
			entry.Status,
			boolToInt(entry.DryRun),
			entry.Timestamp.Format(timestampLayout),
			entry.Duration.Milliseconds(),
			entry.AlbumsTotal,
			entry.AlbumsMigrated,
			entry.AlbumsFailed,
			entry.AlbumsSkipped,
			entry.SuccessRate,
			entry.ScoreBefore,
			entry.ScoreAfter,
			nullableString(entry.StructureBefore),
			nullableString(entry.StructureAfter),
			nullableString(entry.BackupPath),
			boolToInt(entry.RollbackAttempted),
			boolToInt(entry.RollbackSucceeded),
			nullableString(entry.Error),
		)
		return execErr
	})
	if err != nil {
		return Entry{}, fmt.Errorf("append history: %w", err)
	}
	return entry, nil
}

// Query returns entries newest first. An empty artistID matches every
// artist; a non-positive limit applies the default limit.
func (s *Store) Query(ctx context.Context, artistID string, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	query := "SELECT " + entryColumns + " FROM migrations"
	args := []any{}
	if artistID = strings.TrimSpace(artistID); artistID != "" {
		query += " WHERE artist_id = ?"
		args = append(args, artistID)
	}
	query += " ORDER BY seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry             Entry
		dryRun            int
		recordedRaw       string
		durationMS        int64
		structureBefore   sql.NullString
		structureAfter    sql.NullString
		backupPath        sql.NullString
		rollbackAttempted int
		rollbackSucceeded int
		errorMessage      sql.NullString
	)
	if err := scanner.Scan(
		&entry.MigrationID,
		&entry.ArtistID,
		&entry.Kind,
		&entry.Status,
		&dryRun,
		&recordedRaw,
		&durationMS,
		&entry.AlbumsTotal,
		&entry.AlbumsMigrated,
		&entry.AlbumsFailed,
		&entry.AlbumsSkipped,
		&entry.SuccessRate,
		&entry.ScoreBefore,
		&entry.ScoreAfter,
		&structureBefore,
		&structureAfter,
		&backupPath,
		&rollbackAttempted,
		&rollbackSucceeded,
		&errorMessage,
	); err != nil {
		return Entry{}, err
	}
	entry.DryRun = dryRun != 0
	entry.Timestamp = parseTime(recordedRaw)
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	entry.StructureBefore = structureBefore.String
	entry.StructureAfter = structureAfter.String
	entry.BackupPath = backupPath.String
	entry.RollbackAttempted = rollbackAttempted != 0
	entry.RollbackSucceeded = rollbackSucceeded != 0
	entry.Error = errorMessage.String
	return entry, nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(timestampLayout, raw); err == nil {
		return ts
	}
	return time.Time{}
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
