package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Statistics aggregates the history log. Dry runs are counted separately
// and excluded from every other figure.
type Statistics struct {
	TotalMigrations    int            `json:"total_migrations"`
	DryRuns            int            `json:"dry_runs"`
	Artists            int            `json:"artists"`
	ByStatus           map[string]int `json:"by_status"`
	ByKind             map[string]int `json:"by_kind"`
	AlbumsMigrated     int            `json:"albums_migrated"`
	AlbumsFailed       int            `json:"albums_failed"`
	OverallSuccessRate float64        `json:"overall_success_rate"`
	AverageDuration    time.Duration  `json:"average_duration"`
	LastMigration      time.Time      `json:"last_migration,omitempty"`
}

// Statistics computes aggregate figures over the whole log.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	ctx = ensureContext(ctx)
	stats := Statistics{
		ByStatus: make(map[string]int),
		ByKind:   make(map[string]int),
	}

	var (
		albumsTotal sql.NullInt64
		migrated    sql.NullInt64
		failed      sql.NullInt64
		avgMillis   sql.NullFloat64
		lastRaw     sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `SELECT
		COUNT(1),
		COUNT(DISTINCT artist_id),
		SUM(albums_total),
		SUM(albums_migrated),
		SUM(albums_failed),
		AVG(duration_ms),
		MAX(recorded_at)
	FROM migrations WHERE dry_run = 0`)
	if err := row.Scan(&stats.TotalMigrations, &stats.Artists, &albumsTotal, &migrated, &failed, &avgMillis, &lastRaw); err != nil {
		return Statistics{}, fmt.Errorf("aggregate history: %w", err)
	}
	stats.AlbumsMigrated = int(migrated.Int64)
	stats.AlbumsFailed = int(failed.Int64)
	if albumsTotal.Int64 > 0 {
		stats.OverallSuccessRate = float64(migrated.Int64) / float64(albumsTotal.Int64)
	}
	if avgMillis.Valid {
		stats.AverageDuration = time.Duration(avgMillis.Float64 * float64(time.Millisecond))
	}
	stats.LastMigration = parseTime(lastRaw.String)

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM migrations WHERE dry_run = 1").Scan(&stats.DryRuns); err != nil {
		return Statistics{}, fmt.Errorf("count dry runs: %w", err)
	}
	if err := s.countBy(ctx, "status", stats.ByStatus); err != nil {
		return Statistics{}, err
	}
	if err := s.countBy(ctx, "migration_kind", stats.ByKind); err != nil {
		return Statistics{}, err
	}
	return stats, nil
}

func (s *Store) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(1) FROM migrations WHERE dry_run = 0 GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		into[key] = count
	}
	return rows.Err()
}
