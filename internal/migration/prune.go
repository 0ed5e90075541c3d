package migration

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"reshelve/internal/library"
	"reshelve/internal/logging"
)

// BackupInfo describes one retained backup folder.
type BackupInfo struct {
	ArtistID  string    `json:"artist_id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Files     int       `json:"files"`
	Bytes     int64     `json:"bytes"`
}

// PruneResult contains the outcome of a backup cleanup.
type PruneResult struct {
	Removed []string     `json:"removed,omitempty"`
	Errors  []PruneError `json:"errors,omitempty"`
}

// PruneError pairs a backup path with its cleanup error.
type PruneError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ListBackups returns the retained backups of the collection, oldest first.
// Folders without a readable manifest are skipped.
func (e *Engine) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(e.cfg.Paths.LibraryDir)
	if err != nil {
		return nil, err
	}
	var out []BackupInfo
	for _, entry := range entries {
		if !entry.IsDir() || !library.IsBackupDir(entry.Name()) {
			continue
		}
		rec, err := LoadBackup(filepath.Join(e.cfg.Paths.LibraryDir, entry.Name()))
		if err != nil {
			e.logger.Debug("skipping backup without manifest",
				logging.String("backup_path", entry.Name()),
				logging.Error(err))
			continue
		}
		out = append(out, BackupInfo{
			ArtistID:  rec.ArtistID,
			Path:      rec.BackupPath,
			CreatedAt: rec.CreatedAt,
			Files:     rec.Files,
			Bytes:     rec.Bytes,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// PruneBackups removes retained backups created more than maxAge ago. Backups
// of an artist that is being migrated are left alone.
func (e *Engine) PruneBackups(ctx context.Context, maxAge time.Duration) (PruneResult, error) {
	var result PruneResult
	backups, err := e.ListBackups()
	if err != nil {
		return result, err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, b := range backups {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !b.CreatedAt.Before(cutoff) {
			continue
		}
		if e.leases.Held(b.ArtistID) {
			continue
		}
		if err := e.backups.Discard(b.Path); err != nil {
			result.Errors = append(result.Errors, PruneError{Path: b.Path, Error: err.Error()})
			logging.WarnWithContext(e.logger, "failed to remove stale backup", "backup_prune_failed",
				logging.String("backup_path", b.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check library_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, b.Path)
		e.logger.Info("removed stale backup",
			logging.String("backup_path", b.Path),
			logging.Duration("age", time.Since(b.CreatedAt)),
		)
	}
	return result, nil
}
