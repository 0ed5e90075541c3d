package migration

import (
	"context"
	"fmt"
	"log/slog"

	"reshelve/internal/classify"
	"reshelve/internal/history"
	"reshelve/internal/logging"
	"reshelve/internal/metadata"
)

// Reporter turns executions into results, patches metadata and appends the
// history log.
type Reporter struct {
	classifier Classifier
	metadata   MetadataStore
	history    HistoryStore
	logger     *slog.Logger
}

// NewReporter builds a reporter. Nil stores disable the matching side effect.
func NewReporter(classifier Classifier, store MetadataStore, log HistoryStore, logger *slog.Logger) *Reporter {
	return &Reporter{classifier: classifier, metadata: store, history: log, logger: logging.NewComponentLogger(logger, "reporter")}
}

// Score computes the compliance score of the artist folder. Scoring problems
// are reported as a zero score of unknown structure.
func (r *Reporter) Score(artistPath string) classify.Score {
	if r.classifier == nil {
		return classify.Score{StructureType: classify.StructureUnknown}
	}
	score, err := r.classifier.ComplianceScore(artistPath)
	if err != nil {
		r.logger.Debug("compliance score unavailable", logging.String("artist_path", artistPath), logging.Error(err))
		return classify.Score{StructureType: classify.StructureUnknown}
	}
	return score
}

// BuildResult assembles the result of a run and computes the operation
// counts and success rate. Status is derived from the final operation states
// unless a fatal error already decided it.
func (r *Reporter) BuildResult(migrationID string, plan *Plan, exec *execution, dryRun bool) *Result {
	res := &Result{
		MigrationID: migrationID,
		PlanID:      plan.ID,
		ArtistID:    plan.ArtistID,
		Kind:        plan.Kind,
		DryRun:      dryRun,
		Operations:  exec.ops,
		StartedAt:   exec.started,
		FinishedAt:  exec.finished,
		Duration:    exec.finished.Sub(exec.started),
		Errors:      exec.errors,
		CreatedDirs: exec.createdDirs,
	}
	res.Warnings = append(res.Warnings, plan.Warnings...)
	for _, op := range exec.ops {
		for _, warning := range op.Warnings {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s", op.AlbumID, warning))
		}
	}
	tally(res)

	switch {
	case exec.fatal != nil:
		res.Status = ResultFailed
	case res.AlbumsFailed == 0:
		res.Status = ResultCompleted
	case res.AlbumsMigrated == 0:
		res.Status = ResultFailed
	default:
		res.Status = ResultPartial
	}
	return res
}

// tally recomputes the counts from the operation states. Rolled back moves
// count as failed: none of them ended at their target.
func tally(res *Result) {
	res.AlbumsTotal, res.AlbumsMigrated, res.AlbumsFailed, res.AlbumsSkipped = 0, 0, 0, 0
	for _, op := range res.Operations {
		switch op.Kind {
		case OpNoOp:
			res.AlbumsSkipped++
		case OpMove:
			res.AlbumsTotal++
			switch op.Status {
			case StatusCompleted:
				res.AlbumsMigrated++
			case StatusFailed, StatusRolledBack:
				res.AlbumsFailed++
			}
		}
	}
	if res.AlbumsTotal == 0 {
		res.SuccessRate = 1
		return
	}
	res.SuccessRate = float64(res.AlbumsMigrated) / float64(res.AlbumsTotal)
}

// PatchMetadata records the new folder path of every album that moved.
func (r *Reporter) PatchMetadata(ctx context.Context, res *Result) error {
	if r.metadata == nil || res.DryRun || res.Status == ResultRolledBack {
		return nil
	}
	patch := metadata.Patch{FolderPaths: map[string]string{}}
	for _, op := range res.Operations {
		if op.Kind == OpMove && op.Status == StatusCompleted {
			patch.FolderPaths[op.AlbumID] = op.TargetPath
		}
	}
	if len(patch.FolderPaths) == 0 {
		return nil
	}
	changed, err := r.metadata.Write(res.ArtistID, patch)
	if err != nil {
		return fmt.Errorf("patch metadata: %w", err)
	}
	res.MetadataUpdated = changed
	logging.WithContext(ctx, r.logger).Debug("metadata patched", logging.Int("records", changed))
	return nil
}

// HistoryEntry is the immutable summary of res written to the history log.
func HistoryEntry(res *Result) history.Entry {
	entry := history.Entry{
		MigrationID:       res.MigrationID,
		ArtistID:          res.ArtistID,
		Kind:              string(res.Kind),
		Timestamp:         res.FinishedAt,
		Status:            string(res.Status),
		DryRun:            res.DryRun,
		AlbumsTotal:       res.AlbumsTotal,
		AlbumsMigrated:    res.AlbumsMigrated,
		AlbumsFailed:      res.AlbumsFailed,
		AlbumsSkipped:     res.AlbumsSkipped,
		Duration:          res.Duration,
		SuccessRate:       res.SuccessRate,
		ScoreBefore:       res.ScoreBefore.Score,
		ScoreAfter:        res.ScoreAfter.Score,
		StructureBefore:   res.ScoreBefore.StructureType,
		StructureAfter:    res.ScoreAfter.StructureType,
		RollbackAttempted: res.RollbackAttempted,
		RollbackSucceeded: res.RollbackSucceeded,
	}
	if res.BackupKept {
		entry.BackupPath = res.BackupPath()
	}
	if len(res.Errors) > 0 {
		entry.Error = res.Errors[len(res.Errors)-1].Error()
	}
	return entry
}

// AppendHistory writes the history entry for res.
func (r *Reporter) AppendHistory(ctx context.Context, res *Result) (history.Entry, error) {
	if r.history == nil {
		return HistoryEntry(res), nil
	}
	entry, err := r.history.Append(ctx, HistoryEntry(res))
	if err != nil {
		return history.Entry{}, err
	}
	logging.WithContext(ctx, r.logger).Info("migration recorded",
		logging.String("status", entry.Status),
		logging.Int("albums_migrated", entry.AlbumsMigrated),
		logging.Int("albums_failed", entry.AlbumsFailed),
		logging.Float64("success_rate", entry.SuccessRate),
		logging.Bool("dry_run", entry.DryRun),
	)
	return entry, nil
}
