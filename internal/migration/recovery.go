package migration

import (
	"context"
	"fmt"
	"log/slog"

	"reshelve/internal/logging"
)

// Decision is what the executor does after a failed operation.
type Decision int

const (
	// Continue marks the operation failed and moves on.
	Continue Decision = iota
	// Abort stops execution and rolls back when a backup exists.
	Abort
)

func (d Decision) String() string {
	if d == Abort {
		return "abort"
	}
	return "continue"
}

// DefaultConsecutiveFailureLimit is the number of back-to-back recoverable
// failures treated as cascading damage.
const DefaultConsecutiveFailureLimit = 3

// Recovery applies the failure policy for one migration attempt. It is not
// safe for concurrent use; each execution gets its own.
type Recovery struct {
	limit       int
	consecutive int
	backups     *BackupManager
	logger      *slog.Logger
}

// NewRecovery builds the policy with the given consecutive-failure limit.
func NewRecovery(limit int, backups *BackupManager, logger *slog.Logger) *Recovery {
	if limit <= 0 {
		limit = DefaultConsecutiveFailureLimit
	}
	return &Recovery{limit: limit, backups: backups, logger: logging.NewComponentLogger(logger, "recovery")}
}

// Decide classifies a failure. Permission, space and unknown failures abort
// at once; existing targets and locked files only abort once they repeat
// limit times in a row.
func (r *Recovery) Decide(kind ErrorKind) (Decision, string) {
	switch kind {
	case KindTargetExists, KindFileLocked:
		r.consecutive++
		if r.consecutive >= r.limit {
			return Abort, fmt.Sprintf("%d consecutive failures; treating as cascading damage", r.consecutive)
		}
		return Continue, ""
	default:
		return Abort, fmt.Sprintf("%s failure is not recoverable", kind)
	}
}

// Succeeded resets the consecutive-failure count.
func (r *Recovery) Succeeded() {
	r.consecutive = 0
}

// Rollback restores the artist folder from rec and marks every attempted
// operation rolled back. Without a backup the folder is flagged as mixed.
// A failed restore is returned as a recovery *Error naming the backup.
func (r *Recovery) Rollback(ctx context.Context, rec *BackupRecord, result *Result) error {
	logger := logging.WithContext(ctx, r.logger)
	if rec == nil {
		result.Status = ResultFailed
		result.MixedState = countStatus(result.Operations, StatusCompleted, OpMove) > 0 ||
			countStatus(result.Operations, StatusCompleted, OpCreateDir) > 0
		if result.MixedState {
			logging.ErrorWithContext(logger, "aborted without backup; artist folder is in a mixed state", "mixed_state",
				logging.Int("completed", countStatus(result.Operations, StatusCompleted, OpMove)),
				logging.String(logging.FieldErrorHint, "move the listed albums back by hand or rerun the migration"),
			)
		}
		return nil
	}

	result.RollbackAttempted = true
	if err := r.backups.Restore(context.WithoutCancel(ctx), rec); err != nil {
		result.Status = ResultFailed
		result.MixedState = true
		logging.ErrorWithContext(logger, "rollback failed", "rollback_failed",
			logging.String("backup_path", rec.BackupPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restore the artist folder by hand from the backup path"),
		)
		return &Error{
			Class:    ClassRecovery,
			Kind:     KindUnknown,
			ArtistID: rec.ArtistID,
			Path:     rec.BackupPath,
			Message:  "rollback failed; restore manually from " + rec.BackupPath,
			Err:      err,
		}
	}

	for i := range result.Operations {
		switch result.Operations[i].Status {
		case StatusCompleted, StatusFailed, StatusInProgress:
			result.Operations[i].Status = StatusRolledBack
		}
	}
	result.Status = ResultRolledBack
	result.RollbackSucceeded = true
	result.CreatedDirs = nil
	logger.Info("rollback completed", logging.String("backup_path", rec.BackupPath))
	return nil
}

func countStatus(ops []Operation, status OpStatus, kind OpKind) int {
	count := 0
	for _, op := range ops {
		if op.Status == status && op.Kind == kind {
			count++
		}
	}
	return count
}
