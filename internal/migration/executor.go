package migration

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"reshelve/internal/logging"
)

// Executor applies plan operations one at a time, in plan order.
type Executor struct {
	fs     FS
	logger *slog.Logger
	now    func() time.Time
}

// NewExecutor builds an executor over fsys; nil uses the real filesystem.
func NewExecutor(fsys FS, logger *slog.Logger) *Executor {
	if fsys == nil {
		fsys = OSFS{}
	}
	return &Executor{fs: fsys, logger: logging.NewComponentLogger(logger, "executor"), now: time.Now}
}

type runOptions struct {
	dryRun   bool
	recovery *Recovery
	progress ProgressFunc
}

// execution is the raw outcome of a run before reporting.
type execution struct {
	ops         []Operation
	createdDirs []string
	errors      []*Error
	fatal       *Error
	mutated     bool
	// cancelled is set when the context ended before any operation started.
	cancelled bool
	started   time.Time
	finished  time.Time
}

// Run executes plan. In dry-run mode every operation is marked completed and
// simulated and no mutating call is made.
func (e *Executor) Run(ctx context.Context, plan *Plan, opts runOptions) *execution {
	logger := logging.WithContext(ctx, e.logger)
	exec := &execution{ops: make([]Operation, len(plan.Operations)), started: e.now()}
	copy(exec.ops, plan.Operations)
	for i := range exec.ops {
		exec.ops[i].Status = StatusPending
		exec.ops[i].Error = ""
		exec.ops[i].ErrorKind = ""
		exec.ops[i].Warnings = append([]string(nil), exec.ops[i].Warnings...)
	}
	defer func() { exec.finished = e.now() }()

	if opts.dryRun {
		for i := range exec.ops {
			exec.ops[i].Status = StatusCompleted
			exec.ops[i].Simulated = exec.ops[i].Mutates()
		}
		logger.Info("dry run simulated", logging.Int("operations", len(exec.ops)))
		return exec
	}

	total := plan.Mutating()
	var done, completed, failed int
	var spent time.Duration
	for i := range exec.ops {
		op := &exec.ops[i]
		if err := ctx.Err(); err != nil {
			if !exec.mutated {
				exec.cancelled = true
				return exec
			}
			exec.fatal = interruption(plan.ArtistID, err)
			exec.errors = append(exec.errors, exec.fatal)
			break
		}
		if !op.Mutates() {
			op.Status = StatusCompleted
			continue
		}

		op.Status = StatusInProgress
		exec.mutated = true
		start := e.now()
		err := e.apply(plan.ArtistPath, op, exec)
		spent += e.now().Sub(start)
		done++

		if err == nil {
			op.Status = StatusCompleted
			completed++
			opts.recovery.Succeeded()
			logger.Debug("operation completed",
				logging.String(logging.FieldAlbum, op.AlbumID),
				logging.String("op_kind", string(op.Kind)),
				logging.String("target", op.TargetPath),
			)
			e.report(opts.progress, exec, op, done, total, completed, failed, spent)
			continue
		}

		kind, errno := ClassifyError(err)
		op.Status = StatusFailed
		op.Error = err.Error()
		op.ErrorKind = kind
		failed++
		opErr := &Error{
			Class:    ClassExecution,
			Kind:     kind,
			ArtistID: plan.ArtistID,
			AlbumID:  op.AlbumID,
			Path:     absPath(plan.ArtistPath, op.TargetPath),
			Errno:    errno,
			Err:      err,
		}
		exec.errors = append(exec.errors, opErr)
		decision, reason := opts.recovery.Decide(kind)
		logging.WarnWithContext(logger, "operation failed", "operation_failed",
			logging.String(logging.FieldAlbum, op.AlbumID),
			logging.String("error_kind", string(kind)),
			logging.String("decision", decision.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "album left at its original location"),
		)
		e.report(opts.progress, exec, op, done, total, completed, failed, spent)
		if decision == Abort {
			exec.fatal = &Error{
				Class:    ClassExecution,
				Kind:     kind,
				ArtistID: plan.ArtistID,
				AlbumID:  op.AlbumID,
				Path:     opErr.Path,
				Errno:    errno,
				Message:  reason,
				Err:      err,
			}
			break
		}
	}
	return exec
}

func (e *Executor) report(fn ProgressFunc, exec *execution, op *Operation, done, total, completed, failed int, spent time.Duration) {
	if fn == nil {
		return
	}
	var remaining time.Duration
	if done > 0 && total > done {
		remaining = spent / time.Duration(done) * time.Duration(total-done)
	}
	current := op.AlbumID
	if current == "" {
		current = op.TargetPath
	}
	fn(Progress{
		Done:      done,
		Total:     total,
		Completed: completed,
		Failed:    failed,
		Current:   current,
		Elapsed:   e.now().Sub(exec.started),
		Remaining: remaining,
	})
}

func (e *Executor) apply(root string, op *Operation, exec *execution) error {
	switch op.Kind {
	case OpCreateDir:
		dir := absPath(root, op.TargetPath)
		if info, err := e.fs.Lstat(dir); err == nil {
			if info.IsDir() {
				return nil
			}
			return &fs.PathError{Op: "mkdir", Path: dir, Err: syscall.EEXIST}
		}
		return e.mkdirAll(root, op.TargetPath, exec)
	case OpMove:
		src := absPath(root, op.SourcePath)
		dst := absPath(root, op.TargetPath)
		if _, err := e.fs.Lstat(dst); err == nil {
			return &os.LinkError{Op: "rename", Old: src, New: dst, Err: syscall.EEXIST}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if parent := path.Dir(op.TargetPath); parent != "." {
			if err := e.mkdirAll(root, parent, exec); err != nil {
				return err
			}
		}
		return e.fs.Rename(src, dst)
	default:
		return nil
	}
}

// mkdirAll creates rel and its missing ancestors under root, journaling each
// directory it creates.
func (e *Executor) mkdirAll(root, rel string, exec *execution) error {
	var missing []string
	for dir := path.Clean(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, err := e.fs.Lstat(absPath(root, dir)); err == nil {
			break
		}
		missing = append(missing, dir)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := e.fs.Mkdir(filepath.Join(root, filepath.FromSlash(missing[i])), 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
		exec.createdDirs = append(exec.createdDirs, missing[i])
	}
	return nil
}

// removeEmptyDirs deletes the given directories when they are empty. Used to
// drop category folders vacated by categorized_to_flat.
func (e *Executor) removeEmptyDirs(root string, rels []string) []string {
	var removed []string
	for _, rel := range rels {
		dir := absPath(root, rel)
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := e.fs.Remove(dir); err == nil {
			removed = append(removed, rel)
		}
	}
	return removed
}

func interruption(artistID string, err error) *Error {
	msg := "migration cancelled after mutation began"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "soft timeout exceeded"
	}
	return &Error{Class: ClassExecution, Kind: KindUnknown, ArtistID: artistID, Message: msg, Err: err}
}
