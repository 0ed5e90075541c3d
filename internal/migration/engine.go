package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"reshelve/internal/classify"
	"reshelve/internal/config"
	"reshelve/internal/history"
	"reshelve/internal/lease"
	"reshelve/internal/library"
	"reshelve/internal/logging"
	"reshelve/internal/metadata"
)

// Dependencies are the collaborators an Engine runs against. Nil fields get
// the production implementation.
type Dependencies struct {
	Lister     AlbumLister
	Classifier Classifier
	Metadata   MetadataStore
	History    HistoryStore
	Leases     *lease.Manager
	Locks      LockDetector
	FS         FS
}

// Engine exposes planning, validation, execution and history queries for a
// collection.
type Engine struct {
	cfg        *config.Config
	cats       *library.Categories
	classifier Classifier
	history    HistoryStore
	leases     *lease.Manager
	planner    *Planner
	validator  *Validator
	backups    *BackupManager
	executor   *Executor
	reporter   *Reporter
	logger     *slog.Logger
}

// New builds an engine with the production collaborators. The metadata store
// lives under the state directory; store may be nil to skip history.
func New(cfg *config.Config, store HistoryStore, logger *slog.Logger) (*Engine, error) {
	meta, err := metadata.NewStore(cfg.MetadataDir())
	if err != nil {
		return nil, err
	}
	return NewWithDependencies(cfg, Dependencies{Metadata: meta, History: store}, logger), nil
}

// NewWithDependencies allows injecting collaborators (used in tests).
func NewWithDependencies(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Engine {
	logger = logging.NewComponentLogger(logger, "migration")
	cats := library.NewCategories(cfg.Classification.Categories, cfg.Classification.DefaultCategory)
	if deps.Lister == nil {
		deps.Lister = library.NewLister(cats)
	}
	if deps.Classifier == nil {
		deps.Classifier = classify.New(cats, cfg.Classification.PreferredLayout)
	}
	if deps.Leases == nil {
		deps.Leases = lease.NewManager(cfg.LockDir())
	}
	if deps.Locks == nil {
		deps.Locks = NewLockDetector()
	}
	if deps.FS == nil {
		deps.FS = OSFS{}
	}

	backups := NewBackupManager(cfg.Migration.BackupChecksums, logger)
	return &Engine{
		cfg:        cfg,
		cats:       cats,
		classifier: deps.Classifier,
		history:    deps.History,
		leases:     deps.Leases,
		planner: NewPlanner(deps.Lister, deps.Classifier, deps.Metadata, cats, PlannerOptions{
			MinConfidence: cfg.Classification.MinConfidence,
			ExplicitDirs:  cfg.Migration.ExplicitDirs,
			Workers:       cfg.Migration.Workers,
		}, logger),
		validator: NewValidator(deps.Locks, cfg.LockPollInterval(), cfg.LockPollTimeout(), logger),
		backups:   backups,
		executor:  NewExecutor(deps.FS, logger),
		reporter:  NewReporter(deps.Classifier, deps.Metadata, deps.History, logger),
		logger:    logger,
	}
}

// ExecuteOptions controls one execution.
type ExecuteOptions struct {
	DryRun   bool         `json:"dry_run"`
	Backup   bool         `json:"backup"`
	Ignore   []Check      `json:"ignore,omitempty"`
	Progress ProgressFunc `json:"-"`
}

// DefaultExecuteOptions applies the configured backup policy.
func (e *Engine) DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{Backup: e.cfg.Migration.Backup}
}

// Categories is the configured category set.
func (e *Engine) Categories() *library.Categories {
	return e.cats
}

func (e *Engine) artistPath(artistID string) (string, error) {
	id := strings.TrimSpace(artistID)
	switch {
	case id == "":
		return "", &Error{Class: ClassPlanning, Message: "artist id is required"}
	case id != filepath.Base(id) || id == "." || id == ".." || strings.HasPrefix(id, "."):
		return "", &Error{Class: ClassPlanning, ArtistID: artistID, Message: "artist id must name a folder directly under the library"}
	case library.IsBackupDir(id):
		return "", &Error{Class: ClassPlanning, ArtistID: artistID, Message: "backup folders cannot be migrated"}
	}
	return e.cfg.ArtistPath(id), nil
}

// PlanMigration builds the plan for one artist without touching the disk.
func (e *Engine) PlanMigration(ctx context.Context, req PlanRequest) (*Plan, error) {
	kind, err := ParseKind(string(req.Kind))
	if err != nil {
		return nil, &Error{Class: ClassPlanning, ArtistID: req.ArtistID, Message: err.Error()}
	}
	req.Kind = kind
	artistPath, err := e.artistPath(req.ArtistID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithStage(logging.WithArtist(ctx, req.ArtistID), "plan")
	return e.planner.Build(ctx, artistPath, req)
}

// bindPlan copies plan and pins its artist path to this collection.
func (e *Engine) bindPlan(plan *Plan) (*Plan, error) {
	if plan == nil {
		return nil, &Error{Class: ClassPlanning, Message: "plan is required"}
	}
	artistPath, err := e.artistPath(plan.ArtistID)
	if err != nil {
		return nil, err
	}
	if plan.ArtistPath != "" && filepath.Clean(plan.ArtistPath) != artistPath {
		return nil, &Error{Class: ClassPlanning, ArtistID: plan.ArtistID, Path: plan.ArtistPath, Message: "plan does not belong to this library"}
	}
	for _, op := range plan.Operations {
		if !safeRel(op.TargetPath) || (op.Kind == OpMove && !safeRel(op.SourcePath)) {
			return nil, &Error{Class: ClassPlanning, ArtistID: plan.ArtistID, AlbumID: op.AlbumID, Message: "operation path escapes the artist folder"}
		}
	}
	bound := *plan
	bound.ArtistPath = artistPath
	return &bound, nil
}

func safeRel(rel string) bool {
	if rel == "" || path.IsAbs(rel) {
		return false
	}
	clean := path.Clean(rel)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}

// Validate runs the pre-flight checks for plan.
func (e *Engine) Validate(ctx context.Context, plan *Plan, opts ValidateOptions) (ValidationResult, error) {
	bound, err := e.bindPlan(plan)
	if err != nil {
		return ValidationResult{}, err
	}
	ctx = logging.WithStage(logging.WithArtist(ctx, bound.ArtistID), "validate")
	return e.validator.Validate(ctx, bound, opts), nil
}

// Migrate plans and executes in one call.
func (e *Engine) Migrate(ctx context.Context, req PlanRequest, opts ExecuteOptions) (*Result, error) {
	plan, err := e.PlanMigration(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan, opts)
}

// Execute validates and runs plan while holding the artist's lease. A second
// execution for the same artist fails with ErrMigrationInProgress.
//
// Validation failures and cancellation before the first mutation return no
// result. Once execution starts a result is always returned, together with
// an error when the attempt aborted or its rollback failed.
func (e *Engine) Execute(ctx context.Context, plan *Plan, opts ExecuteOptions) (*Result, error) {
	bound, err := e.bindPlan(plan)
	if err != nil {
		return nil, err
	}
	bound.DryRun = opts.DryRun
	migrationID := uuid.NewString()
	ctx = logging.WithArtist(logging.WithMigrationID(ctx, migrationID), bound.ArtistID)

	held, err := e.leases.Acquire(bound.ArtistID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if relErr := held.Release(); relErr != nil {
			e.logger.Warn("lease release failed", logging.String(logging.FieldArtist, bound.ArtistID), logging.Error(relErr))
		}
	}()

	if timeout := e.cfg.MigrationTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return e.run(ctx, migrationID, bound, opts)
}

func (e *Engine) run(ctx context.Context, migrationID string, plan *Plan, opts ExecuteOptions) (*Result, error) {
	logger := logging.WithContext(ctx, e.logger)
	started := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	validation := e.validator.Validate(logging.WithStage(ctx, "validate"), plan, ValidateOptions{Ignore: opts.Ignore, Backup: opts.Backup})
	if err := validation.Err(plan.ArtistID); err != nil {
		// A walk cut short by cancellation reads as a lock detection failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	scoreBefore := e.reporter.Score(plan.ArtistPath)

	if opts.DryRun {
		exec := e.executor.Run(ctx, plan, runOptions{dryRun: true})
		res := e.reporter.BuildResult(migrationID, plan, exec, true)
		res.ScoreBefore = scoreBefore
		res.ScoreAfter = scoreBefore
		res.Warnings = append(res.Warnings, issueStrings(validation.Warnings)...)
		e.finish(ctx, res, started)
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var backup *BackupRecord
	if opts.Backup && plan.Mutating() > 0 {
		bctx := logging.WithStage(ctx, "backup")
		if issue := e.validator.CheckDiskSpace(plan.ArtistPath, true); issue != nil {
			return nil, ValidationResult{Errors: []Issue{*issue}}.Err(plan.ArtistID)
		}
		rec, err := e.backups.Create(bctx, plan.ArtistID, plan.ArtistPath)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			kind, errno := ClassifyError(err)
			return nil, &Error{
				Class:    ClassExecution,
				Kind:     kind,
				ArtistID: plan.ArtistID,
				Path:     plan.ArtistPath,
				Errno:    errno,
				Message:  "backup failed; nothing was changed",
				Err:      err,
			}
		}
		backup = rec
	}

	recovery := NewRecovery(e.cfg.Migration.ConsecutiveFailureLimit, e.backups, e.logger)
	exec := e.executor.Run(logging.WithStage(ctx, "execute"), plan, runOptions{recovery: recovery, progress: opts.Progress})
	if exec.cancelled {
		if backup != nil {
			_ = os.RemoveAll(backup.BackupPath)
		}
		logger.Info("migration cancelled before any change; plan discarded")
		return nil, ctx.Err()
	}

	res := e.reporter.BuildResult(migrationID, plan, exec, false)
	res.ScoreBefore = scoreBefore
	res.Backup = backup
	res.BackupKept = backup != nil
	res.Warnings = append(res.Warnings, issueStrings(validation.Warnings)...)

	var fatal error
	if exec.fatal != nil {
		fatal = exec.fatal
		if rbErr := recovery.Rollback(logging.WithStage(ctx, "recover"), backup, res); rbErr != nil {
			var recErr *Error
			if errors.As(rbErr, &recErr) {
				res.Errors = append(res.Errors, recErr)
			}
			fatal = rbErr
		}
		tally(res)
	}

	if res.Status != ResultRolledBack && plan.Kind == CategorizedToFlat {
		if removed := e.executor.removeEmptyDirs(plan.ArtistPath, vacatedDirs(res.Operations)); len(removed) > 0 {
			logger.Info("removed empty category folders", logging.Any("folders", removed))
		}
	}
	res.ScoreAfter = e.reporter.Score(plan.ArtistPath)

	if err := e.reporter.PatchMetadata(ctx, res); err != nil {
		res.Warnings = append(res.Warnings, err.Error())
		logging.WarnWithContext(logger, "metadata not updated", "metadata_patch_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "metadata folder paths are stale"),
			logging.String(logging.FieldErrorHint, "rerun the migration or fix the metadata document"),
		)
	}

	if backup != nil && res.Status == ResultCompleted && !e.cfg.Migration.KeepBackup {
		if verifyMoves(plan.ArtistPath, res.Operations) {
			if err := e.backups.Discard(backup.BackupPath); err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("backup kept: %v", err))
			} else {
				res.BackupKept = false
			}
		} else {
			res.Warnings = append(res.Warnings, "post-run verification failed; backup kept")
		}
	}

	e.finish(ctx, res, started)
	if fatal != nil {
		logging.ErrorWithContext(logger, "migration aborted", "migration_aborted",
			logging.String("status", string(res.Status)),
			logging.Bool("rollback_attempted", res.RollbackAttempted),
			logging.Bool("rollback_succeeded", res.RollbackSucceeded),
			logging.String("backup_path", res.BackupPath()),
			logging.Error(fatal),
		)
	}
	return res, fatal
}

// finish stamps timing and appends the history entry. History is written
// even when the migration context has expired.
func (e *Engine) finish(ctx context.Context, res *Result, started time.Time) {
	res.StartedAt = started
	res.FinishedAt = time.Now()
	res.Duration = res.FinishedAt.Sub(started)
	hctx := logging.WithStage(context.WithoutCancel(ctx), "report")
	if _, err := e.reporter.AppendHistory(hctx, res); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("history not recorded: %v", err))
		logging.WarnWithContext(logging.WithContext(hctx, e.logger), "history append failed", "history_append_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "attempt missing from migration history"),
		)
	}
}

func issueStrings(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.String())
	}
	return out
}

// vacatedDirs lists the parents of completed move sources.
func vacatedDirs(ops []Operation) []string {
	seen := map[string]struct{}{}
	var dirs []string
	for _, op := range ops {
		if op.Kind != OpMove || op.Status != StatusCompleted {
			continue
		}
		dir := path.Dir(op.SourcePath)
		if dir == "." {
			continue
		}
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	return dirs
}

// verifyMoves checks that every completed move left its source empty and
// its target in place.
func verifyMoves(root string, ops []Operation) bool {
	for _, op := range ops {
		if op.Kind != OpMove || op.Status != StatusCompleted {
			continue
		}
		if _, err := os.Lstat(absPath(root, op.TargetPath)); err != nil {
			return false
		}
		if _, err := os.Lstat(absPath(root, op.SourcePath)); err == nil {
			return false
		}
	}
	return true
}

// BatchResult is the outcome for one artist of MigrateAll.
type BatchResult struct {
	ArtistID string  `json:"artist_id"`
	Skipped  bool    `json:"skipped,omitempty"`
	Result   *Result `json:"result,omitempty"`
	Err      error   `json:"-"`
	Error    string  `json:"error,omitempty"`
}

// MigrateAll applies kind to every artist of the collection through a
// bounded worker pool. A failing artist does not stop the others; artists
// with nothing to move are skipped without a history entry.
func (e *Engine) MigrateAll(ctx context.Context, kind Kind, opts ExecuteOptions) ([]BatchResult, error) {
	artists, err := library.ListArtists(e.cfg.Paths.LibraryDir)
	if err != nil {
		return nil, &Error{Class: ClassPlanning, Path: e.cfg.Paths.LibraryDir, Message: "library cannot be enumerated", Err: err}
	}
	workers := e.cfg.Migration.Workers
	if workers <= 0 {
		workers = 1
	}
	opts.Progress = nil

	results := make([]BatchResult, len(artists))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, artist := range artists {
		i, artist := i, artist
		g.Go(func() error {
			out := BatchResult{ArtistID: artist}
			defer func() {
				if out.Err != nil {
					out.Error = out.Err.Error()
				}
				results[i] = out
			}()
			if out.Err = ctx.Err(); out.Err != nil {
				return nil
			}
			plan, err := e.PlanMigration(ctx, PlanRequest{ArtistID: artist, Kind: kind})
			if err != nil {
				out.Err = err
				return nil
			}
			if plan.Mutating() == 0 {
				out.Skipped = true
				return nil
			}
			out.Result, out.Err = e.Execute(ctx, plan, opts)
			return nil
		})
	}
	_ = g.Wait()
	e.logger.Info("batch migration finished",
		logging.String("migration_kind", string(kind)),
		logging.Int("artists", len(artists)),
	)
	return results, nil
}

// Inspect scores the current layout of an artist folder.
func (e *Engine) Inspect(artistID string) (classify.Score, error) {
	artistPath, err := e.artistPath(artistID)
	if err != nil {
		return classify.Score{}, err
	}
	return e.classifier.ComplianceScore(artistPath)
}

// GetHistory returns history entries, newest first.
func (e *Engine) GetHistory(ctx context.Context, artistID string, limit int) ([]history.Entry, error) {
	if e.history == nil {
		return nil, errors.New("history store not configured")
	}
	return e.history.Query(ctx, artistID, limit)
}

// GetStatistics aggregates the history log.
func (e *Engine) GetStatistics(ctx context.Context) (history.Statistics, error) {
	if e.history == nil {
		return history.Statistics{}, errors.New("history store not configured")
	}
	return e.history.Statistics(ctx)
}

// DiscardBackup deletes a retained backup folder of this collection.
func (e *Engine) DiscardBackup(backupPath string) error {
	clean := filepath.Clean(backupPath)
	if filepath.Dir(clean) != filepath.Clean(e.cfg.Paths.LibraryDir) {
		return fmt.Errorf("refusing to delete %s: not inside the library", backupPath)
	}
	return e.backups.Discard(clean)
}
