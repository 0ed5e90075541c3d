package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"reshelve/internal/fileutil"
	"reshelve/internal/logging"
)

// Check names one pre-flight check.
type Check string

const (
	CheckPermissions   Check = "permissions"
	CheckDiskSpace     Check = "disk_space"
	CheckLockDetection Check = "lock_detection"
	CheckCollisions    Check = "collisions"
	CheckSources       Check = "sources"
)

// ParseIgnoreChecks validates the names of checks the caller wants downgraded
// to warnings. Only lock detection and collisions may be ignored.
func ParseIgnoreChecks(names []string) ([]Check, error) {
	var checks []Check
	seen := map[Check]struct{}{}
	for _, raw := range names {
		for _, part := range strings.Split(raw, ",") {
			name := Check(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(part)), "-", "_"))
			if name == "" {
				continue
			}
			if name != CheckLockDetection && name != CheckCollisions {
				return nil, fmt.Errorf("check %q cannot be ignored (allowed: %s, %s)", name, CheckLockDetection, CheckCollisions)
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			checks = append(checks, name)
		}
	}
	return checks, nil
}

// Issue is one failed check.
type Issue struct {
	Check   Check  `json:"check"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return fmt.Sprintf("%s: %s", i.Check, i.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", i.Check, i.Message, i.Path)
}

// ValidationResult holds blocking errors and non-blocking warnings.
type ValidationResult struct {
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// OK reports whether execution may proceed.
func (v ValidationResult) OK() bool {
	return len(v.Errors) == 0
}

// Err converts blocking issues into a validation *Error, or nil.
func (v ValidationResult) Err(artistID string) error {
	if v.OK() {
		return nil
	}
	msgs := make([]string, 0, len(v.Errors))
	for _, issue := range v.Errors {
		msgs = append(msgs, issue.String())
	}
	return &Error{
		Class:    ClassValidation,
		ArtistID: artistID,
		Message:  strings.Join(msgs, "; "),
		Issues:   append([]Issue(nil), v.Errors...),
	}
}

// ValidateOptions selects downgraded checks and the backup requirement.
type ValidateOptions struct {
	Ignore []Check `json:"ignore,omitempty"`
	Backup bool    `json:"backup"`
}

func (o ValidateOptions) ignores(check Check) bool {
	for _, c := range o.Ignore {
		if c == check {
			return true
		}
	}
	return false
}

// LockDetector lists files under root that another process holds open or
// locked. Paths are relative to root.
type LockDetector interface {
	OpenFiles(ctx context.Context, root string) ([]string, error)
}

// Validator runs the pre-flight checks against a plan.
type Validator struct {
	access       func(path string, mode uint32) error
	freeSpace    func(path string) (uint64, error)
	treeSize     func(root string) (int64, error)
	locks        LockDetector
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *slog.Logger
}

// NewValidator builds a validator. Lock detection polls every pollInterval
// until no open files remain or pollTimeout passes.
func NewValidator(locks LockDetector, pollInterval, pollTimeout time.Duration, logger *slog.Logger) *Validator {
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	return &Validator{
		access:       unix.Access,
		freeSpace:    statfsFree,
		treeSize:     fileutil.TreeSize,
		locks:        locks,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logging.NewComponentLogger(logger, "validator"),
	}
}

func statfsFree(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// Validate runs every check. Dry runs are validated the same way.
func (v *Validator) Validate(ctx context.Context, plan *Plan, opts ValidateOptions) ValidationResult {
	logger := logging.WithContext(ctx, v.logger)
	var res ValidationResult
	add := func(issue *Issue, overridable bool) {
		if issue == nil {
			return
		}
		if overridable && opts.ignores(issue.Check) {
			res.Warnings = append(res.Warnings, *issue)
			return
		}
		res.Errors = append(res.Errors, *issue)
	}

	for _, issue := range v.checkPermissions(plan) {
		issue := issue
		add(&issue, false)
	}
	add(v.CheckDiskSpace(plan.ArtistPath, opts.Backup), false)
	for _, issue := range checkSources(plan) {
		issue := issue
		add(&issue, false)
	}
	if plan.Mutating() > 0 {
		add(v.checkLocks(ctx, plan.ArtistPath), true)
	}
	for _, issue := range checkCollisions(plan) {
		issue := issue
		add(&issue, true)
	}

	if res.OK() {
		logger.Info("plan validated", logging.Int("warnings", len(res.Warnings)))
	} else {
		logging.WarnWithContext(logger, "plan failed validation", "validation_failed",
			logging.Int("errors", len(res.Errors)),
			logging.Int("warnings", len(res.Warnings)),
			logging.String(logging.FieldImpact, "migration will not run"),
			logging.String(logging.FieldErrorHint, "resolve the reported checks and retry"),
		)
	}
	return res
}

func (v *Validator) checkPermissions(plan *Plan) []Issue {
	var issues []Issue
	checked := map[string]struct{}{}
	require := func(p string, mode uint32, what string) {
		if _, ok := checked[p]; ok {
			return
		}
		checked[p] = struct{}{}
		if err := v.access(p, mode); err != nil {
			issues = append(issues, Issue{Check: CheckPermissions, Message: fmt.Sprintf("%s: %v", what, err), Path: p})
		}
	}

	require(plan.ArtistPath, unix.R_OK|unix.W_OK|unix.X_OK, "artist folder not readable and writable")
	for _, op := range plan.Operations {
		if !op.Mutates() {
			continue
		}
		if op.Kind == OpMove {
			src := absPath(plan.ArtistPath, op.SourcePath)
			require(src, unix.W_OK, "album folder not writable")
			require(filepath.Dir(src), unix.W_OK|unix.X_OK, "source parent not writable")
		}
		parent := nearestExisting(filepath.Dir(absPath(plan.ArtistPath, op.TargetPath)))
		require(parent, unix.W_OK|unix.X_OK, "target parent not writable")
	}
	return issues
}

// CheckDiskSpace requires room for a full copy of the artist folder when a
// backup is requested. Moves within one volume need no extra space.
func (v *Validator) CheckDiskSpace(artistPath string, backup bool) *Issue {
	if !backup {
		return nil
	}
	need, err := v.treeSize(artistPath)
	if err != nil {
		return &Issue{Check: CheckDiskSpace, Message: fmt.Sprintf("measure artist folder: %v", err), Path: artistPath}
	}
	volume := filepath.Dir(artistPath)
	free, err := v.freeSpace(volume)
	if err != nil {
		return &Issue{Check: CheckDiskSpace, Message: fmt.Sprintf("read free space: %v", err), Path: volume}
	}
	if free < uint64(need) {
		return &Issue{
			Check:   CheckDiskSpace,
			Message: fmt.Sprintf("backup needs %s but only %s is free", humanize.IBytes(uint64(need)), humanize.IBytes(free)),
			Path:    volume,
		}
	}
	return nil
}

func (v *Validator) checkLocks(ctx context.Context, root string) *Issue {
	if v.locks == nil {
		return nil
	}
	deadline := time.Now().Add(v.pollTimeout)
	for {
		open, err := v.locks.OpenFiles(ctx, root)
		if err != nil {
			logging.WarnWithContext(v.logger, "lock detection unavailable", "lock_detection_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "migration blocked unless lock_detection is ignored"),
				logging.String(logging.FieldErrorHint, "check that the artist folder can be walked"),
			)
			return &Issue{Check: CheckLockDetection, Message: fmt.Sprintf("lock detection failed: %v", err), Path: root}
		}
		if len(open) == 0 {
			return nil
		}
		if !time.Now().Before(deadline) || ctx.Err() != nil {
			return &Issue{Check: CheckLockDetection, Message: describeOpenFiles(open), Path: root}
		}
		select {
		case <-time.After(v.pollInterval):
		case <-ctx.Done():
		}
	}
}

func describeOpenFiles(open []string) string {
	const shown = 3
	list := open
	if len(list) > shown {
		list = list[:shown]
	}
	msg := fmt.Sprintf("%d file(s) open or locked by another process: %s", len(open), strings.Join(list, ", "))
	if len(open) > shown {
		msg += ", ..."
	}
	return msg
}

func checkSources(plan *Plan) []Issue {
	var issues []Issue
	for _, op := range plan.Operations {
		if op.Kind != OpMove {
			continue
		}
		src := absPath(plan.ArtistPath, op.SourcePath)
		info, err := os.Lstat(src)
		if err != nil || !info.IsDir() {
			issues = append(issues, Issue{Check: CheckSources, Message: "album folder no longer exists; rebuild the plan", Path: src})
		}
	}
	return issues
}

// checkCollisions reports targets that already exist on disk. A target that
// an earlier move vacates is not a collision.
func checkCollisions(plan *Plan) []Issue {
	var issues []Issue
	vacated := map[string]int{}
	for i, op := range plan.Operations {
		if op.Kind == OpMove {
			vacated[collisionKey(op.SourcePath)] = i
		}
	}
	for i, op := range plan.Operations {
		target := absPath(plan.ArtistPath, op.TargetPath)
		info, err := os.Lstat(target)
		if err != nil {
			continue
		}
		switch op.Kind {
		case OpCreateDir:
			if !info.IsDir() {
				issues = append(issues, Issue{Check: CheckCollisions, Message: "a file occupies the category folder path", Path: target})
			}
		case OpMove:
			if j, ok := vacated[collisionKey(op.TargetPath)]; ok && j < i {
				continue
			}
			issues = append(issues, Issue{
				Check:   CheckCollisions,
				Message: fmt.Sprintf("target %q already exists and is not part of the plan", op.TargetPath),
				Path:    target,
			})
		}
	}
	return issues
}

func absPath(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(path.Clean(rel)))
}

func nearestExisting(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// procLockDetector finds open files through /proc and advisory locks through
// a non-blocking flock probe.
type procLockDetector struct {
	procRoot string
	self     int
}

// NewLockDetector returns the default detector for this host.
func NewLockDetector() LockDetector {
	return &procLockDetector{procRoot: "/proc", self: os.Getpid()}
}

func (d *procLockDetector) OpenFiles(ctx context.Context, root string) ([]string, error) {
	found := map[string]struct{}{}
	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		if locked(p) {
			found[p] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.scanProc(root, found)

	out := make([]string, 0, len(found))
	for p := range found {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			rel = p
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out, nil
}

// locked probes for an advisory lock held elsewhere. The file is opened
// read-only and never created.
func locked(p string) bool {
	f, err := os.Open(p)
	if err != nil {
		return false
	}
	defer f.Close()
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return errors.Is(err, unix.EWOULDBLOCK)
	}
	_ = unix.Flock(fd, unix.LOCK_UN)
	return false
}

func (d *procLockDetector) scanProc(root string, found map[string]struct{}) {
	entries, err := os.ReadDir(d.procRoot)
	if err != nil {
		return
	}
	prefix := root + string(os.PathSeparator)
	for _, entry := range entries {
		pid := entry.Name()
		if !entry.IsDir() || !isDigits(pid) || pid == fmt.Sprint(d.self) {
			continue
		}
		fdDir := filepath.Join(d.procRoot, pid, "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if strings.HasPrefix(target, prefix) {
				if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() {
					found[target] = struct{}{}
				}
			}
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
