package migration

import (
	"fmt"
	"strings"
	"time"

	"reshelve/internal/classify"
)

// Kind names a supported layout transformation.
type Kind string

const (
	FlatToCategorized  Kind = "flat_to_categorized"
	UnyearedToDefault  Kind = "unyeared_to_default"
	MixedToCategorized Kind = "mixed_to_categorized"
	CategorizedToFlat  Kind = "categorized_to_flat"
)

// Kinds lists every migration kind in display order.
func Kinds() []Kind {
	return []Kind{FlatToCategorized, UnyearedToDefault, MixedToCategorized, CategorizedToFlat}
}

// ParseKind accepts a kind name in any case, with dashes or underscores.
func ParseKind(value string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	for _, kind := range Kinds() {
		if string(kind) == normalized {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown migration kind %q (want one of %s)", value, kindList())
}

func kindList() string {
	names := make([]string, 0, len(Kinds()))
	for _, kind := range Kinds() {
		names = append(names, string(kind))
	}
	return strings.Join(names, ", ")
}

// OpKind is what an operation does to the filesystem.
type OpKind string

const (
	OpMove      OpKind = "move"
	OpNoOp      OpKind = "no_op"
	OpCreateDir OpKind = "create_dir"
)

// OpStatus tracks an operation through execution.
type OpStatus string

const (
	StatusPending    OpStatus = "pending"
	StatusInProgress OpStatus = "in_progress"
	StatusCompleted  OpStatus = "completed"
	StatusFailed     OpStatus = "failed"
	StatusRolledBack OpStatus = "rolled_back"
)

// Operation is one planned change. Paths are relative to the artist folder
// and use forward slashes.
type Operation struct {
	AlbumID      string    `json:"album_id"`
	SourcePath   string    `json:"source_path,omitempty"`
	TargetPath   string    `json:"target_path"`
	CategoryUsed string    `json:"category_used,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	Kind         OpKind    `json:"op_kind"`
	Simulated    bool      `json:"simulated,omitempty"`
	Status       OpStatus  `json:"status"`
	Warnings     []string  `json:"warnings,omitempty"`
	Error        string    `json:"error,omitempty"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
}

// Mutates reports whether the operation changes the filesystem.
func (o Operation) Mutates() bool {
	return o.Kind == OpMove || o.Kind == OpCreateDir
}

// Plan is the ordered list of operations for one artist.
type Plan struct {
	ID         string            `json:"id"`
	ArtistID   string            `json:"artist_id"`
	ArtistPath string            `json:"artist_path"`
	Kind       Kind              `json:"migration_kind"`
	Structure  string            `json:"structure"`
	Operations []Operation       `json:"operations"`
	Excluded   []string          `json:"excluded_albums,omitempty"`
	Overrides  map[string]string `json:"category_overrides,omitempty"`
	DryRun     bool              `json:"dry_run"`
	CreatedAt  time.Time         `json:"created_at"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// Moves counts the album moves in the plan.
func (p *Plan) Moves() int {
	if p == nil {
		return 0
	}
	count := 0
	for _, op := range p.Operations {
		if op.Kind == OpMove {
			count++
		}
	}
	return count
}

// Mutating counts operations that change the filesystem.
func (p *Plan) Mutating() int {
	if p == nil {
		return 0
	}
	count := 0
	for _, op := range p.Operations {
		if op.Mutates() {
			count++
		}
	}
	return count
}

// ManifestEntry is one path captured in a backup.
type ManifestEntry struct {
	RelPath  string `json:"rel_path"`
	Size     int64  `json:"size"`
	Dir      bool   `json:"dir,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

// BackupRecord describes a snapshot of an artist folder.
type BackupRecord struct {
	ArtistID   string          `json:"artist_id"`
	ArtistPath string          `json:"artist_path"`
	BackupPath string          `json:"backup_path"`
	Manifest   []ManifestEntry `json:"-"`
	Files      int             `json:"files"`
	Bytes      int64           `json:"bytes"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ResultStatus is the outcome of one migration attempt.
type ResultStatus string

const (
	ResultCompleted  ResultStatus = "completed"
	ResultPartial    ResultStatus = "partial"
	ResultFailed     ResultStatus = "failed"
	ResultRolledBack ResultStatus = "rolled_back"
)

// Result is the immutable record of one migration attempt.
type Result struct {
	MigrationID string         `json:"migration_id"`
	PlanID      string         `json:"plan_id"`
	ArtistID    string         `json:"artist_id"`
	Kind        Kind           `json:"migration_kind"`
	Status      ResultStatus   `json:"status"`
	DryRun      bool           `json:"dry_run"`
	Operations  []Operation    `json:"operations"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Duration    time.Duration  `json:"duration"`
	Backup      *BackupRecord  `json:"backup,omitempty"`
	BackupKept  bool           `json:"backup_kept"`
	Errors      []*Error       `json:"errors,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	CreatedDirs []string       `json:"created_dirs,omitempty"`
	ScoreBefore classify.Score `json:"score_before"`
	ScoreAfter  classify.Score `json:"score_after"`

	AlbumsTotal    int     `json:"albums_total"`
	AlbumsMigrated int     `json:"albums_migrated"`
	AlbumsFailed   int     `json:"albums_failed"`
	AlbumsSkipped  int     `json:"albums_skipped"`
	SuccessRate    float64 `json:"success_rate"`

	RollbackAttempted bool `json:"rollback_attempted"`
	RollbackSucceeded bool `json:"rollback_succeeded"`
	// MixedState marks an artist folder left with some albums moved and no
	// automatic way back. The operator resolves it by hand.
	MixedState      bool `json:"mixed_state"`
	MetadataUpdated int  `json:"metadata_updated"`
}

// ScoreDelta is the change in compliance score.
func (r *Result) ScoreDelta() int {
	return r.ScoreAfter.Score - r.ScoreBefore.Score
}

// BackupPath returns the backup location or an empty string.
func (r *Result) BackupPath() string {
	if r == nil || r.Backup == nil {
		return ""
	}
	return r.Backup.BackupPath
}

// Progress is reported after every mutating operation.
type Progress struct {
	Done      int
	Total     int
	Completed int
	Failed    int
	Current   string
	Elapsed   time.Duration
	Remaining time.Duration
}

// ProgressFunc receives progress updates. It is called from the executing
// goroutine and must not block for long.
type ProgressFunc func(Progress)
