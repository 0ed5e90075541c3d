package report

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"reshelve/internal/classify"
	"reshelve/internal/history"
	"reshelve/internal/migration"
)

// Options controls rendering.
type Options struct {
	Color bool
	// Now anchors relative times; zero means time.Now.
	Now time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) line(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format+"\n", args...)
}

func (w *writer) lines(lines ...string) {
	for _, l := range lines {
		w.line("%s", l)
	}
}

// WritePlan renders a plan as an operations table.
func WritePlan(out io.Writer, plan *migration.Plan, opts Options) error {
	w := &writer{w: out}
	w.lines(renderHeader(fmt.Sprintf("Plan %s: %s", plan.ArtistID, plan.Kind), opts.Color)...)
	w.line("%s", renderField("Structure", plan.Structure))
	w.line("%s", renderField("Operations", fmt.Sprintf("%d (%d moves, %d unchanged)",
		len(plan.Operations), plan.Moves(), len(plan.Operations)-plan.Mutating())))
	if len(plan.Excluded) > 0 {
		w.line("%s", renderField("Excluded", strings.Join(plan.Excluded, ", ")))
	}
	for _, warning := range plan.Warnings {
		w.line("%s", renderLine("Plan", statusWarn, warning, opts.Color))
	}
	w.line("")

	rows := make([][]string, 0, len(plan.Operations))
	for _, op := range plan.Operations {
		rows = append(rows, []string{
			string(op.Kind),
			op.SourcePath,
			op.TargetPath,
			op.CategoryUsed,
			confidence(op),
			strings.Join(op.Warnings, "; "),
		})
	}
	if len(rows) > 0 {
		w.line("%s", renderTable(
			[]string{"Op", "Source", "Target", "Category", "Conf", "Warnings"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		))
	}
	return w.err
}

func confidence(op migration.Operation) string {
	if op.Kind != migration.OpMove || op.Confidence == 0 {
		return ""
	}
	return strconv.FormatFloat(op.Confidence, 'f', 2, 64)
}

// WriteResult renders the outcome of one execution.
func WriteResult(out io.Writer, res *migration.Result, opts Options) error {
	w := &writer{w: out}
	title := fmt.Sprintf("Migration %s: %s", res.ArtistID, res.Kind)
	if res.DryRun {
		title += " (dry run)"
	}
	w.lines(renderHeader(title, opts.Color)...)
	w.line("%s", renderLine("Status", resultKind(res.Status), string(res.Status), opts.Color))
	w.line("%s", renderField("Migration ID", res.MigrationID))
	w.line("%s", renderField("Albums", fmt.Sprintf("%d total, %d migrated, %d failed, %d skipped",
		res.AlbumsTotal, res.AlbumsMigrated, res.AlbumsFailed, res.AlbumsSkipped)))
	w.line("%s", renderField("Success rate", percent(res.SuccessRate)))
	w.line("%s", renderField("Duration", res.Duration.Round(time.Millisecond).String()))
	w.line("%s", renderField("Compliance", fmt.Sprintf("%s %d -> %s %d (%+d)",
		res.ScoreBefore.StructureType, res.ScoreBefore.Score,
		res.ScoreAfter.StructureType, res.ScoreAfter.Score, res.ScoreDelta())))

	if res.Backup != nil {
		state := "discarded"
		if res.BackupKept {
			state = "kept at " + res.Backup.BackupPath
		}
		w.line("%s", renderField("Backup", fmt.Sprintf("%d files, %s, %s",
			res.Backup.Files, humanize.IBytes(uint64(res.Backup.Bytes)), state)))
	}
	if res.RollbackAttempted {
		kind, msg := statusOK, "restored from backup"
		if !res.RollbackSucceeded {
			kind, msg = statusError, "restore failed; recover by hand from the backup"
		}
		w.line("%s", renderLine("Rollback", kind, msg, opts.Color))
	}
	if res.MixedState {
		w.line("%s", renderLine("Folder state", statusError, "mixed; some albums moved and no backup to restore", opts.Color))
	}
	for _, e := range res.Errors {
		w.line("%s", renderLine("Error", statusError, e.Error(), opts.Color))
	}
	for _, warning := range res.Warnings {
		w.line("%s", renderLine("Warning", statusWarn, warning, opts.Color))
	}
	w.line("")

	var rows [][]string
	for _, op := range res.Operations {
		if op.Kind == migration.OpNoOp {
			continue
		}
		status := string(op.Status)
		if op.Simulated {
			status += " (simulated)"
		}
		detail := string(op.ErrorKind)
		if op.Error != "" {
			detail = fmt.Sprintf("%s: %s", op.ErrorKind, op.Error)
		}
		rows = append(rows, []string{string(op.Kind), op.SourcePath, op.TargetPath, status, detail})
	}
	if len(rows) > 0 {
		w.line("%s", renderTable([]string{"Op", "Source", "Target", "Status", "Error"}, rows, nil))
	}
	return w.err
}

// WriteBatch renders a MigrateAll summary, one row per artist.
func WriteBatch(out io.Writer, results []migration.BatchResult, opts Options) error {
	w := &writer{w: out}
	w.lines(renderHeader(fmt.Sprintf("Batch migration: %d artists", len(results)), opts.Color)...)
	rows := make([][]string, 0, len(results))
	var failed int
	for _, r := range results {
		switch {
		case r.Skipped:
			rows = append(rows, []string{r.ArtistID, "skipped", "", "", ""})
		case r.Result == nil:
			failed++
			rows = append(rows, []string{r.ArtistID, "error", "", "", r.Error})
		default:
			if r.Result.Status != migration.ResultCompleted {
				failed++
			}
			rows = append(rows, []string{
				r.ArtistID,
				string(r.Result.Status),
				strconv.Itoa(r.Result.AlbumsMigrated),
				strconv.Itoa(r.Result.AlbumsFailed),
				r.Error,
			})
		}
	}
	w.line("%s", renderTable([]string{"Artist", "Status", "Migrated", "Failed", "Error"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
	if failed > 0 {
		w.line("%s", renderLine("Batch", statusWarn, fmt.Sprintf("%d artist(s) need attention", failed), opts.Color))
	}
	return w.err
}

// WriteHistory renders history entries, newest first as given.
func WriteHistory(out io.Writer, entries []history.Entry, opts Options) error {
	w := &writer{w: out}
	if len(entries) == 0 {
		w.line("No migrations recorded")
		return w.err
	}
	now := opts.now()
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := e.Status
		if e.DryRun {
			status += " (dry run)"
		}
		rows = append(rows, []string{
			humanize.RelTime(e.Timestamp, now, "ago", "from now"),
			e.ArtistID,
			e.Kind,
			status,
			fmt.Sprintf("%d/%d", e.AlbumsMigrated, e.AlbumsTotal),
			fmt.Sprintf("%d -> %d", e.ScoreBefore, e.ScoreAfter),
			e.Duration.Round(time.Millisecond).String(),
			shortID(e.MigrationID),
		})
	}
	w.line("%s", renderTable(
		[]string{"When", "Artist", "Kind", "Status", "Migrated", "Score", "Duration", "ID"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	return w.err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// WriteStatistics renders aggregate history figures.
func WriteStatistics(out io.Writer, stats history.Statistics, opts Options) error {
	w := &writer{w: out}
	w.lines(renderHeader("Migration statistics", opts.Color)...)
	w.line("%s", renderField("Migrations", humanize.Comma(int64(stats.TotalMigrations))))
	w.line("%s", renderField("Dry runs", humanize.Comma(int64(stats.DryRuns))))
	w.line("%s", renderField("Artists", humanize.Comma(int64(stats.Artists))))
	w.line("%s", renderField("Albums migrated", humanize.Comma(int64(stats.AlbumsMigrated))))
	w.line("%s", renderField("Albums failed", humanize.Comma(int64(stats.AlbumsFailed))))
	w.line("%s", renderField("Success rate", percent(stats.OverallSuccessRate)))
	w.line("%s", renderField("Average duration", stats.AverageDuration.Round(time.Millisecond).String()))
	if !stats.LastMigration.IsZero() {
		w.line("%s", renderField("Last migration", humanize.RelTime(stats.LastMigration, opts.now(), "ago", "from now")))
	}
	if len(stats.ByStatus) > 0 {
		w.line("")
		w.line("%s", renderTable([]string{"Status", "Count"}, countRows(stats.ByStatus), []columnAlignment{alignLeft, alignRight}))
	}
	if len(stats.ByKind) > 0 {
		w.line("")
		w.line("%s", renderTable([]string{"Kind", "Count"}, countRows(stats.ByKind), []columnAlignment{alignLeft, alignRight}))
	}
	return w.err
}

func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(counts[k])})
	}
	return rows
}

// WriteScore renders an artist's compliance.
func WriteScore(out io.Writer, artistID string, score classify.Score, opts Options) error {
	w := &writer{w: out}
	w.lines(renderHeader("Compliance: "+artistID, opts.Color)...)
	kind := statusOK
	switch {
	case score.Score < 50:
		kind = statusError
	case score.Score < 100:
		kind = statusWarn
	}
	w.line("%s", renderLine("Score", kind, fmt.Sprintf("%d/100", score.Score), opts.Color))
	w.line("%s", renderField("Structure", score.StructureType))
	w.line("%s", renderField("Albums", strconv.Itoa(score.Albums)))
	for _, issue := range score.Issues {
		w.line("%s", renderLine("Issue", statusWarn, issue, opts.Color))
	}
	return w.err
}

// ProgressLine is the one-line progress form written while executing.
func ProgressLine(p migration.Progress) string {
	line := fmt.Sprintf("[%d/%d] %s", p.Done, p.Total, p.Current)
	if p.Failed > 0 {
		line += fmt.Sprintf(" (%d failed)", p.Failed)
	}
	if p.Remaining > 0 {
		line += fmt.Sprintf(", about %s left", p.Remaining.Round(time.Second))
	}
	return line
}

func percent(rate float64) string {
	return strconv.FormatFloat(rate*100, 'f', 1, 64) + "%"
}

// WriteBackups renders retained backups, oldest first as given.
func WriteBackups(out io.Writer, backups []migration.BackupInfo, opts Options) error {
	w := &writer{w: out}
	if len(backups) == 0 {
		w.line("No backups retained")
		return w.err
	}
	now := opts.now()
	var total int64
	rows := make([][]string, 0, len(backups))
	for _, b := range backups {
		total += b.Bytes
		rows = append(rows, []string{
			b.ArtistID,
			filepath.Base(b.Path),
			humanize.RelTime(b.CreatedAt, now, "ago", "from now"),
			strconv.Itoa(b.Files),
			humanize.IBytes(uint64(b.Bytes)),
		})
	}
	w.line("%s", renderTable(
		[]string{"Artist", "Backup", "Created", "Files", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
	w.line("%s", renderField("Total", humanize.IBytes(uint64(total))))
	return w.err
}
