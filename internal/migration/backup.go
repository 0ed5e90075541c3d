package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"reshelve/internal/fileutil"
	"reshelve/internal/library"
	"reshelve/internal/logging"
)

// ManifestName is the manifest file written inside every backup folder.
const ManifestName = ".reshelve-manifest.json"

type manifestDoc struct {
	ArtistID   string          `json:"artist_id"`
	ArtistPath string          `json:"artist_path"`
	CreatedAt  time.Time       `json:"created_at"`
	Entries    []ManifestEntry `json:"entries"`
}

// BackupManager snapshots artist folders into sibling backup folders and
// restores them.
type BackupManager struct {
	checksums bool
	now       func() time.Time
	logger    *slog.Logger
}

// NewBackupManager builds a manager. With checksums set every copied file is
// hashed and the digest recorded in the manifest.
func NewBackupManager(checksums bool, logger *slog.Logger) *BackupManager {
	return &BackupManager{
		checksums: checksums,
		now:       time.Now,
		logger:    logging.NewComponentLogger(logger, "backup"),
	}
}

// Create copies artistPath to `<artist>_backup_<timestamp>` beside it and
// verifies the copy. A failed backup leaves nothing behind.
func (b *BackupManager) Create(ctx context.Context, artistID, artistPath string) (*BackupRecord, error) {
	logger := logging.WithContext(ctx, b.logger)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	created := b.now().UTC()
	dest, err := backupDestination(artistPath, created)
	if err != nil {
		return nil, err
	}

	logger.Info("creating backup", logging.String("backup_path", dest))
	sums := map[string]string{}
	entries, err := fileutil.CopyTree(artistPath, dest, b.checksums)
	if err != nil {
		_ = os.RemoveAll(dest)
		return nil, fmt.Errorf("copy artist folder: %w", err)
	}
	for _, entry := range entries {
		sums[entry.RelPath] = entry.Checksum
	}
	if err := ctx.Err(); err != nil {
		_ = os.RemoveAll(dest)
		return nil, err
	}

	snapshot, err := library.Snapshot(dest)
	if err != nil {
		_ = os.RemoveAll(dest)
		return nil, fmt.Errorf("list backup: %w", err)
	}
	rec := &BackupRecord{
		ArtistID:   artistID,
		ArtistPath: artistPath,
		BackupPath: dest,
		CreatedAt:  created,
	}
	for _, entry := range snapshot {
		rec.Manifest = append(rec.Manifest, ManifestEntry{
			RelPath:  entry.RelPath,
			Size:     entry.Size,
			Dir:      entry.Dir,
			Checksum: sums[entry.RelPath],
		})
		if !entry.Dir {
			rec.Files++
			rec.Bytes += entry.Size
		}
	}

	current, err := library.Snapshot(artistPath)
	if err != nil {
		_ = os.RemoveAll(dest)
		return nil, fmt.Errorf("list artist folder: %w", err)
	}
	if diff := compareManifest(rec.Manifest, current); diff != "" {
		_ = os.RemoveAll(dest)
		return nil, fmt.Errorf("backup verification failed: %s", diff)
	}
	if err := writeManifest(rec); err != nil {
		_ = os.RemoveAll(dest)
		return nil, err
	}

	logger.Info("backup created",
		logging.String("backup_path", dest),
		logging.Int("files", rec.Files),
		logging.Int64("bytes", rec.Bytes),
	)
	return rec, nil
}

func backupDestination(artistPath string, ts time.Time) (string, error) {
	base := filepath.Clean(artistPath) + "_backup_" + ts.Format(library.BackupTimestampLayout)
	candidate := base
	for n := 2; ; n++ {
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("check backup path: %w", err)
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func writeManifest(rec *BackupRecord) error {
	doc := manifestDoc{
		ArtistID:   rec.ArtistID,
		ArtistPath: rec.ArtistPath,
		CreatedAt:  rec.CreatedAt,
		Entries:    rec.Manifest,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(rec.BackupPath, ManifestName), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadBackup reads the backup record stored at backupPath.
func LoadBackup(backupPath string) (*BackupRecord, error) {
	data, err := os.ReadFile(filepath.Join(backupPath, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	rec := &BackupRecord{
		ArtistID:   doc.ArtistID,
		ArtistPath: doc.ArtistPath,
		BackupPath: backupPath,
		Manifest:   doc.Entries,
		CreatedAt:  doc.CreatedAt,
	}
	for _, entry := range doc.Entries {
		if !entry.Dir {
			rec.Files++
			rec.Bytes += entry.Size
		}
	}
	return rec, nil
}

// Restore returns the artist folder to the backed-up state: paths created
// since the backup are removed, missing or changed files are copied back, and
// the result is verified against the manifest.
func (b *BackupManager) Restore(ctx context.Context, rec *BackupRecord) error {
	if rec == nil {
		return errors.New("no backup to restore")
	}
	logger := logging.WithContext(ctx, b.logger)
	logger.Info("restoring from backup", logging.String("backup_path", rec.BackupPath))

	manifest := make(map[string]ManifestEntry, len(rec.Manifest))
	for _, entry := range rec.Manifest {
		manifest[entry.RelPath] = entry
	}
	if err := os.MkdirAll(rec.ArtistPath, 0o755); err != nil {
		return fmt.Errorf("recreate artist folder: %w", err)
	}

	current, err := library.Snapshot(rec.ArtistPath)
	if err != nil {
		return fmt.Errorf("list artist folder: %w", err)
	}
	var removed []string
	for _, entry := range current {
		if underAny(entry.RelPath, removed) {
			continue
		}
		want, ok := manifest[entry.RelPath]
		if ok && want.Dir == entry.Dir && (entry.Dir || want.Size == entry.Size) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(rec.ArtistPath, filepath.FromSlash(entry.RelPath))); err != nil {
			return fmt.Errorf("remove %s: %w", entry.RelPath, err)
		}
		removed = append(removed, entry.RelPath)
	}

	present := map[string]struct{}{}
	after, err := library.Snapshot(rec.ArtistPath)
	if err != nil {
		return fmt.Errorf("list artist folder: %w", err)
	}
	for _, entry := range after {
		present[entry.RelPath] = struct{}{}
	}

	for _, entry := range rec.Manifest {
		if _, ok := present[entry.RelPath]; ok {
			continue
		}
		src := filepath.Join(rec.BackupPath, filepath.FromSlash(entry.RelPath))
		dst := filepath.Join(rec.ArtistPath, filepath.FromSlash(entry.RelPath))
		if err := restoreEntry(src, dst, entry); err != nil {
			return fmt.Errorf("restore %s: %w", entry.RelPath, err)
		}
	}

	final, err := library.Snapshot(rec.ArtistPath)
	if err != nil {
		return fmt.Errorf("list restored folder: %w", err)
	}
	if diff := compareManifest(rec.Manifest, final); diff != "" {
		return fmt.Errorf("restore verification failed: %s", diff)
	}
	logger.Info("artist folder restored", logging.Int("files", rec.Files))
	return nil
}

func restoreEntry(src, dst string, entry ManifestEntry) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	switch {
	case entry.Dir:
		return os.MkdirAll(dst, info.Mode().Perm()|0o700)
	case info.Mode()&os.ModeSymlink != 0:
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(link, dst)
	default:
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		sum, err := fileutil.CopyFileVerified(src, dst, info.Mode().Perm())
		if err != nil {
			return err
		}
		if entry.Checksum != "" && sum != entry.Checksum {
			return fmt.Errorf("checksum mismatch against manifest")
		}
		return nil
	}
}

// Discard deletes the backup folder. It refuses paths that do not look like
// backups.
func (b *BackupManager) Discard(backupPath string) error {
	if !library.IsBackupDir(filepath.Base(backupPath)) {
		return fmt.Errorf("refusing to delete %s: not a backup folder", backupPath)
	}
	if _, err := os.Stat(filepath.Join(backupPath, ManifestName)); err != nil {
		return fmt.Errorf("refusing to delete %s: manifest missing: %w", backupPath, err)
	}
	if err := os.RemoveAll(backupPath); err != nil {
		return fmt.Errorf("remove backup: %w", err)
	}
	b.logger.Info("backup discarded", logging.String("backup_path", backupPath))
	return nil
}

// compareManifest describes the first difference between a manifest and a
// listing by path, kind and size, or returns "".
func compareManifest(manifest []ManifestEntry, listing []library.Entry) string {
	want := make(map[string]ManifestEntry, len(manifest))
	for _, entry := range manifest {
		want[entry.RelPath] = entry
	}
	var problems []string
	for _, entry := range listing {
		expected, ok := want[entry.RelPath]
		switch {
		case !ok:
			problems = append(problems, "unexpected "+entry.RelPath)
		case expected.Dir != entry.Dir:
			problems = append(problems, "type changed "+entry.RelPath)
		case !entry.Dir && expected.Size != entry.Size:
			problems = append(problems, fmt.Sprintf("size changed %s (%d != %d)", entry.RelPath, entry.Size, expected.Size))
		}
		delete(want, entry.RelPath)
	}
	for rel := range want {
		problems = append(problems, "missing "+rel)
	}
	if len(problems) == 0 {
		return ""
	}
	sort.Strings(problems)
	if len(problems) > 3 {
		problems = append(problems[:3], fmt.Sprintf("and %d more", len(problems)-3))
	}
	return strings.Join(problems, ", ")
}

func underAny(rel string, dirs []string) bool {
	for _, dir := range dirs {
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}
