package migration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reshelve/internal/testsupport"
)

func TestPruneBackupsRemovesOnlyStaleOnes(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithKeepBackup())
	testsupport.WriteArtist(t, cfg, "Old", 2, "1980 - One")
	testsupport.WriteArtist(t, cfg, "New", 2, "1990 - Two")
	eng := newTestEngine(t, cfg, nil)
	ctx := context.Background()

	eng.backups.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old, err := eng.Migrate(ctx, PlanRequest{ArtistID: "Old", Kind: FlatToCategorized}, backupOpts())
	require.NoError(t, err)
	eng.backups.now = time.Now
	recent, err := eng.Migrate(ctx, PlanRequest{ArtistID: "New", Kind: FlatToCategorized}, backupOpts())
	require.NoError(t, err)

	// A foreign folder that merely looks like a backup is never touched.
	stray := filepath.Join(cfg.Paths.LibraryDir, "Stray_backup_20000101T000000")
	require.NoError(t, os.MkdirAll(stray, 0o755))

	backups, err := eng.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "Old", backups[0].ArtistID)
	assert.Equal(t, "New", backups[1].ArtistID)

	result, err := eng.PruneBackups(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{old.BackupPath()}, result.Removed)
	assert.Empty(t, result.Errors)
	assert.NoDirExists(t, old.BackupPath())
	assert.DirExists(t, recent.BackupPath())
	assert.DirExists(t, stray)
}

func TestPruneBackupsSkipsLeasedArtists(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithKeepBackup())
	testsupport.WriteArtist(t, cfg, "Band", 2, "1980 - One")
	eng := newTestEngine(t, cfg, nil)

	res, err := eng.Migrate(context.Background(), PlanRequest{ArtistID: "Band", Kind: FlatToCategorized}, backupOpts())
	require.NoError(t, err)

	held, err := eng.leases.Acquire("Band")
	require.NoError(t, err)
	result, err := eng.PruneBackups(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, result.Removed)
	require.NoError(t, held.Release())

	result, err = eng.PruneBackups(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{res.BackupPath()}, result.Removed)
}
