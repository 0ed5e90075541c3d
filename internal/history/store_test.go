package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndQueryNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, artist := range []string{"TestBand", "Other", "TestBand"} {
		_, err := store.Append(ctx, Entry{
			MigrationID:    "m-" + string(rune('a'+i)),
			ArtistID:       artist,
			Kind:           "flat_to_categorized",
			Status:         "completed",
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
			AlbumsTotal:    2,
			AlbumsMigrated: 2,
			Duration:       1500 * time.Millisecond,
			SuccessRate:    1,
			ScoreBefore:    60,
			ScoreAfter:     100,
		})
		require.NoError(t, err)
	}

	all, err := store.Query(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "m-c", all[0].MigrationID)
	assert.Equal(t, 1500*time.Millisecond, all[0].Duration)
	assert.True(t, all[0].Timestamp.Equal(base.Add(2*time.Minute)))

	band, err := store.Query(ctx, "TestBand", 1)
	require.NoError(t, err)
	require.Len(t, band, 1)
	assert.Equal(t, "m-c", band[0].MigrationID)
	assert.Equal(t, 100, band[0].ScoreAfter)
}

func TestAppendRequiresIdentity(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Append(context.Background(), Entry{ArtistID: "x"})
	assert.Error(t, err)
	_, err = store.Append(context.Background(), Entry{MigrationID: "x"})
	assert.Error(t, err)
}

func TestHistoryIsAppendOnly(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.Append(ctx, Entry{MigrationID: "m1", ArtistID: "TestBand", Status: "failed"})
	require.NoError(t, err)

	_, err = store.db.ExecContext(ctx, "UPDATE migrations SET status = 'completed'")
	assert.ErrorContains(t, err, "append-only")
	_, err = store.db.ExecContext(ctx, "DELETE FROM migrations")
	assert.ErrorContains(t, err, "append-only")

	_, err = store.Append(ctx, Entry{MigrationID: "m1", ArtistID: "TestBand"})
	assert.Error(t, err, "duplicate migration ids must be rejected")
}

func TestStatisticsExcludesDryRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	entries := []Entry{
		{MigrationID: "a", ArtistID: "A", Kind: "flat_to_categorized", Status: "completed", AlbumsTotal: 4, AlbumsMigrated: 4, Duration: 2 * time.Second},
		{MigrationID: "b", ArtistID: "B", Kind: "flat_to_categorized", Status: "partial", AlbumsTotal: 4, AlbumsMigrated: 2, AlbumsFailed: 2, Duration: 4 * time.Second},
		{MigrationID: "c", ArtistID: "A", Kind: "categorized_to_flat", Status: "rolled_back", AlbumsTotal: 2, Duration: 6 * time.Second},
		{MigrationID: "d", ArtistID: "C", Kind: "flat_to_categorized", Status: "completed", DryRun: true, AlbumsTotal: 9},
	}
	for _, e := range entries {
		_, err := store.Append(ctx, e)
		require.NoError(t, err)
	}

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalMigrations)
	assert.Equal(t, 1, stats.DryRuns)
	assert.Equal(t, 2, stats.Artists)
	assert.Equal(t, map[string]int{"completed": 1, "partial": 1, "rolled_back": 1}, stats.ByStatus)
	assert.Equal(t, map[string]int{"flat_to_categorized": 2, "categorized_to_flat": 1}, stats.ByKind)
	assert.Equal(t, 6, stats.AlbumsMigrated)
	assert.Equal(t, 2, stats.AlbumsFailed)
	assert.InDelta(t, 0.6, stats.OverallSuccessRate, 1e-9)
	assert.Equal(t, 4*time.Second, stats.AverageDuration)
	assert.False(t, stats.LastMigration.IsZero())
}

func TestStatisticsEmpty(t *testing.T) {
	store := openTestStore(t)
	stats, err := store.Statistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalMigrations)
	assert.Zero(t, stats.OverallSuccessRate)
	assert.True(t, stats.LastMigration.IsZero())
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := OpenPath(path)
	require.NoError(t, err)
	_, err = store.Append(context.Background(), Entry{MigrationID: "m", ArtistID: "A"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenPath(path)
	require.NoError(t, err)
	defer reopened.Close()
	entries, err := reopened.Query(context.Background(), "A", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
