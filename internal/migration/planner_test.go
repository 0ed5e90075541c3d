package migration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reshelve/internal/metadata"
	"reshelve/internal/testsupport"
)

func TestPlanTestBandFlatToCategorized(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteArtist(t, cfg, "TestBand", 8, "1980 - Album One", "1985 - Live Show")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "TestBand", Kind: FlatToCategorized})
	require.NoError(t, err)

	require.Len(t, plan.Operations, 2)
	assert.Equal(t, "1980 - Album One", plan.Operations[0].SourcePath)
	assert.Equal(t, "Album/1980 - Album One", plan.Operations[0].TargetPath)
	assert.Equal(t, "Album", plan.Operations[0].CategoryUsed)
	assert.Equal(t, "1985 - Live Show", plan.Operations[1].SourcePath)
	assert.Equal(t, "Live/1985 - Live Show", plan.Operations[1].TargetPath)
	assert.Equal(t, "Live", plan.Operations[1].CategoryUsed)
	for _, op := range plan.Operations {
		assert.Equal(t, OpMove, op.Kind)
		assert.Equal(t, StatusPending, op.Status)
	}
	assert.Equal(t, "flat", plan.Structure)
	assert.NotEmpty(t, plan.ID)
}

func TestPlanStripsHintAndAppliesOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteArtist(t, cfg, "Band", 8, "1999 - Rarities (Demo)", "2001 - Second", "2003 - Third [Deluxe Edition]")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{
		ArtistID:  "Band",
		Kind:      FlatToCategorized,
		Overrides: map[string]string{"2001 - Second": "compilations", "missing": "Live", "2003 - Third [Deluxe Edition]": "Polka"},
	})
	require.NoError(t, err)

	got := targets(plan)
	assert.Equal(t, "Demo/1999 - Rarities", got["1999 - Rarities (Demo)"])
	assert.Equal(t, "Compilation/2001 - Second", got["2001 - Second"])
	assert.Equal(t, "Album/2003 - Third (Deluxe Edition)", got["2003 - Third [Deluxe Edition]"])
	assert.Len(t, plan.Warnings, 2, "unknown album and unknown category overrides are reported")
}

func TestPlanExclusionsNeverAppear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteArtist(t, cfg, "Band", 8, "1980 - One", "1981 - Two", "1982 - Three")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{
		ArtistID: "Band",
		Kind:     FlatToCategorized,
		Excludes: []string{"1981 - Two", "1982 - Three"},
	})
	require.NoError(t, err)

	require.Len(t, plan.Operations, 1)
	assert.Equal(t, "1980 - One", plan.Operations[0].AlbumID)
	assert.ElementsMatch(t, []string{"1981 - Two", "1982 - Three"}, plan.Excluded)
}

func TestPlanMatchesExcludesAndOverridesIgnoringCase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteArtist(t, cfg, "Band", 8, "1980 - Album One", "1981 - Café Tapes", "1982 - Three")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{
		ArtistID:  "Band",
		Kind:      FlatToCategorized,
		Excludes:  []string{"1980 - album one"},
		Overrides: map[string]string{"1981 - CAFE TAPES": "demo"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1980 - Album One"}, plan.Excluded)
	got := targets(plan)
	assert.NotContains(t, got, "1980 - Album One")
	assert.Equal(t, "Demo/1981 - Café Tapes", got["1981 - Café Tapes"])
	for _, w := range plan.Warnings {
		assert.NotContains(t, w, "not found")
	}
}

func TestPlanResolvesDuplicateTargets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteArtist(t, cfg, "Band", 8, "1990 - Same", "Same (1990)", "(1990) Same")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Band", Kind: FlatToCategorized})
	require.NoError(t, err)

	got := targets(plan)
	// "(1990) Same" sorts first by name and keeps the plain target.
	assert.Equal(t, "Album/1990 - Same", got["(1990) Same"])
	assert.Equal(t, "Album/1990 - Same (2)", got["1990 - Same"])
	assert.Equal(t, "Album/1990 - Same (3)", got["Same (1990)"])

	seen := map[string]bool{}
	for _, op := range plan.Operations {
		assert.False(t, seen[op.TargetPath], "duplicate target %s", op.TargetPath)
		seen[op.TargetPath] = true
	}
	for _, op := range plan.Operations {
		if op.SourcePath == "(1990) Same" {
			assert.Empty(t, op.Warnings)
		} else {
			assert.NotEmpty(t, op.Warnings)
		}
	}
}

func TestPlanInapplicableKindIsAllNoOps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteArtist(t, cfg, "Band", 8, "Album/1980 - One", "Live/1985 - Two")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Band", Kind: FlatToCategorized})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 2)
	for _, op := range plan.Operations {
		assert.Equal(t, OpNoOp, op.Kind)
	}
	assert.Zero(t, plan.Mutating())
	assert.NotEmpty(t, plan.Warnings)
}

func TestPlanMixedToCategorized(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteArtist(t, cfg, "Band", 8, "Album/1980 - One", "1985 - Unplugged Session")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Band", Kind: MixedToCategorized})
	require.NoError(t, err)
	assert.Equal(t, "mixed", plan.Structure)
	got := targets(plan)
	assert.Equal(t, "Album/1980 - One", got["Album/1980 - One"])
	assert.Equal(t, "Live/1985 - Unplugged Session", got["1985 - Unplugged Session"])
	assert.Equal(t, 1, plan.Moves())
}

func TestPlanUnyearedUsesMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteArtist(t, cfg, "Band", 8, "Old Record", "Mystery", "Later Record (1984)", "1990 - Fine")
	eng := newTestEngine(t, cfg, nil)
	require.NoError(t, eng.meta.Save(&metadata.Document{ArtistID: "Band", Albums: []metadata.AlbumRecord{
		{AlbumID: "Old Record", Name: "Old Record", Year: 1977, FolderPath: "Old Record"},
	}}))

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Band", Kind: UnyearedToDefault})
	require.NoError(t, err)

	byID := map[string]Operation{}
	for _, op := range plan.Operations {
		byID[op.AlbumID] = op
	}
	assert.Equal(t, "1977 - Old Record", byID["Old Record"].TargetPath)
	assert.Equal(t, OpMove, byID["Old Record"].Kind)
	assert.Equal(t, "1984 - Later Record", byID["Later Record (1984)"].TargetPath)
	assert.Equal(t, OpNoOp, byID["Mystery"].Kind)
	assert.NotEmpty(t, byID["Mystery"].Warnings)
	assert.Equal(t, OpNoOp, byID["1990 - Fine"].Kind)
}

func TestPlanUnyearedLeavesYearPrefixedNamesAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteArtist(t, cfg, "Band", 8,
		"1980 - Title [Remaster]", "1981 - Show (Deluxe) (Live)", "1982 - Other (live)", "(1983) Reordered [Remaster]")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Band", Kind: UnyearedToDefault})
	require.NoError(t, err)

	got := targets(plan)
	for _, name := range []string{"1980 - Title [Remaster]", "1981 - Show (Deluxe) (Live)", "1982 - Other (live)"} {
		assert.Equal(t, name, got[name])
	}
	assert.Equal(t, "1983 - Reordered (Remaster)", got["(1983) Reordered [Remaster]"])
	assert.Equal(t, 1, plan.Moves())

	testsupport.WriteArtist(t, cfg, "Tidy", 8, "1980 - One", "1981 - Two (Live)")
	plan, err = eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Tidy", Kind: UnyearedToDefault})
	require.NoError(t, err)
	assert.Zero(t, plan.Mutating())
	assert.Contains(t, plan.Warnings[len(plan.Warnings)-1], "does not apply")
}

func TestPlanHoldsAlbumNamedLikeCategory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	artistPath := testsupport.WriteArtist(t, cfg, "Band", 8, "Live", "1985 - Live Show", "1980 - One")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Band", Kind: FlatToCategorized})
	require.NoError(t, err)

	byID := map[string]Operation{}
	for _, op := range plan.Operations {
		byID[op.AlbumID] = op
	}
	for _, id := range []string{"Live", "1985 - Live Show"} {
		op := byID[id]
		assert.Equal(t, OpNoOp, op.Kind, id)
		assert.Equal(t, op.SourcePath, op.TargetPath, id)
		require.NotEmpty(t, op.Warnings, id)
		assert.Contains(t, op.Warnings[0], "is an album folder")
	}
	assert.Equal(t, "Album/1980 - One", byID["1980 - One"].TargetPath)

	res, err := eng.Execute(context.Background(), plan, ExecuteOptions{Backup: true})
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, res.Status)
	assert.Equal(t, 1, res.AlbumsMigrated)
	assert.DirExists(t, filepath.Join(artistPath, "Live"))
	assert.NoDirExists(t, filepath.Join(artistPath, "Live", "Live"))
	assert.DirExists(t, filepath.Join(artistPath, "Album", "1980 - One"))
}

func TestPlanCategorizedToFlat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteArtist(t, cfg, "Band", 8, "Album/1980 - One", "Live/1985 - Two", "1990 - Root")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Band", Kind: CategorizedToFlat})
	require.NoError(t, err)
	got := targets(plan)
	assert.Equal(t, "1980 - One", got["Album/1980 - One"])
	assert.Equal(t, "1985 - Two (Live)", got["Live/1985 - Two"])
	assert.Equal(t, "1990 - Root", got["1990 - Root"])
}

func TestPlanCategorizedToFlatKeepsHintInDefaultCategory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteArtist(t, cfg, "Band", 8, "Album/1985 - Show (Live)", "Album/1986 - Plain", "Live/1987 - Again (Live)")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Band", Kind: CategorizedToFlat})
	require.NoError(t, err)
	got := targets(plan)
	assert.Equal(t, "1985 - Show (Live)", got["Album/1985 - Show (Live)"])
	assert.Equal(t, "1986 - Plain", got["Album/1986 - Plain"])
	assert.Equal(t, "1987 - Again (Live)", got["Live/1987 - Again (Live)"])
}

func TestPlanExplicitDirs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExplicitDirs())
	testsupport.WriteArtist(t, cfg, "Band", 8, "1980 - One", "1985 - Live at Home", "Album/1970 - Early")
	eng := newTestEngine(t, cfg, nil)

	plan, err := eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Band", Kind: MixedToCategorized})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 4)
	assert.Equal(t, OpCreateDir, plan.Operations[0].Kind)
	assert.Equal(t, "Live", plan.Operations[0].TargetPath)
	for _, op := range plan.Operations[1:] {
		assert.NotEqual(t, OpCreateDir, op.Kind)
	}
}

func TestPlanFailsOnlyWhenArtistMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	eng := newTestEngine(t, cfg, nil)

	_, err := eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Nobody", Kind: FlatToCategorized})
	require.ErrorIs(t, err, ErrPlanning)

	_, err = eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "../etc", Kind: FlatToCategorized})
	require.ErrorIs(t, err, ErrPlanning)

	_, err = eng.PlanMigration(context.Background(), PlanRequest{ArtistID: "Band", Kind: "sideways"})
	require.ErrorIs(t, err, ErrPlanning)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("Flat-To-Categorized")
	require.NoError(t, err)
	assert.Equal(t, FlatToCategorized, kind)
	_, err = ParseKind("nope")
	assert.Error(t, err)
}
