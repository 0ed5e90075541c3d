package migration

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"reshelve/internal/config"
	"reshelve/internal/history"
	"reshelve/internal/lease"
	"reshelve/internal/library"
	"reshelve/internal/logging"
	"reshelve/internal/metadata"
	"reshelve/internal/testsupport"
)

type testEngine struct {
	*Engine
	cfg     *config.Config
	history *history.Store
	meta    *metadata.Store
	leases  *lease.Manager
}

func newTestEngine(t *testing.T, cfg *config.Config, fsys FS) *testEngine {
	t.Helper()
	store := testsupport.MustOpenHistory(t, cfg)
	meta, err := metadata.NewStore(cfg.MetadataDir())
	require.NoError(t, err)
	leases := lease.NewManager(cfg.LockDir())
	eng := NewWithDependencies(cfg, Dependencies{
		Metadata: meta,
		History:  store,
		Leases:   leases,
		FS:       fsys,
	}, logging.NewNop())
	return &testEngine{Engine: eng, cfg: cfg, history: store, meta: meta, leases: leases}
}

// faultFS fails selected rename calls (1-based) with the given errno.
// beforeRename runs ahead of each call; a non-nil return fails that call.
type faultFS struct {
	OSFS
	mu           sync.Mutex
	renames      int
	failAt       map[int]error
	failAll      error
	beforeRename func(n int) error
}

func (f *faultFS) Rename(src, dst string) error {
	f.mu.Lock()
	f.renames++
	n := f.renames
	f.mu.Unlock()
	if f.failAll != nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: f.failAll}
	}
	if f.beforeRename != nil {
		if err := f.beforeRename(n); err != nil {
			return &os.LinkError{Op: "rename", Old: src, New: dst, Err: err}
		}
	}
	if err, ok := f.failAt[n]; ok {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: err}
	}
	return f.OSFS.Rename(src, dst)
}

func snapshot(t *testing.T, root string) []library.Entry {
	t.Helper()
	entries, err := library.Snapshot(root)
	require.NoError(t, err)
	return entries
}

func backupDirs(t *testing.T, cfg *config.Config) []string {
	t.Helper()
	entries, err := os.ReadDir(cfg.Paths.LibraryDir)
	require.NoError(t, err)
	var out []string
	for _, entry := range entries {
		if library.IsBackupDir(entry.Name()) {
			out = append(out, entry.Name())
		}
	}
	return out
}

func targets(plan *Plan) map[string]string {
	out := map[string]string{}
	for _, op := range plan.Operations {
		out[op.SourcePath] = op.TargetPath
	}
	return out
}
