package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reshelve/internal/history"
	"reshelve/internal/migration"
	"reshelve/internal/testsupport"
)

func TestPlanCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteArtist(t, env.cfg, "TestBand", 8, "1980 - Album One", "1985 - Live Show")

	out, _, err := runCLI(t, []string{"plan", "TestBand", "--kind", "flat_to_categorized"}, "", env.configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	requireContains(t, out, "Plan TestBand: flat_to_categorized")
	requireContains(t, out, "Album/1980 - Album One")
	requireContains(t, out, "Live/1985 - Live Show")

	out, _, err = runCLI(t, []string{"plan", "TestBand", "-k", "flat-to-categorized", "--json",
		"--override", "1980 - Album One=Compilation", "--exclude", "1985 - Live Show"}, "", env.configPath)
	if err != nil {
		t.Fatalf("plan --json: %v", err)
	}
	var plan migration.Plan
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("decode plan: %v\n%s", err, out)
	}
	if len(plan.Operations) != 1 || plan.Operations[0].TargetPath != "Compilation/1980 - Album One" {
		t.Fatalf("unexpected plan operations: %+v", plan.Operations)
	}
}

func TestPlanCommandRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteArtist(t, env.cfg, "TestBand", 8, "1980 - Album One")

	if _, _, err := runCLI(t, []string{"plan", "TestBand", "--kind", "sideways"}, "", env.configPath); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
	if _, _, err := runCLI(t, []string{"plan", "TestBand", "--kind", "flat_to_categorized", "--override", "nocategory"}, "", env.configPath); err == nil {
		t.Fatal("expected malformed override to fail")
	}
	_, _, err := runCLI(t, []string{"plan", "Nobody", "--kind", "flat_to_categorized"}, "", env.configPath)
	if !errors.Is(err, migration.ErrPlanning) {
		t.Fatalf("expected planning error for a missing artist, got %v", err)
	}
}

func TestMigrateCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	artistPath := testsupport.WriteArtist(t, env.cfg, "TestBand", 8, "1980 - Album One", "1985 - Live Show")

	out, _, err := runCLI(t, []string{"migrate", "TestBand", "--kind", "flat_to_categorized", "--dry-run"}, "", env.configPath)
	if err != nil {
		t.Fatalf("migrate --dry-run: %v", err)
	}
	requireContains(t, out, "(dry run)")
	requireContains(t, out, "completed (simulated)")
	if _, err := os.Stat(filepath.Join(artistPath, "1980 - Album One")); err != nil {
		t.Fatalf("dry run moved an album: %v", err)
	}

	out, stderr, err := runCLI(t, []string{"migrate", "TestBand", "--kind", "flat_to_categorized"}, "", env.configPath)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	requireContains(t, out, "[OK] completed")
	requireContains(t, out, "2 total, 2 migrated, 0 failed")
	requireContains(t, stderr, "[2/2]")
	if _, err := os.Stat(filepath.Join(artistPath, "Live", "1985 - Live Show")); err != nil {
		t.Fatalf("album not moved: %v", err)
	}

	out, _, err = runCLI(t, []string{"history", "TestBand", "--json"}, "", env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var entries []history.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(entries) != 2 || entries[0].Status != "completed" || !entries[1].DryRun {
		t.Fatalf("unexpected history: %+v", entries)
	}

	out, _, err = runCLI(t, []string{"stats"}, "", env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "100.0%")

	out, _, err = runCLI(t, []string{"inspect", "TestBand"}, "", env.configPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	requireContains(t, out, "100/100")
	requireContains(t, out, "categorized")
}

func TestMigrateCommandArgs(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"migrate", "--kind", "flat_to_categorized"}, "", env.configPath); err == nil {
		t.Fatal("expected an artist or --all to be required")
	}
	if _, _, err := runCLI(t, []string{"migrate", "A", "--all", "--kind", "flat_to_categorized"}, "", env.configPath); err == nil {
		t.Fatal("expected artist and --all to conflict")
	}
	if _, _, err := runCLI(t, []string{"migrate", "A", "--kind", "flat_to_categorized", "--ignore", "disk_space"}, "", env.configPath); err == nil {
		t.Fatal("expected disk_space to be non-ignorable")
	}
}

func TestMigrateAllCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteArtist(t, env.cfg, "Flat", 8, "1980 - One")
	testsupport.WriteArtist(t, env.cfg, "Sorted", 8, "Album/1990 - Done")

	out, _, err := runCLI(t, []string{"migrate", "--all", "--kind", "flat_to_categorized", "--no-backup"}, "", env.configPath)
	if err != nil {
		t.Fatalf("migrate --all: %v", err)
	}
	requireContains(t, out, "2 artists")
	requireContains(t, out, "skipped")
	if _, err := os.Stat(filepath.Join(env.cfg.ArtistPath("Flat"), "Album", "1980 - One")); err != nil {
		t.Fatalf("album not moved: %v", err)
	}
}

func TestRemoteCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	artistPath := testsupport.WriteArtist(t, env.cfg, "TestBand", 8, "1980 - Album One")
	socket := env.startServer(t)

	out, _, err := runCLI(t, []string{"plan", "TestBand", "--kind", "flat_to_categorized"}, socket, env.configPath)
	if err != nil {
		t.Fatalf("remote plan: %v", err)
	}
	requireContains(t, out, "Album/1980 - Album One")

	out, _, err = runCLI(t, []string{"migrate", "TestBand", "--kind", "flat_to_categorized", "--json"}, socket, env.configPath)
	if err != nil {
		t.Fatalf("remote migrate: %v", err)
	}
	var res migration.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Status != migration.ResultCompleted || res.AlbumsMigrated != 1 {
		t.Fatalf("unexpected remote result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(artistPath, "Album", "1980 - Album One")); err != nil {
		t.Fatalf("album not moved: %v", err)
	}

	out, _, err = runCLI(t, []string{"history"}, socket, env.configPath)
	if err != nil {
		t.Fatalf("remote history: %v", err)
	}
	requireContains(t, out, "TestBand")

	if _, _, err := runCLI(t, []string{"migrate", "--all", "--kind", "flat_to_categorized"}, socket, env.configPath); err == nil {
		t.Fatal("expected --all to be refused over the socket")
	}
}

func TestRemoteMissingSocket(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"stats"}, filepath.Join(env.baseDir, "missing.sock"), env.configPath)
	if err == nil || !strings.Contains(err.Error(), "reshelve serve") {
		t.Fatalf("expected a serve hint, got %v", err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, "", env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.LibraryDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestBackupsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Migration.KeepBackup = true
	writeTestConfig(t, env.configPath, env.cfg)
	testsupport.WriteArtist(t, env.cfg, "TestBand", 8, "1980 - Album One")

	if _, _, err := runCLI(t, []string{"migrate", "TestBand", "--kind", "flat_to_categorized"}, "", env.configPath); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	out, _, err := runCLI(t, []string{"backups", "list"}, "", env.configPath)
	if err != nil {
		t.Fatalf("backups list: %v", err)
	}
	requireContains(t, out, "TestBand_backup_")

	out, _, err = runCLI(t, []string{"backups", "prune"}, "", env.configPath)
	if err != nil {
		t.Fatalf("backups prune: %v", err)
	}
	requireContains(t, out, "0 backup(s) removed")

	out, _, err = runCLI(t, []string{"backups", "prune", "--older-than", "0s"}, "", env.configPath)
	if err != nil {
		t.Fatalf("backups prune --older-than 0s: %v", err)
	}
	requireContains(t, out, "1 backup(s) removed")

	out, _, err = runCLI(t, []string{"backups", "list"}, "", env.configPath)
	if err != nil {
		t.Fatalf("backups list: %v", err)
	}
	requireContains(t, out, "No backups retained")
}

func TestConfigShowAndInitWithLibrary(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, "", env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, env.cfg.Paths.LibraryDir)

	library := filepath.Join(t.TempDir(), "Music")
	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target, "--library", library}, "", "")
	if err != nil {
		t.Fatalf("config init --library: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read written config: %v", err)
	}
	requireContains(t, string(data), library)
}
