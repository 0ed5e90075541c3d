package library

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScanFindsRootAndCategorizedAlbums(t *testing.T) {
	artist := t.TempDir()
	writeTree(t, artist, map[string]string{
		"1980 - Album One/01.flac":         "aaaa",
		"1980 - Album One/cover.jpg":       "x",
		"live/1985 - Live Show/01.mp3":     "bb",
		"Live/1986 - Second Show/01.mp3":   "cc",
		"EP/2001 - Short/01.flac":          "d",
		".hidden/skip.flac":                "e",
		"artist.jpg":                       "f",
		"Single/loose-track-not-album.mp3": "g",
	})
	if err := os.MkdirAll(filepath.Join(artist, "Compilation"), 0o755); err != nil {
		t.Fatal(err)
	}

	listing, err := NewLister(testCategories()).Scan(artist)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	ids := make([]string, 0, len(listing.Albums))
	for _, album := range listing.Albums {
		ids = append(ids, album.ID)
	}
	want := []string{"1980 - Album One", "EP/2001 - Short", "Live/1986 - Second Show", "Single", "live/1985 - Live Show"}
	if len(ids) != len(want) {
		t.Fatalf("unexpected albums %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("unexpected albums %v, want %v", ids, want)
		}
	}

	first := listing.Albums[0]
	if first.Category != "" || first.Stat.Files != 2 || first.Stat.AudioFiles != 1 || first.Stat.Size != 5 {
		t.Fatalf("unexpected stat for root album: %+v", first)
	}
	if listing.Albums[2].Category != "Live" {
		t.Fatalf("expected Live category, got %q", listing.Albums[2].Category)
	}
	if listing.Albums[3].Category != "" {
		t.Fatal("category-named folder without subfolders is an album")
	}
	if folder, ok := listing.CategoryFolders["Compilation"]; !ok || folder.Albums != 0 {
		t.Fatalf("expected empty compilation folder, got %+v", listing.CategoryFolders)
	}
	if len(listing.LooseFiles) != 1 || listing.LooseFiles[0] != "artist.jpg" {
		t.Fatalf("unexpected loose files: %v", listing.LooseFiles)
	}
}

func TestScanMissingArtist(t *testing.T) {
	if _, err := NewLister(testCategories()).Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing artist folder")
	}
}

func TestListArtistsSkipsBackupsAndHidden(t *testing.T) {
	lib := t.TempDir()
	for _, dir := range []string{"Beta", "Alpha", ".reshelve", "Alpha_backup_20260101T101010", "Alpha_backup_20260101T101010-2"} {
		if err := os.MkdirAll(filepath.Join(lib, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeTree(t, lib, map[string]string{"readme.txt": "x"})

	artists, err := ListArtists(lib)
	if err != nil {
		t.Fatal(err)
	}
	if len(artists) != 2 || artists[0] != "Alpha" || artists[1] != "Beta" {
		t.Fatalf("unexpected artists: %v", artists)
	}
}

func TestSnapshotIsSortedAndSized(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"b/2.flac": "22", "a/1.flac": "1"})

	entries, err := Snapshot(root)
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{
		{RelPath: "a", Dir: true},
		{RelPath: "a/1.flac", Size: 1},
		{RelPath: "b", Dir: true},
		{RelPath: "b/2.flac", Size: 2},
	}
	if len(entries) != len(want) {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}

	missing, err := Snapshot(filepath.Join(root, "missing"))
	if err != nil || len(missing) != 0 {
		t.Fatalf("expected empty snapshot for missing root, got %v %v", missing, err)
	}
}
