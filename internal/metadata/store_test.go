package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestReadMissingDocumentIsEmpty(t *testing.T) {
	store := newTestStore(t)
	doc, err := store.Read("Nobody")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.ArtistID != "Nobody" || len(doc.Albums) != 0 {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestWritePatchesFolderPaths(t *testing.T) {
	store := newTestStore(t)
	err := store.Save(&Document{ArtistID: "TestBand", Albums: []AlbumRecord{
		{AlbumID: "1980 - Album One", Name: "Album One", Year: 1980, FolderPath: "1980 - Album One"},
		{AlbumID: "1985 - Live Show", Name: "Live Show", Year: 1985, FolderPath: "1985 - Live Show"},
	}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	changed, err := store.Write("TestBand", Patch{FolderPaths: map[string]string{
		"1985 - Live Show": "Live/1985 - Live Show",
		"unknown":          "Album/unknown",
	}})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 change, got %d", changed)
	}

	doc, err := store.Read("TestBand")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	rec, ok := doc.Lookup("Live/1985 - Live Show", "")
	if !ok || rec.Year != 1985 {
		t.Fatalf("expected moved record, got %+v", doc.Albums)
	}
	if doc.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at to be stamped")
	}
	if rec, ok := doc.Lookup("", "Album One"); !ok || rec.FolderPath != "1980 - Album One" {
		t.Fatalf("lookup by name failed: %+v", rec)
	}
}

func TestWriteWithoutDocumentIsNoop(t *testing.T) {
	store := newTestStore(t)
	changed, err := store.Write("Ghost", Patch{FolderPaths: map[string]string{"a": "b"}})
	if err != nil || changed != 0 {
		t.Fatalf("expected no-op, got %d %v", changed, err)
	}
	if _, err := os.Stat(store.path("Ghost")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("write must not create a document")
	}
}

func TestReadRejectsInvalidDocument(t *testing.T) {
	store := newTestStore(t)
	if err := os.MkdirAll(store.dir, 0o755); err != nil {
		t.Fatal(err)
	}
	bad := `{"artist_id": "X", "albums": [{"album_id": "a"}]}`
	if err := os.WriteFile(filepath.Join(store.dir, "X.json"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := store.Read("X")
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected schema error, got %v", err)
	}
}
