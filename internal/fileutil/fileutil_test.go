package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestCopyFileMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileMode(src, dst, 0o755); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Fatalf("expected executable bits, got %o", info.Mode().Perm())
	}
}

func TestCopyFileVerifiedReturnsDigest(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.flac")
	dst := filepath.Join(dir, "dst.flac")
	if err := os.WriteFile(src, []byte("verified copy content"), 0o644); err != nil {
		t.Fatal(err)
	}

	sum, err := CopyFileVerified(src, dst, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	want, err := Checksum(src)
	if err != nil {
		t.Fatal(err)
	}
	if sum != want || len(sum) != 64 {
		t.Fatalf("unexpected digest %q, want %q", sum, want)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyFileVerified(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"), 0o644); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyTreeAndTreeSize(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "copy")
	files := map[string]string{
		"1980 - One/01.flac":        "aaaa",
		"1980 - One/cover.jpg":      "bb",
		"Live/1985 - Show/01.flac":  "cccccc",
		"Live/1985 - Show/notes.md": "d",
	}
	for rel, body := range files {
		path := filepath.Join(src, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(src, "Empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := CopyTree(src, dst, true)
	if err != nil {
		t.Fatalf("CopyTree: %v", err)
	}
	if len(entries) != len(files) {
		t.Fatalf("expected %d entries, got %d", len(files), len(entries))
	}
	for _, entry := range entries {
		if entry.Checksum == "" {
			t.Fatalf("expected checksum for %s", entry.RelPath)
		}
		if int(entry.Size) != len(files[entry.RelPath]) {
			t.Fatalf("size mismatch for %s", entry.RelPath)
		}
	}
	if info, err := os.Stat(filepath.Join(dst, "Empty")); err != nil || !info.IsDir() {
		t.Fatalf("expected empty directory to be copied: %v", err)
	}

	size, err := TreeSize(dst)
	if err != nil {
		t.Fatal(err)
	}
	if size != 13 {
		t.Fatalf("expected 13 bytes, got %d", size)
	}
}

func TestRenameMarksCrossDevice(t *testing.T) {
	orig := renameFunc
	t.Cleanup(func() { renameFunc = orig })
	renameFunc = func(src, dst string) error {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: syscall.EXDEV}
	}

	err := Rename("/a", "/b")
	if !IsCrossDevice(err) {
		t.Fatalf("expected cross-device error, got %v", err)
	}
	if !errors.Is(err, syscall.EXDEV) {
		t.Fatalf("expected EXDEV to unwrap, got %v", err)
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	if err := WriteFileAtomic(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "two" {
		t.Fatalf("unexpected content %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".doc.json.tmp-*"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}
