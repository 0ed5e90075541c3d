package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"reshelve/internal/config"
)

// WriteAlbum creates an album folder at rel under the artist folder with the
// given number of FLAC tracks and returns its absolute path. Track sizes
// differ so snapshots catch swapped files.
func WriteAlbum(t testing.TB, cfg *config.Config, artist, rel string, tracks int) string {
	t.Helper()

	dir := filepath.Join(cfg.ArtistPath(artist), filepath.FromSlash(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for i := 1; i <= tracks; i++ {
		WriteFile(t, filepath.Join(dir, fmt.Sprintf("%02d - Track.flac", i)), int64(100*i))
	}
	WriteFile(t, filepath.Join(dir, "cover.jpg"), 64)
	return dir
}

// WriteArtist creates one album per entry of albums, each with tracks tracks.
func WriteArtist(t testing.TB, cfg *config.Config, artist string, tracks int, albums ...string) string {
	t.Helper()

	for _, rel := range albums {
		WriteAlbum(t, cfg, artist, rel, tracks)
	}
	return cfg.ArtistPath(artist)
}
