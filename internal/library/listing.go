package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// BackupTimestampLayout is the timestamp format used in backup folder names.
const BackupTimestampLayout = "20060102T150405"

var backupDirPattern = regexp.MustCompile(`_backup_\d{8}T\d{6}(-\d+)?$`)

var audioExtensions = map[string]struct{}{
	".flac": {}, ".mp3": {}, ".m4a": {}, ".aac": {}, ".ogg": {}, ".opus": {},
	".wav": {}, ".aiff": {}, ".aif": {}, ".ape": {}, ".wv": {}, ".wma": {}, ".alac": {}, ".dsf": {},
}

// AlbumStat summarizes the files inside one album folder.
type AlbumStat struct {
	Size       int64     `json:"size"`
	Files      int       `json:"files"`
	AudioFiles int       `json:"audio_files"`
	ModTime    time.Time `json:"mod_time"`
}

// Album is one release folder under an artist.
type Album struct {
	// ID is the artist-relative path, stable for the lifetime of a plan.
	ID      string `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	RelPath string `json:"rel_path"`

	// Category is the canonical category folder the album sits in, or empty
	// when the album lives at the artist root.
	Category string    `json:"category,omitempty"`
	Stat     AlbumStat `json:"stat"`
}

// Listing is the read-only view of an artist folder.
type Listing struct {
	ArtistPath string
	Albums     []Album
	// CategoryFolders maps canonical category names to the on-disk folder
	// name and the number of albums found inside.
	CategoryFolders map[string]CategoryFolder
	LooseFiles      []string
}

// CategoryFolder records a category directory found at the artist root.
type CategoryFolder struct {
	Name   string
	Albums int
}

// Lister enumerates album folders. It is safe for concurrent use.
type Lister struct {
	cats *Categories
}

// NewLister builds a lister that recognizes the given category folders.
func NewLister(cats *Categories) *Lister {
	return &Lister{cats: cats}
}

// Categories exposes the category set the lister was built with.
func (l *Lister) Categories() *Categories {
	return l.cats
}

// ListAlbums returns every album under artistPath sorted by relative path.
func (l *Lister) ListAlbums(artistPath string) ([]Album, error) {
	listing, err := l.Scan(artistPath)
	if err != nil {
		return nil, err
	}
	return listing.Albums, nil
}

// Scan reads the artist folder one or two levels deep. Hidden entries are
// skipped. A root directory named after a category is a category folder when
// it is empty or contains subdirectories; otherwise it is an album.
func (l *Lister) Scan(artistPath string) (*Listing, error) {
	entries, err := os.ReadDir(artistPath)
	if err != nil {
		return nil, fmt.Errorf("read artist folder %s: %w", artistPath, err)
	}
	listing := &Listing{ArtistPath: artistPath, CategoryFolders: map[string]CategoryFolder{}}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(artistPath, name)
		if !entry.IsDir() {
			listing.LooseFiles = append(listing.LooseFiles, name)
			continue
		}
		if canonical, ok := l.cats.FolderName(name); ok {
			children, isCategory, err := categoryChildren(full)
			if err != nil {
				return nil, err
			}
			if isCategory {
				for _, child := range children {
					album, err := readAlbum(artistPath, filepath.Join(name, child), canonical)
					if err != nil {
						return nil, err
					}
					listing.Albums = append(listing.Albums, album)
				}
				listing.CategoryFolders[canonical] = CategoryFolder{Name: name, Albums: len(children)}
				continue
			}
		}
		album, err := readAlbum(artistPath, name, "")
		if err != nil {
			return nil, err
		}
		listing.Albums = append(listing.Albums, album)
	}
	sort.Slice(listing.Albums, func(i, j int) bool {
		return listing.Albums[i].RelPath < listing.Albums[j].RelPath
	})
	sort.Strings(listing.LooseFiles)
	return listing, nil
}

func categoryChildren(dir string) ([]string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false, fmt.Errorf("read category folder %s: %w", dir, err)
	}
	var children []string
	visible := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		visible++
		if entry.IsDir() {
			children = append(children, entry.Name())
		}
	}
	if visible == 0 {
		return nil, true, nil
	}
	return children, len(children) > 0, nil
}

func readAlbum(artistPath, rel, category string) (Album, error) {
	full := filepath.Join(artistPath, rel)
	stat, err := statAlbum(full)
	if err != nil {
		return Album{}, err
	}
	relSlash := filepath.ToSlash(rel)
	return Album{
		ID:       relSlash,
		Name:     filepath.Base(rel),
		Path:     full,
		RelPath:  relSlash,
		Category: category,
		Stat:     stat,
	}, nil
}

func statAlbum(dir string) (AlbumStat, error) {
	var stat AlbumStat
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(stat.ModTime) {
			stat.ModTime = info.ModTime()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		stat.Files++
		stat.Size += info.Size()
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]; ok {
			stat.AudioFiles++
		}
		return nil
	})
	if err != nil {
		return AlbumStat{}, fmt.Errorf("stat album %s: %w", dir, err)
	}
	return stat, nil
}

// ListArtists returns the artist folder names of a collection, skipping hidden
// directories and backup siblings.
func ListArtists(libraryDir string) ([]string, error) {
	entries, err := os.ReadDir(libraryDir)
	if err != nil {
		return nil, fmt.Errorf("read library %s: %w", libraryDir, err)
	}
	var artists []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") || IsBackupDir(name) {
			continue
		}
		artists = append(artists, name)
	}
	sort.Strings(artists)
	return artists, nil
}

// IsBackupDir reports whether name looks like `<artist>_backup_<timestamp>`.
func IsBackupDir(name string) bool {
	return backupDirPattern.MatchString(name)
}

// Entry is one node of a recursive listing.
type Entry struct {
	RelPath string `json:"rel_path"`
	Size    int64  `json:"size"`
	Dir     bool   `json:"dir"`
}

// Snapshot returns a sorted recursive listing of root. Directory sizes are
// zero. A missing root yields an empty snapshot.
func Snapshot(root string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entry := Entry{RelPath: filepath.ToSlash(rel), Dir: d.IsDir()}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })
	return entries, nil
}
