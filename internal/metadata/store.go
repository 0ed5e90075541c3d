// Package metadata persists per-artist release records as JSON documents.
//
// The migration engine reads release years from here when folder names lack
// them and patches folder_path after albums move. Documents are validated
// against an embedded JSON schema on every read and write.
package metadata

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"reshelve/internal/fileutil"
)

//go:embed schema.json
var schemaJSON string

// ErrInvalidDocument marks documents that fail schema validation.
var ErrInvalidDocument = errors.New("invalid metadata document")

// AlbumRecord is the stored metadata for one release.
type AlbumRecord struct {
	AlbumID    string `json:"album_id"`
	Name       string `json:"name,omitempty"`
	Year       int    `json:"year,omitempty"`
	Category   string `json:"category,omitempty"`
	FolderPath string `json:"folder_path"`
}

// Document is the metadata of one artist.
type Document struct {
	ArtistID  string        `json:"artist_id"`
	UpdatedAt time.Time     `json:"updated_at"`
	Albums    []AlbumRecord `json:"albums"`
}

// Lookup finds the record for an album by id, folder path, or folder name.
func (d *Document) Lookup(albumID, name string) (*AlbumRecord, bool) {
	if d == nil {
		return nil, false
	}
	for i := range d.Albums {
		rec := &d.Albums[i]
		if rec.AlbumID == albumID || rec.FolderPath == albumID {
			return rec, true
		}
	}
	if name == "" {
		return nil, false
	}
	for i := range d.Albums {
		rec := &d.Albums[i]
		if rec.Name == name || filepath.Base(rec.FolderPath) == name {
			return rec, true
		}
	}
	return nil, false
}

// Patch moves album records to new folder paths. Keys are the album ids
// (artist-relative paths) before the migration.
type Patch struct {
	FolderPaths map[string]string
}

// Store reads and writes metadata documents under a directory.
type Store struct {
	dir    string
	mu     sync.Mutex
	schema *gojsonschema.Schema
}

// NewStore opens a store rooted at dir. The directory is created lazily.
func NewStore(dir string) (*Store, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("load metadata schema: %w", err)
	}
	return &Store{dir: dir, schema: schema}, nil
}

func (s *Store) path(artistID string) string {
	return filepath.Join(s.dir, artistID+".json")
}

// Read loads the artist document. A missing document reads as an empty one.
func (s *Store) Read(artistID string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(artistID)
}

func (s *Store) read(artistID string) (*Document, error) {
	data, err := os.ReadFile(s.path(artistID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Document{ArtistID: artistID}, nil
		}
		return nil, fmt.Errorf("read metadata %s: %w", artistID, err)
	}
	if err := s.validate(data); err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", artistID, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", artistID, err)
	}
	return &doc, nil
}

// Save replaces the artist document.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc)
}

func (s *Store) save(doc *Document) error {
	if doc.Albums == nil {
		doc.Albums = []AlbumRecord{}
	}
	doc.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata %s: %w", doc.ArtistID, err)
	}
	if err := s.validate(data); err != nil {
		return fmt.Errorf("write metadata %s: %w", doc.ArtistID, err)
	}
	return fileutil.WriteFileAtomic(s.path(doc.ArtistID), data, 0o644)
}

// Write applies patch to the artist document and returns the number of
// records that changed. Albums without a record are ignored, and a missing
// document is left missing.
func (s *Store) Write(artistID string, patch Patch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(artistID)); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	doc, err := s.read(artistID)
	if err != nil {
		return 0, err
	}
	changed := 0
	for from, to := range patch.FolderPaths {
		rec, ok := doc.Lookup(from, "")
		if !ok {
			continue
		}
		rec.FolderPath = to
		rec.AlbumID = to
		changed++
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.save(doc); err != nil {
		return 0, err
	}
	return changed, nil
}

func (s *Store) validate(data []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
}
