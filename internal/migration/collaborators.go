package migration

import (
	"context"

	"reshelve/internal/classify"
	"reshelve/internal/history"
	"reshelve/internal/library"
	"reshelve/internal/metadata"
)

// AlbumLister enumerates an artist folder.
type AlbumLister interface {
	Scan(artistPath string) (*library.Listing, error)
}

// Classifier assigns categories and scores layouts.
type Classifier interface {
	Classify(albumPath, name string) classify.Result
	ComplianceScore(artistPath string) (classify.Score, error)
}

// MetadataStore reads release records and patches folder paths.
type MetadataStore interface {
	Read(artistID string) (*metadata.Document, error)
	Write(artistID string, patch metadata.Patch) (int, error)
}

// HistoryStore is the append-only migration log.
type HistoryStore interface {
	Append(ctx context.Context, entry history.Entry) (history.Entry, error)
	Query(ctx context.Context, artistID string, limit int) ([]history.Entry, error)
	Statistics(ctx context.Context) (history.Statistics, error)
}
