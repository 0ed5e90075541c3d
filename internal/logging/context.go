package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldMigrationID is the standardized key for migration attempt identifiers.
	FieldMigrationID = "migration_id"
	// FieldArtist is the standardized key for artist identifiers.
	FieldArtist = "artist"
	// FieldAlbum is the standardized key for album identifiers.
	FieldAlbum = "album"
	// FieldStage is the standardized key for engine stage names (plan, validate, backup, execute, report).
	FieldStage = "stage"
	// FieldEventType classifies warnings and errors for log filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	FieldError  = "error"
)

type contextKey string

const (
	migrationIDKey contextKey = "migration_id"
	artistKey      contextKey = "artist"
	stageKey       contextKey = "stage"
)

// WithMigrationID annotates ctx with the migration attempt identifier.
func WithMigrationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, migrationIDKey, id)
}

// MigrationIDFromContext returns the migration identifier if present.
func MigrationIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(migrationIDKey).(string)
	return v, ok && v != ""
}

// WithArtist annotates ctx with the artist identifier.
func WithArtist(ctx context.Context, artist string) context.Context {
	if artist == "" {
		return ctx
	}
	return context.WithValue(ctx, artistKey, artist)
}

// ArtistFromContext returns the artist identifier if present.
func ArtistFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(artistKey).(string)
	return v, ok && v != ""
}

// WithStage annotates ctx with the engine stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(stageKey).(string)
	return v, ok && v != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := MigrationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldMigrationID, id))
	}
	if artist, ok := ArtistFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldArtist, artist))
	}
	if stage, ok := StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
