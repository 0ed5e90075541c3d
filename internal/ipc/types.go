package ipc

import (
	"reshelve/internal/classify"
	"reshelve/internal/history"
	"reshelve/internal/migration"
)

// PlanRequest asks for a migration plan for one artist.
type PlanRequest struct {
	ArtistID  string            `json:"artist_id"`
	Kind      string            `json:"migration_kind"`
	Overrides map[string]string `json:"category_overrides,omitempty"`
	Excludes  []string          `json:"excluded_albums,omitempty"`
}

// PlanResponse carries the built plan.
type PlanResponse struct {
	Plan *migration.Plan `json:"plan"`
}

// ValidateRequest runs the pre-flight checks against a plan.
type ValidateRequest struct {
	Plan   *migration.Plan `json:"plan"`
	Ignore []string        `json:"ignore,omitempty"`
	Backup bool            `json:"backup"`
}

// ValidateResponse carries blocking errors and warnings.
type ValidateResponse struct {
	Result migration.ValidationResult `json:"result"`
}

// ExecuteRequest executes Plan when set, otherwise plans and executes
// ArtistID with Kind. Backup nil applies the configured policy.
type ExecuteRequest struct {
	Plan      *migration.Plan   `json:"plan,omitempty"`
	ArtistID  string            `json:"artist_id,omitempty"`
	Kind      string            `json:"migration_kind,omitempty"`
	Overrides map[string]string `json:"category_overrides,omitempty"`
	Excludes  []string          `json:"excluded_albums,omitempty"`
	DryRun    bool              `json:"dry_run"`
	Backup    *bool             `json:"backup,omitempty"`
	Ignore    []string          `json:"ignore,omitempty"`
}

// ExecuteResponse carries the result and, for aborted runs, the structured
// failure. Result is nil when nothing was attempted.
type ExecuteResponse struct {
	Result *migration.Result `json:"result,omitempty"`
	Error  *migration.Error  `json:"error,omitempty"`
}

// HistoryRequest filters the history log; an empty artist lists everyone.
type HistoryRequest struct {
	ArtistID string `json:"artist_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// HistoryResponse lists entries newest first.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

// StatisticsRequest takes no parameters.
type StatisticsRequest struct{}

// StatisticsResponse carries aggregate history figures.
type StatisticsResponse struct {
	Statistics history.Statistics `json:"statistics"`
}

// InspectRequest asks for an artist's compliance score.
type InspectRequest struct {
	ArtistID string `json:"artist_id"`
}

// InspectResponse carries the compliance score.
type InspectResponse struct {
	Score classify.Score `json:"score"`
}
