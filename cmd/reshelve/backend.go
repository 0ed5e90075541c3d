package main

import (
	"context"
	"errors"

	"reshelve/internal/classify"
	"reshelve/internal/history"
	"reshelve/internal/ipc"
	"reshelve/internal/migration"
)

type executeParams struct {
	request migration.PlanRequest
	dryRun  bool
	// backup nil applies the configured policy.
	backup   *bool
	ignore   []string
	progress migration.ProgressFunc
}

// backend is what the commands need from an engine, local or remote.
type backend interface {
	Plan(req migration.PlanRequest) (*migration.Plan, error)
	Execute(params executeParams) (*migration.Result, error)
	MigrateAll(kind migration.Kind, params executeParams) ([]migration.BatchResult, error)
	History(artistID string, limit int) ([]history.Entry, error)
	Statistics() (history.Statistics, error)
	Inspect(artistID string) (classify.Score, error)
}

type localBackend struct {
	engine *migration.Engine
	ctx    context.Context
}

func (b *localBackend) Plan(req migration.PlanRequest) (*migration.Plan, error) {
	return b.engine.PlanMigration(b.ctx, req)
}

func (b *localBackend) options(params executeParams) (migration.ExecuteOptions, error) {
	ignore, err := migration.ParseIgnoreChecks(params.ignore)
	if err != nil {
		return migration.ExecuteOptions{}, err
	}
	opts := b.engine.DefaultExecuteOptions()
	opts.DryRun = params.dryRun
	opts.Ignore = ignore
	opts.Progress = params.progress
	if params.backup != nil {
		opts.Backup = *params.backup
	}
	return opts, nil
}

func (b *localBackend) Execute(params executeParams) (*migration.Result, error) {
	opts, err := b.options(params)
	if err != nil {
		return nil, err
	}
	return b.engine.Migrate(b.ctx, params.request, opts)
}

func (b *localBackend) MigrateAll(kind migration.Kind, params executeParams) ([]migration.BatchResult, error) {
	opts, err := b.options(params)
	if err != nil {
		return nil, err
	}
	return b.engine.MigrateAll(b.ctx, kind, opts)
}

func (b *localBackend) History(artistID string, limit int) ([]history.Entry, error) {
	return b.engine.GetHistory(b.ctx, artistID, limit)
}

func (b *localBackend) Statistics() (history.Statistics, error) {
	return b.engine.GetStatistics(b.ctx)
}

func (b *localBackend) Inspect(artistID string) (classify.Score, error) {
	return b.engine.Inspect(artistID)
}

type remoteBackend struct {
	client *ipc.Client
}

func (b *remoteBackend) Plan(req migration.PlanRequest) (*migration.Plan, error) {
	return b.client.Plan(ipc.PlanRequest{
		ArtistID:  req.ArtistID,
		Kind:      string(req.Kind),
		Overrides: req.Overrides,
		Excludes:  req.Excludes,
	})
}

func (b *remoteBackend) Execute(params executeParams) (*migration.Result, error) {
	return b.client.Execute(ipc.ExecuteRequest{
		ArtistID:  params.request.ArtistID,
		Kind:      string(params.request.Kind),
		Overrides: params.request.Overrides,
		Excludes:  params.request.Excludes,
		DryRun:    params.dryRun,
		Backup:    params.backup,
		Ignore:    params.ignore,
	})
}

func (b *remoteBackend) MigrateAll(migration.Kind, executeParams) ([]migration.BatchResult, error) {
	return nil, errors.New("migrate --all runs in-process only; drop --socket")
}

func (b *remoteBackend) History(artistID string, limit int) ([]history.Entry, error) {
	return b.client.History(ipc.HistoryRequest{ArtistID: artistID, Limit: limit})
}

func (b *remoteBackend) Statistics() (history.Statistics, error) {
	return b.client.Statistics()
}

func (b *remoteBackend) Inspect(artistID string) (classify.Score, error) {
	return b.client.Inspect(artistID)
}
