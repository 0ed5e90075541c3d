// Package ipc exposes the migration engine over JSON-RPC on a Unix socket
// and ships the matching client.
//
// The service is a thin adapter: requests are decoded into engine calls and
// engine results are returned unchanged. Failures that carry a migration
// result travel inside the response so the caller still sees the per-album
// breakdown, backup location and rollback outcome.
package ipc
