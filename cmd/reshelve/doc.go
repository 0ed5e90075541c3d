// Package main hosts the reshelve CLI entrypoint and command graph.
//
// Commands run the migration engine in-process against the configured
// collection. When --socket is given they talk to a `reshelve serve`
// instance over JSON-RPC instead, which keeps migrations of one collection
// serialized through a single process.
//
// Keep this package lean: behaviour lives in internal/migration and
// presentation in internal/report.
package main
