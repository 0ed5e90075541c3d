// Package history persists the append-only migration log in SQLite.
//
// Every migration attempt, including dry runs, failures and rollbacks, is
// recorded exactly once. Rows are never updated or deleted; triggers in the
// schema reject both. Query and Statistics are read-only views used by the
// CLI and the IPC surface.
package history
