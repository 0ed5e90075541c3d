// Package migration restructures artist folders from one layout to another.
//
// A migration runs in fixed stages: the Planner turns a requested Kind and the
// current listing into an ordered Plan; the Validator checks permissions, free
// space, open files and collisions; the BackupManager snapshots the artist
// folder; the Executor applies the operations strictly in order and consults
// the Recovery policy after every failure; the Reporter builds the Result,
// patches metadata and appends the history entry.
//
// Engine wires the stages together and holds a per-artist lease for the whole
// validate, backup and execute span. Failures surface as *Error values tagged
// with a Class and, for execution failures, an ErrorKind.
package migration
