// Package report renders migration plans, results, history and statistics
// for terminals.
//
// Rendering is presentation only: every figure comes from the migration and
// history packages unchanged. Tables use go-pretty; status lines are
// colourized only when the destination is a terminal.
package report
