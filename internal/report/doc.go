// Package report keeps the history of reconciliation runs.
//
// Runs and their per-file classifications are stored in a SQLite database
// under the data directory so ambiguous and unmatched files can be reviewed
// later with `unflatten runs show`. The same information is available as a
// JSON Document for external review tools.
package report
