// Package preflight provides readiness checks for the directories and
// external binaries a run depends on.
//
// These checks run in two contexts:
//   - `unflatten run` calls RunAll before scanning. Any failure aborts the run
//     with a non-zero exit so a long scan is not wasted on a doomed restore.
//   - `unflatten doctor` displays the individual checks and binary statuses.
//
// Binaries are only required when the configured strategy needs them.
package preflight
