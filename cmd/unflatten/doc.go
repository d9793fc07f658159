// Package main hosts the unflatten CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, runs preflight checks,
// and hands the real work to internal/pipeline. Commands only parse flags and
// render results: summary tables and previews on a terminal, JSON with --json.
//
// Exit status is non-zero only for configuration, argument, and preflight
// errors. Files that cannot be read or matched are reported in the output and
// never fail a run.
package main
