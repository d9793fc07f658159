// Package logging builds the slog loggers used by unflatten.
//
// Console output is one line per record with the component as a prefix; JSON
// output uses ts/level/msg keys. Per-file failures never abort a run, so they
// go through WarnWithContext, which makes sure each warning says what happened
// and what it means for the results.
package logging
