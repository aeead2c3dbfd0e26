// Package harness runs YAML-defined checkpoint scenarios end to end against
// a fresh in-memory database and compares the full outcome against golden
// files.
//
// A scenario seeds entity rows, scripts a sequence of session steps (begin,
// tool invocations, commit, rollback, restore), and the harness captures
// three views of the run: the step trace, the projected checkpoint history,
// and the final entity state. Deterministic checkpoint ids and a stepping
// clock make the serialized snapshot byte-for-byte reproducible.
//
// Unlike unit tests, scenarios exercise the real engine: every invocation
// flows through the tool catalog, capture, and the undo log exactly as a
// production caller's would.
package harness
