// Package testutil provides deterministic helpers shared across test
// packages: a resettable stepping clock for reproducible timestamps.
//
// Checkpoint ids get the same treatment via engine.FixedGenerator; together
// the two make scenario runs byte-for-byte reproducible, which golden-file
// tests depend on.
package testutil
