// Package tools is the fixed catalog of domain mutation operations eligible
// for capture wrapping: create/save/delete for fields, views, objects,
// applications, themes, and decision tables.
//
// Tools are the sole contract between the mutation layer and capture: each
// tool supplies enough identifying data per mutated row for the undo log to
// reconstruct its primary key. Batch tools (SaveFields) record one undo
// entry per row, preserving input order.
//
// The catalog has no storage logic of its own; every mutation funnels
// through engine.Capture, which decides whether a session is recording.
package tools
