// Package cli implements the savepoint command-line interface.
//
// Commands map one-to-one onto engine operations: begin, commit, rollback,
// restore, status, history, and delete. Global flags select the database,
// output format, and verbosity; a YAML config file can supply defaults.
//
// Session state lives in the store, not the process: every invocation
// resumes whichever checkpoint the previous one left active, so
// "savepoint begin" followed later by "savepoint commit" works across
// separate processes.
//
// Exit codes: 0 success, 1 operation failure, 2 command error.
package cli
