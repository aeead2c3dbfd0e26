package engine

import (
	"errors"
	"fmt"
)

// ErrNoActiveSession is returned when commit or rollback is invoked with no
// open checkpoint session. Callers treat it as a recoverable no-op; the CLI
// reports it without failing the process.
var ErrNoActiveSession = errors.New("no active checkpoint session")

// NotFoundError reports a restore or delete referencing an unknown
// checkpoint id.
type NotFoundError struct {
	CheckpointID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("checkpoint %s not found", e.CheckpointID)
}

// IsNotFound reports whether err is a checkpoint NotFoundError.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// CaptureErrorCode categorizes capture failures.
type CaptureErrorCode string

const (
	// CaptureCodeSnapshot indicates the pre-state snapshot read failed.
	CaptureCodeSnapshot CaptureErrorCode = "SNAPSHOT_FAILED"

	// CaptureCodeAppend indicates the undo-log append failed after the
	// mutation had already executed.
	CaptureCodeAppend CaptureErrorCode = "APPEND_FAILED"
)

// CaptureError reports a failure to capture a reversible record for a
// mutation. The mutation itself still proceeded: the consequence is that the
// specific change became unreversible by its checkpoint, which is why
// capture errors are surfaced (logged + has_gaps) instead of returned to
// the mutating caller.
type CaptureError struct {
	Code  CaptureErrorCode
	Tool  string
	Table string
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s: tool=%s table=%s: %v", e.Code, e.Tool, e.Table, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// RestoreErrorCode categorizes reverse-apply failures.
type RestoreErrorCode string

const (
	// RestoreCodeRowMissing indicates a row the replay needed was gone
	// (e.g. manually deleted since capture).
	RestoreCodeRowMissing RestoreErrorCode = "ROW_MISSING"

	// RestoreCodeRowExists indicates a delete could not be reversed because
	// a row already occupies the captured primary key.
	RestoreCodeRowExists RestoreErrorCode = "ROW_EXISTS"

	// RestoreCodeInvalidSnapshot indicates previous_data failed schema
	// validation and was not written back.
	RestoreCodeInvalidSnapshot RestoreErrorCode = "INVALID_SNAPSHOT"

	// RestoreCodeStore indicates an underlying storage failure.
	RestoreCodeStore RestoreErrorCode = "STORE_FAILED"
)

// RestoreError reports a reverse-replay that stopped partway. Entries
// applied before the failure are not re-reverted; Applied and Remaining let
// operators see exactly how far the replay got.
type RestoreError struct {
	Code         RestoreErrorCode
	CheckpointID string // checkpoint owning the failing entry
	EntryID      int64
	Table        string
	RowID        int64
	Applied      int // inversions applied before the failure
	Remaining    int // inversions never attempted
	Err          error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("%s: entry %d (%s/%d, checkpoint %s): applied %d, %d remaining: %v",
		e.Code, e.EntryID, e.Table, e.RowID, e.CheckpointID, e.Applied, e.Remaining, e.Err)
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}

// IsRestoreError reports whether err is a RestoreError.
// Uses errors.As to handle wrapped errors.
func IsRestoreError(err error) bool {
	var re *RestoreError
	return errors.As(err, &re)
}
