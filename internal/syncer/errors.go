// Package syncer contains the two arms of the sync engine: the reactive
// manager that acts on local mutations, and the batch worker that sweeps
// the status ledger. Both are generic over a record store and a remote
// collection path; one instance of each serves one sync vertical.
package syncer

import (
	"errors"
	"fmt"
)

var (
	errMissingLedger     = errors.New("syncer: status ledger is required")
	errMissingRecords    = errors.New("syncer: record store is required")
	errMissingRemote     = errors.New("syncer: remote store is required")
	errMissingCollection = errors.New("syncer: collection path is required")
	errMissingScheduler  = errors.New("syncer: work scheduler is required")
	errMissingNetwork    = errors.New("syncer: network monitor is required")
)

// SyncError carries a dotted operation code alongside the cause.
type SyncError struct {
	code string
	err  error
}

func (e *SyncError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *SyncError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code.
func (e *SyncError) Code() string {
	return e.code
}

func newSyncError(operation, reason string, cause error) error {
	return &SyncError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
