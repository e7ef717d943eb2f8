package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/ledger"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/record"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/remote"
	"go.uber.org/zap"
)

const (
	opWorkerNew   = "sync.worker.new"
	opWorkerRun   = "sync.worker.run"
	opSweepUpload = "sync.worker.sweep_upload"
	opSweepUpdate = "sync.worker.sweep_update"
	opSweepDelete = "sync.worker.sweep_delete"
)

// Result is the aggregate outcome of one worker run.
type Result int

const (
	// ResultDone means no ledger entry awaits a remote action.
	ResultDone Result = iota
	// ResultRetry means pending entries remain; the scheduler should
	// re-invoke the worker after its backoff.
	ResultRetry
)

// String names the result for logs.
func (r Result) String() string {
	switch r {
	case ResultDone:
		return "done"
	case ResultRetry:
		return "retry"
	}
	return "unknown"
}

// WorkerConfig describes the collaborators of one vertical's worker.
type WorkerConfig struct {
	Ledger     *ledger.Ledger
	Records    record.Store
	Remote     remote.Store
	Collection string
	Logger     *zap.Logger
}

// Worker is the batch arm of the sync engine: a resumable reconciliation
// pass over the full status ledger. It is safe to run concurrently with
// the manager and safe to re-run after partial completion; every step is
// idempotent at the ledger-state level.
type Worker struct {
	ledger     *ledger.Ledger
	records    record.Store
	remote     remote.Store
	collection string
	logger     *zap.Logger
}

// NewWorker validates the configuration and returns the worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Ledger == nil {
		return nil, newSyncError(opWorkerNew, "missing_ledger", errMissingLedger)
	}
	if cfg.Records == nil {
		return nil, newSyncError(opWorkerNew, "missing_records", errMissingRecords)
	}
	if cfg.Remote == nil {
		return nil, newSyncError(opWorkerNew, "missing_remote", errMissingRemote)
	}
	if cfg.Collection == "" {
		return nil, newSyncError(opWorkerNew, "missing_collection", errMissingCollection)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		ledger:     cfg.Ledger,
		records:    cfg.Records,
		remote:     cfg.Remote,
		collection: cfg.Collection,
		logger:     logger,
	}, nil
}

// Run executes the three sweeps concurrently and reports Done only when
// the ledger holds no pending entry afterwards. Per-entry failures are
// logged and never abort a sweep; a panic anywhere in the run maps to
// Retry, never to a permanent failure.
func (w *Worker) Run(ctx context.Context) (result Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			w.logger.Error("sync worker panicked",
				zap.String("operation", opWorkerRun),
				zap.String("collection", w.collection),
				zap.Any("panic", recovered))
			result = ResultRetry
		}
	}()

	var sweeps sync.WaitGroup
	sweeps.Add(3)
	go func() {
		defer sweeps.Done()
		w.sweepUploads(ctx)
	}()
	go func() {
		defer sweeps.Done()
		w.sweepUpdates(ctx)
	}()
	go func() {
		defer sweeps.Done()
		w.sweepDeletes(ctx)
	}()
	sweeps.Wait()

	pending, err := w.ledger.HasPending(ctx)
	if err != nil {
		w.logger.Error("pending check failed",
			zap.String("operation", opWorkerRun),
			zap.String("collection", w.collection),
			zap.Error(err))
		return ResultRetry
	}
	if pending {
		return ResultRetry
	}
	return ResultDone
}

func (w *Worker) sweepUploads(ctx context.Context) {
	entries, err := w.ledger.ListPendingUnuploaded(ctx)
	if err != nil {
		w.sweepError(opSweepUpload, "ledger_list_failed", err)
		return
	}

	for _, entry := range entries {
		if entry.Uploaded {
			continue
		}

		view, err := w.records.View(ctx, entry.RecordID)
		if errors.Is(err, record.ErrNotFound) {
			// Record vanished before ever syncing: orphaned entry.
			w.logger.Warn("dropping ledger entry for missing record",
				zap.String("operation", opSweepUpload),
				zap.Int64("record_id", entry.RecordID))
			if err := w.ledger.Remove(ctx, entry.RecordID); err != nil {
				w.entryError(opSweepUpload, "ledger_remove_failed", err, entry.RecordID)
			}
			continue
		}
		if err != nil {
			w.entryError(opSweepUpload, "record_load_failed", err, entry.RecordID)
			continue
		}

		remoteID, err := w.remote.Add(ctx, w.collection, view.Fields)
		if err != nil {
			w.entryError(opSweepUpload, "remote_add_failed", err, entry.RecordID)
			continue
		}
		if err := w.records.SetRemoteID(ctx, entry.RecordID, remoteID); err != nil {
			w.entryError(opSweepUpload, "remote_id_store_failed", err, entry.RecordID)
			continue
		}
		if err := w.ledger.MarkUploaded(ctx, entry.RecordID); err != nil {
			w.entryError(opSweepUpload, "ledger_mark_failed", err, entry.RecordID)
		}
	}
}

func (w *Worker) sweepUpdates(ctx context.Context) {
	entries, err := w.ledger.ListByState(ctx, ledger.StatePendingUpdate)
	if err != nil {
		w.sweepError(opSweepUpdate, "ledger_list_failed", err)
		return
	}

	for _, entry := range entries {
		if !entry.Uploaded {
			// An update is meaningless before the record exists remotely;
			// the upload sweep carries the latest field values.
			w.logger.Warn("skipping update for never-uploaded record",
				zap.String("operation", opSweepUpdate),
				zap.Int64("record_id", entry.RecordID))
			continue
		}

		view, err := w.records.View(ctx, entry.RecordID)
		if err != nil {
			w.entryError(opSweepUpdate, "record_load_failed", err, entry.RecordID)
			continue
		}

		remoteID, err := resolveRemoteID(ctx, w.remote, w.collection, view)
		if err != nil {
			w.entryError(opSweepUpdate, "remote_id_resolution_failed", err, entry.RecordID)
			continue
		}
		if err := w.remote.Update(ctx, w.collection, remoteID, view.Diff); err != nil {
			w.entryError(opSweepUpdate, "remote_update_failed", err, entry.RecordID)
			continue
		}
		if err := w.ledger.MarkUploaded(ctx, entry.RecordID); err != nil {
			w.entryError(opSweepUpdate, "ledger_mark_failed", err, entry.RecordID)
		}
	}
}

func (w *Worker) sweepDeletes(ctx context.Context) {
	entries, err := w.ledger.ListByState(ctx, ledger.StatePendingDelete)
	if err != nil {
		w.sweepError(opSweepDelete, "ledger_list_failed", err)
		return
	}

	for _, entry := range entries {
		if !entry.Uploaded {
			// Never reached the remote store: drop locally, no remote call.
			w.removeLocal(ctx, entry.RecordID)
			continue
		}

		view, err := w.records.View(ctx, entry.RecordID)
		if errors.Is(err, record.ErrNotFound) {
			w.logger.Warn("dropping ledger entry for missing record",
				zap.String("operation", opSweepDelete),
				zap.Int64("record_id", entry.RecordID))
			if err := w.ledger.Remove(ctx, entry.RecordID); err != nil {
				w.entryError(opSweepDelete, "ledger_remove_failed", err, entry.RecordID)
			}
			continue
		}
		if err != nil {
			w.entryError(opSweepDelete, "record_load_failed", err, entry.RecordID)
			continue
		}

		remoteID, err := resolveRemoteID(ctx, w.remote, w.collection, view)
		if errors.Is(err, remote.ErrStaleMapping) {
			// No remote copy resolves anymore; finish locally.
			w.removeLocal(ctx, entry.RecordID)
			continue
		}
		if err != nil {
			w.entryError(opSweepDelete, "remote_id_resolution_failed", err, entry.RecordID)
			continue
		}
		if err := w.remote.Delete(ctx, w.collection, remoteID); err != nil {
			w.entryError(opSweepDelete, "remote_delete_failed", err, entry.RecordID)
			continue
		}
		w.removeLocal(ctx, entry.RecordID)
	}
}

func (w *Worker) removeLocal(ctx context.Context, recordID int64) {
	if err := w.records.Remove(ctx, recordID); err != nil {
		w.entryError(opSweepDelete, "record_remove_failed", err, recordID)
		return
	}
	if err := w.ledger.Remove(ctx, recordID); err != nil {
		w.entryError(opSweepDelete, "ledger_remove_failed", err, recordID)
	}
}

func (w *Worker) sweepError(operation, reason string, err error) {
	w.logger.Error("sync worker sweep failed",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("collection", w.collection),
		zap.Error(err))
}

func (w *Worker) entryError(operation, reason string, err error, recordID int64) {
	w.logger.Warn("sync worker entry failed",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("collection", w.collection),
		zap.Int64("record_id", recordID),
		zap.Error(err))
}

// resolveRemoteID returns the cached remote id or recovers it through a
// business-key lookup: documents sharing the local id are narrowed by
// owner and creation timestamp. ErrStaleMapping means no remote document
// resolves for the record at all.
func resolveRemoteID(ctx context.Context, store remote.Store, collection string, view record.View) (string, error) {
	if view.RemoteID != "" {
		return view.RemoteID, nil
	}

	docs, err := store.QueryByField(ctx, collection, record.FieldLocalID, view.LocalID)
	if err != nil {
		return "", err
	}
	for _, doc := range docs {
		owner, _ := doc.Fields[record.FieldOwnerID].(string)
		if owner != view.OwnerID {
			continue
		}
		created, ok := docInt64(doc.Fields[record.FieldCreatedAt])
		if !ok || created != view.CreatedAtSeconds {
			continue
		}
		return doc.ID, nil
	}
	return "", fmt.Errorf("%w: %s local id %d", remote.ErrStaleMapping, collection, view.LocalID)
}

func docInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}
