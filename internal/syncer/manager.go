package syncer

import (
	"context"
	"errors"
	"sync"

	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/ledger"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/network"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/record"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/remote"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/session"
	"go.uber.org/zap"
)

const (
	opManagerNew      = "sync.manager.new"
	opEnqueueUpload   = "sync.manager.enqueue_upload"
	opEnqueueUpdate   = "sync.manager.enqueue_update"
	opEnqueueDelete   = "sync.manager.enqueue_delete"
	opPerformUpload   = "sync.manager.perform_upload"
	opPerformUpdate   = "sync.manager.perform_update"
	opPerformDelete   = "sync.manager.perform_delete"
	opNetworkRegained = "sync.manager.network_regained"
)

// ManagerConfig describes the collaborators of one vertical's manager.
type ManagerConfig struct {
	Ledger     *ledger.Ledger
	Records    record.Store
	Remote     remote.Store
	Collection string
	Work       WorkKind
	Scheduler  WorkScheduler
	Network    network.Monitor
	Session    session.Session
	Logger     *zap.Logger
}

// Manager is the reactive arm of the sync engine. Its enqueue operations
// return immediately; the ledger write and the remote attempt run inside
// a task launched under the application-lifetime context given to
// NewManager. On any remote failure the ledger keeps its pending state
// and the worker is scheduled; the manager never demotes or clears a
// pending state on failure, and it applies no backoff of its own.
type Manager struct {
	ledger     *ledger.Ledger
	records    record.Store
	remote     remote.Store
	collection string
	work       WorkKind
	scheduler  WorkScheduler
	network    network.Monitor
	session    session.Session
	logger     *zap.Logger

	baseCtx       context.Context
	tasks         sync.WaitGroup
	cancelNetwork func()
}

// NewManager validates the configuration, subscribes to connectivity
// transitions and returns the manager. When connectivity is regained and
// the ledger still holds pending entries, the worker is scheduled.
func NewManager(ctx context.Context, cfg ManagerConfig) (*Manager, error) {
	if cfg.Ledger == nil {
		return nil, newSyncError(opManagerNew, "missing_ledger", errMissingLedger)
	}
	if cfg.Records == nil {
		return nil, newSyncError(opManagerNew, "missing_records", errMissingRecords)
	}
	if cfg.Remote == nil {
		return nil, newSyncError(opManagerNew, "missing_remote", errMissingRemote)
	}
	if cfg.Collection == "" {
		return nil, newSyncError(opManagerNew, "missing_collection", errMissingCollection)
	}
	if cfg.Scheduler == nil {
		return nil, newSyncError(opManagerNew, "missing_scheduler", errMissingScheduler)
	}
	if cfg.Network == nil {
		return nil, newSyncError(opManagerNew, "missing_network", errMissingNetwork)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		ledger:     cfg.Ledger,
		records:    cfg.Records,
		remote:     cfg.Remote,
		collection: cfg.Collection,
		work:       cfg.Work,
		scheduler:  cfg.Scheduler,
		network:    cfg.Network,
		session:    cfg.Session,
		logger:     logger,
		baseCtx:    ctx,
	}
	m.cancelNetwork = cfg.Network.Subscribe(m.onNetworkChange)
	return m, nil
}

// Close cancels the connectivity subscription and waits for in-flight
// tasks. Tasks are never cancelled individually; they run to completion
// or failure regardless of caller lifecycle.
func (m *Manager) Close() {
	if m.cancelNetwork != nil {
		m.cancelNetwork()
	}
	m.tasks.Wait()
}

// Wait blocks until all tasks launched so far have finished. Intended
// for tests and shutdown paths.
func (m *Manager) Wait() {
	m.tasks.Wait()
}

// EnqueueUpload registers a freshly inserted record for sync and
// attempts immediate delivery when online.
func (m *Manager) EnqueueUpload(localID int64) {
	m.launch(func(ctx context.Context) {
		entry := ledger.Entry{RecordID: localID, State: ledger.StatePendingUpload, Uploaded: false}
		if err := m.ledger.Upsert(ctx, entry); err != nil {
			m.logError(opEnqueueUpload, "ledger_write_failed", err, localID)
			return
		}
		if !m.network.Online() {
			m.scheduler.Ensure(m.work)
			return
		}
		m.performUpload(ctx, localID)
	})
}

// EnqueueUpdate registers a field edit. A record that never reached the
// remote store stays PENDING_UPLOAD; the eventual upload carries the
// latest field values and no separate remote update is needed.
func (m *Manager) EnqueueUpdate(localID int64) {
	m.launch(func(ctx context.Context) {
		entry, found, err := m.ledger.Get(ctx, localID)
		if err != nil {
			m.logError(opEnqueueUpdate, "ledger_read_failed", err, localID)
			m.scheduler.Ensure(m.work)
			return
		}

		switch {
		case !found:
			// Never entered the ledger: treat as a fresh upload.
			upload := ledger.Entry{RecordID: localID, State: ledger.StatePendingUpload, Uploaded: false}
			if err := m.ledger.Upsert(ctx, upload); err != nil {
				m.logError(opEnqueueUpdate, "ledger_write_failed", err, localID)
				return
			}
			if !m.network.Online() {
				m.scheduler.Ensure(m.work)
				return
			}
			m.performUpload(ctx, localID)

		case entry.State == ledger.StatePendingDelete:
			m.logger.Warn("update ignored for record awaiting deletion",
				zap.String("operation", opEnqueueUpdate),
				zap.Int64("record_id", localID))

		case entry.State == ledger.StatePendingUpload:
			if !m.network.Online() {
				m.scheduler.Ensure(m.work)
				return
			}
			m.performUpload(ctx, localID)

		default:
			pending := ledger.Entry{RecordID: localID, State: ledger.StatePendingUpdate, Uploaded: entry.Uploaded}
			if err := m.ledger.Upsert(ctx, pending); err != nil {
				m.logError(opEnqueueUpdate, "ledger_write_failed", err, localID)
				return
			}
			if !m.network.Online() {
				m.scheduler.Ensure(m.work)
				return
			}
			m.performUpdate(ctx, localID)
		}
	})
}

// EnqueueDelete registers a deletion. A record still PENDING_UPLOAD has
// never reached the remote store: its ledger entry and local row are
// dropped immediately and no remote call or worker run is scheduled.
func (m *Manager) EnqueueDelete(localID int64) {
	m.launch(func(ctx context.Context) {
		entry, found, err := m.ledger.Get(ctx, localID)
		if err != nil {
			m.logError(opEnqueueDelete, "ledger_read_failed", err, localID)
			m.scheduler.Ensure(m.work)
			return
		}

		if found && entry.State == ledger.StatePendingUpload {
			if err := m.ledger.Remove(ctx, localID); err != nil {
				m.logError(opEnqueueDelete, "ledger_remove_failed", err, localID)
				return
			}
			if err := m.records.Remove(ctx, localID); err != nil {
				m.logError(opEnqueueDelete, "record_remove_failed", err, localID)
			}
			return
		}

		uploaded := true
		if found {
			uploaded = entry.Uploaded
		}
		pending := ledger.Entry{RecordID: localID, State: ledger.StatePendingDelete, Uploaded: uploaded}
		if err := m.ledger.Upsert(ctx, pending); err != nil {
			m.logError(opEnqueueDelete, "ledger_write_failed", err, localID)
			return
		}
		if !m.network.Online() {
			m.scheduler.Ensure(m.work)
			return
		}
		m.performDelete(ctx, localID)
	})
}

func (m *Manager) performUpload(ctx context.Context, localID int64) {
	view, err := m.records.View(ctx, localID)
	if err != nil {
		m.logError(opPerformUpload, "record_load_failed", err, localID)
		m.scheduler.Ensure(m.work)
		return
	}

	remoteID, err := m.remote.Add(ctx, m.collection, view.Fields)
	if err != nil {
		m.logger.Warn("remote add failed, deferring to worker",
			zap.String("operation", opPerformUpload),
			zap.Int64("record_id", localID),
			zap.Error(err))
		m.scheduler.Ensure(m.work)
		return
	}

	if err := m.records.SetRemoteID(ctx, localID, remoteID); err != nil {
		m.logError(opPerformUpload, "remote_id_store_failed", err, localID)
		return
	}
	if err := m.ledger.MarkUploaded(ctx, localID); err != nil {
		m.logError(opPerformUpload, "ledger_mark_failed", err, localID)
		return
	}
	m.logger.Debug("record uploaded",
		zap.Int64("record_id", localID),
		zap.String("remote_id", remoteID),
		zap.String("collection", m.collection))
}

func (m *Manager) performUpdate(ctx context.Context, localID int64) {
	view, err := m.records.View(ctx, localID)
	if err != nil {
		m.logError(opPerformUpdate, "record_load_failed", err, localID)
		m.scheduler.Ensure(m.work)
		return
	}

	remoteID, err := resolveRemoteID(ctx, m.remote, m.collection, view)
	if err != nil {
		m.logger.Warn("remote id resolution failed, deferring to worker",
			zap.String("operation", opPerformUpdate),
			zap.Int64("record_id", localID),
			zap.Error(err))
		m.scheduler.Ensure(m.work)
		return
	}

	if err := m.remote.Update(ctx, m.collection, remoteID, view.Diff); err != nil {
		m.logger.Warn("remote update failed, deferring to worker",
			zap.String("operation", opPerformUpdate),
			zap.Int64("record_id", localID),
			zap.Error(err))
		m.scheduler.Ensure(m.work)
		return
	}

	if err := m.ledger.MarkUploaded(ctx, localID); err != nil {
		m.logError(opPerformUpdate, "ledger_mark_failed", err, localID)
	}
}

func (m *Manager) performDelete(ctx context.Context, localID int64) {
	view, err := m.records.View(ctx, localID)
	if err != nil {
		m.logError(opPerformDelete, "record_load_failed", err, localID)
		m.scheduler.Ensure(m.work)
		return
	}

	remoteID, err := resolveRemoteID(ctx, m.remote, m.collection, view)
	if errors.Is(err, remote.ErrStaleMapping) {
		// No remote copy resolves for this record anymore; finish locally.
		m.removeLocal(ctx, opPerformDelete, localID)
		return
	}
	if err != nil {
		m.logger.Warn("remote id resolution failed, deferring to worker",
			zap.String("operation", opPerformDelete),
			zap.Int64("record_id", localID),
			zap.Error(err))
		m.scheduler.Ensure(m.work)
		return
	}

	if err := m.remote.Delete(ctx, m.collection, remoteID); err != nil {
		m.logger.Warn("remote delete failed, deferring to worker",
			zap.String("operation", opPerformDelete),
			zap.Int64("record_id", localID),
			zap.Error(err))
		m.scheduler.Ensure(m.work)
		return
	}

	m.removeLocal(ctx, opPerformDelete, localID)
}

func (m *Manager) removeLocal(ctx context.Context, operation string, localID int64) {
	if err := m.records.Remove(ctx, localID); err != nil {
		m.logError(operation, "record_remove_failed", err, localID)
		return
	}
	if err := m.ledger.Remove(ctx, localID); err != nil {
		m.logError(operation, "ledger_remove_failed", err, localID)
	}
}

func (m *Manager) onNetworkChange(online bool) {
	if !online {
		return
	}
	m.launch(func(ctx context.Context) {
		pending, err := m.ledger.HasPending(ctx)
		if err != nil {
			m.logError(opNetworkRegained, "ledger_read_failed", err, 0)
			return
		}
		if pending {
			m.scheduler.Ensure(m.work)
		}
	})
}

func (m *Manager) launch(task func(ctx context.Context)) {
	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		task(m.baseCtx)
	}()
}

func (m *Manager) logError(operation, reason string, err error, recordID int64) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("collection", m.collection),
		zap.String("owner_id", m.session.OwnerID()),
		zap.Error(err),
	}
	if recordID != 0 {
		fields = append(fields, zap.Int64("record_id", recordID))
	}
	m.logger.Error("sync manager error", fields...)
}
