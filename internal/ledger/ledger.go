// Package ledger implements the per-record sync status ledger: the
// durable mapping from local record id to outstanding remote action.
// It is the single source of truth for what still needs to leave the
// device, shared by the reactive manager and the batch worker.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Table names backing the two sync verticals. Both use the same Entry
// shape; one Ledger instance is bound to one table.
const (
	CustomerStatusTable  = "customer_sync_status"
	MonthBookStatusTable = "month_book_sync_status"
)

var (
	// ErrMissingDatabase indicates the ledger was constructed without a handle.
	ErrMissingDatabase = errors.New("ledger: database handle is required")
	// ErrMissingTable indicates the ledger was constructed without a table name.
	ErrMissingTable = errors.New("ledger: table name is required")
)

// State enumerates the sync state machine for one record.
type State string

const (
	// StatePendingUpload marks a record that has never reached the remote store.
	StatePendingUpload State = "PENDING_UPLOAD"
	// StatePendingUpdate marks an uploaded record with unsynced field edits.
	StatePendingUpdate State = "PENDING_UPDATE"
	// StatePendingDelete marks an uploaded record awaiting remote deletion.
	StatePendingDelete State = "PENDING_DELETE"
	// StateUploaded is the terminal synced state.
	StateUploaded State = "UPLOADED"
)

// Entry is one sync-status row. Uploaded reports whether the record has
// ever completed a successful round-trip; it is monotonic and never
// reset by normal operation.
type Entry struct {
	RecordID int64 `gorm:"column:record_id;primaryKey"`
	State    State `gorm:"column:sync_state;size:32;not null"`
	Uploaded bool  `gorm:"column:uploaded;not null;default:false"`
}

// Ledger is the gorm-backed status DAO for one vertical.
type Ledger struct {
	db    *gorm.DB
	table string
}

// New binds a ledger to its backing table.
func New(db *gorm.DB, table string) (*Ledger, error) {
	if db == nil {
		return nil, ErrMissingDatabase
	}
	if table == "" {
		return nil, ErrMissingTable
	}
	return &Ledger{db: db, table: table}, nil
}

// Migrate creates the backing table when absent.
func (l *Ledger) Migrate() error {
	return l.db.Table(l.table).AutoMigrate(&Entry{})
}

// Upsert inserts or replaces the entry for its record id. Every call is
// the result of an explicit state-transition decision by the manager or
// worker; there is no merge logic here.
func (l *Ledger) Upsert(ctx context.Context, entry Entry) error {
	err := l.db.WithContext(ctx).Table(l.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "record_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"sync_state", "uploaded"}),
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("ledger: upsert entry %d: %w", entry.RecordID, err)
	}
	return nil
}

// Get performs a point lookup. The boolean reports whether the entry exists.
func (l *Ledger) Get(ctx context.Context, recordID int64) (Entry, bool, error) {
	var entry Entry
	err := l.db.WithContext(ctx).Table(l.table).
		Where("record_id = ?", recordID).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// ListByState returns all entries in the given state.
func (l *Ledger) ListByState(ctx context.Context, state State) ([]Entry, error) {
	var entries []Entry
	err := l.db.WithContext(ctx).Table(l.table).
		Where("sync_state = ?", state).
		Order("record_id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListPendingUnuploaded returns entries that have never completed a
// round-trip and are not awaiting deletion: the upload sweep's input.
func (l *Ledger) ListPendingUnuploaded(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := l.db.WithContext(ctx).Table(l.table).
		Where("uploaded = ? AND sync_state <> ?", false, StatePendingDelete).
		Order("record_id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkUploaded sets the terminal synced state and the monotonic uploaded
// flag. Idempotent: repeating it leaves the row unchanged.
func (l *Ledger) MarkUploaded(ctx context.Context, recordID int64) error {
	return l.db.WithContext(ctx).Table(l.table).
		Where("record_id = ?", recordID).
		Updates(map[string]any{
			"sync_state": StateUploaded,
			"uploaded":   true,
		}).Error
}

// Remove deletes the entry. Idempotent: removing an absent entry is a no-op.
func (l *Ledger) Remove(ctx context.Context, recordID int64) error {
	return l.db.WithContext(ctx).Table(l.table).
		Where("record_id = ?", recordID).
		Delete(&Entry{}).Error
}

// HasPending reports whether any entry still awaits a remote action.
// The worker uses it as its completion signal.
func (l *Ledger) HasPending(ctx context.Context) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).Table(l.table).
		Where("sync_state IN ?", []State{StatePendingUpload, StatePendingUpdate, StatePendingDelete}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountByState returns the number of entries per state; feeds the
// pending-count surface of the status API.
func (l *Ledger) CountByState(ctx context.Context) (map[State]int64, error) {
	type row struct {
		SyncState State `gorm:"column:sync_state"`
		Total     int64 `gorm:"column:total"`
	}
	var rows []row
	err := l.db.WithContext(ctx).Table(l.table).
		Select("sync_state, COUNT(*) AS total").
		Group("sync_state").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[State]int64, len(rows))
	for _, r := range rows {
		counts[r.SyncState] = r.Total
	}
	return counts, nil
}
