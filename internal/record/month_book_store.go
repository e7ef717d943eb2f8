package record

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// MonthBookTransactionStore persists month-book income/expense entries.
type MonthBookTransactionStore struct {
	db *gorm.DB
}

// NewMonthBookTransactionStore wraps the shared database handle.
func NewMonthBookTransactionStore(db *gorm.DB) (*MonthBookTransactionStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &MonthBookTransactionStore{db: db}, nil
}

// Insert creates a new row and populates LocalID.
func (s *MonthBookTransactionStore) Insert(ctx context.Context, tx *MonthBookTransaction) error {
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("record: insert month book transaction: %w", err)
	}
	return nil
}

// Get loads one row by local id.
func (s *MonthBookTransactionStore) Get(ctx context.Context, localID int64) (MonthBookTransaction, error) {
	var tx MonthBookTransaction
	err := s.db.WithContext(ctx).Where("local_id = ?", localID).Take(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MonthBookTransaction{}, fmt.Errorf("%w: month book transaction %d", ErrNotFound, localID)
	}
	if err != nil {
		return MonthBookTransaction{}, err
	}
	return tx, nil
}

// ListByOwner returns all rows for one owner, newest first.
func (s *MonthBookTransactionStore) ListByOwner(ctx context.Context, ownerID string) ([]MonthBookTransaction, error) {
	var rows []MonthBookTransaction
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at_s DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ApplyEdit updates the change-prone fields of one row and stamps the
// edit marker.
func (s *MonthBookTransactionStore) ApplyEdit(ctx context.Context, localID int64, amount int64, description string, kind Kind, editedAtSeconds int64) error {
	return s.db.WithContext(ctx).
		Model(&MonthBookTransaction{}).
		Where("local_id = ?", localID).
		Updates(map[string]any{
			"amount":      amount,
			"description": description,
			"kind":        kind,
			"edited":      true,
			"edited_at_s": editedAtSeconds,
		}).Error
}

// MarkDeleted sets the soft-delete flag; the row survives until the
// remote delete is confirmed.
func (s *MonthBookTransactionStore) MarkDeleted(ctx context.Context, localID int64) error {
	return s.db.WithContext(ctx).
		Model(&MonthBookTransaction{}).
		Where("local_id = ?", localID).
		Update("deleted", true).Error
}

// View implements Store.
func (s *MonthBookTransactionStore) View(ctx context.Context, localID int64) (View, error) {
	tx, err := s.Get(ctx, localID)
	if err != nil {
		return View{}, err
	}
	return View{
		LocalID:          tx.LocalID,
		RemoteID:         tx.RemoteID,
		OwnerID:          tx.OwnerID,
		CreatedAtSeconds: tx.CreatedAtSeconds,
		Fields: map[string]any{
			FieldOwnerID:     tx.OwnerID,
			FieldLocalID:     tx.LocalID,
			FieldAmount:      tx.Amount,
			FieldDescription: tx.Description,
			FieldKind:        tx.Kind.String(),
			FieldCreatedAt:   tx.CreatedAtSeconds,
			FieldEdited:      tx.Edited,
			FieldEditedAt:    tx.EditedAtSeconds,
		},
		Diff: map[string]any{
			FieldAmount:      tx.Amount,
			FieldDescription: tx.Description,
			FieldKind:        tx.Kind.String(),
			FieldEdited:      tx.Edited,
			FieldEditedAt:    tx.EditedAtSeconds,
		},
	}, nil
}

// SetRemoteID implements Store.
func (s *MonthBookTransactionStore) SetRemoteID(ctx context.Context, localID int64, remoteID string) error {
	return s.db.WithContext(ctx).
		Model(&MonthBookTransaction{}).
		Where("local_id = ?", localID).
		Update("remote_id", remoteID).Error
}

// Remove implements Store.
func (s *MonthBookTransactionStore) Remove(ctx context.Context, localID int64) error {
	return s.db.WithContext(ctx).
		Where("local_id = ?", localID).
		Delete(&MonthBookTransaction{}).Error
}
