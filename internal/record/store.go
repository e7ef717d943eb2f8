package record

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Remote document field names shared by both verticals.
const (
	FieldOwnerID     = "ownerId"
	FieldReceiverID  = "receiverId"
	FieldLocalID     = "localId"
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldKind        = "kind"
	FieldCreatedAt   = "createdAt"
	FieldEdited      = "edited"
	FieldEditedAt    = "editedOn"
)

// Store is the data-access surface the sync manager and worker consume.
// Both transaction stores implement it.
type Store interface {
	// View loads the sync projection for one record. Returns ErrNotFound
	// when the record does not exist.
	View(ctx context.Context, localID int64) (View, error)
	// SetRemoteID stores the remote document id assigned on first upload.
	SetRemoteID(ctx context.Context, localID int64, remoteID string) error
	// Remove hard-deletes the local row. It is a no-op when the row is
	// already gone.
	Remove(ctx context.Context, localID int64) error
}

var errMissingDatabase = errors.New("record: database handle is required")

// CustomerTransactionStore persists customer-vertical transactions.
type CustomerTransactionStore struct {
	db *gorm.DB
}

// NewCustomerTransactionStore wraps the shared database handle.
func NewCustomerTransactionStore(db *gorm.DB) (*CustomerTransactionStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &CustomerTransactionStore{db: db}, nil
}

// Insert creates a new row and populates LocalID.
func (s *CustomerTransactionStore) Insert(ctx context.Context, tx *CustomerTransaction) error {
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("record: insert customer transaction: %w", err)
	}
	return nil
}

// Get loads one row by local id.
func (s *CustomerTransactionStore) Get(ctx context.Context, localID int64) (CustomerTransaction, error) {
	var tx CustomerTransaction
	err := s.db.WithContext(ctx).Where("local_id = ?", localID).Take(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CustomerTransaction{}, fmt.Errorf("%w: customer transaction %d", ErrNotFound, localID)
	}
	if err != nil {
		return CustomerTransaction{}, err
	}
	return tx, nil
}

// FindByRemoteID looks a row up by its remote document id. The boolean
// reports whether a row exists; the de-duplication key for inbound events.
func (s *CustomerTransactionStore) FindByRemoteID(ctx context.Context, remoteID string) (CustomerTransaction, bool, error) {
	var tx CustomerTransaction
	err := s.db.WithContext(ctx).Where("remote_id = ?", remoteID).Take(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CustomerTransaction{}, false, nil
	}
	if err != nil {
		return CustomerTransaction{}, false, err
	}
	return tx, true, nil
}

// ListByCustomer returns all rows for one party, newest first.
func (s *CustomerTransactionStore) ListByCustomer(ctx context.Context, customerID string) ([]CustomerTransaction, error) {
	var rows []CustomerTransaction
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at_s DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ApplyEdit updates the change-prone fields of one row and stamps the
// edit marker.
func (s *CustomerTransactionStore) ApplyEdit(ctx context.Context, localID int64, amount int64, description string, kind Kind, editedAtSeconds int64) error {
	return s.db.WithContext(ctx).
		Model(&CustomerTransaction{}).
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
func (s *CustomerTransactionStore) MarkDeleted(ctx context.Context, localID int64) error {
	return s.db.WithContext(ctx).
		Model(&CustomerTransaction{}).
		Where("local_id = ?", localID).
		Update("deleted", true).Error
}

// View implements Store.
func (s *CustomerTransactionStore) View(ctx context.Context, localID int64) (View, error) {
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
			FieldReceiverID:  tx.CustomerID,
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
func (s *CustomerTransactionStore) SetRemoteID(ctx context.Context, localID int64, remoteID string) error {
	return s.db.WithContext(ctx).
		Model(&CustomerTransaction{}).
		Where("local_id = ?", localID).
		Update("remote_id", remoteID).Error
}

// Remove implements Store.
func (s *CustomerTransactionStore) Remove(ctx context.Context, localID int64) error {
	return s.db.WithContext(ctx).
		Where("local_id = ?", localID).
		Delete(&CustomerTransaction{}).Error
}
