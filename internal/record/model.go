// Package record holds the transaction models kept in the local SQLite
// cache and the narrow store surface the sync engine consumes.
package record

import (
	"errors"
	"fmt"
	"strings"
)

// Remote collection paths for the two transaction verticals.
const (
	CustomerCollection  = "customerTransactions"
	MonthBookCollection = "monthBookTransactions"
)

const maxIdentifierLength = 190

var (
	// ErrNotFound indicates the requested record does not exist locally.
	ErrNotFound = errors.New("record: not found")
	// ErrInvalidKind indicates a transaction kind outside the vertical's vocabulary.
	ErrInvalidKind = errors.New("record: invalid kind")
	// ErrInvalidOwnerID indicates an empty or oversized owner identifier.
	ErrInvalidOwnerID = errors.New("record: invalid owner id")
)

// Kind categorizes a transaction within its vertical.
type Kind string

const (
	// KindCredit records money given to a customer.
	KindCredit Kind = "credit"
	// KindDebit records money received from a customer.
	KindDebit Kind = "debit"
	// KindIncome records month-book income.
	KindIncome Kind = "income"
	// KindExpense records month-book expense.
	KindExpense Kind = "expense"
)

// NewCustomerKind validates a raw kind value for the customer vertical.
func NewCustomerKind(rawInput string) (Kind, error) {
	switch Kind(strings.TrimSpace(rawInput)) {
	case KindCredit:
		return KindCredit, nil
	case KindDebit:
		return KindDebit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, rawInput)
}

// NewMonthBookKind validates a raw kind value for the month-book vertical.
func NewMonthBookKind(rawInput string) (Kind, error) {
	switch Kind(strings.TrimSpace(rawInput)) {
	case KindIncome:
		return KindIncome, nil
	case KindExpense:
		return KindExpense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, rawInput)
}

// Inverse returns the kind as seen from the opposite party. Credit and
// debit swap between writer and reader; month-book kinds have no
// counterparty and map to themselves.
func (k Kind) Inverse() Kind {
	switch k {
	case KindCredit:
		return KindDebit
	case KindDebit:
		return KindCredit
	}
	return k
}

// String returns the raw kind value.
func (k Kind) String() string {
	return string(k)
}

// NewOwnerID validates an owner identifier.
func NewOwnerID(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidOwnerID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidOwnerID, maxIdentifierLength)
	}
	return trimmed, nil
}

// SignedAmount maps a transaction onto the party balance aggregate:
// credit increases what the party owes, debit decreases it. Month-book
// kinds carry their sign the same way for the monthly total.
func SignedAmount(kind Kind, amount int64) int64 {
	switch kind {
	case KindDebit, KindExpense:
		return -amount
	}
	return amount
}

// CustomerTransaction models one credit/debit entry against a customer.
// Amounts are stored in minor currency units.
type CustomerTransaction struct {
	LocalID          int64  `gorm:"column:local_id;primaryKey;autoIncrement"`
	RemoteID         string `gorm:"column:remote_id;size:190;index:idx_customer_tx_remote"`
	OwnerID          string `gorm:"column:owner_id;size:190;not null;index:idx_customer_tx_owner"`
	CustomerID       string `gorm:"column:customer_id;size:190;not null;index:idx_customer_tx_customer"`
	Amount           int64  `gorm:"column:amount;not null"`
	Description      string `gorm:"column:description;type:text;not null;default:''"`
	Kind             Kind   `gorm:"column:kind;size:16;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	Edited           bool   `gorm:"column:edited;not null;default:false"`
	EditedAtSeconds  int64  `gorm:"column:edited_at_s;not null;default:0"`
	Deleted          bool   `gorm:"column:deleted;not null;default:false"`
	MadeByOwner      bool   `gorm:"column:made_by_owner;not null;default:true"`
}

// TableName provides the explicit table binding for GORM.
func (CustomerTransaction) TableName() string {
	return "customer_transactions"
}

// MonthBookTransaction models one income/expense entry in the month book.
type MonthBookTransaction struct {
	LocalID          int64  `gorm:"column:local_id;primaryKey;autoIncrement"`
	RemoteID         string `gorm:"column:remote_id;size:190;index:idx_month_book_tx_remote"`
	OwnerID          string `gorm:"column:owner_id;size:190;not null;index:idx_month_book_tx_owner"`
	Amount           int64  `gorm:"column:amount;not null"`
	Description      string `gorm:"column:description;type:text;not null;default:''"`
	Kind             Kind   `gorm:"column:kind;size:16;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	Edited           bool   `gorm:"column:edited;not null;default:false"`
	EditedAtSeconds  int64  `gorm:"column:edited_at_s;not null;default:0"`
	Deleted          bool   `gorm:"column:deleted;not null;default:false"`
	MadeByOwner      bool   `gorm:"column:made_by_owner;not null;default:true"`
}

// TableName provides the explicit table binding for GORM.
func (MonthBookTransaction) TableName() string {
	return "month_book_transactions"
}

// View is the vertical-agnostic projection of one transaction row that
// the sync engine operates on. Fields carries the full remote document
// for an upload; Diff carries only the change-prone fields for a
// partial remote update.
type View struct {
	LocalID          int64
	RemoteID         string
	OwnerID          string
	CreatedAtSeconds int64
	Fields           map[string]any
	Diff             map[string]any
}
