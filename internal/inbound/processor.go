// Package inbound consumes the remote change feed for records in which
// the current identity is the counterparty and materializes them into
// the local store. Inbound records are marked as not made by the owner
// and never enter the sync status ledger.
package inbound

import (
	"context"
	"errors"
	"fmt"

	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/party"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/record"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/remote"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/session"
	"go.uber.org/zap"
)

const (
	opProcessorNew = "inbound.processor.new"
	opApplyAdded   = "inbound.apply_added"
	opApplyEdit    = "inbound.apply_edit"
	opApplyRemoved = "inbound.apply_removed"
)

var (
	errMissingTransactions = errors.New("inbound: transaction store is required")
	errMissingParties      = errors.New("inbound: party service is required")
	// ErrMalformedDocument indicates a change-feed document missing
	// required fields; the event is dropped.
	ErrMalformedDocument = errors.New("inbound: malformed document")
)

// ProcessorConfig describes the processor's collaborators.
type ProcessorConfig struct {
	Transactions *record.CustomerTransactionStore
	Parties      *party.Service
	Session      session.Session
	Logger       *zap.Logger
}

// Processor applies remote change events to the local store. Amount and
// kind are inverted relative to the remote perspective: credit and debit
// are recorded from the writer's viewpoint, and the reader is the
// opposite party. Parties referenced by a new document are materialized
// with the remote owner identifier as id and default display name.
type Processor struct {
	transactions *record.CustomerTransactionStore
	parties      *party.Service
	session      session.Session
	logger       *zap.Logger
}

// NewProcessor validates the configuration and returns the processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Transactions == nil {
		return nil, fmt.Errorf("%s: %w", opProcessorNew, errMissingTransactions)
	}
	if cfg.Parties == nil {
		return nil, fmt.Errorf("%s: %w", opProcessorNew, errMissingParties)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		transactions: cfg.Transactions,
		parties:      cfg.Parties,
		session:      cfg.Session,
		logger:       logger,
	}, nil
}

// Apply routes one change event. Errors are returned for the listener to
// log; they never stop the feed.
func (p *Processor) Apply(ctx context.Context, event remote.ChangeEvent) error {
	switch event.Type {
	case remote.EventAdded:
		return p.applyAdded(ctx, event.Document)
	case remote.EventModified:
		return p.applyModified(ctx, event.Document)
	case remote.EventRemoved:
		return p.applyRemoved(ctx, event.Document)
	}
	return fmt.Errorf("%w: unknown event type %q", ErrMalformedDocument, event.Type)
}

func (p *Processor) applyAdded(ctx context.Context, doc remote.Document) error {
	existing, found, err := p.transactions.FindByRemoteID(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("%s: dedup lookup: %w", opApplyAdded, err)
	}
	if found {
		// At-least-once delivery: a redelivered ADDED may still carry a
		// newer edit.
		return p.applyEdit(ctx, existing, doc)
	}

	fields, err := parseDocument(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", opApplyAdded, err)
	}

	if err := p.parties.EnsureExists(ctx, fields.writerID, fields.writerID, p.session.OwnerID()); err != nil {
		return fmt.Errorf("%s: materialize party: %w", opApplyAdded, err)
	}

	localKind := fields.kind.Inverse()
	tx := record.CustomerTransaction{
		RemoteID:         doc.ID,
		OwnerID:          p.session.OwnerID(),
		CustomerID:       fields.writerID,
		Amount:           fields.amount,
		Description:      fields.description,
		Kind:             localKind,
		CreatedAtSeconds: fields.createdAt,
		Edited:           fields.edited,
		EditedAtSeconds:  fields.editedAt,
		MadeByOwner:      false,
	}
	if err := p.transactions.Insert(ctx, &tx); err != nil {
		return fmt.Errorf("%s: insert: %w", opApplyAdded, err)
	}
	if err := p.parties.AdjustBalance(ctx, fields.writerID, record.SignedAmount(localKind, fields.amount)); err != nil {
		return fmt.Errorf("%s: balance: %w", opApplyAdded, err)
	}

	p.logger.Debug("inbound record materialized",
		zap.String("remote_id", doc.ID),
		zap.String("writer_id", fields.writerID),
		zap.Int64("local_id", tx.LocalID))
	return nil
}

func (p *Processor) applyModified(ctx context.Context, doc remote.Document) error {
	existing, found, err := p.transactions.FindByRemoteID(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("%s: lookup: %w", opApplyEdit, err)
	}
	if !found {
		// An edit can arrive before the insert was materialized here.
		return p.applyAdded(ctx, doc)
	}
	return p.applyEdit(ctx, existing, doc)
}

// applyEdit updates a materialized record when the remote edit timestamp
// differs from the locally cached one.
func (p *Processor) applyEdit(ctx context.Context, existing record.CustomerTransaction, doc remote.Document) error {
	fields, err := parseDocument(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", opApplyEdit, err)
	}
	if fields.editedAt == existing.EditedAtSeconds {
		return nil
	}

	localKind := fields.kind.Inverse()
	if err := p.transactions.ApplyEdit(ctx, existing.LocalID, fields.amount, fields.description, localKind, fields.editedAt); err != nil {
		return fmt.Errorf("%s: update: %w", opApplyEdit, err)
	}

	delta := record.SignedAmount(localKind, fields.amount) - record.SignedAmount(existing.Kind, existing.Amount)
	if delta != 0 {
		if err := p.parties.AdjustBalance(ctx, existing.CustomerID, delta); err != nil {
			return fmt.Errorf("%s: balance: %w", opApplyEdit, err)
		}
	}
	return nil
}

func (p *Processor) applyRemoved(ctx context.Context, doc remote.Document) error {
	existing, found, err := p.transactions.FindByRemoteID(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("%s: lookup: %w", opApplyRemoved, err)
	}
	if !found {
		return nil
	}

	if err := p.transactions.Remove(ctx, existing.LocalID); err != nil {
		return fmt.Errorf("%s: remove: %w", opApplyRemoved, err)
	}
	if err := p.parties.AdjustBalance(ctx, existing.CustomerID, -record.SignedAmount(existing.Kind, existing.Amount)); err != nil {
		return fmt.Errorf("%s: balance: %w", opApplyRemoved, err)
	}
	return nil
}

// documentFields is the validated projection of one change-feed document.
type documentFields struct {
	writerID    string
	amount      int64
	description string
	kind        record.Kind
	createdAt   int64
	edited      bool
	editedAt    int64
}

func parseDocument(doc remote.Document) (documentFields, error) {
	writerID, ok := doc.Fields[record.FieldOwnerID].(string)
	if !ok || writerID == "" {
		return documentFields{}, fmt.Errorf("%w: missing %s", ErrMalformedDocument, record.FieldOwnerID)
	}
	amount, ok := fieldInt64(doc.Fields[record.FieldAmount])
	if !ok {
		return documentFields{}, fmt.Errorf("%w: missing %s", ErrMalformedDocument, record.FieldAmount)
	}
	rawKind, _ := doc.Fields[record.FieldKind].(string)
	kind, err := record.NewCustomerKind(rawKind)
	if err != nil {
		return documentFields{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	createdAt, ok := fieldInt64(doc.Fields[record.FieldCreatedAt])
	if !ok {
		return documentFields{}, fmt.Errorf("%w: missing %s", ErrMalformedDocument, record.FieldCreatedAt)
	}
	description, _ := doc.Fields[record.FieldDescription].(string)
	edited, _ := doc.Fields[record.FieldEdited].(bool)
	editedAt, _ := fieldInt64(doc.Fields[record.FieldEditedAt])

	return documentFields{
		writerID:    writerID,
		amount:      amount,
		description: description,
		kind:        kind,
		createdAt:   createdAt,
		edited:      edited,
		editedAt:    editedAt,
	}, nil
}

func fieldInt64(value any) (int64, bool) {
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
