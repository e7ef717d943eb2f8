// Package remote abstracts the cloud document store the sync engine
// reconciles against. The engine depends only on the Store interface;
// the concrete transport lives behind it.
package remote

import (
	"context"
	"errors"
)

var (
	// ErrRemoteUnavailable indicates a network or transport failure; the
	// operation may succeed when retried later.
	ErrRemoteUnavailable = errors.New("remote: unavailable")
	// ErrRemoteRejected indicates remote-side validation or permission
	// refusal of an otherwise delivered request.
	ErrRemoteRejected = errors.New("remote: rejected")
	// ErrStaleMapping indicates a cached remote id no longer resolves to
	// a document; callers fall back to business-key recovery.
	ErrStaleMapping = errors.New("remote: stale id mapping")
)

// Document is one remote record: an id plus a flat field set.
type Document struct {
	ID     string
	Fields map[string]any
}

// EventType classifies a change-feed event.
type EventType string

const (
	// EventAdded signals a newly created document.
	EventAdded EventType = "ADDED"
	// EventModified signals changed fields on an existing document.
	EventModified EventType = "MODIFIED"
	// EventRemoved signals a deleted document.
	EventRemoved EventType = "REMOVED"
)

// ChangeEvent is one entry of the change feed. Delivery is at-least-once
// and ordered per document, not across documents.
type ChangeEvent struct {
	Type     EventType
	Document Document
}

// Store is the adapter contract for the remote document store.
type Store interface {
	// Add creates a new document and returns its remote id.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Update applies a partial update of the named fields only.
	Update(ctx context.Context, collection, remoteID string, diff map[string]any) error
	// Delete removes a document.
	Delete(ctx context.Context, collection, remoteID string) error
	// QueryByField returns documents whose field equals the value; the
	// business-key recovery path when a cached remote id is lost.
	QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error)
	// Subscribe opens a change feed for documents whose filter field
	// equals the filter value. The feed closes when ctx is cancelled.
	Subscribe(ctx context.Context, collection, filterField string, filterValue any) (<-chan ChangeEvent, error)
}
