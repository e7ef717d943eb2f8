package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const subscriberBufferSize = 16

// MemoryStore is an in-process Store used by the demo daemon and the
// test suite. It keeps documents per collection, fans change events out
// to matching subscribers, and supports fault injection to drive retry
// paths.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	subscribers map[int64]*feedSubscriber
	nextID      int64

	failNext map[string]error

	addCalls    int64
	updateCalls int64
	deleteCalls int64
	queryCalls  int64
}

type feedSubscriber struct {
	collection  string
	filterField string
	filterValue any
	stream      chan ChangeEvent
}

// Operation names accepted by FailNext.
const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpDelete = "delete"
	OpQuery  = "query"
)

// NewMemoryStore creates an empty in-process document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		subscribers: make(map[int64]*feedSubscriber),
		failNext:    make(map[string]error),
	}
}

// FailNext arms a one-shot failure for the named operation. The next
// call of that operation returns err and consumes the injection.
func (s *MemoryStore) FailNext(operation string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[operation] = err
}

func (s *MemoryStore) takeFailure(operation string) error {
	if err, ok := s.failNext[operation]; ok {
		delete(s.failNext, operation)
		return err
	}
	return nil
}

// Add implements Store.
func (s *MemoryStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	s.mu.Lock()
	s.addCalls++
	if err := s.takeFailure(OpAdd); err != nil {
		s.mu.Unlock()
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %v", ErrRemoteRejected, err)
	}
	remoteID := id.String()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		s.collections[collection] = docs
	}
	docs[remoteID] = cloneFields(fields)
	s.publishLocked(collection, fields, ChangeEvent{Type: EventAdded, Document: Document{ID: remoteID, Fields: cloneFields(fields)}})
	s.mu.Unlock()
	return remoteID, nil
}

// Update implements Store. Unknown ids resolve to ErrStaleMapping.
func (s *MemoryStore) Update(ctx context.Context, collection, remoteID string, diff map[string]any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	s.mu.Lock()
	s.updateCalls++
	if err := s.takeFailure(OpUpdate); err != nil {
		s.mu.Unlock()
		return err
	}
	doc, ok := s.collections[collection][remoteID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrStaleMapping, collection, remoteID)
	}
	for field, value := range diff {
		doc[field] = value
	}
	s.publishLocked(collection, doc, ChangeEvent{Type: EventModified, Document: Document{ID: remoteID, Fields: cloneFields(doc)}})
	s.mu.Unlock()
	return nil
}

// Delete implements Store. Deleting an unknown id is a no-op; the
// outcome the caller wanted already holds.
func (s *MemoryStore) Delete(ctx context.Context, collection, remoteID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	s.mu.Lock()
	s.deleteCalls++
	if err := s.takeFailure(OpDelete); err != nil {
		s.mu.Unlock()
		return err
	}
	doc, ok := s.collections[collection][remoteID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.collections[collection], remoteID)
	s.publishLocked(collection, doc, ChangeEvent{Type: EventRemoved, Document: Document{ID: remoteID, Fields: cloneFields(doc)}})
	s.mu.Unlock()
	return nil
}

// QueryByField implements Store.
func (s *MemoryStore) QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	s.mu.Lock()
	s.queryCalls++
	if err := s.takeFailure(OpQuery); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	var matches []Document
	for id, fields := range s.collections[collection] {
		if fieldEquals(fields[field], value) {
			matches = append(matches, Document{ID: id, Fields: cloneFields(fields)})
		}
	}
	s.mu.Unlock()
	return matches, nil
}

// Subscribe implements Store. The feed delivers events for documents
// whose filter field equals the filter value; slow consumers drop
// events rather than block publishers.
func (s *MemoryStore) Subscribe(ctx context.Context, collection, filterField string, filterValue any) (<-chan ChangeEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	sub := &feedSubscriber{
		collection:  collection,
		filterField: filterField,
		filterValue: filterValue,
		stream:      make(chan ChangeEvent, subscriberBufferSize),
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subscribers[id] = sub
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
		close(sub.stream)
	}()

	return sub.stream, nil
}

// Document returns a copy of one stored document for test assertions.
func (s *MemoryStore) Document(collection, remoteID string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.collections[collection][remoteID]
	if !ok {
		return Document{}, false
	}
	return Document{ID: remoteID, Fields: cloneFields(fields)}, true
}

// Count returns the number of documents in a collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// AddCalls returns how many Add calls were made, including failed ones.
func (s *MemoryStore) AddCalls() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addCalls
}

// UpdateCalls returns how many Update calls were made, including failed ones.
func (s *MemoryStore) UpdateCalls() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updateCalls
}

// DeleteCalls returns how many Delete calls were made, including failed ones.
func (s *MemoryStore) DeleteCalls() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleteCalls
}

// publishLocked fans an event out to subscribers whose filter matches
// the document. Sends are non-blocking and happen under the store lock,
// which also orders them against stream closure on unsubscribe.
func (s *MemoryStore) publishLocked(collection string, fields map[string]any, event ChangeEvent) {
	for _, sub := range s.subscribers {
		if sub.collection != collection {
			continue
		}
		if !fieldEquals(fields[sub.filterField], sub.filterValue) {
			continue
		}
		select {
		case sub.stream <- event:
		default:
		}
	}
}

func cloneFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields))
	for field, value := range fields {
		copied[field] = value
	}
	return copied
}

// fieldEquals compares document field values, tolerating the integer
// width differences that appear once values cross a serialization
// boundary.
func fieldEquals(left, right any) bool {
	if li, lok := asInt64(left); lok {
		if ri, rok := asInt64(right); rok {
			return li == ri
		}
		return false
	}
	return left == right
}

func asInt64(value any) (int64, bool) {
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
