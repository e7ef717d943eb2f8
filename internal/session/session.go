package session

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

// ErrInvalidOwnerID indicates the session owner identifier is empty or exceeds storage bounds.
var ErrInvalidOwnerID = errors.New("session: invalid owner id")

// Session carries the identity of the device owner for one sync session.
// It is constructed once after sign-in and passed explicitly to the
// manager, worker and listener constructors; there is no process-wide
// current-user state.
type Session struct {
	ownerID string
}

// New validates the owner identifier and returns a Session.
func New(rawOwnerID string) (Session, error) {
	trimmed := strings.TrimSpace(rawOwnerID)
	if trimmed == "" {
		return Session{}, fmt.Errorf("%w: empty", ErrInvalidOwnerID)
	}
	if len(trimmed) > maxIdentifierLength {
		return Session{}, fmt.Errorf("%w: exceeds %d characters", ErrInvalidOwnerID, maxIdentifierLength)
	}
	return Session{ownerID: trimmed}, nil
}

// OwnerID returns the owner identifier for this session.
func (s Session) OwnerID() string {
	return s.ownerID
}
