package session

import (
	"fmt"
	"time"
)

// NotFoundError reports a load of an unknown session id.
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// PersistenceError reports a store read or write failure. The in-memory
// session stays dirty so the caller may retry the operation.
type PersistenceError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *PersistenceError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("session store: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("session %s: %s failed: %v", e.SessionID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ExpiredSessionError reports an operation attempted on an expired,
// non-resumed session.
type ExpiredSessionError struct {
	SessionID   string
	LastUpdated time.Time
}

func (e *ExpiredSessionError) Error() string {
	return fmt.Sprintf("session %s expired (last updated %s)", e.SessionID, e.LastUpdated.Format(time.RFC3339))
}
