// internal/store/store.go
package store

import (
	"context"

	"loan-pipeline/internal/models"
)

// SessionStore holds one record per in-flight application. GetOrCreate is
// idempotent per active customerRef: a customer resuming a conversation gets
// their existing session back, never a duplicate.
type SessionStore interface {
	// GetOrCreate returns the active session for customerRef, creating one in
	// the intake stage if none exists. The bool reports whether a session was
	// created by this call.
	GetOrCreate(ctx context.Context, customerRef string) (*models.Session, bool, error)

	// Get loads an active session by id.
	Get(ctx context.Context, sessionID string) (*models.Session, error)

	// Save persists the session's current state.
	Save(ctx context.Context, session *models.Session) error

	// Archive removes the session from active storage and writes it to
	// durable history. After archiving, the customerRef is free for a new
	// session.
	Archive(ctx context.Context, session *models.Session) error
}

// HistoryStore is the durable side: archived applications and the
// append-only manual review snapshot log.
type HistoryStore interface {
	ArchiveSession(ctx context.Context, session *models.Session) error
	AppendSnapshot(ctx context.Context, snapshot *models.ManualReviewSnapshot) error
}
