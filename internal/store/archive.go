// internal/store/archive.go
package store

import (
	"context"
	"encoding/json"
	"time"

	"loan-pipeline/internal/common/database"
	stderrors "loan-pipeline/internal/common/errors"
	"loan-pipeline/internal/common/logger"
	"loan-pipeline/internal/models"
)

const insertArchivedSessionQuery = `
	INSERT INTO archived_sessions (
		session_id, customer_ref, stage, collected_fields,
		retry_counts, decision_record, created_at, archived_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const insertSnapshotQuery = `
	INSERT INTO manual_review_snapshots (
		snapshot_id, session_id, customer_ref, collected_fields,
		reasons, anomaly_flags, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)`

// PostgresHistory writes terminal sessions and manual review snapshots to
// Postgres. Both tables are append-only from the pipeline's point of view.
type PostgresHistory struct {
	db  *database.PostgresClient
	log logger.Logger
}

func NewPostgresHistory(db *database.PostgresClient, log logger.Logger) *PostgresHistory {
	return &PostgresHistory{
		db:  db,
		log: log.WithFields(map[string]interface{}{"component": "history-store"}),
	}
}

func (h *PostgresHistory) ArchiveSession(ctx context.Context, session *models.Session) error {
	fields, err := json.Marshal(session.CollectedFields)
	if err != nil {
		return stderrors.NewArchiveFailedError(err)
	}
	retries, err := json.Marshal(session.RetryCounts)
	if err != nil {
		return stderrors.NewArchiveFailedError(err)
	}

	var decision []byte
	if session.DecisionRecord != nil {
		decision, err = json.Marshal(session.DecisionRecord)
		if err != nil {
			return stderrors.NewArchiveFailedError(err)
		}
	}

	_, err = h.db.Exec(ctx, insertArchivedSessionQuery,
		session.SessionID,
		session.CustomerRef,
		string(session.Stage),
		fields,
		retries,
		decision,
		session.CreatedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return stderrors.NewArchiveFailedError(err)
	}

	h.log.Info("Wrote archived session", map[string]interface{}{
		"sessionId": session.SessionID,
		"stage":     string(session.Stage),
	})
	return nil
}

func (h *PostgresHistory) AppendSnapshot(ctx context.Context, snapshot *models.ManualReviewSnapshot) error {
	fields, err := json.Marshal(snapshot.CollectedFields)
	if err != nil {
		return stderrors.NewSnapshotWriteFailedError(err)
	}
	reasons, err := json.Marshal(snapshot.Reasons)
	if err != nil {
		return stderrors.NewSnapshotWriteFailedError(err)
	}
	flags, err := json.Marshal(snapshot.AnomalyFlags)
	if err != nil {
		return stderrors.NewSnapshotWriteFailedError(err)
	}

	_, err = h.db.Exec(ctx, insertSnapshotQuery,
		snapshot.SnapshotID,
		snapshot.SessionID,
		snapshot.CustomerRef,
		fields,
		reasons,
		flags,
		snapshot.CreatedAt,
	)
	if err != nil {
		return stderrors.NewSnapshotWriteFailedError(err)
	}

	h.log.Info("Appended manual review snapshot", map[string]interface{}{
		"snapshotId": snapshot.SnapshotID,
		"sessionId":  snapshot.SessionID,
	})
	return nil
}
