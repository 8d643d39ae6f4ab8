// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"loan-pipeline/internal/common/database"
	stderrors "loan-pipeline/internal/common/errors"
	"loan-pipeline/internal/common/logger"
	"loan-pipeline/internal/models"
)

const (
	sessionKeyPrefix   = "session:"
	activeRefKeyPrefix = "active_customer:"
)

// RedisStore keeps active sessions in Redis. The uniqueness invariant is
// enforced with a SetNX index from customerRef to sessionId, so two
// concurrent first turns for the same customer converge on one session.
type RedisStore struct {
	redis   *database.RedisClient
	history HistoryStore
	log     logger.Logger
}

func NewRedisStore(redisClient *database.RedisClient, history HistoryStore, log logger.Logger) *RedisStore {
	return &RedisStore{
		redis:   redisClient,
		history: history,
		log:     log.WithFields(map[string]interface{}{"component": "session-store"}),
	}
}

func (r *RedisStore) GetOrCreate(ctx context.Context, customerRef string) (*models.Session, bool, error) {
	sessionID, err := r.redis.Get(ctx, activeRefKeyPrefix+customerRef)
	if err == nil {
		session, getErr := r.Get(ctx, sessionID)
		if getErr == nil {
			return session, false, nil
		}
		// Dangling index entry; clear it and create a fresh session.
		r.log.Warn("Active index pointed at a missing session", map[string]interface{}{
			"customerRef": customerRef,
			"sessionId":   sessionID,
		})
		if delErr := r.redis.Del(ctx, activeRefKeyPrefix+customerRef); delErr != nil {
			return nil, false, stderrors.NewSessionStoreFailedError(delErr)
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, false, stderrors.NewSessionStoreFailedError(err)
	}

	session := models.NewSession(customerRef)

	created, err := r.redis.Client.SetNX(ctx, activeRefKeyPrefix+customerRef, session.SessionID, 0).Result()
	if err != nil {
		return nil, false, stderrors.NewSessionStoreFailedError(err)
	}
	if !created {
		// Lost the race; return the winner's session for idempotency.
		winnerID, err := r.redis.Get(ctx, activeRefKeyPrefix+customerRef)
		if err != nil {
			return nil, false, stderrors.NewSessionStoreFailedError(err)
		}
		winner, err := r.Get(ctx, winnerID)
		if err != nil {
			return nil, false, err
		}
		return winner, false, nil
	}

	if err := r.Save(ctx, session); err != nil {
		return nil, false, err
	}

	r.log.Info("Created session", map[string]interface{}{
		"sessionId":   session.SessionID,
		"customerRef": customerRef,
	})
	return session, true, nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	data, err := r.redis.Get(ctx, sessionKeyPrefix+sessionID)
	if errors.Is(err, redis.Nil) {
		return nil, stderrors.NewSessionNotFoundError(sessionID)
	}
	if err != nil {
		return nil, stderrors.NewSessionStoreFailedError(err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, stderrors.NewSessionStoreFailedError(err)
	}
	return &session, nil
}

// Save persists the session body. The active index stays the uniqueness
// authority: saving a session for a customer whose index points at a
// different live session is a contract violation, not a recoverable state.
func (r *RedisStore) Save(ctx context.Context, session *models.Session) error {
	indexedID, err := r.redis.Get(ctx, activeRefKeyPrefix+session.CustomerRef)
	if err != nil && !errors.Is(err, redis.Nil) {
		return stderrors.NewSessionStoreFailedError(err)
	}
	if err == nil && indexedID != session.SessionID {
		return stderrors.NewDuplicateActiveSessionError(session.CustomerRef)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return stderrors.NewSessionStoreFailedError(err)
	}
	if err := r.redis.Set(ctx, sessionKeyPrefix+session.SessionID, data, 0); err != nil {
		return stderrors.NewSessionStoreFailedError(err)
	}
	return nil
}

// Archive writes the session to durable history before removing the active
// keys, so a history failure leaves the session retryable.
func (r *RedisStore) Archive(ctx context.Context, session *models.Session) error {
	if err := r.history.ArchiveSession(ctx, session); err != nil {
		return err
	}

	if err := r.redis.Del(ctx, sessionKeyPrefix+session.SessionID, activeRefKeyPrefix+session.CustomerRef); err != nil {
		return stderrors.NewSessionStoreFailedError(err)
	}

	r.log.Info("Archived session", map[string]interface{}{
		"sessionId":   session.SessionID,
		"customerRef": session.CustomerRef,
		"stage":       string(session.Stage),
	})
	return nil
}
