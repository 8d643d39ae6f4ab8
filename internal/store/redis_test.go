package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-pipeline/internal/common/config"
	"loan-pipeline/internal/common/database"
	stderrors "loan-pipeline/internal/common/errors"
	"loan-pipeline/internal/common/logger"
	"loan-pipeline/internal/models"
)

// ==========================
// Test Helpers
// ==========================

type fakeHistory struct {
	archived  []*models.Session
	snapshots []*models.ManualReviewSnapshot
	failNext  error
}

func (f *fakeHistory) ArchiveSession(ctx context.Context, session *models.Session) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.archived = append(f.archived, session)
	return nil
}

func (f *fakeHistory) AppendSnapshot(ctx context.Context, snapshot *models.ManualReviewSnapshot) error {
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

func createTestStore(t *testing.T) (*RedisStore, *fakeHistory, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	history := &fakeHistory{}
	return NewRedisStore(client, history, logger.NewTestLogger(t)), history, mr
}

// ==========================
// GetOrCreate
// ==========================

func TestRedisStore_GetOrCreate_NewCustomer(t *testing.T) {
	s, _, _ := createTestStore(t)
	ctx := context.Background()

	session, created, err := s.GetOrCreate(ctx, "+919000000001")
	require.NoError(t, err)

	assert.True(t, created)
	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, models.StageIntake, session.Stage)
	assert.Equal(t, "+919000000001", session.CustomerRef)
}

func TestRedisStore_GetOrCreate_Idempotent(t *testing.T) {
	s, _, _ := createTestStore(t)
	ctx := context.Background()

	first, created, err := s.GetOrCreate(ctx, "+919000000002")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.GetOrCreate(ctx, "+919000000002")
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestRedisStore_GetOrCreate_AfterArchiveStartsFresh(t *testing.T) {
	s, history, _ := createTestStore(t)
	ctx := context.Background()

	first, _, err := s.GetOrCreate(ctx, "+919000000003")
	require.NoError(t, err)

	first.Stage = models.StageRejected
	require.NoError(t, s.Archive(ctx, first))
	require.Len(t, history.archived, 1)

	second, created, err := s.GetOrCreate(ctx, "+919000000003")
	require.NoError(t, err)

	assert.True(t, created)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, models.StageIntake, second.Stage)
}

// ==========================
// Save / Get
// ==========================

func TestRedisStore_SaveRoundTrip(t *testing.T) {
	s, _, _ := createTestStore(t)
	ctx := context.Background()

	session, _, err := s.GetOrCreate(ctx, "+919000000004")
	require.NoError(t, err)

	session.SetField("requested_amount_minor", "50000000")
	session.Stage = models.StageVerification
	session.IncrementRetry(models.StageVerification)
	require.NoError(t, s.Save(ctx, session))

	loaded, err := s.Get(ctx, session.SessionID)
	require.NoError(t, err)

	assert.Equal(t, models.StageVerification, loaded.Stage)
	assert.Equal(t, "50000000", loaded.CollectedFields["requested_amount_minor"])
	assert.Equal(t, 1, loaded.RetryCounts[models.StageVerification])
}

func TestRedisStore_Save_SecondSessionForActiveCustomerRejected(t *testing.T) {
	s, _, _ := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.GetOrCreate(ctx, "+919000000007")
	require.NoError(t, err)

	// A session built outside GetOrCreate for the same customer must not
	// be persistable while the first one is still active.
	rogue := models.NewSession("+919000000007")
	err = s.Save(ctx, rogue)
	require.Error(t, err)

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeDuplicateActiveSession, stdErr.Code)
	assert.False(t, stdErr.Retryable)

	_, err = s.Get(ctx, rogue.SessionID)
	assert.Error(t, err, "the rogue session must not have been written")
}

func TestRedisStore_Get_Missing(t *testing.T) {
	s, _, _ := createTestStore(t)

	_, err := s.Get(context.Background(), "no-such-session")
	assert.Error(t, err)
}

// ==========================
// Archive
// ==========================

func TestRedisStore_Archive_HistoryFailureKeepsSessionActive(t *testing.T) {
	s, history, _ := createTestStore(t)
	ctx := context.Background()

	session, _, err := s.GetOrCreate(ctx, "+919000000005")
	require.NoError(t, err)

	history.failNext = assert.AnError
	require.Error(t, s.Archive(ctx, session))

	// The session must still be loadable and the customerRef still bound.
	loaded, err := s.Get(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, loaded.SessionID)

	same, created, err := s.GetOrCreate(ctx, "+919000000005")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, session.SessionID, same.SessionID)
}

func TestRedisStore_Archive_ClearsActiveIndex(t *testing.T) {
	s, _, mr := createTestStore(t)
	ctx := context.Background()

	session, _, err := s.GetOrCreate(ctx, "+919000000006")
	require.NoError(t, err)
	require.NoError(t, s.Archive(ctx, session))

	assert.False(t, mr.Exists(sessionKeyPrefix+session.SessionID))
	assert.False(t, mr.Exists(activeRefKeyPrefix+session.CustomerRef))
}
