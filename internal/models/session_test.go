// internal/models/session_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_StartsAtIntake(t *testing.T) {
	s := NewSession("+919000000001")

	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, "+919000000001", s.CustomerRef)
	assert.Equal(t, StageIntake, s.Stage)
	assert.Empty(t, s.CollectedFields)
	assert.Nil(t, s.DecisionRecord)
}

func TestSession_SetField_OverwritesWithoutReset(t *testing.T) {
	s := NewSession("+919000000001")

	s.SetField("declared_salary_minor", "4000000")
	s.SetField("declared_salary_minor", "4500000")
	s.SetField("tenure_months", "60")

	v, ok := s.Field("declared_salary_minor")
	require.True(t, ok)
	assert.Equal(t, "4500000", v)
	assert.Len(t, s.CollectedFields, 2)
}

func TestSession_RecordDecision_WriteOnce(t *testing.T) {
	s := NewSession("+919000000001")

	first := &Verdict{Outcome: OutcomeApprove, Reasons: []string{}, AnomalyFlags: []string{}}
	require.NoError(t, s.RecordDecision(first))

	err := s.RecordDecision(&Verdict{Outcome: OutcomeReject})
	assert.Error(t, err)
	assert.Equal(t, first, s.DecisionRecord, "the recorded verdict must be unchanged")
}

func TestSession_IncrementRetry_PerStage(t *testing.T) {
	s := NewSession("+919000000001")

	assert.Equal(t, 1, s.IncrementRetry(StageVerification))
	assert.Equal(t, 2, s.IncrementRetry(StageVerification))
	assert.Equal(t, 1, s.IncrementRetry(StageUnderwriting))
}
