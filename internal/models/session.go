package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session represents one customer's in-flight loan application.
type Session struct {
	SessionID       string            `json:"sessionId" db:"session_id"`
	CustomerRef     string            `json:"customerRef" db:"customer_ref"`
	Stage           Stage             `json:"stage" db:"stage"`
	CollectedFields map[string]string `json:"collectedFields" db:"collected_fields"`
	RetryCounts     map[Stage]int     `json:"retryCounts" db:"retry_counts"`
	DecisionRecord  *Verdict          `json:"decisionRecord,omitempty" db:"decision_record"`
	CreatedAt       time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time         `json:"updatedAt" db:"updated_at"`
}

// NewSession creates a fresh session in the intake stage.
func NewSession(customerRef string) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:       uuid.NewString(),
		CustomerRef:     customerRef,
		Stage:           StageIntake,
		CollectedFields: make(map[string]string),
		RetryCounts:     make(map[Stage]int),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Field returns a collected field value.
func (s *Session) Field(name string) (string, bool) {
	v, ok := s.CollectedFields[name]
	return v, ok
}

// SetField appends or overwrites a collected field. Fields are never reset.
func (s *Session) SetField(name, value string) {
	if s.CollectedFields == nil {
		s.CollectedFields = make(map[string]string)
	}
	s.CollectedFields[name] = value
}

// IncrementRetry bumps the retry counter for a stage and returns the new count.
func (s *Session) IncrementRetry(stage Stage) int {
	if s.RetryCounts == nil {
		s.RetryCounts = make(map[Stage]int)
	}
	s.RetryCounts[stage]++
	return s.RetryCounts[stage]
}

// RecordDecision sets the write-once decision record.
func (s *Session) RecordDecision(v *Verdict) error {
	if s.DecisionRecord != nil {
		return fmt.Errorf("decision record already set for session %s", s.SessionID)
	}
	s.DecisionRecord = v
	return nil
}

// Touch updates the last-modified timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}
