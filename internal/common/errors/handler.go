// internal/common/errors/handler.go
package errors

import (
	"time"
)

// FailureAction tells the orchestrator what to do with a failed stage turn.
type FailureAction string

const (
	ActionRetry    FailureAction = "retry"
	ActionEscalate FailureAction = "escalate"
	ActionAbort    FailureAction = "abort"
)

// ErrorHandler classifies stage failures with standardized error handling
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleStageError normalizes an error and decides whether the turn should be
// retried, escalated to manual review, or aborted as a contract violation.
// attemptsUsed is the number of retries already consumed for the stage.
func (h *ErrorHandler) HandleStageError(sessionID, stage string, err error, attemptsUsed int) (FailureAction, *StandardError) {
	stdErr := h.normalizeError(err)

	action := ActionEscalate
	switch {
	case GetErrorCategory(stdErr.Code) == "PIPELINE":
		// Invariant violations indicate a caller bug and must fail loudly.
		action = ActionAbort
	case stdErr.Retryable && attemptsUsed < GetRetryCount(stdErr.Code):
		action = ActionRetry
	}

	h.logError(sessionID, stage, stdErr, action, attemptsUsed)
	return action, stdErr
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) logError(sessionID, stage string, stdErr *StandardError, action FailureAction, attemptsUsed int) {
	h.logger.Error("Stage turn failed", map[string]interface{}{
		"sessionId":     sessionID,
		"stage":         stage,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"attemptsUsed":  attemptsUsed,
		"action":        string(action),
		"errorCategory": GetErrorCategory(stdErr.Code),
	})
}
