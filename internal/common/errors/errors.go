// Package errors provides standardized error handling for the loan pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSessionStoreFailed     ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeSessionNotFound        ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeDuplicateActiveSession ErrorCode = "DUPLICATE_ACTIVE_SESSION"
	ErrCodeArchiveFailed          ErrorCode = "ARCHIVE_FAILED"
	ErrCodeSnapshotWriteFailed    ErrorCode = "SNAPSHOT_WRITE_FAILED"

	ErrCodeStageTransitionInvalid  ErrorCode = "STAGE_TRANSITION_INVALID"
	ErrCodeDecisionAlreadyRecorded ErrorCode = "DECISION_ALREADY_RECORDED"

	ErrCodeDialogueUnavailable ErrorCode = "DIALOGUE_UNAVAILABLE"
	ErrCodeDialogueTimeout     ErrorCode = "DIALOGUE_TIMEOUT"

	ErrCodeOCRFailed  ErrorCode = "OCR_FAILED"
	ErrCodeOCRTimeout ErrorCode = "OCR_TIMEOUT"

	ErrCodeCreditBureauUnavailable ErrorCode = "CREDIT_BUREAU_UNAVAILABLE"
	ErrCodeCreditBureauTimeout     ErrorCode = "CREDIT_BUREAU_TIMEOUT"
	ErrCodeCustomerNotFound        ErrorCode = "CUSTOMER_NOT_FOUND"

	ErrCodePDFRenderFailed  ErrorCode = "PDF_RENDER_FAILED"
	ErrCodePDFRenderTimeout ErrorCode = "PDF_RENDER_TIMEOUT"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSessionStoreFailedError creates a retryable session store error.
func NewSessionStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Session store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a non-retryable missing session error.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found in active store",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateActiveSessionError creates a non-retryable uniqueness violation.
// This indicates a caller bug, not a recoverable condition.
func NewDuplicateActiveSessionError(customerRef string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateActiveSession,
		Message:   "Customer already has an active session",
		Details:   fmt.Sprintf("customerRef: %s", customerRef),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewArchiveFailedError creates a retryable archive write error.
func NewArchiveFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArchiveFailed,
		Message:   "Failed to write session to durable history",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSnapshotWriteFailedError creates a retryable snapshot log error.
func NewSnapshotWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSnapshotWriteFailed,
		Message:   "Failed to append manual review snapshot",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStageTransitionInvalidError creates a non-retryable contract violation.
func NewStageTransitionInvalidError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStageTransitionInvalid,
		Message:   "Attempted stage transition outside the defined graph",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDecisionAlreadyRecordedError creates a non-retryable contract violation.
func NewDecisionAlreadyRecordedError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDecisionAlreadyRecorded,
		Message:   "Decision record is write-once and already set",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDialogueUnavailableError creates a retryable dialogue service error.
func NewDialogueUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDialogueUnavailable,
		Message:   "Dialogue service error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDialogueTimeoutError creates a retryable dialogue timeout error.
func NewDialogueTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeDialogueTimeout,
		Message:   "Dialogue service timeout",
		Details:   "interpret call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOCRFailedError creates a retryable OCR error.
func NewOCRFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOCRFailed,
		Message:   "OCR text extraction error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOCRTimeoutError creates a retryable OCR timeout error.
func NewOCRTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeOCRTimeout,
		Message:   "OCR text extraction timeout",
		Details:   "extractText call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCreditBureauUnavailableError creates a retryable bureau error.
func NewCreditBureauUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCreditBureauUnavailable,
		Message:   "Credit bureau lookup error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCreditBureauTimeoutError creates a retryable bureau timeout error.
func NewCreditBureauTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeCreditBureauTimeout,
		Message:   "Credit bureau lookup timeout",
		Details:   "lookup call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCustomerNotFoundError creates a non-retryable unknown customer error.
func NewCustomerNotFoundError(customerRef string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCustomerNotFound,
		Message:   "Customer not found in bureau records",
		Details:   fmt.Sprintf("customerRef: %s", customerRef),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPDFRenderFailedError creates a retryable render error.
func NewPDFRenderFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePDFRenderFailed,
		Message:   "Sanction letter rendering error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPDFRenderTimeoutError creates a retryable render timeout error.
func NewPDFRenderTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodePDFRenderTimeout,
		Message:   "Sanction letter rendering timeout",
		Details:   "render call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSessionStoreFailed,
		ErrCodeArchiveFailed,
		ErrCodeSnapshotWriteFailed,
		ErrCodeDialogueUnavailable,
		ErrCodeOCRFailed,
		ErrCodeCreditBureauUnavailable,
		ErrCodePDFRenderFailed,
		ErrCodeExternalService:
		return 3 // Retryable technical errors

	case ErrCodeDialogueTimeout,
		ErrCodeOCRTimeout,
		ErrCodeCreditBureauTimeout,
		ErrCodePDFRenderTimeout,
		ErrCodeTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Contract violations and business errors: no retry
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "ARCHIVE") || strings.Contains(codeStr, "SNAPSHOT"):
		return "STORE"
	case strings.Contains(codeStr, "STAGE") || strings.Contains(codeStr, "DECISION"):
		return "PIPELINE"
	case strings.Contains(codeStr, "DIALOGUE") || strings.Contains(codeStr, "OCR"):
		return "DOCUMENT/DIALOGUE"
	case strings.Contains(codeStr, "BUREAU") || strings.Contains(codeStr, "CUSTOMER"):
		return "BUREAU"
	case strings.Contains(codeStr, "PDF"):
		return "RENDERING"
	default:
		return "OTHER"
	}
}
