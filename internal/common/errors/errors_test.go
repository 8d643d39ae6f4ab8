// internal/common/errors/errors_test.go
package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Retry Policy Tests
// ==========================

func TestGetRetryCount_Tiers(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeSessionStoreFailed, 3},
		{ErrCodeDialogueUnavailable, 3},
		{ErrCodeOCRFailed, 3},
		{ErrCodeCreditBureauUnavailable, 3},
		{ErrCodePDFRenderFailed, 3},
		{ErrCodeExternalService, 3},
		{ErrCodeDialogueTimeout, 2},
		{ErrCodeOCRTimeout, 2},
		{ErrCodeTimeout, 2},
		{ErrCodeStageTransitionInvalid, 0},
		{ErrCodeDecisionAlreadyRecorded, 0},
		{ErrCodeCustomerNotFound, 0},
		{ErrCodeDuplicateActiveSession, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GetRetryCount(tt.code), string(tt.code))
	}
}

func TestGetRetryCount_GenericConstructorsUseNamedCodes(t *testing.T) {
	svcErr := NewExternalServiceError("identity", assert.AnError)
	assert.Equal(t, ErrCodeExternalService, svcErr.Code)
	assert.Equal(t, 3, GetRetryCount(svcErr.Code))

	timeoutErr := NewTimeoutError("identity", assert.AnError)
	assert.Equal(t, ErrCodeTimeout, timeoutErr.Code)
	assert.Equal(t, 2, GetRetryCount(timeoutErr.Code))
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeExternalService))
	assert.True(t, IsRetryableErrorCode(ErrCodeOCRTimeout))
	assert.False(t, IsRetryableErrorCode(ErrCodeDuplicateActiveSession))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "STORE", GetErrorCategory(ErrCodeSessionStoreFailed))
	assert.Equal(t, "PIPELINE", GetErrorCategory(ErrCodeStageTransitionInvalid))
	assert.Equal(t, "BUREAU", GetErrorCategory(ErrCodeCustomerNotFound))
	assert.Equal(t, "RENDERING", GetErrorCategory(ErrCodePDFRenderFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeExternalService))
}
