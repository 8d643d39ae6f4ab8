package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "loan-pipeline/internal/common/errors"
	"loan-pipeline/internal/models"
)

// ==========================
// Credit Bureau
// ==========================

func TestHTTPCreditBureauClient_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/reports/+919000000001", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"creditScore":780,"annualIncomeMinor":120000000,"existingObligationsMinor":0}`))
	}))
	defer server.Close()

	client := NewHTTPCreditBureauClient(server.URL, "test-key", 2*time.Second)
	report, err := client.Lookup(context.Background(), "+919000000001")
	require.NoError(t, err)

	assert.Equal(t, 780, report.CreditScore)
	assert.Equal(t, int64(120000000), report.AnnualIncomeMinor)
	assert.Nil(t, report.PreApprovedLimitMinor)
}

func TestHTTPCreditBureauClient_Lookup_UnknownCustomer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPCreditBureauClient(server.URL, "test-key", 2*time.Second)
	_, err := client.Lookup(context.Background(), "+919999999999")
	require.Error(t, err)

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeCustomerNotFound, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestHTTPCreditBureauClient_Lookup_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPCreditBureauClient(server.URL, "test-key", 2*time.Second)
	_, err := client.Lookup(context.Background(), "+919000000001")
	require.Error(t, err)

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeCreditBureauUnavailable, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

// ==========================
// Dialogue
// ==========================

func TestHTTPDialogueClient_Interpret(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/interpret", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"intent":"provide_amount","slots":{"requested_amount":"5 lakh"}}`))
	}))
	defer server.Close()

	client := NewHTTPDialogueClient(server.URL, "test-key", 2*time.Second)
	interpretation, err := client.Interpret(context.Background(), "intake", "I need 5 lakh")
	require.NoError(t, err)

	assert.Equal(t, "provide_amount", interpretation.Intent)
	assert.Equal(t, "5 lakh", interpretation.Slots["requested_amount"])
}

func TestHTTPDialogueClient_Interpret_EmptySlotsNeverNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"intent":"unknown"}`))
	}))
	defer server.Close()

	client := NewHTTPDialogueClient(server.URL, "test-key", 2*time.Second)
	interpretation, err := client.Interpret(context.Background(), "intake", "hello")
	require.NoError(t, err)
	assert.NotNil(t, interpretation.Slots)
}

// ==========================
// Identity
// ==========================

func TestHTTPIdentityClient_Verify(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected models.IdentityResult
	}{
		{name: "matched", response: `{"result":"matched"}`, expected: models.IdentityMatched},
		{name: "low confidence", response: `{"result":"low_confidence"}`, expected: models.IdentityLowConfidence},
		{name: "no match", response: `{"result":"no_match"}`, expected: models.IdentityNoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/kyc/verify", r.URL.Path)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client := NewHTTPIdentityClient(server.URL, "test-key", 2*time.Second)
			result, err := client.Verify(context.Background(), "+919000000001", "Asha Rao")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHTTPIdentityClient_Verify_UnknownBand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"maybe"}`))
	}))
	defer server.Close()

	client := NewHTTPIdentityClient(server.URL, "test-key", 2*time.Second)
	_, err := client.Verify(context.Background(), "+919000000001", "Asha Rao")
	assert.Error(t, err)
}

// ==========================
// Renderer
// ==========================

func TestHTTPRenderClient_Render(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/render/sanction-letter", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer server.Close()

	client := NewHTTPRenderClient(server.URL, "test-key", 2*time.Second)
	document, err := client.Render(context.Background(), &models.SanctionLetter{
		ApplicationID:  "LOAN1756700000000",
		PrincipalMinor: 50000000,
		TenureMonths:   60,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, document)
}

func TestHTTPRenderClient_Render_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPRenderClient(server.URL, "test-key", 2*time.Second)
	_, err := client.Render(context.Background(), &models.SanctionLetter{})
	require.Error(t, err)

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodePDFRenderFailed, stdErr.Code)
}
