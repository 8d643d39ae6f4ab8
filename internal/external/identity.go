// internal/external/identity.go
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	stderrors "loan-pipeline/internal/common/errors"
	"loan-pipeline/internal/common/httpclient"
	"loan-pipeline/internal/common/metrics"
	"loan-pipeline/internal/models"
)

// HTTPIdentityClient calls the KYC identity verification service. The
// bureau gateway fronts the KYC provider, so it shares that credential.
type HTTPIdentityClient struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

func NewHTTPIdentityClient(baseURL, apiKey string, timeout time.Duration) *HTTPIdentityClient {
	return &HTTPIdentityClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewClient(timeout),
	}
}

func (c *HTTPIdentityClient) Verify(ctx context.Context, customerRef, claimedName string) (models.IdentityResult, error) {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("identity").Observe(time.Since(start).Seconds())
	}()

	payload := map[string]string{
		"customerRef": customerRef,
		"claimedName": claimedName,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", stderrors.NewExternalServiceError("identity", err)
	}

	url := fmt.Sprintf("%s/v1/kyc/verify", c.baseURL)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", stderrors.NewExternalServiceError("identity", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", stderrors.NewTimeoutError("identity", err)
		}
		return "", stderrors.NewExternalServiceError("identity", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", stderrors.NewCustomerNotFoundError(customerRef)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", stderrors.NewExternalServiceError("identity",
			fmt.Errorf("kyc verify failed (status %d): %s", resp.StatusCode, string(body)))
	}

	var result struct {
		Result models.IdentityResult `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", stderrors.NewExternalServiceError("identity", err)
	}

	switch result.Result {
	case models.IdentityMatched, models.IdentityLowConfidence, models.IdentityNoMatch:
		return result.Result, nil
	default:
		return "", stderrors.NewExternalServiceError("identity",
			fmt.Errorf("unknown verification result %q", result.Result))
	}
}
