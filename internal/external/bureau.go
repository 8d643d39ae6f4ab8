// internal/external/bureau.go
package external

import (
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

// HTTPCreditBureauClient calls the credit bureau gateway over HTTP.
type HTTPCreditBureauClient struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

func NewHTTPCreditBureauClient(baseURL, apiKey string, timeout time.Duration) *HTTPCreditBureauClient {
	return &HTTPCreditBureauClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewClient(timeout),
	}
}

func (c *HTTPCreditBureauClient) Lookup(ctx context.Context, customerRef string) (*models.BureauReport, error) {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("credit_bureau").Observe(time.Since(start).Seconds())
	}()

	url := fmt.Sprintf("%s/v1/reports/%s", c.baseURL, customerRef)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, stderrors.NewCreditBureauUnavailableError(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, stderrors.NewCreditBureauTimeoutError()
		}
		return nil, stderrors.NewCreditBureauUnavailableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, stderrors.NewCustomerNotFoundError(customerRef)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, stderrors.NewCreditBureauUnavailableError(
			fmt.Errorf("report lookup failed (status %d): %s", resp.StatusCode, string(body)))
	}

	var report models.BureauReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, stderrors.NewCreditBureauUnavailableError(err)
	}

	return &report, nil
}
