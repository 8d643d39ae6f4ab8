// internal/external/ocr.go
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
)

// HTTPOCRClient calls the OCR engine over HTTP.
type HTTPOCRClient struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

func NewHTTPOCRClient(baseURL, apiKey string, timeout time.Duration) *HTTPOCRClient {
	return &HTTPOCRClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewClient(timeout),
	}
}

func (c *HTTPOCRClient) ExtractText(ctx context.Context, documentRef string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("ocr").Observe(time.Since(start).Seconds())
	}()

	payload := map[string]string{"documentRef": documentRef}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", stderrors.NewOCRFailedError(err)
	}

	url := fmt.Sprintf("%s/v1/extract-text", c.baseURL)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", stderrors.NewOCRFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", stderrors.NewOCRTimeoutError()
		}
		return "", stderrors.NewOCRFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", stderrors.NewOCRFailedError(
			fmt.Errorf("extract-text failed (status %d): %s", resp.StatusCode, string(body)))
	}

	var result struct {
		RawText string `json:"rawText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", stderrors.NewOCRFailedError(err)
	}

	return result.RawText, nil
}
