// internal/external/renderer.go
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

// HTTPRenderClient calls the document rendering service which turns a
// sanction letter into a PDF.
type HTTPRenderClient struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

func NewHTTPRenderClient(baseURL, apiKey string, timeout time.Duration) *HTTPRenderClient {
	return &HTTPRenderClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewClient(timeout),
	}
}

func (c *HTTPRenderClient) Render(ctx context.Context, letter *models.SanctionLetter) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("renderer").Observe(time.Since(start).Seconds())
	}()

	jsonData, err := json.Marshal(letter)
	if err != nil {
		return nil, stderrors.NewPDFRenderFailedError(err)
	}

	url := fmt.Sprintf("%s/v1/render/sanction-letter", c.baseURL)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, stderrors.NewPDFRenderFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, stderrors.NewPDFRenderTimeoutError()
		}
		return nil, stderrors.NewPDFRenderFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, stderrors.NewPDFRenderFailedError(
			fmt.Errorf("render failed (status %d): %s", resp.StatusCode, string(body)))
	}

	document, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, stderrors.NewPDFRenderFailedError(err)
	}
	if len(document) == 0 {
		return nil, stderrors.NewPDFRenderFailedError(errors.New("renderer returned empty document"))
	}

	return document, nil
}
