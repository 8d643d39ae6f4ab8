// internal/external/dialogue.go
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

// HTTPDialogueClient calls the dialogue/NLU service over HTTP.
type HTTPDialogueClient struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

func NewHTTPDialogueClient(baseURL, apiKey string, timeout time.Duration) *HTTPDialogueClient {
	return &HTTPDialogueClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewClient(timeout),
	}
}

func (c *HTTPDialogueClient) Interpret(ctx context.Context, conversationContext, userText string) (*Interpretation, error) {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("dialogue").Observe(time.Since(start).Seconds())
	}()

	payload := map[string]string{
		"context": conversationContext,
		"text":    userText,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, stderrors.NewDialogueUnavailableError(err)
	}

	url := fmt.Sprintf("%s/v1/interpret", c.baseURL)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, stderrors.NewDialogueUnavailableError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, stderrors.NewDialogueTimeoutError()
		}
		return nil, stderrors.NewDialogueUnavailableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, stderrors.NewDialogueUnavailableError(
			fmt.Errorf("interpret failed (status %d): %s", resp.StatusCode, string(body)))
	}

	var interpretation Interpretation
	if err := json.NewDecoder(resp.Body).Decode(&interpretation); err != nil {
		return nil, stderrors.NewDialogueUnavailableError(err)
	}
	if interpretation.Slots == nil {
		interpretation.Slots = map[string]string{}
	}

	return &interpretation, nil
}
