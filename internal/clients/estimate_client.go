/**
 * Estimate API Client for PlanParse Worker
 *
 * Publishes finished parse results back to the estimate API so the room
 * review UI can render them without polling the database. The callback is
 * best-effort: the result is already persisted before this fires, so a
 * failed POST is logged and the job still completes.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// EstimateClient handles communication with the estimate API.
type EstimateClient struct {
	baseURL    string
	httpClient *http.Client
}

// ParseResultCallback is the payload posted when a parse run finishes.
// Result carries the full ParseResponse JSON as produced by the pipeline.
type ParseResultCallback struct {
	PlanParseID string          `json:"planParseId"`
	UserID      string          `json:"userId,omitempty"`
	ProjectID   string          `json:"projectId,omitempty"`
	Success     bool            `json:"success"`
	RoomCount   int             `json:"roomCount"`
	Result      json.RawMessage `json:"result"`
}

// CallbackResponse is the estimate API's acknowledgement.
type CallbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewEstimateClient creates a new estimate API client.
func NewEstimateClient(baseURL string) *EstimateClient {
	return &EstimateClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// HealthCheck verifies the estimate API is available.
func (c *EstimateClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("estimate API health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("estimate API health check returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// PublishParseResult posts a finished parse result to the estimate API.
func (c *EstimateClient) PublishParseResult(ctx context.Context, cb *ParseResultCallback) (*CallbackResponse, error) {
	if cb.PlanParseID == "" {
		return nil, fmt.Errorf("plan parse ID is required")
	}

	if len(cb.Result) == 0 {
		return nil, fmt.Errorf("result payload is required")
	}

	payload, err := json.Marshal(cb)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal callback payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/internal/plan-parses/%s/result", c.baseURL, cb.PlanParseID)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create callback request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Source", "planparse-worker")

	log.Printf("[EstimateClient] Publishing parse result: planParseId=%s, rooms=%d, success=%v",
		cb.PlanParseID, cb.RoomCount, cb.Success)

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("callback request failed after %v: %w", time.Since(startTime), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read callback response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("parse result callback failed with HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result CallbackResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		// Non-fatal: the API accepted the POST even if the body is unexpected.
		log.Printf("[EstimateClient] Warning: failed to parse callback response: %v", err)
		return &CallbackResponse{Success: true, Message: "result published (response parse warning)"}, nil
	}

	if !result.Success {
		return nil, fmt.Errorf("estimate API rejected parse result: %s", result.Error)
	}

	log.Printf("[EstimateClient] Parse result published: planParseId=%s, duration=%v",
		cb.PlanParseID, time.Since(startTime))

	return &result, nil
}
