/**
 * Page Text Client for PlanParse Worker
 *
 * Fetches pre-extracted per-page text for a plan from the upload service.
 * PDF parsing itself lives in that service; the worker only ever sees
 * {pageNumber, text} pairs. Used when the queue payload carries a pagesUrl
 * instead of inline page text (large plan sets).
 */

package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// PageTextClient handles communication with the page-text service.
type PageTextClient struct {
	baseURL    string
	httpClient *http.Client
}

// ExtractedPage is one page of extracted blueprint text. Image is an
// optional base64 page render for sheets whose text layer was empty.
type ExtractedPage struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
	Image      []byte `json:"image,omitempty"`
}

// PageTextResponse is the page-text service envelope.
type PageTextResponse struct {
	Success    bool            `json:"success"`
	Pages      []ExtractedPage `json:"pages"`
	TotalPages int             `json:"totalPages"`
	Error      string          `json:"error,omitempty"`
}

// NewPageTextClient creates a new page-text client.
func NewPageTextClient(baseURL string) *PageTextClient {
	return &PageTextClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // large plan sets take a while to stream
		},
	}
}

// HealthCheck verifies the page-text service is available.
func (c *PageTextClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("page-text health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("page-text health check returned status %d", resp.StatusCode)
	}

	return nil
}

// FetchPages retrieves the extracted page text for a plan parse.
func (c *PageTextClient) FetchPages(ctx context.Context, planParseID string) (*PageTextResponse, error) {
	if planParseID == "" {
		return nil, fmt.Errorf("plan parse ID is required")
	}

	url := fmt.Sprintf("%s/api/plan-parses/%s/pages", c.baseURL, planParseID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create pages request: %w", err)
	}
	req.Header.Set("X-Source", "planparse-worker")

	log.Printf("[PageText] Fetching extracted pages: planParseId=%s", planParseID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pages: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read pages response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no extracted pages found for plan parse %s", planParseID)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("page-text service returned error status %d: %s", resp.StatusCode, string(body))
	}

	var result PageTextResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse pages response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("page-text service reported failure: %s", result.Error)
	}

	log.Printf("[PageText] Fetched %d pages (totalPages=%d)", len(result.Pages), result.TotalPages)

	return &result, nil
}
