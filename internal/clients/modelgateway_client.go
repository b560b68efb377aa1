/**
 * Model Gateway Client - hosted LLM calls for the plan parse pipeline
 *
 * The worker never talks to model vendors directly. The gateway service owns
 * prompt templates, model selection and retries; this client speaks its two
 * plan endpoints:
 *   - POST /api/internal/plan/classify-pages  (text-only page classification)
 *   - POST /api/internal/plan/extract-rooms   (per-sheet room extraction)
 *
 * Both calls are treated as unreliable: callers validate every field of the
 * response and degrade gracefully on failure.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bidright/planparse-worker/internal/logging"
)

// ModelGatewayClient handles communication with the model gateway service.
type ModelGatewayClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClassifyPageInput is one page's classification input; Text is already
// truncated by the caller.
type ClassifyPageInput struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
}

// ClassifyPagesRequest asks the gateway to classify a batch of pages into
// the closed page-type taxonomy.
type ClassifyPagesRequest struct {
	PlanParseID string              `json:"planParseId,omitempty"`
	Pages       []ClassifyPageInput `json:"pages"`
}

// ClassifyPagesResponse is the gateway's classification envelope.
type ClassifyPagesResponse struct {
	Success bool              `json:"success"`
	Data    ClassifyPagesData `json:"data"`
	Message string            `json:"message"`
}

// ClassifyPagesData contains one verdict per page plus batch metadata.
type ClassifyPagesData struct {
	Pages          []PageVerdict `json:"pages"`
	Summary        string        `json:"summary,omitempty"`
	ModelUsed      string        `json:"modelUsed"`
	ProcessingTime int64         `json:"processingTime"` // milliseconds
}

// PageVerdict is the gateway's raw (untrusted) classification of one page.
// Fields are loosely typed on purpose; normalization happens in the pipeline.
type PageVerdict struct {
	PageNumber    int     `json:"pageNumber"`
	Type          string  `json:"type"`
	Confidence    float64 `json:"confidence"`
	HasRoomLabels bool    `json:"hasRoomLabels"`
	Reason        string  `json:"reason,omitempty"`
}

// ExtractRoomsRequest asks the gateway to extract the room list from one
// sheet. Level is injected as context so the model does not have to infer it.
type ExtractRoomsRequest struct {
	PlanParseID string `json:"planParseId,omitempty"`
	PageNumber  int    `json:"pageNumber"`
	SheetTitle  string `json:"sheetTitle"`
	Level       string `json:"level"`
	Text        string `json:"text"`
}

// ExtractRoomsResponse is the gateway's extraction envelope.
type ExtractRoomsResponse struct {
	Success bool             `json:"success"`
	Data    ExtractRoomsData `json:"data"`
	Message string           `json:"message"`
}

// ExtractRoomsData contains the raw room candidates plus the advisory
// signals the prompt asks for (count-by-type verification map, assumptions).
type ExtractRoomsData struct {
	Rooms           []RoomCandidate `json:"rooms"`
	RoomCountByType map[string]int  `json:"room_count_by_type,omitempty"`
	Assumptions     []string        `json:"assumptions,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
	ModelUsed       string          `json:"modelUsed"`
	Confidence      float64         `json:"confidence"`
	ProcessingTime  int64           `json:"processingTime"` // milliseconds
}

// RoomCandidate is one raw (untrusted) room from the gateway. Numeric fields
// are pointers because the model frequently omits them.
type RoomCandidate struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	AreaSqFt        *float64 `json:"area_sqft"`
	LengthFt        *float64 `json:"length_ft"`
	WidthFt         *float64 `json:"width_ft"`
	CeilingHeightFt *float64 `json:"ceiling_height_ft"`
	Dimensions      string   `json:"dimensions"`
	Notes           string   `json:"notes"`
	Confidence      float64  `json:"confidence"`
}

// NewModelGatewayClient creates a new model gateway client.
func NewModelGatewayClient(baseURL string) *ModelGatewayClient {
	return &ModelGatewayClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // extraction calls can take a while
		},
		logger: logging.NewLogger("ModelGatewayClient"),
	}
}

// ClassifyPages classifies a batch of pages via the gateway.
func (c *ModelGatewayClient) ClassifyPages(ctx context.Context, req *ClassifyPagesRequest) (*ClassifyPagesResponse, error) {
	c.logger.Info("Requesting page classification from gateway",
		"planParseId", req.PlanParseID,
		"pages", len(req.Pages))

	var resp ClassifyPagesResponse
	if err := c.post(ctx, "/api/internal/plan/classify-pages", "classify", req, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, fmt.Errorf("gateway classification failed: %s", resp.Message)
	}

	c.logger.Info("Page classification complete",
		"modelUsed", resp.Data.ModelUsed,
		"verdicts", len(resp.Data.Pages),
		"processingTime", resp.Data.ProcessingTime)

	return &resp, nil
}

// ExtractRooms extracts the room list from a single sheet via the gateway.
func (c *ModelGatewayClient) ExtractRooms(ctx context.Context, req *ExtractRoomsRequest) (*ExtractRoomsResponse, error) {
	c.logger.Info("Requesting room extraction from gateway",
		"planParseId", req.PlanParseID,
		"pageNumber", req.PageNumber,
		"level", req.Level,
		"textLength", len(req.Text))

	var resp ExtractRoomsResponse
	if err := c.post(ctx, "/api/internal/plan/extract-rooms", "extract", req, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, fmt.Errorf("gateway extraction failed: %s", resp.Message)
	}

	c.logger.Info("Room extraction complete",
		"pageNumber", req.PageNumber,
		"modelUsed", resp.Data.ModelUsed,
		"rooms", len(resp.Data.Rooms),
		"confidence", resp.Data.Confidence,
		"processingTime", resp.Data.ProcessingTime)

	return &resp, nil
}

// post executes a JSON POST against a gateway endpoint and decodes the
// response into out.
func (c *ModelGatewayClient) post(ctx context.Context, path string, tag string, payload interface{}, out interface{}) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Source", "planparse-worker")
	httpReq.Header.Set("X-Request-ID", fmt.Sprintf("%s-%d", tag, time.Now().UnixNano()))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request to model gateway failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model gateway returned error status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// HealthCheck verifies the gateway service is available.
func (c *ModelGatewayClient) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	req.Header.Set("X-Source", "planparse-worker")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
