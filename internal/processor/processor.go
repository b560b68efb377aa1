/**
 * Plan Processor for PlanParse Worker
 *
 * Orchestrates the blueprint parse pipeline:
 * - Page text loading (inline payload or page-text service fetch)
 * - Tesseract OCR fill-in for scanned pages that shipped a page render
 * - Gateway-backed page classification with keyword fallback
 * - Level detection and deep-parse page selection
 * - Per-sheet room extraction with deterministic post-processing
 * - Cross-sheet dedup, result persistence (PostgreSQL + Qdrant) and the
 *   estimate API callback
 *
 * Pipeline failures degrade to a fallback ParseResponse instead of failing
 * the job; only persistence failures propagate to the queue for retry.
 */

package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bidright/planparse-worker/internal/clients"
	apperrors "github.com/bidright/planparse-worker/internal/errors"
	"github.com/bidright/planparse-worker/internal/storage"
)

// PlanProcessorInterface defines the interface for plan parse processing
type PlanProcessorInterface interface {
	ProcessPlan(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, planParseID string, status string, progress int, metadata map[string]interface{}) error
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	VoyageAPIKey      string
	TesseractPath     string
	StorageManager    *storage.StorageManager
	ModelGatewayURL   string
	PageTextURL       string
	EstimateAPIURL    string
	MaxDeepParsePages int
	ClassifyTextLimit int
	SampleLimit       int
	MinSheetText      int
}

// ProcessRequest represents a plan parse request
type ProcessRequest struct {
	PlanParseID string
	UserID      string
	ProjectID   string
	Filename    string
	TotalPages  int
	Pages       []PageText
	PagesURL    string
	Metadata    map[string]interface{}
}

// ProcessResult represents the parse result summary returned to the queue
type ProcessResult struct {
	PlanParseID      string
	Success          bool
	RoomCount        int
	RelevantPages    int
	FallbackUsed     bool
	Response         *ParseResponse
	ProcessingTimeMs int64
}

// PlanProcessor handles blueprint parse jobs
type PlanProcessor struct {
	config          *ProcessorConfig
	storage         *storage.StorageManager
	embeddingClient *EmbeddingClient
	gatewayClient   *clients.ModelGatewayClient
	pagetextClient  *clients.PageTextClient
	estimateClient  *clients.EstimateClient
	classifier      *PageClassifier
	extractor       *RoomExtractor
	tesseractOCR    *TesseractOCR
}

// NewPlanProcessor creates a new plan processor
func NewPlanProcessor(cfg *ProcessorConfig) (*PlanProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.StorageManager == nil {
		return nil, fmt.Errorf("storage manager is required")
	}

	if cfg.ModelGatewayURL == "" {
		return nil, fmt.Errorf("model gateway URL is required for classification and extraction")
	}

	// Create embedding client
	embeddingClient, err := NewEmbeddingClient(cfg.VoyageAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	// Create model gateway client for classification and room extraction
	gatewayClient := clients.NewModelGatewayClient(cfg.ModelGatewayURL)

	// Test gateway connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gatewayClient.HealthCheck(ctx); err != nil {
		log.Printf("WARNING: Model gateway health check failed: %v. Classification will fall back to keyword heuristics.", err)
	} else {
		log.Printf("Model gateway connection verified: %s", cfg.ModelGatewayURL)
	}

	// Create page-text client for jobs that ship a pagesUrl instead of inline text
	var pagetextClient *clients.PageTextClient
	if cfg.PageTextURL != "" {
		pagetextClient = clients.NewPageTextClient(cfg.PageTextURL)
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := pagetextClient.HealthCheck(ctx2); err != nil {
			log.Printf("WARNING: Page-text service health check failed: %v. Jobs without inline pages will fail.", err)
		} else {
			log.Printf("Page-text service connection verified: %s", cfg.PageTextURL)
		}
	} else {
		log.Printf("WARNING: Page-text service URL not configured. Jobs without inline pages will fail.")
	}

	// Create estimate API client for result callbacks
	var estimateClient *clients.EstimateClient
	if cfg.EstimateAPIURL != "" {
		estimateClient = clients.NewEstimateClient(cfg.EstimateAPIURL)
		ctx3, cancel3 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel3()
		if err := estimateClient.HealthCheck(ctx3); err != nil {
			log.Printf("WARNING: Estimate API health check failed: %v. Results will be persisted but not pushed.", err)
		} else {
			log.Printf("Estimate API connection verified: %s", cfg.EstimateAPIURL)
		}
	} else {
		log.Printf("WARNING: Estimate API URL not configured. Results will be persisted but not pushed.")
	}

	// Create Tesseract OCR for scanned-page fill-in
	tesseractOCR, err := NewTesseractOCR(&TesseractConfig{
		TesseractPath: cfg.TesseractPath,
	})
	if err != nil {
		log.Printf("WARNING: Failed to initialize Tesseract: %v. Scanned pages without text will be skipped.", err)
	}

	return &PlanProcessor{
		config:          cfg,
		storage:         cfg.StorageManager,
		embeddingClient: embeddingClient,
		gatewayClient:   gatewayClient,
		pagetextClient:  pagetextClient,
		estimateClient:  estimateClient,
		classifier:      NewPageClassifier(gatewayClient, cfg.ClassifyTextLimit, cfg.SampleLimit),
		extractor:       NewRoomExtractor(gatewayClient, cfg.MinSheetText),
		tesseractOCR:    tesseractOCR,
	}, nil
}

// ProcessPlan runs a plan parse job through the complete pipeline. The
// returned result always carries a renderable ParseResponse; an error return
// means the job should be retried (persistence failure), not that the parse
// produced nothing.
func (p *PlanProcessor) ProcessPlan(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()
	log.Printf("[Parse %s] Starting plan parse pipeline: file=%s, pages=%d", req.PlanParseID, req.Filename, req.TotalPages)

	// Step 1: Load page text
	log.Printf("[Parse %s] Step 1: Loading page text", req.PlanParseID)
	pages, err := p.loadPages(ctx, req)
	if err != nil {
		log.Printf("[Parse %s] Failed to load pages: %v", req.PlanParseID, err)
		return p.finishWithFallback(ctx, req, err, startTime)
	}
	totalPages := len(pages)
	log.Printf("[Parse %s] Loaded %d pages", req.PlanParseID, totalPages)

	// Step 2: OCR fill-in for textless pages that shipped a render
	log.Printf("[Parse %s] Step 2: Checking text coverage", req.PlanParseID)
	pages, textlessPages := p.fillTextlessPages(ctx, req.PlanParseID, pages)
	if textlessPages == totalPages {
		log.Printf("[Parse %s] No extractable text on any page", req.PlanParseID)
		return p.finishWithFallback(ctx, req, apperrors.NewNoTextError(req.PlanParseID, totalPages), startTime)
	}

	// Step 3: Classify every page
	log.Printf("[Parse %s] Step 3: Classifying %d pages", req.PlanParseID, totalPages)
	classification := p.classifier.Classify(ctx, req.PlanParseID, pages)
	if classification.Fallback {
		log.Printf("[Parse %s] Classification degraded to keyword fallback", req.PlanParseID)
	}
	log.Printf("[Parse %s] Classification complete: %s", req.PlanParseID, summarizeClassification(classification))

	// Step 4: Select pages for deep parsing
	maxPages := p.config.MaxDeepParsePages
	selected := SelectPagesForDeepParse(classification.Pages, maxPages)
	log.Printf("[Parse %s] Step 4: Selected %d pages for deep parse: %v", req.PlanParseID, len(selected), selected)

	// Step 5: Build sheet info with level detection
	sheets := buildSheets(pages, classification.Pages, selected)

	// Step 6: Extract rooms sheet by sheet. A failed sheet becomes a warning;
	// the rest of the document still parses.
	log.Printf("[Parse %s] Step 6: Extracting rooms from %d sheets", req.PlanParseID, len(sheets))
	pageTexts := indexPageText(pages)

	results := make([]SheetRoomResult, 0, len(sheets))
	assumptions := make([]string, 0)
	warnings := make([]string, 0)
	if classification.Fallback {
		warnings = append(warnings, "Page classification ran in degraded keyword mode; page selection may be imprecise")
	}

	for _, sheet := range sheets {
		outcome, err := p.extractor.ExtractFromSheet(ctx, req.PlanParseID, sheet, pageTexts[sheet.PageNumber])
		if err != nil {
			log.Printf("[Parse %s] WARNING: Sheet %d extraction failed: %v", req.PlanParseID, sheet.PageNumber, err)
			warnings = append(warnings, fmt.Sprintf("Page %d could not be parsed and was skipped", sheet.PageNumber))
			continue
		}
		results = append(results, outcome.Result)
		assumptions = append(assumptions, outcome.Assumptions...)
		warnings = append(warnings, outcome.Warnings...)
	}

	// Step 7: Merge across sheets
	rooms := DeduplicateAcrossSheets(results)
	log.Printf("[Parse %s] Step 7: Merged %d sheets into %d rooms", req.PlanParseID, len(results), len(rooms))

	if len(rooms) == 0 {
		return p.finishWithFallback(ctx, req, apperrors.NewNoRoomsFoundError(req.PlanParseID, len(sheets)), startTime)
	}

	// Step 8: Assemble the response
	response := p.assembleResponse(req, rooms, classification, selected, totalPages, assumptions, warnings)
	response.ProcessingTimeMs = time.Since(startTime).Milliseconds()

	// Step 9: Persist the parse record (PostgreSQL + Qdrant). This is the one
	// stage whose failure is worth a retry.
	log.Printf("[Parse %s] Step 9: Storing parse record", req.PlanParseID)
	if err := p.storeParseRecord(ctx, req, response, rooms); err != nil {
		return nil, apperrors.NewStorageFailedError(req.PlanParseID, err)
	}

	// Step 10: Push the result to the estimate API (best-effort)
	p.publishResult(ctx, req, response)

	log.Printf("[Parse %s] Pipeline complete: rooms=%d, relevantPages=%d, duration=%v",
		req.PlanParseID, len(response.Rooms), len(selected), time.Since(startTime))

	return &ProcessResult{
		PlanParseID:      req.PlanParseID,
		Success:          true,
		RoomCount:        len(response.Rooms),
		RelevantPages:    len(selected),
		Response:         response,
		ProcessingTimeMs: response.ProcessingTimeMs,
	}, nil
}

// finishWithFallback persists and returns the degraded response for a
// pipeline-level failure. The job itself still succeeds so the user sees the
// explanation instead of a silent retry loop.
func (p *PlanProcessor) finishWithFallback(ctx context.Context, req *ProcessRequest, cause error, startTime time.Time) (*ProcessResult, error) {
	response := CreateFallbackResponse(cause, req.TotalPages, req.PlanParseID)
	response.ProcessingTimeMs = time.Since(startTime).Milliseconds()

	if err := p.storeParseRecord(ctx, req, response, nil); err != nil {
		return nil, apperrors.NewStorageFailedError(req.PlanParseID, err)
	}

	p.publishResult(ctx, req, response)

	log.Printf("[Parse %s] Pipeline finished with fallback response: %v", req.PlanParseID, cause)

	return &ProcessResult{
		PlanParseID:      req.PlanParseID,
		Success:          false,
		RoomCount:        len(response.Rooms),
		FallbackUsed:     true,
		Response:         response,
		ProcessingTimeMs: response.ProcessingTimeMs,
	}, nil
}

// UpdateJobStatus updates job status in the database
func (p *PlanProcessor) UpdateJobStatus(ctx context.Context, planParseID string, status string, progress int, metadata map[string]interface{}) error {
	update := &storage.JobUpdate{
		PlanParseID: planParseID,
		Status:      status,
		Progress:    progress,
		Metadata:    metadata,
	}

	if metadata != nil {
		if roomCount, ok := metadata["roomCount"].(int); ok {
			update.RoomCount = roomCount
		}
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			update.ErrorCode = "PROCESSING_ERROR"
			update.ErrorMessage = errorMsg
		}
	}

	return p.storage.UpdateJobStatus(ctx, update)
}

// loadPages resolves page text from the inline payload or the page-text
// service.
func (p *PlanProcessor) loadPages(ctx context.Context, req *ProcessRequest) ([]PageText, error) {
	if len(req.Pages) > 0 {
		log.Printf("[Parse %s] Using inline page payload (%d pages)", req.PlanParseID, len(req.Pages))
		return req.Pages, nil
	}

	if p.pagetextClient == nil {
		return nil, fmt.Errorf("no inline pages and page-text service not configured")
	}

	log.Printf("[Parse %s] Fetching pages from page-text service", req.PlanParseID)
	fetched, err := p.fetchPagesWithRetry(ctx, req.PlanParseID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pages: %w", err)
	}

	pages := make([]PageText, 0, len(fetched))
	for _, pg := range fetched {
		pages = append(pages, PageText{
			PageNumber: pg.PageNumber,
			Text:       pg.Text,
			Image:      pg.Image,
		})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("page-text service returned no pages")
	}

	return pages, nil
}

// fetchPagesWithRetry fetches page text with exponential backoff. Page
// extraction upstream can lag the job enqueue by a few seconds.
func (p *PlanProcessor) fetchPagesWithRetry(ctx context.Context, planParseID string) ([]clients.ExtractedPage, error) {
	const (
		maxRetries       = 5
		initialBackoffMs = 1000
		maxBackoffMs     = 16000
	)

	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("[Parse %s] Page fetch attempt %d/%d", planParseID, attempt, maxRetries)

		resp, err := p.pagetextClient.FetchPages(ctx, planParseID)
		if err == nil {
			log.Printf("[Parse %s] Page fetch successful on attempt %d: %d pages", planParseID, attempt, len(resp.Pages))
			return resp.Pages, nil
		}

		lastErr = err
		log.Printf("[Parse %s] Page fetch attempt %d failed: %v", planParseID, attempt, err)

		if attempt < maxRetries {
			backoffMs := initialBackoffMs * int(math.Pow(2, float64(attempt-1)))
			if backoffMs > maxBackoffMs {
				backoffMs = maxBackoffMs
			}
			log.Printf("[Parse %s] Retrying in %dms...", planParseID, backoffMs)
			select {
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff")
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch pages after %d attempts: %w", maxRetries, lastErr)
}

// fillTextlessPages runs Tesseract over pages that have no usable text but do
// have a page render. Returns the updated pages and how many remain textless.
func (p *PlanProcessor) fillTextlessPages(ctx context.Context, planParseID string, pages []PageText) ([]PageText, int) {
	textless := 0

	for i := range pages {
		if len(strings.TrimSpace(pages[i].Text)) > 0 {
			continue
		}

		if p.tesseractOCR != nil && len(pages[i].Image) > 0 {
			result, err := p.tesseractOCR.RecognizePage(ctx, pages[i].Image)
			if err != nil {
				log.Printf("[Parse %s] WARNING: OCR failed on page %d: %v", planParseID, pages[i].PageNumber, err)
			} else if len(strings.TrimSpace(result.Text)) > 0 {
				log.Printf("[Parse %s] OCR recovered %d chars on page %d (confidence=%.2f)",
					planParseID, len(result.Text), pages[i].PageNumber, result.Confidence)
				pages[i].Text = result.Text
				continue
			}
		}

		textless++
	}

	return pages, textless
}

// buildSheets pairs the selected page numbers with their classification and
// detected level.
func buildSheets(pages []PageText, classifications []PageClassification, selected []int) []SheetInfo {
	classByPage := make(map[int]PageClassification, len(classifications))
	for _, c := range classifications {
		classByPage[c.PageNumber] = c
	}

	textByPage := indexPageText(pages)

	sheets := make([]SheetInfo, 0, len(selected))
	for _, pageNumber := range selected {
		c := classByPage[pageNumber]
		text := textByPage[pageNumber]
		title := sheetTitleFromText(text)
		sheets = append(sheets, SheetInfo{
			PageNumber:     pageNumber,
			SheetTitle:     title,
			DetectedLevel:  DetectLevelFromText(title, text),
			Classification: c,
			Confidence:     c.Confidence,
		})
	}

	return sheets
}

const sheetTitleMaxLen = 80

// sheetTitleFromText takes the first non-empty line of a page as its title.
// Title blocks print the sheet name first in practice.
func sheetTitleFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > sheetTitleMaxLen {
			line = line[:sheetTitleMaxLen]
		}
		return line
	}
	return ""
}

func indexPageText(pages []PageText) map[int]string {
	byPage := make(map[int]string, len(pages))
	for _, pg := range pages {
		byPage[pg.PageNumber] = pg.Text
	}
	return byPage
}

// assembleResponse builds the terminal ParseResponse from merged rooms.
func (p *PlanProcessor) assembleResponse(req *ProcessRequest, rooms []ExtractedRoom, classification *ClassificationResult, selected []int, totalPages int, assumptions, warnings []string) *ParseResponse {
	payloads := make([]RoomPayload, 0, len(rooms))
	scaffold := make([]LineItemScaffold, 0, len(rooms))

	for _, room := range rooms {
		payload := NewRoomPayload(room)
		payloads = append(payloads, payload)
		scaffold = append(scaffold, buildScaffoldItem(payload))
	}

	missingInfo := collectMissingInfo(rooms)

	return &ParseResponse{
		Success:             true,
		PlanParseID:         req.PlanParseID,
		Rooms:               payloads,
		LineItemScaffold:    scaffold,
		Assumptions:         dedupeStrings(assumptions),
		MissingInfo:         missingInfo,
		Warnings:            dedupeStrings(warnings),
		PageClassifications: classification.Pages,
		TotalPages:          totalPages,
		RelevantPages:       selected,
	}
}

// buildScaffoldItem creates the unpriced starter line item for a room.
// Pricing stays null; the estimate API owns cost data.
func buildScaffoldItem(room RoomPayload) LineItemScaffold {
	item := LineItemScaffold{
		ID:          newScaffoldID(),
		RoomID:      room.ID,
		Description: fmt.Sprintf("Finish allowance for %s", room.Name),
		Category:    scaffoldCategory(room.Type),
	}

	if room.AreaSqFt != nil {
		area := *room.AreaSqFt
		item.Quantity = &area
		item.Unit = "sf"
	} else if room.LengthFt != nil && room.WidthFt != nil {
		area := roundFeet(*room.LengthFt * *room.WidthFt)
		item.Quantity = &area
		item.Unit = "sf"
	}

	return item
}

func scaffoldCategory(roomType RoomType) string {
	switch roomType {
	case RoomKitchen:
		return "kitchen"
	case RoomBathroom:
		return "bath"
	case RoomGarage, RoomUtility:
		return "mechanical"
	default:
		return "general"
	}
}

// collectMissingInfo lists what the estimator will have to fill in manually.
func collectMissingInfo(rooms []ExtractedRoom) []string {
	missingDims := 0
	missingHeights := 0
	for _, room := range rooms {
		if room.AreaSqFt == nil && (room.LengthFt == nil || room.WidthFt == nil) {
			missingDims++
		}
		if room.CeilingHeightFt == nil {
			missingHeights++
		}
	}

	missing := make([]string, 0, 2)
	if missingDims > 0 {
		missing = append(missing, fmt.Sprintf("%d rooms have no usable dimensions", missingDims))
	}
	if missingHeights == len(rooms) {
		missing = append(missing, "Ceiling heights were not found on any sheet")
	}
	return missing
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// storeParseRecord persists the response and its searchable summary vector.
func (p *PlanProcessor) storeParseRecord(ctx context.Context, req *ProcessRequest, response *ParseResponse, rooms []ExtractedRoom) error {
	resultJSON, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal parse response: %w", err)
	}

	summary := buildPlanSummary(req.Filename, rooms)

	// Embedding failure loses similar-plan search, not the record.
	var embedding []float32
	if summary != "" {
		embedding, err = p.embeddingClient.GenerateEmbedding(ctx, summary)
		if err != nil {
			log.Printf("[Parse %s] WARNING: Summary embedding failed: %v. Plan will not be searchable.", req.PlanParseID, err)
			embedding = nil
		}
	}

	record, err := p.storage.StorePlanRecord(ctx, &storage.PlanRecordInput{
		PlanParseID:      req.PlanParseID,
		UserID:           req.UserID,
		ProjectID:        req.ProjectID,
		Filename:         req.Filename,
		Success:          response.Success,
		RoomCount:        len(response.Rooms),
		TotalPages:       response.TotalPages,
		Summary:          summary,
		SummaryEmbedding: embedding,
		Result:           resultJSON,
	})
	if err != nil {
		return err
	}

	log.Printf("[Parse %s] Parse record stored: recordId=%s, qdrantPointId=%s",
		req.PlanParseID, record.ID, record.QdrantPointID)
	return nil
}

// buildPlanSummary renders the room list as one line of text for embedding.
func buildPlanSummary(filename string, rooms []ExtractedRoom) string {
	if len(rooms) == 0 {
		return ""
	}

	parts := make([]string, 0, len(rooms)+1)
	parts = append(parts, filename)
	for _, room := range rooms {
		parts = append(parts, fmt.Sprintf("%s (%s, %s)", room.Name, room.Type, room.Level))
	}
	return strings.Join(parts, "; ")
}

// publishResult pushes the finished response to the estimate API. Best-effort:
// the record is already persisted.
func (p *PlanProcessor) publishResult(ctx context.Context, req *ProcessRequest, response *ParseResponse) {
	if p.estimateClient == nil {
		log.Printf("[Parse %s] Skipping result callback: estimate API not configured", req.PlanParseID)
		return
	}

	resultJSON, err := json.Marshal(response)
	if err != nil {
		log.Printf("[Parse %s] WARNING: Failed to marshal callback payload: %v", req.PlanParseID, err)
		return
	}

	_, err = p.estimateClient.PublishParseResult(ctx, &clients.ParseResultCallback{
		PlanParseID: req.PlanParseID,
		UserID:      req.UserID,
		ProjectID:   req.ProjectID,
		Success:     response.Success,
		RoomCount:   len(response.Rooms),
		Result:      resultJSON,
	})
	if err != nil {
		log.Printf("[Parse %s] WARNING: Result callback failed: %v. Result remains available via the database.", req.PlanParseID, err)
	}
}

// summarizeClassification renders a compact type histogram for logging.
func summarizeClassification(result *ClassificationResult) string {
	counts := make(map[PageType]int)
	for _, c := range result.Pages {
		counts[c.Type]++
	}

	parts := make([]string, 0, len(counts))
	for pageType, n := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", pageType, n))
	}
	return strings.Join(parts, " ")
}

func newScaffoldID() string {
	return uuid.New().String()
}
