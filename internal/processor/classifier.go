/**
 * Page Classifier - gateway-backed classification with deterministic fallback
 *
 * Sends each page's leading text to the model gateway and normalizes the
 * verdicts into the closed page-type set. The batch never fails: a malformed
 * verdict is replaced with a safe low-confidence `other` biased toward
 * inclusion, and a total gateway failure falls back to keyword heuristics so
 * the pipeline continues instead of failing closed.
 */

package processor

import (
	"context"
	"strings"

	"github.com/bidright/planparse-worker/internal/clients"
	"github.com/bidright/planparse-worker/internal/logging"
)

// PageClassifierService is the narrow gateway surface the classifier needs;
// tests substitute deterministic fakes.
type PageClassifierService interface {
	ClassifyPages(ctx context.Context, req *clients.ClassifyPagesRequest) (*clients.ClassifyPagesResponse, error)
}

// PageClassifier classifies plan pages via the model gateway.
type PageClassifier struct {
	gateway     PageClassifierService
	textLimit   int
	sampleLimit int
	logger      *logging.Logger
}

const (
	defaultClassifyTextLimit = 1200
	defaultSampleLimit       = 60
	fallbackConfidence       = 30
)

// fallbackRoomKeywords drive hasRoomLabels inference when the gateway is
// unreachable.
var fallbackRoomKeywords = []string{"room", "bedroom", "kitchen"}

// NewPageClassifier creates a page classifier. textLimit and sampleLimit
// fall back to defaults when zero.
func NewPageClassifier(gateway PageClassifierService, textLimit, sampleLimit int) *PageClassifier {
	if textLimit <= 0 {
		textLimit = defaultClassifyTextLimit
	}
	if sampleLimit <= 0 {
		sampleLimit = defaultSampleLimit
	}
	return &PageClassifier{
		gateway:     gateway,
		textLimit:   textLimit,
		sampleLimit: sampleLimit,
		logger:      logging.NewLogger("PageClassifier"),
	}
}

// Classify classifies every page of a document. It never returns an error:
// gateway failure degrades to the deterministic keyword fallback.
func (c *PageClassifier) Classify(ctx context.Context, planParseID string, pages []PageText) *ClassificationResult {
	if len(pages) == 0 {
		return &ClassificationResult{Pages: []PageClassification{}, TotalPages: 0}
	}

	sampled := samplePages(pages, c.sampleLimit)
	if len(sampled) < len(pages) {
		c.logger.Warn("Document exceeds classification sample limit, sampling",
			"totalPages", len(pages), "sampled", len(sampled), "limit", c.sampleLimit)
	}

	inputs := make([]clients.ClassifyPageInput, 0, len(sampled))
	for _, page := range sampled {
		inputs = append(inputs, clients.ClassifyPageInput{
			PageNumber: page.PageNumber,
			Text:       truncateText(page.Text, c.textLimit),
		})
	}

	resp, err := c.gateway.ClassifyPages(ctx, &clients.ClassifyPagesRequest{
		PlanParseID: planParseID,
		Pages:       inputs,
	})
	if err != nil {
		c.logger.Warn("Gateway classification failed, using keyword fallback", "error", err)
		return c.fallbackClassify(pages)
	}

	// Index verdicts by page number; pages the gateway skipped (or that were
	// sampled out) get the keyword fallback below.
	verdicts := make(map[int]clients.PageVerdict, len(resp.Data.Pages))
	for _, v := range resp.Data.Pages {
		verdicts[v.PageNumber] = v
	}

	classifications := make([]PageClassification, 0, len(pages))
	for _, page := range pages {
		if verdict, ok := verdicts[page.PageNumber]; ok {
			classifications = append(classifications, normalizeVerdict(page.PageNumber, verdict))
		} else {
			classifications = append(classifications, keywordClassify(page))
		}
	}

	return &ClassificationResult{
		Pages:      classifications,
		TotalPages: len(pages),
		Summary:    resp.Data.Summary,
	}
}

// normalizeVerdict converts an untrusted gateway verdict into a valid
// PageClassification. A garbled verdict becomes a low-confidence `other`
// with hasRoomLabels=true so the page stays eligible for deep parsing.
func normalizeVerdict(pageNumber int, v clients.PageVerdict) PageClassification {
	pageType := PageType(strings.ToLower(strings.TrimSpace(v.Type)))
	if !validPageTypes[pageType] {
		return PageClassification{
			PageNumber:    pageNumber,
			Type:          PageOther,
			Confidence:    fallbackConfidence,
			HasRoomLabels: true,
			Reason:        "unrecognized classification, retained for review",
		}
	}

	confidence := int(v.Confidence)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return PageClassification{
		PageNumber:    pageNumber,
		Type:          pageType,
		Confidence:    confidence,
		HasRoomLabels: v.HasRoomLabels,
		Reason:        v.Reason,
	}
}

// fallbackClassify classifies every page deterministically when the gateway
// is unavailable.
func (c *PageClassifier) fallbackClassify(pages []PageText) *ClassificationResult {
	classifications := make([]PageClassification, 0, len(pages))
	for _, page := range pages {
		classifications = append(classifications, keywordClassify(page))
	}
	return &ClassificationResult{
		Pages:      classifications,
		TotalPages: len(pages),
		Fallback:   true,
	}
}

// keywordClassify is the deterministic per-page fallback: type `other`,
// hasRoomLabels inferred from a trivial keyword scan of the raw text.
func keywordClassify(page PageText) PageClassification {
	lower := strings.ToLower(page.Text)
	hasRoomLabels := false
	for _, kw := range fallbackRoomKeywords {
		if strings.Contains(lower, kw) {
			hasRoomLabels = true
			break
		}
	}

	return PageClassification{
		PageNumber:    page.PageNumber,
		Type:          PageOther,
		Confidence:    fallbackConfidence,
		HasRoomLabels: hasRoomLabels,
		Reason:        "fallback classification",
	}
}

// samplePages bounds how many pages go to the gateway: the first half of the
// budget verbatim, the rest spread evenly across the remainder. Oversized
// drawing sets front-load their architectural sheets, so the head matters
// most.
func samplePages(pages []PageText, limit int) []PageText {
	if len(pages) <= limit {
		return pages
	}

	head := limit / 2
	sampled := make([]PageText, 0, limit)
	sampled = append(sampled, pages[:head]...)

	remaining := pages[head:]
	step := float64(len(remaining)) / float64(limit-head)
	for i := 0; i < limit-head; i++ {
		idx := int(float64(i) * step)
		if idx >= len(remaining) {
			idx = len(remaining) - 1
		}
		sampled = append(sampled, remaining[idx])
	}

	return sampled
}

// truncateText limits classification input length.
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
