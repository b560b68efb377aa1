/**
 * Tesseract OCR - fill-in for scanned sheets
 *
 * Blueprint uploads occasionally arrive as scanned (raster) PDFs with no text
 * layer. When a page ships a raster render alongside empty text, Tesseract
 * recovers the room labels and title block so the page still classifies.
 */

package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOCR handles per-page OCR using Tesseract
type TesseractOCR struct {
	tesseractPath string
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	TesseractPath string
}

// PageOCRResult is the recovered text for one page render
type PageOCRResult struct {
	Text       string
	Confidence float64
	Duration   time.Duration
}

// NewTesseractOCR creates a new Tesseract OCR instance
func NewTesseractOCR(cfg *TesseractConfig) (*TesseractOCR, error) {
	if cfg.TesseractPath == "" {
		cfg.TesseractPath = "/usr/bin/tesseract"
	}

	return &TesseractOCR{
		tesseractPath: cfg.TesseractPath,
	}, nil
}

// RecognizePage performs OCR on a single page render
func (t *TesseractOCR) RecognizePage(ctx context.Context, imageData []byte) (*PageOCRResult, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("page image is empty")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(imageData); err != nil {
		return nil, fmt.Errorf("failed to set page image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	return &PageOCRResult{
		Text:       text,
		Confidence: estimateSheetOCRConfidence(text),
		Duration:   time.Since(startTime),
	}, nil
}

// estimateSheetOCRConfidence scores recovered text quality. Drawing sheets
// are text-sparse, so the thresholds are lower than for prose documents.
func estimateSheetOCRConfidence(text string) float64 {
	confidence := 0.4

	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 100 {
		confidence += 0.15
	}
	if len(trimmed) > 500 {
		confidence += 0.1
	}

	words := strings.Fields(trimmed)
	if len(words) > 20 {
		confidence += 0.1
	}

	alphaCount := 0
	for _, r := range trimmed {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			alphaCount++
		}
	}
	if len(trimmed) > 0 {
		alphaRatio := float64(alphaCount) / float64(len(trimmed))
		if alphaRatio > 0.3 && alphaRatio < 0.9 {
			confidence += 0.1
		}
	}

	if confidence > 0.85 {
		confidence = 0.85
	}

	return confidence
}
