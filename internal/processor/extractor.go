/**
 * Per-Sheet Room Extractor - one gateway call per floor-plan sheet
 *
 * The prompt (owned by the gateway) carries the detected level as context and
 * a hard rule that same-named rooms are never merged: two rooms both labeled
 * "Bathroom" must come back as two entries. The response is trusted but
 * verified: every room is schema-validated individually, and the model's
 * room_count_by_type map is checked against the array length - a mismatch is
 * a warning, never a rejection.
 */

package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bidright/planparse-worker/internal/clients"
	"github.com/bidright/planparse-worker/internal/logging"
)

// RoomExtractorService is the narrow gateway surface the extractor needs;
// tests substitute deterministic fakes.
type RoomExtractorService interface {
	ExtractRooms(ctx context.Context, req *clients.ExtractRoomsRequest) (*clients.ExtractRoomsResponse, error)
}

// RoomExtractor extracts typed room lists from classified sheets.
type RoomExtractor struct {
	gateway      RoomExtractorService
	minSheetText int
	logger       *logging.Logger
}

const defaultMinSheetText = 20

// NewRoomExtractor creates a room extractor. minSheetText falls back to the
// default when zero.
func NewRoomExtractor(gateway RoomExtractorService, minSheetText int) *RoomExtractor {
	if minSheetText <= 0 {
		minSheetText = defaultMinSheetText
	}
	return &RoomExtractor{
		gateway:      gateway,
		minSheetText: minSheetText,
		logger:       logging.NewLogger("RoomExtractor"),
	}
}

// ExtractFromSheet runs one extraction call for a sheet and post-processes
// the result. Sheets with too little usable text return an empty room list,
// not an error.
func (e *RoomExtractor) ExtractFromSheet(ctx context.Context, planParseID string, sheet SheetInfo, pageText string) (*ExtractionOutcome, error) {
	startTime := time.Now()

	outcome := &ExtractionOutcome{
		Result: SheetRoomResult{Sheet: sheet, Rooms: []ExtractedRoom{}},
	}

	if len(strings.TrimSpace(pageText)) < e.minSheetText {
		e.logger.Info("Sheet has too little text, skipping extraction",
			"pageNumber", sheet.PageNumber, "textLength", len(pageText))
		outcome.Duration = time.Since(startTime)
		return outcome, nil
	}

	resp, err := e.gateway.ExtractRooms(ctx, &clients.ExtractRoomsRequest{
		PlanParseID: planParseID,
		PageNumber:  sheet.PageNumber,
		SheetTitle:  sheet.SheetTitle,
		Level:       string(sheet.DetectedLevel),
		Text:        pageText,
	})
	if err != nil {
		return nil, fmt.Errorf("room extraction failed for page %d: %w", sheet.PageNumber, err)
	}

	// Validate each candidate individually; a bad entry is dropped, the
	// sheet continues.
	rooms := make([]ExtractedRoom, 0, len(resp.Data.Rooms))
	dropped := 0
	for _, candidate := range resp.Data.Rooms {
		room, ok := validateRoomCandidate(candidate)
		if !ok {
			dropped++
			continue
		}
		room.SheetLabel = sheet.SheetTitle
		rooms = append(rooms, room)
	}

	if dropped > 0 {
		e.logger.Warn("Dropped invalid room candidates",
			"pageNumber", sheet.PageNumber, "dropped", dropped, "kept", len(rooms))
		outcome.Warnings = append(outcome.Warnings,
			fmt.Sprintf("Page %d: %d room entries failed validation and were dropped", sheet.PageNumber, dropped))
	}

	// Verify the model's count-by-type map against the array it returned.
	// Advisory only: the array is the source of truth.
	if len(resp.Data.RoomCountByType) > 0 {
		total := 0
		for _, n := range resp.Data.RoomCountByType {
			total += n
		}
		if total != len(resp.Data.Rooms) {
			e.logger.Warn("Room count verification mismatch",
				"pageNumber", sheet.PageNumber,
				"countByType", total, "returned", len(resp.Data.Rooms))
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("Page %d: room count verification mismatch (reported %d, returned %d)",
					sheet.PageNumber, total, len(resp.Data.Rooms)))
		}
	}

	// Stamp provenance and run the deterministic post-pass. The detected
	// level is authoritative for every room on this sheet.
	outcome.Result.Rooms = PostProcessRooms(rooms, sheet.DetectedLevel)
	outcome.Assumptions = resp.Data.Assumptions
	outcome.Warnings = append(outcome.Warnings, resp.Data.Warnings...)
	outcome.Duration = time.Since(startTime)

	e.logger.Info("Sheet extraction complete",
		"pageNumber", sheet.PageNumber,
		"level", sheet.DetectedLevel,
		"rooms", len(outcome.Result.Rooms),
		"duration", outcome.Duration)

	return outcome, nil
}

// validateRoomCandidate converts an untrusted gateway room into a typed
// ExtractedRoom, defaulting invalid fields rather than propagating them.
// Returns false only when the entry is unusable (no name).
func validateRoomCandidate(c clients.RoomCandidate) (ExtractedRoom, bool) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ExtractedRoom{}, false
	}

	roomType := RoomType(strings.ToLower(strings.TrimSpace(c.Type)))
	if !validRoomTypes[roomType] {
		roomType = RoomOther
	}

	confidence := int(c.Confidence)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return ExtractedRoom{
		Name:            name,
		Type:            roomType,
		AreaSqFt:        positiveOrNil(c.AreaSqFt),
		LengthFt:        positiveOrNil(c.LengthFt),
		WidthFt:         positiveOrNil(c.WidthFt),
		CeilingHeightFt: positiveOrNil(c.CeilingHeightFt),
		Dimensions:      strings.TrimSpace(c.Dimensions),
		Notes:           strings.TrimSpace(c.Notes),
		Confidence:      confidence,
	}, true
}

// positiveOrNil defaults non-positive measurements to nil so the
// post-processor can fill them from the raw dimension string.
func positiveOrNil(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	value := *v
	return &value
}
