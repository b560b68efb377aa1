package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bidright/planparse-worker/internal/clients"
)

// fakeExtractorGateway returns a canned extraction response or error.
type fakeExtractorGateway struct {
	resp    *clients.ExtractRoomsResponse
	err     error
	lastReq *clients.ExtractRoomsRequest
	calls   int
}

func (f *fakeExtractorGateway) ExtractRooms(ctx context.Context, req *clients.ExtractRoomsRequest) (*clients.ExtractRoomsResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

const sheetText = "FIRST FLOOR PLAN\nMASTER BEDROOM 15'-0\" x 13'-0\"\nBATH 8'-0\" x 6'-0\""

func TestExtractFromSheet(t *testing.T) {
	area := 195.0
	gateway := &fakeExtractorGateway{
		resp: &clients.ExtractRoomsResponse{
			Success: true,
			Data: clients.ExtractRoomsData{
				Rooms: []clients.RoomCandidate{
					{Name: "Master Bedroom", Type: "bedroom", AreaSqFt: &area, Confidence: 90},
					{Name: "Bath", Type: "bathroom", Dimensions: `8'-0" x 6'-0"`, Confidence: 85},
				},
				RoomCountByType: map[string]int{"bedroom": 1, "bathroom": 1},
				Assumptions:     []string{"Dimensions read from printed labels"},
			},
		},
	}

	extractor := NewRoomExtractor(gateway, 0)
	sheet := SheetInfo{PageNumber: 3, SheetTitle: "A2-01 Second Floor Plan", DetectedLevel: Level2}

	outcome, err := extractor.ExtractFromSheet(context.Background(), "pp-123", sheet, sheetText)
	if err != nil {
		t.Fatalf("ExtractFromSheet() error = %v", err)
	}

	if gateway.lastReq.Level != string(Level2) {
		t.Errorf("gateway level = %q, want %q", gateway.lastReq.Level, Level2)
	}
	if gateway.lastReq.PageNumber != 3 {
		t.Errorf("gateway page = %d, want 3", gateway.lastReq.PageNumber)
	}

	rooms := outcome.Result.Rooms
	if len(rooms) != 2 {
		t.Fatalf("got %d rooms, want 2", len(rooms))
	}
	for i, room := range rooms {
		if room.Level != Level2 {
			t.Errorf("room %d level = %q, want %q", i, room.Level, Level2)
		}
		if room.SheetLabel != sheet.SheetTitle {
			t.Errorf("room %d sheet label = %q", i, room.SheetLabel)
		}
	}

	// Dimension fill-in ran as part of the post-pass.
	if rooms[1].LengthFt == nil || *rooms[1].LengthFt != 8.0 {
		t.Errorf("bath LengthFt = %v, want 8.0", rooms[1].LengthFt)
	}

	if len(outcome.Assumptions) != 1 {
		t.Errorf("assumptions = %v", outcome.Assumptions)
	}
	if len(outcome.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", outcome.Warnings)
	}
}

func TestExtractFromSheetSkipsThinText(t *testing.T) {
	gateway := &fakeExtractorGateway{}
	extractor := NewRoomExtractor(gateway, 20)
	sheet := SheetInfo{PageNumber: 4, DetectedLevel: Level1}

	outcome, err := extractor.ExtractFromSheet(context.Background(), "pp-123", sheet, "   A-101   ")
	if err != nil {
		t.Fatalf("ExtractFromSheet() error = %v", err)
	}
	if gateway.calls != 0 {
		t.Errorf("gateway called for a thin sheet")
	}
	if len(outcome.Result.Rooms) != 0 {
		t.Errorf("got %d rooms, want 0", len(outcome.Result.Rooms))
	}
}

func TestExtractFromSheetGatewayError(t *testing.T) {
	gateway := &fakeExtractorGateway{err: errors.New("model overloaded")}
	extractor := NewRoomExtractor(gateway, 0)
	sheet := SheetInfo{PageNumber: 7, DetectedLevel: Level1}

	_, err := extractor.ExtractFromSheet(context.Background(), "pp-123", sheet, sheetText)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "page 7") {
		t.Errorf("error %q does not name the page", err)
	}
}

func TestExtractFromSheetDropsInvalidCandidates(t *testing.T) {
	gateway := &fakeExtractorGateway{
		resp: &clients.ExtractRoomsResponse{
			Success: true,
			Data: clients.ExtractRoomsData{
				Rooms: []clients.RoomCandidate{
					{Name: "", Type: "bedroom", Confidence: 90},
					{Name: "Kitchen", Type: "galley", Confidence: 140},
				},
			},
		},
	}

	extractor := NewRoomExtractor(gateway, 0)
	sheet := SheetInfo{PageNumber: 2, DetectedLevel: Level1}

	outcome, err := extractor.ExtractFromSheet(context.Background(), "pp-123", sheet, sheetText)
	if err != nil {
		t.Fatalf("ExtractFromSheet() error = %v", err)
	}

	rooms := outcome.Result.Rooms
	if len(rooms) != 1 {
		t.Fatalf("got %d rooms, want 1", len(rooms))
	}

	// Unknown type defaults to other; confidence clamps to 100.
	if rooms[0].Type != RoomOther {
		t.Errorf("type = %q, want other", rooms[0].Type)
	}
	if rooms[0].Confidence != 100 {
		t.Errorf("confidence = %d, want 100", rooms[0].Confidence)
	}

	found := false
	for _, w := range outcome.Warnings {
		if strings.Contains(w, "failed validation") {
			found = true
		}
	}
	if !found {
		t.Errorf("no dropped-candidate warning in %v", outcome.Warnings)
	}
}

func TestExtractFromSheetCountMismatchWarning(t *testing.T) {
	gateway := &fakeExtractorGateway{
		resp: &clients.ExtractRoomsResponse{
			Success: true,
			Data: clients.ExtractRoomsData{
				Rooms: []clients.RoomCandidate{
					{Name: "Bedroom", Type: "bedroom", Confidence: 90},
				},
				RoomCountByType: map[string]int{"bedroom": 3},
			},
		},
	}

	extractor := NewRoomExtractor(gateway, 0)
	sheet := SheetInfo{PageNumber: 6, DetectedLevel: Level1}

	outcome, err := extractor.ExtractFromSheet(context.Background(), "pp-123", sheet, sheetText)
	if err != nil {
		t.Fatalf("ExtractFromSheet() error = %v", err)
	}

	found := false
	for _, w := range outcome.Warnings {
		if strings.Contains(w, "count verification mismatch") {
			found = true
		}
	}
	if !found {
		t.Errorf("no mismatch warning in %v", outcome.Warnings)
	}
	// The array stays the source of truth.
	if len(outcome.Result.Rooms) != 1 {
		t.Errorf("got %d rooms, want 1", len(outcome.Result.Rooms))
	}
}

func TestValidateRoomCandidateNonPositiveMeasurements(t *testing.T) {
	zero := 0.0
	negative := -4.5
	room, ok := validateRoomCandidate(clients.RoomCandidate{
		Name:     "Den",
		Type:     "office",
		AreaSqFt: &zero,
		LengthFt: &negative,
	})
	if !ok {
		t.Fatal("candidate rejected")
	}
	if room.AreaSqFt != nil || room.LengthFt != nil {
		t.Errorf("non-positive measurements kept: area=%v length=%v", room.AreaSqFt, room.LengthFt)
	}
}
