package processor

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/bidright/planparse-worker/internal/errors"
)

func TestCreateFallbackResponse(t *testing.T) {
	err := apperrors.NewNoRoomsFoundError("pp-123", 8)
	resp := CreateFallbackResponse(err, 24, "pp-123")

	if resp.Success {
		t.Error("fallback response marked successful")
	}
	if resp.PlanParseID != "pp-123" {
		t.Errorf("planParseId = %q", resp.PlanParseID)
	}
	if resp.TotalPages != 24 {
		t.Errorf("totalPages = %d, want 24", resp.TotalPages)
	}

	// Exactly one placeholder room, included and linked to one scaffold item.
	if len(resp.Rooms) != 1 {
		t.Fatalf("got %d rooms, want 1", len(resp.Rooms))
	}
	room := resp.Rooms[0]
	if room.ID == "" || !room.IsIncluded {
		t.Errorf("placeholder room = %+v", room)
	}
	if room.Name != placeholderRoomName || room.Type != RoomOther || room.Level != Level1 {
		t.Errorf("placeholder room = %+v", room.ExtractedRoom)
	}

	if len(resp.LineItemScaffold) != 1 {
		t.Fatalf("got %d scaffold items, want 1", len(resp.LineItemScaffold))
	}
	item := resp.LineItemScaffold[0]
	if item.RoomID != room.ID {
		t.Errorf("scaffold item not linked to placeholder room: %q != %q", item.RoomID, room.ID)
	}
	if item.Quantity == nil || *item.Quantity != 1.0 || item.Unit != "ls" {
		t.Errorf("scaffold item = %+v", item)
	}
	if item.UnitCostUSD != nil || item.TotalCostUSD != nil {
		t.Errorf("scaffold item carries pricing: %+v", item)
	}

	// The user-facing message lands in both Error and Warnings.
	if !strings.Contains(resp.Error, "No rooms could be identified") {
		t.Errorf("error = %q", resp.Error)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0] != resp.Error {
		t.Errorf("warnings = %v", resp.Warnings)
	}
	if len(resp.Assumptions) == 0 || len(resp.MissingInfo) == 0 {
		t.Errorf("assumptions/missingInfo empty: %v / %v", resp.Assumptions, resp.MissingInfo)
	}
}

func TestCreateFallbackResponseUnknownError(t *testing.T) {
	resp := CreateFallbackResponse(errors.New("something odd happened"), 3, "pp-456")
	if resp.Success {
		t.Error("fallback response marked successful")
	}
	if resp.Error != "something odd happened" {
		t.Errorf("error = %q", resp.Error)
	}
}
