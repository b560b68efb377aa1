package processor

import (
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestPostProcessRoomsNumbersDuplicates(t *testing.T) {
	rooms := []ExtractedRoom{
		{Name: "Bathroom", Type: RoomBathroom, Confidence: 90},
		{Name: "Bathroom", Type: RoomBathroom, Confidence: 85},
		{Name: "Kitchen", Type: RoomKitchen, Confidence: 95},
		{Name: "Bathroom", Type: RoomBathroom, Confidence: 80},
	}

	out := PostProcessRooms(rooms, Level2)

	if len(out) != len(rooms) {
		t.Fatalf("room count changed: got %d, want %d", len(out), len(rooms))
	}

	wantNames := []string{"Bathroom 1", "Bathroom 2", "Kitchen", "Bathroom 3"}
	for i, want := range wantNames {
		if out[i].Name != want {
			t.Errorf("room %d name = %q, want %q", i, out[i].Name, want)
		}
		if out[i].Level != Level2 {
			t.Errorf("room %d level = %q, want %q", i, out[i].Level, Level2)
		}
	}
}

func TestPostProcessRoomsNormalizesNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"abbreviation", "BA", "Bathroom"},
		{"abbreviation with number", "BA #2", "Bathroom"},
		{"master bedroom abbreviation", "MBR", "Master Bedroom"},
		{"level suffix dash", "Kitchen - Level 2", "Kitchen"},
		{"level suffix parens", "Bedroom (Basement)", "Bedroom"},
		{"level suffix comma", "Office, Attic", "Office"},
		{"trailing number", "Bathroom 1", "Bathroom"},
		{"title casing", "living room", "Living Room"},
		{"whitespace collapse", "  dining   room  ", "Dining Room"},
		{"empty name", "", "Room"},
		{"only a number", "#3", "Room"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := PostProcessRooms([]ExtractedRoom{{Name: tt.in}}, Level1)
			if len(out) != 1 {
				t.Fatalf("got %d rooms, want 1", len(out))
			}
			if out[0].Name != tt.want {
				t.Errorf("name = %q, want %q", out[0].Name, tt.want)
			}
		})
	}
}

func TestPostProcessRoomsDimensionFillIn(t *testing.T) {
	rooms := []ExtractedRoom{
		{Name: "Bedroom", Dimensions: `12'-6" x 14'-0"`},
	}

	out := PostProcessRooms(rooms, Level1)

	if out[0].LengthFt == nil || *out[0].LengthFt != 12.5 {
		t.Errorf("LengthFt = %v, want 12.5", out[0].LengthFt)
	}
	if out[0].WidthFt == nil || *out[0].WidthFt != 14.0 {
		t.Errorf("WidthFt = %v, want 14.0", out[0].WidthFt)
	}
}

func TestPostProcessRoomsNeverOverridesNumericDimensions(t *testing.T) {
	rooms := []ExtractedRoom{
		{Name: "Bedroom", Dimensions: "10 x 10", LengthFt: floatPtr(11.0), WidthFt: floatPtr(12.0)},
	}

	out := PostProcessRooms(rooms, Level1)

	if *out[0].LengthFt != 11.0 || *out[0].WidthFt != 12.0 {
		t.Errorf("dimensions overridden: got %v x %v, want 11 x 12", *out[0].LengthFt, *out[0].WidthFt)
	}
}

func TestPostProcessRoomsPartialDimensionFillIn(t *testing.T) {
	rooms := []ExtractedRoom{
		{Name: "Bedroom", Dimensions: "10 x 12", LengthFt: floatPtr(11.0)},
	}

	out := PostProcessRooms(rooms, Level1)

	if *out[0].LengthFt != 11.0 {
		t.Errorf("LengthFt overridden: got %v, want 11.0", *out[0].LengthFt)
	}
	if out[0].WidthFt == nil || *out[0].WidthFt != 12.0 {
		t.Errorf("WidthFt = %v, want 12.0", out[0].WidthFt)
	}
}

func TestPostProcessRoomsEmptyInput(t *testing.T) {
	out := PostProcessRooms(nil, Level1)
	if out == nil || len(out) != 0 {
		t.Errorf("got %v, want empty slice", out)
	}
}

func TestPostProcessRoomsDoesNotMutateInput(t *testing.T) {
	rooms := []ExtractedRoom{{Name: "kitchen"}}
	PostProcessRooms(rooms, Level2)
	if rooms[0].Name != "kitchen" {
		t.Errorf("input mutated: name = %q", rooms[0].Name)
	}
}

func TestDeduplicateAcrossSheets(t *testing.T) {
	results := []SheetRoomResult{
		{
			Sheet: SheetInfo{PageNumber: 3},
			Rooms: []ExtractedRoom{
				{Name: "Kitchen", Level: Level1, Confidence: 80},
				{Name: "Bathroom 1", Level: Level1, Confidence: 85},
			},
		},
		{
			Sheet: SheetInfo{PageNumber: 5},
			Rooms: []ExtractedRoom{
				{Name: "Kitchen", Level: Level1, Confidence: 92, AreaSqFt: floatPtr(180)},
				{Name: "Kitchen", Level: Level2, Confidence: 70},
			},
		},
	}

	merged := DeduplicateAcrossSheets(results)

	if len(merged) != 3 {
		t.Fatalf("got %d rooms, want 3", len(merged))
	}

	// First-encounter order preserved; higher confidence replaced in place.
	if merged[0].Name != "Kitchen" || merged[0].Level != Level1 {
		t.Errorf("merged[0] = %q/%q, want Kitchen on Level 1", merged[0].Name, merged[0].Level)
	}
	if merged[0].Confidence != 92 {
		t.Errorf("kitchen confidence = %d, want the higher 92", merged[0].Confidence)
	}
	if merged[0].AreaSqFt == nil || *merged[0].AreaSqFt != 180 {
		t.Errorf("kitchen area not carried from the winning instance")
	}
	if merged[1].Name != "Bathroom 1" {
		t.Errorf("merged[1] = %q, want Bathroom 1", merged[1].Name)
	}
	if merged[2].Level != Level2 {
		t.Errorf("level 2 kitchen merged away; got %q", merged[2].Level)
	}
}

func TestDeduplicateAcrossSheetsKeepsFirstOnLowerConfidence(t *testing.T) {
	results := []SheetRoomResult{
		{Rooms: []ExtractedRoom{{Name: "Foyer", Level: Level1, Confidence: 90, SheetLabel: "A1-01"}}},
		{Rooms: []ExtractedRoom{{Name: "foyer", Level: Level1, Confidence: 60, SheetLabel: "A1-02"}}},
	}

	merged := DeduplicateAcrossSheets(results)

	if len(merged) != 1 {
		t.Fatalf("got %d rooms, want 1", len(merged))
	}
	if merged[0].SheetLabel != "A1-01" {
		t.Errorf("lower-confidence duplicate won: sheet = %q", merged[0].SheetLabel)
	}
}
