package processor

import (
	"reflect"
	"testing"
)

func TestSelectPagesForDeepParseTierPrecedence(t *testing.T) {
	classifications := []PageClassification{
		{PageNumber: 1, Type: PageCover, Confidence: 95},
		{PageNumber: 2, Type: PageFloorPlan, Confidence: 90},
		{PageNumber: 3, Type: PageElectrical, Confidence: 80, HasRoomLabels: true},
		{PageNumber: 4, Type: PageRoomSchedule, Confidence: 85},
		{PageNumber: 5, Type: PagePlumbing, Confidence: 75},
		{PageNumber: 6, Type: PageDetail, Confidence: 88},
	}

	got := SelectPagesForDeepParse(classifications, 3)

	// floor_plan then hasRoomLabels then room_schedule fill the cap of 3;
	// plumbing (tier 4) and detail (not room-relevant) are left out.
	want := []int{2, 3, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSelectPagesForDeepParseLowConfidenceFloorPlan(t *testing.T) {
	classifications := []PageClassification{
		{PageNumber: 1, Type: PageFloorPlan, Confidence: 60},
		{PageNumber: 2, Type: PageRoomSchedule, Confidence: 90},
	}

	got := SelectPagesForDeepParse(classifications, 2)

	// The low-confidence floor plan misses tier 1 but is still room-relevant,
	// so it lands via tier 4 after the schedule.
	want := []int{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSelectPagesForDeepParseDedupsAcrossTiers(t *testing.T) {
	classifications := []PageClassification{
		{PageNumber: 7, Type: PageFloorPlan, Confidence: 95, HasRoomLabels: true},
	}

	got := SelectPagesForDeepParse(classifications, 12)

	want := []int{7}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSelectPagesForDeepParseCap(t *testing.T) {
	classifications := make([]PageClassification, 0, 20)
	for i := 1; i <= 20; i++ {
		classifications = append(classifications, PageClassification{
			PageNumber: i, Type: PageFloorPlan, Confidence: 90,
		})
	}

	got := SelectPagesForDeepParse(classifications, 12)

	if len(got) != 12 {
		t.Fatalf("got %d pages, want 12", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("pages not sorted ascending: %v", got)
		}
	}
}

func TestSelectPagesForDeepParseNeverEmpty(t *testing.T) {
	classifications := []PageClassification{
		{PageNumber: 9, Type: PageDetail, Confidence: 90},
		{PageNumber: 2, Type: PageCover, Confidence: 95},
		{PageNumber: 5, Type: PageSitePlan, Confidence: 90},
	}

	got := SelectPagesForDeepParse(classifications, 12)

	// Nothing room-relevant: fall back to the first min(5, N) page numbers.
	want := []int{2, 5, 9}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSelectPagesForDeepParseFallbackCappedAtFive(t *testing.T) {
	classifications := make([]PageClassification, 0, 8)
	for i := 1; i <= 8; i++ {
		classifications = append(classifications, PageClassification{
			PageNumber: i, Type: PageDetail, Confidence: 90,
		})
	}

	got := SelectPagesForDeepParse(classifications, 12)

	want := []int{1, 2, 3, 4, 5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSelectPagesForDeepParseEmptyInput(t *testing.T) {
	got := SelectPagesForDeepParse(nil, 12)
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}
