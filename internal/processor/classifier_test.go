package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/bidright/planparse-worker/internal/clients"
)

// fakeClassifierGateway returns canned verdicts or a canned error.
type fakeClassifierGateway struct {
	resp    *clients.ClassifyPagesResponse
	err     error
	lastReq *clients.ClassifyPagesRequest
}

func (f *fakeClassifierGateway) ClassifyPages(ctx context.Context, req *clients.ClassifyPagesRequest) (*clients.ClassifyPagesResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestClassifyNormalizesVerdicts(t *testing.T) {
	gateway := &fakeClassifierGateway{
		resp: &clients.ClassifyPagesResponse{
			Success: true,
			Data: clients.ClassifyPagesData{
				Pages: []clients.PageVerdict{
					{PageNumber: 1, Type: "floor_plan", Confidence: 92, HasRoomLabels: true, Reason: "room labels visible"},
					{PageNumber: 2, Type: "FLOOR_PLAN", Confidence: 85},
					{PageNumber: 3, Type: "blueprint_magic", Confidence: 99},
					{PageNumber: 4, Type: "detail", Confidence: 150},
					{PageNumber: 5, Type: "notes", Confidence: -10},
				},
				Summary: "single family residence",
			},
		},
	}

	classifier := NewPageClassifier(gateway, 0, 0)
	pages := []PageText{
		{PageNumber: 1, Text: "first floor plan"},
		{PageNumber: 2, Text: "SECOND FLOOR PLAN"},
		{PageNumber: 3, Text: "???"},
		{PageNumber: 4, Text: "wall section detail"},
		{PageNumber: 5, Text: "general notes"},
	}

	result := classifier.Classify(context.Background(), "pp-123", pages)

	if result.Fallback {
		t.Fatal("Fallback set on a successful gateway call")
	}
	if result.TotalPages != 5 || len(result.Pages) != 5 {
		t.Fatalf("got %d/%d pages, want 5/5", len(result.Pages), result.TotalPages)
	}
	if result.Summary != "single family residence" {
		t.Errorf("summary = %q", result.Summary)
	}

	if result.Pages[0].Type != PageFloorPlan || result.Pages[0].Confidence != 92 {
		t.Errorf("page 1 = %+v", result.Pages[0])
	}

	// Case-insensitive type normalization.
	if result.Pages[1].Type != PageFloorPlan {
		t.Errorf("page 2 type = %q, want floor_plan", result.Pages[1].Type)
	}

	// Unknown type becomes a low-confidence `other` biased toward inclusion.
	p3 := result.Pages[2]
	if p3.Type != PageOther || p3.Confidence != fallbackConfidence || !p3.HasRoomLabels {
		t.Errorf("unknown type verdict = %+v", p3)
	}

	// Confidence clamped into 0-100.
	if result.Pages[3].Confidence != 100 {
		t.Errorf("page 4 confidence = %d, want 100", result.Pages[3].Confidence)
	}
	if result.Pages[4].Confidence != 0 {
		t.Errorf("page 5 confidence = %d, want 0", result.Pages[4].Confidence)
	}
}

func TestClassifyGatewayFailureFallsBack(t *testing.T) {
	gateway := &fakeClassifierGateway{err: errors.New("gateway unreachable")}
	classifier := NewPageClassifier(gateway, 0, 0)

	pages := []PageText{
		{PageNumber: 1, Text: "MASTER BEDROOM 15' x 13'"},
		{PageNumber: 2, Text: "structural steel notes"},
	}

	result := classifier.Classify(context.Background(), "pp-123", pages)

	if !result.Fallback {
		t.Fatal("Fallback not set after gateway error")
	}
	if len(result.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(result.Pages))
	}
	if result.Pages[0].Type != PageOther || !result.Pages[0].HasRoomLabels {
		t.Errorf("page with room keyword = %+v, want other/hasRoomLabels", result.Pages[0])
	}
	if result.Pages[1].HasRoomLabels {
		t.Errorf("page without room keyword flagged hasRoomLabels")
	}
}

func TestClassifySkippedVerdictGetsKeywordFallback(t *testing.T) {
	gateway := &fakeClassifierGateway{
		resp: &clients.ClassifyPagesResponse{
			Success: true,
			Data: clients.ClassifyPagesData{
				Pages: []clients.PageVerdict{
					{PageNumber: 1, Type: "floor_plan", Confidence: 90},
				},
			},
		},
	}
	classifier := NewPageClassifier(gateway, 0, 0)

	pages := []PageText{
		{PageNumber: 1, Text: "floor plan"},
		{PageNumber: 2, Text: "kitchen finishes"},
	}

	result := classifier.Classify(context.Background(), "pp-123", pages)

	if len(result.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(result.Pages))
	}
	p2 := result.Pages[1]
	if p2.Type != PageOther || p2.Confidence != fallbackConfidence || !p2.HasRoomLabels {
		t.Errorf("skipped page verdict = %+v", p2)
	}
}

func TestClassifyTruncatesAndSamples(t *testing.T) {
	gateway := &fakeClassifierGateway{
		resp: &clients.ClassifyPagesResponse{Success: true},
	}
	classifier := NewPageClassifier(gateway, 10, 4)

	pages := make([]PageText, 0, 9)
	for i := 1; i <= 9; i++ {
		pages = append(pages, PageText{PageNumber: i, Text: "this text is longer than ten characters"})
	}

	result := classifier.Classify(context.Background(), "pp-123", pages)

	if gateway.lastReq == nil {
		t.Fatal("gateway never called")
	}
	if len(gateway.lastReq.Pages) != 4 {
		t.Errorf("sampled %d pages to gateway, want 4", len(gateway.lastReq.Pages))
	}
	for _, in := range gateway.lastReq.Pages {
		if len(in.Text) > 10 {
			t.Errorf("page %d text not truncated: %d chars", in.PageNumber, len(in.Text))
		}
	}

	// Every document page still gets a classification.
	if len(result.Pages) != 9 {
		t.Errorf("got %d classifications, want 9", len(result.Pages))
	}
}

func TestClassifyEmptyDocument(t *testing.T) {
	classifier := NewPageClassifier(&fakeClassifierGateway{}, 0, 0)
	result := classifier.Classify(context.Background(), "pp-123", nil)
	if len(result.Pages) != 0 || result.TotalPages != 0 {
		t.Errorf("got %+v, want empty result", result)
	}
}
