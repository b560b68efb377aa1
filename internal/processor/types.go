/**
 * Plan Parse Types - Shared data structures for the blueprint parse pipeline
 *
 * Every entity here is produced by one pipeline stage and consumed immutably
 * by the next: PageClassification -> SheetInfo -> SheetRoomResult -> merged
 * room list -> ParseResponse.
 */

package processor

import (
	"time"

	"github.com/google/uuid"
)

// CanonicalLevel is one of the fixed building-level labels a room can live on.
type CanonicalLevel string

const (
	LevelBasement CanonicalLevel = "Basement"
	Level1        CanonicalLevel = "Level 1"
	Level2        CanonicalLevel = "Level 2"
	Level3        CanonicalLevel = "Level 3"
	Level4        CanonicalLevel = "Level 4"
	LevelGarage   CanonicalLevel = "Garage"
	LevelAttic    CanonicalLevel = "Attic"
	LevelRoof     CanonicalLevel = "Roof"
)

// PageType is the closed taxonomy the classifier maps every page into.
type PageType string

const (
	PageCover          PageType = "cover"
	PageIndex          PageType = "index"
	PageFloorPlan      PageType = "floor_plan"
	PageRoomSchedule   PageType = "room_schedule"
	PageFinishSchedule PageType = "finish_schedule"
	PageNotes          PageType = "notes"
	PageSpecs          PageType = "specs"
	PageElevation      PageType = "elevation"
	PageSection        PageType = "section"
	PageDetail         PageType = "detail"
	PageElectrical     PageType = "electrical"
	PagePlumbing       PageType = "plumbing"
	PageMechanical     PageType = "mechanical"
	PageSitePlan       PageType = "site_plan"
	PageIrrelevant     PageType = "irrelevant"
	PageOther          PageType = "other"
)

// validPageTypes is the closed set; anything the gateway returns outside it
// normalizes to PageOther.
var validPageTypes = map[PageType]bool{
	PageCover: true, PageIndex: true, PageFloorPlan: true,
	PageRoomSchedule: true, PageFinishSchedule: true, PageNotes: true,
	PageSpecs: true, PageElevation: true, PageSection: true,
	PageDetail: true, PageElectrical: true, PagePlumbing: true,
	PageMechanical: true, PageSitePlan: true, PageIrrelevant: true,
	PageOther: true,
}

// roomRelevantTypes are the page kinds that carry room labels in practice,
// used as the last selection tier before the cap.
var roomRelevantTypes = map[PageType]bool{
	PageFloorPlan: true, PageRoomSchedule: true, PageFinishSchedule: true,
	PageElectrical: true, PagePlumbing: true, PageMechanical: true,
}

// PageText is one page of pre-extracted blueprint text, the unit of
// classification. Image is an optional base64 page render used only by the
// OCR fallback for scanned sheets.
type PageText struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
	Image      []byte `json:"image,omitempty"`
}

// PageClassification is the classifier's verdict for a single page.
// Produced once per page per parse run; never mutated afterwards.
type PageClassification struct {
	PageNumber    int      `json:"pageNumber"`
	Type          PageType `json:"type"`
	Confidence    int      `json:"confidence"` // 0-100
	HasRoomLabels bool     `json:"hasRoomLabels"`
	Reason        string   `json:"reason,omitempty"`
}

// SheetInfo is a classified page enriched with level detection; the input to
// per-sheet room extraction.
type SheetInfo struct {
	PageNumber     int                `json:"pageNumber"`
	SheetTitle     string             `json:"sheetTitle"`
	DetectedLevel  CanonicalLevel     `json:"detectedLevel"`
	Classification PageClassification `json:"classification"`
	Confidence     int                `json:"confidence"`
}

// RoomType is the closed set of room kinds the extractor normalizes into.
type RoomType string

const (
	RoomBedroom  RoomType = "bedroom"
	RoomBathroom RoomType = "bathroom"
	RoomKitchen  RoomType = "kitchen"
	RoomLiving   RoomType = "living"
	RoomDining   RoomType = "dining"
	RoomFamily   RoomType = "family"
	RoomOffice   RoomType = "office"
	RoomCloset   RoomType = "closet"
	RoomLaundry  RoomType = "laundry"
	RoomGarage   RoomType = "garage"
	RoomHallway  RoomType = "hallway"
	RoomUtility  RoomType = "utility"
	RoomOther    RoomType = "other"
)

var validRoomTypes = map[RoomType]bool{
	RoomBedroom: true, RoomBathroom: true, RoomKitchen: true,
	RoomLiving: true, RoomDining: true, RoomFamily: true, RoomOffice: true,
	RoomCloset: true, RoomLaundry: true, RoomGarage: true, RoomHallway: true,
	RoomUtility: true, RoomOther: true,
}

// ExtractedRoom is one room pulled off a sheet. Numeric fields are pointers
// because the gateway may legitimately omit them; the post-processor fills
// only fields that are still nil.
type ExtractedRoom struct {
	Name            string         `json:"name"`
	Level           CanonicalLevel `json:"level,omitempty"`
	Type            RoomType       `json:"type"`
	AreaSqFt        *float64       `json:"area_sqft,omitempty"`
	LengthFt        *float64       `json:"length_ft,omitempty"`
	WidthFt         *float64       `json:"width_ft,omitempty"`
	CeilingHeightFt *float64       `json:"ceiling_height_ft,omitempty"`
	Dimensions      string         `json:"dimensions,omitempty"` // raw string as printed on the sheet
	Notes           string         `json:"notes,omitempty"`
	Confidence      int            `json:"confidence"` // 0-100
	SheetLabel      string         `json:"sheet_label,omitempty"`
}

// SheetRoomResult pairs extraction output with its provenance sheet.
type SheetRoomResult struct {
	Sheet SheetInfo       `json:"sheet"`
	Rooms []ExtractedRoom `json:"rooms"`
}

// RoomPayload is an ExtractedRoom with the identity and inclusion flag the
// room-review UI needs.
type RoomPayload struct {
	ID string `json:"id"`
	ExtractedRoom
	IsIncluded bool `json:"is_included"`
}

// NewRoomPayload wraps a room with a fresh identity, included by default so
// the review UI opts rooms out rather than in.
func NewRoomPayload(room ExtractedRoom) RoomPayload {
	return RoomPayload{
		ID:            uuid.New().String(),
		ExtractedRoom: room,
		IsIncluded:    true,
	}
}

// LineItemScaffold is a pre-priced line item hung off a room. Pricing fields
// stay null; the estimate API owns pricing.
type LineItemScaffold struct {
	ID           string   `json:"id"`
	RoomID       string   `json:"room_id,omitempty"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Quantity     *float64 `json:"quantity,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	UnitCostUSD  *float64 `json:"unit_cost_usd"`
	TotalCostUSD *float64 `json:"total_cost_usd"`
}

// ParseResponse is the terminal artifact of a parse run and the only shape
// the estimate and room-review UIs need to understand. It is never empty:
// total failure yields success=false with a single placeholder room.
type ParseResponse struct {
	Success             bool                 `json:"success"`
	PlanParseID         string               `json:"planParseId,omitempty"`
	Rooms               []RoomPayload        `json:"rooms"`
	LineItemScaffold    []LineItemScaffold   `json:"lineItemScaffold"`
	Assumptions         []string             `json:"assumptions"`
	MissingInfo         []string             `json:"missingInfo"`
	Warnings            []string             `json:"warnings"`
	PageClassifications []PageClassification `json:"pageClassifications"`
	TotalPages          int                  `json:"totalPages"`
	RelevantPages       []int                `json:"relevantPages"`
	ProcessingTimeMs    int64                `json:"processingTimeMs"`
	Error               string               `json:"error,omitempty"`
}

// Dimensions is the numeric result of parsing a raw dimension string.
type Dimensions struct {
	LengthFt float64 `json:"length_ft"`
	WidthFt  float64 `json:"width_ft"`
}

// ClassificationResult is the classifier stage's output for a whole document.
type ClassificationResult struct {
	Pages      []PageClassification `json:"pages"`
	TotalPages int                  `json:"totalPages"`
	Summary    string               `json:"summary,omitempty"`
	Fallback   bool                 `json:"fallback,omitempty"` // true when the gateway was unavailable
}

// ExtractionOutcome carries one sheet's rooms plus the advisory signals the
// gateway returned alongside them.
type ExtractionOutcome struct {
	Result      SheetRoomResult
	Assumptions []string
	Warnings    []string
	Duration    time.Duration
}
