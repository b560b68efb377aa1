/**
 * Fallback Response Builder
 *
 * The parse pipeline never returns an empty payload to the review UI. When
 * the pipeline fails outright, the response carries success=false, a
 * user-facing explanation, and exactly one placeholder room plus one
 * placeholder line item so the estimate screen renders something editable
 * instead of a dead end.
 */

package processor

import (
	"github.com/google/uuid"

	apperrors "github.com/bidright/planparse-worker/internal/errors"
)

const placeholderRoomName = "General / Scope Notes"

// CreateFallbackResponse builds the degraded-but-present response for a
// failed parse run.
func CreateFallbackResponse(err error, totalPages int, planParseID string) *ParseResponse {
	userMessage := apperrors.UserFacingMessage(err)

	placeholder := ExtractedRoom{
		Name:       placeholderRoomName,
		Level:      Level1,
		Type:       RoomOther,
		Notes:      "Automatic parsing failed. Add rooms manually or re-upload the document.",
		Confidence: fallbackConfidence,
	}
	placeholderPayload := NewRoomPayload(placeholder)

	quantity := 1.0
	return &ParseResponse{
		Success:     false,
		PlanParseID: planParseID,
		Rooms:       []RoomPayload{placeholderPayload},
		LineItemScaffold: []LineItemScaffold{
			{
				ID:          uuid.New().String(),
				RoomID:      placeholderPayload.ID,
				Description: "Review document manually and enter scope",
				Category:    "general",
				Quantity:    &quantity,
				Unit:        "ls",
			},
		},
		Assumptions: []string{"Placeholder room added because automatic parsing did not complete"},
		MissingInfo: []string{"Room list could not be extracted from the document"},
		Warnings:    []string{userMessage},
		TotalPages:  totalPages,
		Error:       userMessage,
	}
}
