/**
 * Level Detector - maps sheet titles and page text to canonical building levels
 *
 * Rules run in order against the sheet title first, then the first ~500
 * characters of page text. Order is the tie-break: Basement/Garage/Attic/Roof
 * keywords beat numbered-level patterns so "Garage Level" is not misread as a
 * numbered level. Sheet-numbering conventions (A2-01) are the last signal.
 */

package processor

import (
	"regexp"
)

const levelTextWindow = 500

type levelRule struct {
	pattern *regexp.Regexp
	level   CanonicalLevel
}

// levelRules is an ordered list; the first match wins.
var levelRules = []levelRule{
	// Named levels take priority over anything numeric.
	{regexp.MustCompile(`(?i)\bbasement\b|\bcellar\b|\blower\s+level\b|\bfoundation\s+plan\b`), LevelBasement},
	{regexp.MustCompile(`(?i)\bgarage\b|\bcarport\b`), LevelGarage},
	{regexp.MustCompile(`(?i)\battic\b|\bloft\s+plan\b`), LevelAttic},
	{regexp.MustCompile(`(?i)\broof\s+(plan|framing|level)\b|\broof\b`), LevelRoof},

	// Explicit "Level N" / "Floor N".
	{regexp.MustCompile(`(?i)\blevel\s*0?1\b|\bfloor\s*0?1\b`), Level1},
	{regexp.MustCompile(`(?i)\blevel\s*0?2\b|\bfloor\s*0?2\b`), Level2},
	{regexp.MustCompile(`(?i)\blevel\s*0?3\b|\bfloor\s*0?3\b`), Level3},
	{regexp.MustCompile(`(?i)\blevel\s*0?4\b|\bfloor\s*0?4\b`), Level4},

	// Ordinal floor words.
	{regexp.MustCompile(`(?i)\b(first|1st|main|ground)\s+(floor|level|story|storey)\b`), Level1},
	{regexp.MustCompile(`(?i)\b(second|2nd|upper)\s+(floor|level|story|storey)\b`), Level2},
	{regexp.MustCompile(`(?i)\b(third|3rd)\s+(floor|level|story|storey)\b`), Level3},
	{regexp.MustCompile(`(?i)\b(fourth|4th)\s+(floor|level|story|storey)\b`), Level4},

	// Architectural sheet numbering: A2-01 style, digit after the discipline
	// letter is the level. Last resort because sheet numbers also encode
	// detail/section sequences.
	{regexp.MustCompile(`(?i)\bA1[-.]\d{1,2}\b`), Level1},
	{regexp.MustCompile(`(?i)\bA2[-.]\d{1,2}\b`), Level2},
	{regexp.MustCompile(`(?i)\bA3[-.]\d{1,2}\b`), Level3},
	{regexp.MustCompile(`(?i)\bA4[-.]\d{1,2}\b`), Level4},
}

// DetectLevelFromText resolves the canonical building level for a sheet.
// It never returns an empty level; Level 1 is the default when nothing
// matches.
func DetectLevelFromText(sheetTitle string, pageText string) CanonicalLevel {
	for _, rule := range levelRules {
		if rule.pattern.MatchString(sheetTitle) {
			return rule.level
		}
	}

	if pageText != "" {
		window := pageText
		if len(window) > levelTextWindow {
			window = window[:levelTextWindow]
		}
		for _, rule := range levelRules {
			if rule.pattern.MatchString(window) {
				return rule.level
			}
		}
	}

	return Level1
}
