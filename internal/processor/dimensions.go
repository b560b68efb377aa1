/**
 * Dimension Parser - freeform architectural dimension strings to feet
 *
 * Handles the notations that show up on real sheets:
 *   12'-6" x 14'-0"   (feet-inches on both sides)
 *   12' x 14'         (feet only, inches default to 0)
 *   12.5 x 14.5       (bare decimal feet)
 * Smart quotes and prime marks are normalized to ASCII before matching.
 */

package processor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// feet-inches on both sides: 12'-6" x 14'-0" (dash and spaces optional)
	feetInchesPattern = regexp.MustCompile(`(\d+)'\s*-?\s*(\d+)\s*"\s*[xX×]\s*(\d+)'\s*-?\s*(\d+)\s*"`)

	// feet only (decimal allowed), trailing foot marks optional: 12' x 14', 12.5 x 14.5
	feetOnlyPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*'?\s*[xX×]\s*(\d+(?:\.\d+)?)\s*'?`)

	quoteNormalizer = strings.NewReplacer(
		"’", "'", // right single quote
		"‘", "'", // left single quote
		"′", "'", // prime
		"”", `"`, // right double quote
		"“", `"`, // left double quote
		"″", `"`, // double prime
	)
)

// ParseDimensions parses a raw dimension string into numeric length/width in
// feet. Returns nil when no pattern matches; it never returns an error. The
// first measurement is taken as length. Results round to 2 decimals.
func ParseDimensions(raw string) *Dimensions {
	if raw == "" {
		return nil
	}

	normalized := quoteNormalizer.Replace(raw)

	// Try feet-inches first; the feet-only pattern would misread 12'-6" as 12 x 6.
	if m := feetInchesPattern.FindStringSubmatch(normalized); m != nil {
		lengthFeet, _ := strconv.ParseFloat(m[1], 64)
		lengthInches, _ := strconv.ParseFloat(m[2], 64)
		widthFeet, _ := strconv.ParseFloat(m[3], 64)
		widthInches, _ := strconv.ParseFloat(m[4], 64)

		return &Dimensions{
			LengthFt: roundFeet(lengthFeet + lengthInches/12),
			WidthFt:  roundFeet(widthFeet + widthInches/12),
		}
	}

	if m := feetOnlyPattern.FindStringSubmatch(normalized); m != nil {
		length, err1 := strconv.ParseFloat(m[1], 64)
		width, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			return nil
		}

		return &Dimensions{
			LengthFt: roundFeet(length),
			WidthFt:  roundFeet(width),
		}
	}

	return nil
}

// roundFeet rounds to 2 decimal places.
func roundFeet(v float64) float64 {
	return math.Round(v*100) / 100
}
