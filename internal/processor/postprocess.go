/**
 * Room Post-Processor - the deterministic core of the parse pipeline
 *
 * Two ordered steps per sheet batch:
 *   1. Dimension fill-in: parse the raw dimension string for rooms still
 *      missing numeric length/width. AI-supplied numbers are never
 *      overridden.
 *   2. Deterministic naming: strip level suffixes and trailing numerals to a
 *      base name, expand abbreviations, and number duplicates in encounter
 *      order. Numbering exists precisely so that no room is ever merged or
 *      dropped here - the room count out equals the room count in.
 *
 * Cross-sheet dedup is a separate pipeline-level pass scoped strictly to
 * exact level+name collisions (the same floor plan appearing on two sheets).
 */

package processor

import (
	"fmt"
	"regexp"
	"strings"
)

// abbreviationExpansions maps the shorthand that shows up on real sheets to
// display names. Matching is case-insensitive on the whole base name.
var abbreviationExpansions = map[string]string{
	"mbr":  "Master Bedroom",
	"mba":  "Master Bathroom",
	"ba":   "Bathroom",
	"br":   "Bedroom",
	"kit":  "Kitchen",
	"lr":   "Living Room",
	"dr":   "Dining Room",
	"fr":   "Family Room",
	"gr":   "Great Room",
	"wic":  "Walk-in Closet",
	"pwdr": "Powder Room",
	"foy":  "Foyer",
	"mech": "Mechanical Room",
	"lau":  "Laundry Room",
}

var (
	// trailing numbering the model may have added itself: "Bathroom 2", "Bedroom #3"
	trailingNumberPattern = regexp.MustCompile(`\s*#?\d+$`)

	// level suffixes: "Kitchen - Level 2", "Bedroom (Basement)", "Office, Attic"
	levelSuffixPattern = regexp.MustCompile(`(?i)\s*[-–,(]\s*(basement|garage|attic|roof|(?:level|floor)\s*\d)\s*\)?$`)

	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// PostProcessRooms runs the deterministic post-pass over one sheet's rooms.
// level is authoritative: it overwrites whatever the model echoed back.
// The returned slice always has exactly len(rawRooms) entries.
func PostProcessRooms(rawRooms []ExtractedRoom, level CanonicalLevel) []ExtractedRoom {
	if len(rawRooms) == 0 {
		return []ExtractedRoom{}
	}

	rooms := make([]ExtractedRoom, len(rawRooms))
	copy(rooms, rawRooms)

	// Step 1: dimension fill-in for rooms missing numeric sides.
	for i := range rooms {
		if rooms[i].LengthFt != nil && rooms[i].WidthFt != nil {
			continue
		}
		dims := ParseDimensions(rooms[i].Dimensions)
		if dims == nil {
			continue
		}
		if rooms[i].LengthFt == nil {
			length := dims.LengthFt
			rooms[i].LengthFt = &length
		}
		if rooms[i].WidthFt == nil {
			width := dims.WidthFt
			rooms[i].WidthFt = &width
		}
	}

	// Step 2: deterministic naming and authoritative level assignment.
	rooms = applyDeterministicNames(rooms, level)

	return rooms
}

// applyDeterministicNames rewrites room names so duplicates within the batch
// are numbered in encounter order while unique names stay untouched. Room
// count is never reduced by this step.
func applyDeterministicNames(rooms []ExtractedRoom, level CanonicalLevel) []ExtractedRoom {
	baseNames := make([]string, len(rooms))
	counts := make(map[string]int, len(rooms))

	for i, room := range rooms {
		base := baseRoomName(room.Name)
		baseNames[i] = base
		counts[strings.ToLower(base)]++
	}

	ordinals := make(map[string]int, len(counts))
	for i := range rooms {
		base := baseNames[i]
		key := strings.ToLower(base)

		if counts[key] > 1 {
			ordinals[key]++
			rooms[i].Name = fmt.Sprintf("%s %d", base, ordinals[key])
		} else {
			rooms[i].Name = base
		}

		rooms[i].Level = level
	}

	return rooms
}

// baseRoomName strips level suffixes and trailing numerals, expands known
// abbreviations, and tidies whitespace. "BA #2" and "Bathroom 1" both reduce
// to "Bathroom".
func baseRoomName(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = levelSuffixPattern.ReplaceAllString(cleaned, "")
	cleaned = trailingNumberPattern.ReplaceAllString(cleaned, "")
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return "Room"
	}

	if expanded, ok := abbreviationExpansions[strings.ToLower(cleaned)]; ok {
		return expanded
	}

	return titleCase(cleaned)
}

// titleCase uppercases the first letter of each word, leaving interior
// characters alone so names like "Walk-in Closet" survive.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// DeduplicateAcrossSheets merges room lists detected across overlapping
// sheets. Rooms collide only on exact level+lowercased-name; the
// higher-confidence instance wins. Distinct rooms that merely share a type
// are never merged. Encounter order of first appearance is preserved.
func DeduplicateAcrossSheets(results []SheetRoomResult) []ExtractedRoom {
	merged := make([]ExtractedRoom, 0)
	index := make(map[string]int)

	for _, result := range results {
		for _, room := range result.Rooms {
			key := string(room.Level) + "::" + strings.ToLower(room.Name)
			if at, ok := index[key]; ok {
				if room.Confidence > merged[at].Confidence {
					merged[at] = room
				}
				continue
			}
			index[key] = len(merged)
			merged = append(merged, room)
		}
	}

	return merged
}
