/**
 * Page Selector - picks which classified pages are worth a deep parse
 *
 * Precedence, union-deduplicated and capped:
 *   1. floor_plan pages with confidence >= 70
 *   2. pages flagged hasRoomLabels
 *   3. room_schedule pages
 *   4. remaining room-relevant types until the cap
 * If the union comes up empty the first min(5, N) pages are taken
 * unconditionally - the selector never returns an empty set when at least
 * one page exists.
 */

package processor

import (
	"sort"
)

const (
	floorPlanMinConfidence = 70
	emptySelectionFallback = 5
)

// SelectPagesForDeepParse returns the page numbers to deep-parse, sorted
// ascending.
func SelectPagesForDeepParse(classifications []PageClassification, maxPages int) []int {
	if len(classifications) == 0 {
		return []int{}
	}
	if maxPages <= 0 {
		maxPages = emptySelectionFallback
	}

	selected := make([]int, 0, maxPages)
	seen := make(map[int]bool, maxPages)

	add := func(pageNumber int) bool {
		if seen[pageNumber] || len(selected) >= maxPages {
			return len(selected) < maxPages
		}
		seen[pageNumber] = true
		selected = append(selected, pageNumber)
		return true
	}

	// Tier 1: confident floor plans.
	for _, c := range classifications {
		if c.Type == PageFloorPlan && c.Confidence >= floorPlanMinConfidence {
			if !add(c.PageNumber) {
				break
			}
		}
	}

	// Tier 2: anything flagged as carrying room labels.
	for _, c := range classifications {
		if c.HasRoomLabels {
			if !add(c.PageNumber) {
				break
			}
		}
	}

	// Tier 3: room schedules.
	for _, c := range classifications {
		if c.Type == PageRoomSchedule {
			if !add(c.PageNumber) {
				break
			}
		}
	}

	// Tier 4: remaining room-relevant types.
	for _, c := range classifications {
		if roomRelevantTypes[c.Type] {
			if !add(c.PageNumber) {
				break
			}
		}
	}

	// Guaranteed non-empty fallback: first min(5, N) pages.
	if len(selected) == 0 {
		ordered := make([]int, 0, len(classifications))
		for _, c := range classifications {
			ordered = append(ordered, c.PageNumber)
		}
		sort.Ints(ordered)
		n := emptySelectionFallback
		if n > len(ordered) {
			n = len(ordered)
		}
		selected = ordered[:n]
	}

	sort.Ints(selected)
	return selected
}
