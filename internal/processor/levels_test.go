package processor

import (
	"strings"
	"testing"
)

func TestDetectLevelFromTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  CanonicalLevel
	}{
		{"basement keyword", "Basement Floor Plan", LevelBasement},
		{"cellar keyword", "CELLAR PLAN", LevelBasement},
		{"lower level", "Lower Level Plan", LevelBasement},
		{"foundation plan", "Foundation Plan", LevelBasement},
		{"garage keyword", "Garage Floor Plan", LevelGarage},
		{"carport", "Carport Plan", LevelGarage},
		{"attic keyword", "Attic Plan", LevelAttic},
		{"roof plan", "Roof Plan", LevelRoof},
		{"roof framing", "Roof Framing Plan", LevelRoof},
		{"explicit level 1", "Level 1 Floor Plan", Level1},
		{"explicit level 2", "LEVEL 2 - FLOOR PLAN", Level2},
		{"zero padded", "Level 03 Plan", Level3},
		{"first floor", "First Floor Plan", Level1},
		{"main level", "Main Level Plan", Level1},
		{"ground floor", "Ground Floor Plan", Level1},
		{"second floor", "Second Floor Plan", Level2},
		{"upper level", "Upper Level Plan", Level2},
		{"third floor", "3rd Floor Plan", Level3},
		{"fourth floor", "Fourth Floor Plan", Level4},
		{"sheet number A1", "A1-01", Level1},
		{"sheet number A2 dash", "A2-01", Level2},
		{"sheet number A3 dot", "A3.02", Level3},
		{"no signal defaults to level 1", "General Notes", Level1},
		{"empty title defaults to level 1", "", Level1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectLevelFromText(tt.title, "")
			if got != tt.want {
				t.Errorf("DetectLevelFromText(%q, \"\") = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestDetectLevelNamedBeatsNumbered(t *testing.T) {
	// "Garage Level 2" must read as garage, not as level 2.
	if got := DetectLevelFromText("Garage Level 2", ""); got != LevelGarage {
		t.Errorf("got %q, want %q", got, LevelGarage)
	}
	if got := DetectLevelFromText("Basement Floor 1", ""); got != LevelBasement {
		t.Errorf("got %q, want %q", got, LevelBasement)
	}
}

func TestDetectLevelFallsBackToPageText(t *testing.T) {
	got := DetectLevelFromText("Sheet 4 of 12", "SECOND FLOOR PLAN\nScale: 1/4\" = 1'-0\"")
	if got != Level2 {
		t.Errorf("got %q, want %q", got, Level2)
	}
}

func TestDetectLevelTitleWinsOverPageText(t *testing.T) {
	got := DetectLevelFromText("Basement Plan", "second floor references on this sheet")
	if got != LevelBasement {
		t.Errorf("got %q, want %q", got, LevelBasement)
	}
}

func TestDetectLevelTextWindowLimited(t *testing.T) {
	// A signal past the first 500 characters is ignored.
	padding := strings.Repeat("x ", 300)
	got := DetectLevelFromText("", padding+"second floor plan")
	if got != Level1 {
		t.Errorf("got %q, want default %q", got, Level1)
	}
}
