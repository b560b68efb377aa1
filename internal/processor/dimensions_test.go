package processor

import (
	"testing"
)

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		length float64
		width  float64
	}{
		{"feet and inches", `12'-6" x 14'-0"`, 12.5, 14.0},
		{"feet and inches no dash", `12' 6" x 14' 0"`, 12.5, 14.0},
		{"feet only", "12' x 14'", 12.0, 14.0},
		{"bare decimals", "12.5 x 14.5", 12.5, 14.5},
		{"uppercase separator", "10 X 12", 10.0, 12.0},
		{"multiplication sign", "10 × 12", 10.0, 12.0},
		{"smart quotes", "12’-6” x 14’-0”", 12.5, 14.0},
		{"prime marks", "12′-6″ x 14′-0″", 12.5, 14.0},
		{"embedded in label", `MASTER BEDROOM 15'-3" x 13'-9"`, 15.25, 13.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dims := ParseDimensions(tt.raw)
			if dims == nil {
				t.Fatalf("ParseDimensions(%q) = nil, want %vx%v", tt.raw, tt.length, tt.width)
			}
			if dims.LengthFt != tt.length {
				t.Errorf("LengthFt = %v, want %v", dims.LengthFt, tt.length)
			}
			if dims.WidthFt != tt.width {
				t.Errorf("WidthFt = %v, want %v", dims.WidthFt, tt.width)
			}
		})
	}
}

func TestParseDimensionsNoMatch(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"plain words", "see schedule"},
		{"single measurement", "12'-6\""},
		{"no separator", "12 14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if dims := ParseDimensions(tt.raw); dims != nil {
				t.Errorf("ParseDimensions(%q) = %+v, want nil", tt.raw, dims)
			}
		})
	}
}
