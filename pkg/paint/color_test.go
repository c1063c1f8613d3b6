package paint

import (
	"encoding/json"
	"image/color"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := map[string]Color{
		"#ff0000":   {255, 0, 0, 255},
		"00ff0080":  {0, 255, 0, 128},
		"#fff":      {255, 255, 255, 255},
		" #0000ff ": {0, 0, 255, 255},
	}

	for in, want := range tests {
		got, err := ParseColor(in)
		if err != nil {
			t.Errorf("ParseColor(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseColor(%q) = %v, want %v", in, got, want)
		}
	}

	for _, bad := range []string{"", "#12", "#gggggg", "#1234567"} {
		if _, err := ParseColor(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestColorJSON(t *testing.T) {
	var v struct {
		Fill Color `json:"fill"`
	}
	if err := json.Unmarshal([]byte(`{"fill":"#10203040"}`), &v); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if v.Fill != (Color{0x10, 0x20, 0x30, 0x40}) {
		t.Errorf("Unexpected color %v", v.Fill)
	}
	if v.Fill.String() != "#10203040" {
		t.Errorf("Unexpected string %s", v.Fill.String())
	}
	if White.String() != "#ffffff" {
		t.Errorf("Expected opaque colors to omit alpha, got %s", White.String())
	}
}

func TestLerp(t *testing.T) {
	a := color.NRGBA{0, 0, 0, 255}
	b := color.NRGBA{200, 100, 50, 255}

	mid := Lerp(a, b, 0.5)
	if mid != (color.NRGBA{100, 50, 25, 255}) {
		t.Errorf("Unexpected midpoint %v", mid)
	}
	if Lerp(a, b, 2) != b {
		t.Error("Expected t to be clamped to 1")
	}
}
