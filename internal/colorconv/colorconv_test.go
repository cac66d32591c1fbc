package colorconv

import "testing"

func within(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestRGBToHSLAndBack(t *testing.T) {
	cases := []RGB{
		{R: 1, G: 0, B: 0},
		{R: 0, G: 1, B: 0},
		{R: 0, G: 0, B: 1},
		{R: 1, G: 1, B: 1},
		{R: 0, G: 0, B: 0},
		{R: 0.2, G: 0.6, B: 0.8},
	}
	for _, rgb := range cases {
		hsl := RGBToHSL(rgb)
		back := HSLToRGB(hsl)
		if !within(rgb.R, back.R, 1e-6) || !within(rgb.G, back.G, 1e-6) || !within(rgb.B, back.B, 1e-6) {
			t.Errorf("round trip mismatch: %+v -> %+v -> %+v", rgb, hsl, back)
		}
	}
}

func TestXYToHSProducesValidRanges(t *testing.T) {
	hue, sat := XYToHS(XY{X: 0.3, Y: 0.3})
	if hue < 0 || hue >= 360 {
		t.Errorf("hue out of range: %v", hue)
	}
	if sat < 0 || sat > 100 {
		t.Errorf("saturation out of range: %v", sat)
	}
}

func TestXYToHSZeroYDoesNotPanic(t *testing.T) {
	hue, sat := XYToHS(XY{X: 0.3, Y: 0})
	if hue != 0 || sat != 0 {
		t.Errorf("expected zero hue/sat for y=0, got %v/%v", hue, sat)
	}
}

func TestMiredsToKelvin(t *testing.T) {
	if got := MiredsToKelvin(200); !within(got, 5000, 1e-6) {
		t.Errorf("MiredsToKelvin(200) = %v, want 5000", got)
	}
	if got := MiredsToKelvin(0); got != 0 {
		t.Errorf("MiredsToKelvin(0) = %v, want 0", got)
	}
}
