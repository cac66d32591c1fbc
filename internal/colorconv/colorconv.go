// Package colorconv implements the color-space math the Entity Update
// Pipeline needs: CIE xy chromaticity to RGB to HSL for the inbound
// color_mode=="xy" path, and hue/saturation (as HSL) to RGB for outbound
// moveToHue/moveToSaturation commands. Ported from the teacher's inline
// xyToHueSat arithmetic in internal/proto/zigbee/zigbee.go, factored into a
// standalone package since the pipeline now needs the inverse direction too.
package colorconv

import "math"

// HSL is hue in degrees [0,360), saturation and lightness in [0,1].
type HSL struct {
	H float64
	S float64
	L float64
}

// RGB channels in [0,1].
type RGB struct {
	R float64
	G float64
	B float64
}

// XY is a point in the CIE 1931 xy chromaticity plane.
type XY struct {
	X float64
	Y float64
}

// XYToHS converts a CIE xy point to hue (0-360) and saturation (0-100),
// the form zigbee2mqtt's color.hs property and spec.md §4.5's
// moveToHueAndSaturation both want. Luminance is not derivable from xy
// alone; callers fix it (spec.md uses 50%) before calling HSLToRGB.
func XYToHS(c XY) (hue float64, saturation float64) {
	rgb := xyToRGB(c, 1.0)
	hsl := RGBToHSL(rgb)
	return hsl.H, hsl.S * 100
}

// xyToRGB implements the standard CIE xyY -> linear sRGB -> gamma-corrected
// sRGB conversion used by Hue-compatible bridges, holding luminance (Y) at
// the given brightness in [0,1].
func xyToRGB(c XY, brightness float64) RGB {
	if c.Y == 0 {
		return RGB{}
	}
	capX := (brightness / c.Y) * c.X
	capZ := (brightness / c.Y) * (1 - c.X - c.Y)
	capY := brightness

	r := capX*3.2406 - capY*1.5372 - capZ*0.4986
	g := -capX*0.9689 + capY*1.8758 + capZ*0.0415
	b := capX*0.0557 - capY*0.2040 + capZ*1.0570

	return RGB{R: gammaCorrect(r), G: gammaCorrect(g), B: gammaCorrect(b)}
}

func gammaCorrect(c float64) float64 {
	if c <= 0.0031308 {
		c = 12.92 * c
	} else {
		c = 1.055*math.Pow(c, 1/2.4) - 0.055
	}
	return clamp01(c)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RGBToHSL converts normalized RGB to HSL.
func RGBToHSL(c RGB) HSL {
	max := math.Max(c.R, math.Max(c.G, c.B))
	min := math.Min(c.R, math.Min(c.G, c.B))
	l := (max + min) / 2

	if max == min {
		return HSL{H: 0, S: 0, L: l}
	}

	d := max - min
	var s float64
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}

	var h float64
	switch max {
	case c.R:
		h = (c.G - c.B) / d
		if c.G < c.B {
			h += 6
		}
	case c.G:
		h = (c.B-c.R)/d + 2
	case c.B:
		h = (c.R-c.G)/d + 4
	}
	h *= 60

	return HSL{H: h, S: s, L: l}
}

// HSLToRGB converts hue in degrees and saturation/lightness in [0,1] to
// normalized RGB, used to build the moveToHueAndSaturation outbound command
// (spec.md fixes luminance at 50% for the outbound path).
func HSLToRGB(h HSL) RGB {
	if h.S == 0 {
		return RGB{R: h.L, G: h.L, B: h.L}
	}

	var q float64
	if h.L < 0.5 {
		q = h.L * (1 + h.S)
	} else {
		q = h.L + h.S - h.L*h.S
	}
	p := 2*h.L - q
	hk := h.H / 360

	return RGB{
		R: hueToChannel(p, q, hk+1.0/3.0),
		G: hueToChannel(p, q, hk),
		B: hueToChannel(p, q, hk-1.0/3.0),
	}
}

func hueToChannel(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}

// HSFromRGB255 converts 8-bit RGB channels to hue (0-360) / saturation
// (0-100), the form needed for Zigbee moveToHueAndSaturation payloads whose
// hue/saturation fields are themselves 0-254 scaled elsewhere by the caller.
func HSFromRGB255(r, g, b uint8) (hue, saturation float64) {
	hsl := RGBToHSL(RGB{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255})
	return hsl.H, hsl.S * 100
}

// MiredsToKelvin converts a color_temp value expressed in mireds to Kelvin,
// used only for diagnostics/logging; the wire protocol stays in mireds end
// to end per spec.md §4.5.
func MiredsToKelvin(mireds float64) float64 {
	if mireds <= 0 {
		return 0
	}
	return 1_000_000 / mireds
}
