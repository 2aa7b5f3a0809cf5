package report

import (
	"fmt"
	"image/color"
)

// basePalette is used for the first series of every figure.
var basePalette = []color.RGBA{
	{R: 0x21, G: 0x5C, B: 0xAF, A: 0xFF}, // blue
	{R: 0x62, G: 0x73, B: 0x13, A: 0xFF}, // green
	{R: 0xB7, G: 0x35, B: 0x2D, A: 0xFF}, // red
	{R: 0x00, G: 0x78, B: 0x94, A: 0xFF}, // petrol
	{R: 0x8E, G: 0x67, B: 0x13, A: 0xFF}, // bronze
	{R: 0xA7, G: 0x11, B: 0x7A, A: 0xFF}, // purple
	{R: 0x6F, G: 0x6F, B: 0x6F, A: 0xFF}, // grey
}

// seriesColors returns n colours: the base palette first, then evenly spaced
// hues for any further series.
func seriesColors(n int) []color.RGBA {
	if n <= 0 {
		return nil
	}
	out := make([]color.RGBA, n)
	extra := n - len(basePalette)
	for i := range out {
		if i < len(basePalette) {
			out[i] = basePalette[i]
			continue
		}
		k := i - len(basePalette)
		r, g, b := hslToRGB(float64(k)/float64(extra), 0.7, 0.5)
		out[i] = color.RGBA{R: r, G: g, B: b, A: 0xFF}
	}
	return out
}

// hexColor formats c as #rrggbb for HTML charts.
func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// hslToRGB converts hue, saturation and lightness in [0, 1] to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
