package model

import (
	"fmt"
	"math/rand/v2"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is an RGB triple with components in [0,1].
type Color struct {
	R, G, B float64
}

// Reference colors for pointing arrows.
var (
	ColorDisturbed = Color{R: 1}
	ColorCorrected = Color{G: 1}
)

// RandomColor draws each component independently and uniformly from [0,1).
// A nil source falls back to the global generator.
func RandomColor(r *rand.Rand) Color {
	draw := rand.Float64
	if r != nil {
		draw = r.Float64
	}
	return Color{R: draw(), G: draw(), B: draw()}
}

// ParseColor parses a "#rrggbb" hex string.
func ParseColor(s string) (Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return Color{R: c.R, G: c.G, B: c.B}, nil
}

// Hex formats the color as "#rrggbb", clamping out-of-range components.
func (c Color) Hex() string {
	return c.colorful().Clamped().Hex()
}

// RGB255 returns the clamped color as 8-bit components.
func (c Color) RGB255() (r, g, b uint8) {
	return c.colorful().Clamped().RGB255()
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{R: c.R, G: c.G, B: c.B}
}
