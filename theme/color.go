package theme

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// HueWheel maps the full 0-127 note range onto the hue circle at full
// saturation and value: hue = note/128 * 360 degrees. CC numbers map the
// same way, so a mapped CC trigger still gets a stable color.
type HueWheel struct{}

// Map returns the full-brightness base color for a note.
func (HueWheel) Map(note uint8) colorful.Color {
	hue := float64(note%128) / 128 * 360
	return colorful.Hsv(hue, 1, 1)
}

// Mono ignores the note and always returns white; brightness alone
// carries the signal.
type Mono struct{}

func (Mono) Map(note uint8) colorful.Color {
	return colorful.Color{R: 1, G: 1, B: 1}
}
