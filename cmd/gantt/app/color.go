package app

import (
	"fmt"
	"image/color"
	"strconv"
)

// defaultPalette colors tasks whose configuration does not pin one. The first
// three entries match the reference channel colors.
var defaultPalette = []color.RGBA{
	{R: 0xe7, G: 0x4c, B: 0x3c, A: 0xff}, // red
	{R: 0xf1, G: 0xc4, B: 0x0f, A: 0xff}, // yellow
	{R: 0x2e, G: 0xcc, B: 0x71, A: 0xff}, // green
	{R: 0x34, G: 0x98, B: 0xdb, A: 0xff}, // blue
	{R: 0x9b, G: 0x59, B: 0xb6, A: 0xff}, // purple
	{R: 0xe6, G: 0x7e, B: 0x22, A: 0xff}, // orange
}

// taskColor resolves a configured "#rrggbb" color, falling back to a stable
// palette keyed by the task's position in the set.
func taskColor(spec string, idx int) color.RGBA {
	if c, err := parseHexColor(spec); err == nil {
		return c
	}
	return defaultPalette[idx%len(defaultPalette)]
}

func parseHexColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}

	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}, nil
}
