package compositor

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// ParseHexColor turns "#RGB", "#RGBA", "#RRGGBB" or "#RRGGBBAA" (the leading
// '#' is optional) into a non-premultiplied colour.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")

	switch len(hex) {
	case 3, 4:
		// expand short form, "f0c" -> "ff00cc"
		long := make([]byte, 0, len(hex)*2)
		for i := 0; i < len(hex); i++ {
			long = append(long, hex[i], hex[i])
		}
		hex = string(long)
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// toNRGBA normalises any colour to non-premultiplied 8 bit RGBA.
func toNRGBA(c color.Color) color.NRGBA {
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

// unitColor builds a colour from [r, g, b] or [r, g, b, a] components in [0, 1].
func unitColor(components []float64) (color.NRGBA, error) {
	if len(components) != 3 && len(components) != 4 {
		return color.NRGBA{}, fmt.Errorf("%w: expected 3 or 4 components, got %d", ErrInvalidColor, len(components))
	}

	out := [4]uint8{0, 0, 0, 255}
	for i, f := range components {
		if math.IsNaN(f) || f < 0 || f > 1 {
			return color.NRGBA{}, fmt.Errorf("%w: component %d out of range: %v", ErrInvalidColor, i, f)
		}
		out[i] = uint8(math.Round(f * 255))
	}

	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: out[3]}, nil
}

// maxCoord bounds layer rect edges, in pixels, far outside any canvas.
const maxCoord = 1 << 30

// clampPixels converts device independent units to whole pixels, clamped to
// [-maxCoord, maxCoord].
func clampPixels(v, scale float64) int {
	return int(math.Max(-maxCoord, math.Min(maxCoord, math.Round(v*scale))))
}
