package compositor

import (
	"fmt"
	"math"
	"strings"
)

// BlendMode selects how a layer's pixels combine with what is already on the canvas.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendScreen
	BlendOverlay
	BlendDarken
	BlendLighten
	BlendColorDodge
	BlendColorBurn
	BlendSoftLight
	BlendHardLight
	BlendDifference
	BlendExclusion
	BlendClear
	BlendCopy
	BlendSourceIn
	BlendSourceOut
	BlendSourceAtop
	BlendDestinationOver
	BlendDestinationIn
	BlendDestinationOut
	BlendDestinationAtop
	BlendXor
	BlendPlusLighter
)

var blendNames = map[BlendMode]string{
	BlendNormal:          "normal",
	BlendMultiply:        "multiply",
	BlendScreen:          "screen",
	BlendOverlay:         "overlay",
	BlendDarken:          "darken",
	BlendLighten:         "lighten",
	BlendColorDodge:      "colorDodge",
	BlendColorBurn:       "colorBurn",
	BlendSoftLight:       "softLight",
	BlendHardLight:       "hardLight",
	BlendDifference:      "difference",
	BlendExclusion:       "exclusion",
	BlendClear:           "clear",
	BlendCopy:            "copy",
	BlendSourceIn:        "sourceIn",
	BlendSourceOut:       "sourceOut",
	BlendSourceAtop:      "sourceAtop",
	BlendDestinationOver: "destinationOver",
	BlendDestinationIn:   "destinationIn",
	BlendDestinationOut:  "destinationOut",
	BlendDestinationAtop: "destinationAtop",
	BlendXor:             "xor",
	BlendPlusLighter:     "plusLighter",
}

// String returns the canonical name of the mode
func (m BlendMode) String() string {
	name, ok := blendNames[m]
	if !ok {
		return fmt.Sprintf("BlendMode(%d)", int(m))
	}
	return name
}

// ParseBlendMode accepts mode names case insensitively, ignoring '-' and '_',
// so "colorDodge", "color-dodge" and "COLOR_DODGE" are all the same mode.
// "sourceOver" is an alias for normal.
func ParseBlendMode(s string) (BlendMode, error) {
	want := normaliseName(s)
	if want == "" || want == "sourceover" {
		return BlendNormal, nil
	}
	for mode, name := range blendNames {
		if normaliseName(name) == want {
			return mode, nil
		}
	}
	return BlendNormal, fmt.Errorf("%w: unknown blend mode %q", ErrMalformedLayer, s)
}

func normaliseName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "_", "")
}

// blendFunc combines a premultiplied source pixel with a premultiplied
// destination pixel.
type blendFunc func(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8)

// fn returns the pixel function for this mode, source-over for unknown modes.
func (m BlendMode) fn() blendFunc {
	switch m {
	case BlendMultiply:
		return separable(func(s, d uint8) uint8 { return mul255(s, d) })
	case BlendScreen:
		return separable(func(s, d uint8) uint8 { return 255 - mul255(255-s, 255-d) })
	case BlendOverlay:
		return separable(func(s, d uint8) uint8 { return hardLight(d, s) })
	case BlendDarken:
		return separable(func(s, d uint8) uint8 { return minU8(s, d) })
	case BlendLighten:
		return separable(func(s, d uint8) uint8 { return maxU8(s, d) })
	case BlendColorDodge:
		return separable(colorDodge)
	case BlendColorBurn:
		return separable(colorBurn)
	case BlendSoftLight:
		return separable(softLight)
	case BlendHardLight:
		return separable(hardLight)
	case BlendDifference:
		return separable(func(s, d uint8) uint8 { return maxU8(s, d) - minU8(s, d) })
	case BlendExclusion:
		return separable(exclusion)
	case BlendClear:
		return func(_, _, _, _, _, _, _, _ uint8) (uint8, uint8, uint8, uint8) { return 0, 0, 0, 0 }
	case BlendCopy:
		return func(sr, sg, sb, sa, _, _, _, _ uint8) (uint8, uint8, uint8, uint8) { return sr, sg, sb, sa }
	case BlendSourceIn:
		return func(sr, sg, sb, sa, _, _, _, da uint8) (uint8, uint8, uint8, uint8) {
			return mul255(sr, da), mul255(sg, da), mul255(sb, da), mul255(sa, da)
		}
	case BlendSourceOut:
		return func(sr, sg, sb, sa, _, _, _, da uint8) (uint8, uint8, uint8, uint8) {
			inv := 255 - da
			return mul255(sr, inv), mul255(sg, inv), mul255(sb, inv), mul255(sa, inv)
		}
	case BlendSourceAtop:
		return func(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
			inv := 255 - sa
			return add255(mul255(sr, da), mul255(dr, inv)),
				add255(mul255(sg, da), mul255(dg, inv)),
				add255(mul255(sb, da), mul255(db, inv)),
				da
		}
	case BlendDestinationOver:
		return func(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
			return sourceOver(dr, dg, db, da, sr, sg, sb, sa)
		}
	case BlendDestinationIn:
		return func(_, _, _, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
			return mul255(dr, sa), mul255(dg, sa), mul255(db, sa), mul255(da, sa)
		}
	case BlendDestinationOut:
		return func(_, _, _, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
			inv := 255 - sa
			return mul255(dr, inv), mul255(dg, inv), mul255(db, inv), mul255(da, inv)
		}
	case BlendDestinationAtop:
		return func(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
			inv := 255 - da
			return add255(mul255(sr, inv), mul255(dr, sa)),
				add255(mul255(sg, inv), mul255(dg, sa)),
				add255(mul255(sb, inv), mul255(db, sa)),
				sa
		}
	case BlendXor:
		return func(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
			invS, invD := 255-sa, 255-da
			return add255(mul255(sr, invD), mul255(dr, invS)),
				add255(mul255(sg, invD), mul255(dg, invS)),
				add255(mul255(sb, invD), mul255(db, invS)),
				add255(mul255(sa, invD), mul255(da, invS))
		}
	case BlendPlusLighter:
		return func(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
			return add255(sr, dr), add255(sg, dg), add255(sb, db), add255(sa, da)
		}
	default:
		return sourceOver
	}
}

// sourceOver is S + D * (1 - Sa)
func sourceOver(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
	inv := 255 - sa
	return add255(sr, mul255(dr, inv)),
		add255(sg, mul255(dg, inv)),
		add255(sb, mul255(db, inv)),
		add255(sa, mul255(da, inv))
}

// separable lifts a per channel blend B(Cs, Cb) on straight colour values into
//
//	(1 - Sa) * D + (1 - Da) * S + Sa * Da * B(Cs, Cb)
//
// on premultiplied pixels, with alpha Sa + Da * (1 - Sa).
func separable(b func(s, d uint8) uint8) blendFunc {
	return func(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
		if sa == 0 {
			return dr, dg, db, da
		}
		if da == 0 {
			return sr, sg, sb, sa
		}

		invS, invD := 255-sa, 255-da
		both := mul255(sa, da)
		channel := func(s, d uint8) uint8 {
			v := add255(mul255(d, invS), mul255(s, invD))
			return add255(v, mul255(both, b(unpremultiply(s, sa), unpremultiply(d, da))))
		}

		return channel(sr, dr), channel(sg, dg), channel(sb, db), add255(sa, mul255(da, invS))
	}
}

func hardLight(s, d uint8) uint8 {
	if s <= 127 {
		return mul255(2*s, d)
	}
	return 255 - mul255(2*(255-s), 255-d)
}

func exclusion(s, d uint8) uint8 {
	v := int(s) + int(d) - 2*int(mul255(s, d))
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func colorDodge(s, d uint8) uint8 {
	if d == 0 {
		return 0
	}
	if s == 255 {
		return 255
	}
	v := uint32(d) * 255 / uint32(255-s)
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func colorBurn(s, d uint8) uint8 {
	if d == 255 {
		return 255
	}
	if s == 0 {
		return 0
	}
	v := uint32(255-d) * 255 / uint32(s)
	if v > 255 {
		return 0
	}
	return 255 - uint8(v)
}

func softLight(s, d uint8) uint8 {
	sf, df := float64(s)/255, float64(d)/255

	var r float64
	if sf <= 0.5 {
		r = df - (1-2*sf)*df*(1-df)
	} else {
		dx := math.Sqrt(df)
		if df <= 0.25 {
			dx = ((16*df-12)*df + 4) * df
		}
		r = df + (2*sf-1)*(dx-df)
	}

	return uint8(math.Round(math.Max(0, math.Min(1, r)) * 255))
}

// unpremultiply recovers the straight channel value, clamped for pixels where
// rounding left the channel above alpha.
func unpremultiply(c, a uint8) uint8 {
	if c >= a {
		return 255
	}
	return uint8(uint16(c) * 255 / uint16(a))
}

// mul255 is a * b / 255, rounded
func mul255(a, b uint8) uint8 {
	return uint8((uint16(a)*uint16(b) + 127) / 255)
}

// add255 is a + b, clamped
func add255(a, b uint8) uint8 {
	s := uint16(a) + uint16(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}

func minU8(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}

func maxU8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}
