package compositor

import (
	"image"
	"math"

	"github.com/fogleman/gg"
)

/*
Gradient ramps are fogleman/gg patterns (github.com/fogleman/gg/blob/master/gradient.go),
built in the coordinate space of the clipped scratch context a layer is drawn on.
*/

// newGradient builds the ramp for a layer covering bounds, drawn onto a
// scratch context whose origin sits at clip.Min.
//
// Stops are evenly spaced. Linear ramps run from the top row of the layer
// (offset 0) to its bottom row (offset 1). Radial ramps are centred on the
// layer, reaching offset 1 at the farthest corner.
func newGradient(g GradientContent, bounds, clip image.Rectangle) gg.Gradient {
	ox := float64(bounds.Min.X - clip.Min.X)
	oy := float64(bounds.Min.Y - clip.Min.Y)
	w, h := float64(bounds.Dx()), float64(bounds.Dy())

	var grad gg.Gradient
	switch g.Kind {
	case GradientRadial:
		cx, cy := ox+w/2, oy+h/2
		grad = gg.NewRadialGradient(cx, cy, 0, cx, cy, math.Hypot(w/2, h/2))
	default:
		// gg samples patterns at integer pixel coordinates, so the last row is h-1.
		span := math.Max(h-1, 1)
		grad = gg.NewLinearGradient(ox, oy, ox, oy+span)
	}

	if len(g.Colors) == 1 {
		grad.AddColorStop(0, g.Colors[0])
		return grad
	}
	last := float64(len(g.Colors) - 1)
	for i, c := range g.Colors {
		grad.AddColorStop(float64(i)/last, c)
	}
	return grad
}
