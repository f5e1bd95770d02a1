package compositor

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// layerContext wraps the scratch canvas a single layer is drawn onto before
// it's blended into the output. Fills and gradients go through fogleman's
// Context, bitmaps are scaled straight into the scratch with x/image/draw.
// The blend and the mask are applied by composite, since gg always
// composites with draw.Over and its clip mask only limits what it paints
// onto the scratch.
//
// The scratch canvas covers only clip (the layer rect intersected with the
// output canvas), bounds is the full, unclipped layer rect. Both are in
// output canvas pixels.
type layerContext struct {
	bounds image.Rectangle
	clip   image.Rectangle

	Img  *gg.Context
	im   *image.RGBA
	mask *image.Alpha
}

// newLayerContext prepares a transparent scratch canvas for a layer.
func newLayerContext(bounds, clip image.Rectangle) *layerContext {
	im := image.NewRGBA(image.Rect(0, 0, clip.Dx(), clip.Dy()))
	return &layerContext{
		bounds: bounds,
		clip:   clip,
		Img:    gg.NewContextForRGBA(im),
		im:     im,
	}
}

// target is the full layer rect in scratch coordinates. It may stick out of
// the scratch canvas on any side.
func (c *layerContext) target() image.Rectangle {
	return c.bounds.Sub(c.clip.Min)
}

// setMask keeps the alpha of mask, stretched over the full layer rect, as
// the coverage of every scratch pixel. Only the visible part is scaled.
func (c *layerContext) setMask(mask *image.Alpha) {
	cover := image.NewAlpha(c.im.Bounds())
	stretch(cover, c.target(), mask, xdraw.BiLinear)
	c.mask = cover
}

// fill paints the whole scratch canvas with one colour.
func (c *layerContext) fill(col color.Color) {
	c.Img.SetColor(col)
	c.fillRect()
}

// fillGradient paints the whole scratch canvas with a gradient ramp.
func (c *layerContext) fillGradient(g GradientContent) {
	c.Img.SetFillStyle(newGradient(g, c.bounds, c.clip))
	c.fillRect()
}

func (c *layerContext) fillRect() {
	b := c.im.Bounds()
	c.Img.DrawRectangle(0, 0, float64(b.Dx()), float64(b.Dy()))
	c.Img.Fill()
}

// drawImage draws img stretched over the full layer rect.
func (c *layerContext) drawImage(img image.Image) {
	stretch(c.im, c.target(), img, xdraw.CatmullRom)
}

// composite blends the scratch canvas into dst over clip using mode, with
// alpha applied on top of each pixel's own alpha. Where a mask is set the
// result is mixed back towards dst by the mask coverage, so pixels under a
// zero mask keep their value whatever the mode does.
func (c *layerContext) composite(dst *image.RGBA, mode BlendMode, alpha float64) {
	blend := mode.fn()
	a := uint8(math.Round(alpha * 255))

	for y := c.clip.Min.Y; y < c.clip.Max.Y; y++ {
		for x := c.clip.Min.X; x < c.clip.Max.X; x++ {
			sx, sy := x-c.clip.Min.X, y-c.clip.Min.Y

			m := uint8(255)
			if c.mask != nil {
				m = c.mask.Pix[c.mask.PixOffset(sx, sy)]
				if m == 0 {
					continue
				}
			}

			si := c.im.PixOffset(sx, sy)
			di := dst.PixOffset(x, y)

			s := c.im.Pix[si : si+4 : si+4]
			sr, sg, sb, sa := s[0], s[1], s[2], s[3]
			if a != 255 {
				sr, sg, sb, sa = mul255(sr, a), mul255(sg, a), mul255(sb, a), mul255(sa, a)
			}

			d := dst.Pix[di : di+4 : di+4]
			r, g, b, ba := blend(sr, sg, sb, sa, d[0], d[1], d[2], d[3])
			if m != 255 {
				r, g, b, ba = lerp255(d[0], r, m), lerp255(d[1], g, m), lerp255(d[2], b, m), lerp255(d[3], ba, m)
			}
			d[0], d[1], d[2], d[3] = r, g, b, ba
		}
	}
}

// lerp255 is d + m * (v - d) / 255, rounded
func lerp255(d, v, m uint8) uint8 {
	return uint8((int(d)*(255-int(m)) + int(v)*int(m) + 127) / 255)
}

// stretch maps all of src onto dr. Only the pixels of dr that fall inside
// dst are computed, dr itself may be far larger than dst.
func stretch(dst xdraw.Image, dr image.Rectangle, src image.Image, q *xdraw.Kernel) {
	sr := src.Bounds()
	if sr.Empty() || dr.Empty() {
		return
	}
	kx := float64(dr.Dx()) / float64(sr.Dx())
	ky := float64(dr.Dy()) / float64(sr.Dy())
	s2d := f64.Aff3{
		kx, 0, float64(dr.Min.X) - float64(sr.Min.X)*kx,
		0, ky, float64(dr.Min.Y) - float64(sr.Min.Y)*ky,
	}
	q.Transform(dst, s2d, src, sr, xdraw.Src, nil)
}
