package compositor

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Render paints layers, in order, onto a transparent canvas of size and
// returns the result. Later layers composite over what earlier ones left.
//
// Any layer that can't be resolved or decoded aborts the whole render with a
// *LayerError naming the layer; no partial canvas is returned.
func (c *Compositor) Render(layers []Layer, size Size) (*image.RGBA, error) {
	if !size.valid() {
		return nil, fmt.Errorf("%w: %vx%v", ErrInvalidSize, size.Width, size.Height)
	}

	fw, fh := math.Round(size.Width*c.scale), math.Round(size.Height*c.scale)
	if fw < 1 || fh < 1 {
		return nil, fmt.Errorf("%w: %vx%v is %vx%v pixels", ErrInvalidSize, size.Width, size.Height, fw, fh)
	}
	if fw*fh > float64(c.maxPixels) {
		return nil, fmt.Errorf("%w: %vx%v pixels is over the limit of %d", ErrInvalidSize, fw, fh, c.maxPixels)
	}
	w, h := int(fw), int(fh)

	start := time.Now()
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))

	for i, l := range layers {
		err := c.paint(canvas, l)
		if err != nil {
			c.log.WithError(err).WithField("layer", i).Debug("render aborted")
			return nil, &LayerError{Index: i, Err: err}
		}
	}

	c.log.WithFields(logrus.Fields{
		"layers": len(layers),
		"width":  w,
		"height": h,
		"took":   time.Since(start),
	}).Debug("rendered layers")

	return canvas, nil
}

// paint resolves and draws a single layer onto canvas.
func (c *Compositor) paint(canvas *image.RGBA, l Layer) error {
	if l.content == nil {
		return fmt.Errorf("%w: layer draws nothing", ErrMalformedLayer)
	}

	// resolve sources first, a broken source is an error even when the layer
	// turns out to be entirely off canvas
	var img image.Image
	if ic, ok := l.content.(ImageContent); ok {
		var err error
		img, err = c.resolve.image(ic.Source)
		if err != nil {
			return err
		}
	}

	mask, err := c.loadMask(l.mask)
	if err != nil {
		return fmt.Errorf("mask: %w", err)
	}

	bounds := c.layerBounds(canvas.Bounds(), l.rect)
	clip := bounds.Intersect(canvas.Bounds())
	if clip.Empty() {
		return nil // nothing on canvas to draw
	}

	ctx := newLayerContext(bounds, clip)
	if mask != nil {
		ctx.setMask(mask)
	}

	switch content := l.content.(type) {
	case ColorContent:
		ctx.fill(content.Color)
	case GradientContent:
		ctx.fillGradient(content)
	case ImageContent:
		ctx.drawImage(img)
	default:
		return fmt.Errorf("%w: unsupported content %T", ErrMalformedLayer, content)
	}

	ctx.composite(canvas, l.mode, l.alpha)
	return nil
}

// loadMask resolves a mask, going through the mask cache for persistent
// masks with a stable identity. In memory masks have no identity so are
// never cached.
func (c *Compositor) loadMask(m *MaskSource) (*image.Alpha, error) {
	if m == nil {
		return nil, nil
	}

	id := m.Source.id()
	if !m.Persistent || id == "" {
		return c.resolve.mask(m.Source)
	}

	return c.masks.Load(id, func() (*image.Alpha, error) {
		c.log.WithField("mask", id).Debug("decoding persistent mask")
		return c.resolve.mask(m.Source)
	})
}

// layerBounds converts a layer rect to canvas pixels, the whole canvas when
// no rect is given.
func (c *Compositor) layerBounds(canvas image.Rectangle, r *Rect) image.Rectangle {
	if r == nil {
		return canvas
	}
	x0, y0 := clampPixels(r.X, c.scale), clampPixels(r.Y, c.scale)
	x1, y1 := clampPixels(r.X+r.W, c.scale), clampPixels(r.Y+r.H, c.scale)
	return image.Rect(x0, y0, x1, y1)
}
