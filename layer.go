package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
)

// GradientKind is the shape of a gradient ramp.
type GradientKind int

const (
	GradientLinear GradientKind = iota
	GradientRadial
)

// String returns "linear" or "radial"
func (k GradientKind) String() string {
	switch k {
	case GradientLinear:
		return "linear"
	case GradientRadial:
		return "radial"
	}
	return fmt.Sprintf("GradientKind(%d)", int(k))
}

// ParseGradientKind accepts "linear" or "radial" (case insensitive).
func ParseGradientKind(s string) (GradientKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return GradientLinear, nil
	case "radial":
		return GradientRadial, nil
	}
	return GradientLinear, fmt.Errorf("%w: %q", ErrInvalidGradientKind, s)
}

// Size is a canvas size in device independent units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s Size) valid() bool {
	return s.Width > 0 && s.Height > 0 && !math.IsInf(s.Width, 0) && !math.IsInf(s.Height, 0)
}

// Rect is the part of the canvas a layer draws into, in device independent units.
type Rect struct {
	X, Y, W, H float64
}

// Source names one bitmap: an in memory image, a named resource or a file path.
// Exactly one of the fields is set.
type Source struct {
	Image image.Image
	Name  string
	Path  string
}

// validate checks that exactly one way of naming the bitmap is used.
func (s Source) validate() error {
	set := 0
	if s.Image != nil {
		set++
	}
	if s.Name != "" {
		set++
	}
	if s.Path != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: bitmap source must set exactly one of image, name or path (got %d)", ErrMalformedLayer, set)
	}
	return nil
}

// id is a stable identity for named and pathed sources. In memory images
// have no identity.
func (s Source) id() string {
	switch {
	case s.Name != "":
		return "name:" + s.Name
	case s.Path != "":
		return "path:" + s.Path
	}
	return ""
}

// String describes the source for logs and errors
func (s Source) String() string {
	if id := s.id(); id != "" {
		return id
	}
	if s.Image != nil {
		return fmt.Sprintf("image:%v", s.Image.Bounds())
	}
	return "<empty>"
}

// MaskSource is a bitmap whose alpha channel restricts where a layer paints.
// Persistent masks are decoded once and reused across renders.
type MaskSource struct {
	Source     Source
	Persistent bool
}

// Content is what a layer draws; one of ColorContent, GradientContent or ImageContent.
type Content interface {
	content()
}

// ColorContent fills the layer with one colour.
type ColorContent struct {
	Color color.NRGBA
}

// GradientContent fills the layer with evenly spaced colour stops.
type GradientContent struct {
	Kind   GradientKind
	Colors []color.NRGBA
}

// ImageContent draws a bitmap scaled to the layer.
type ImageContent struct {
	Source Source
}

func (ColorContent) content()    {}
func (GradientContent) content() {}
func (ImageContent) content()    {}

// Layer is one validated entry of a layer stack. Layers are built with
// NewColorLayer, NewGradientLayer, NewImageLayer or LayerFromMap and don't
// change afterwards.
type Layer struct {
	mode    BlendMode
	rect    *Rect
	alpha   float64
	mask    *MaskSource
	content Content
}

// Mode returns the blend mode
func (l Layer) Mode() BlendMode { return l.mode }

// Rect returns the target rect, nil meaning the whole canvas.
func (l Layer) Rect() *Rect {
	if l.rect == nil {
		return nil
	}
	r := *l.rect
	return &r
}

// Alpha returns the opacity multiplier.
func (l Layer) Alpha() float64 { return l.alpha }

// Mask returns the mask source, if any.
func (l Layer) Mask() *MaskSource {
	if l.mask == nil {
		return nil
	}
	m := *l.mask
	return &m
}

// Content returns what the layer draws.
func (l Layer) Content() Content {
	if g, ok := l.content.(GradientContent); ok {
		g.Colors = append([]color.NRGBA(nil), g.Colors...)
		return g
	}
	return l.content
}

// LayerOption sets one of the optional properties of a layer.
type LayerOption func(*Layer) error

// WithMode sets the blend mode.
func WithMode(m BlendMode) LayerOption {
	return func(l *Layer) error {
		if _, ok := blendNames[m]; !ok {
			return fmt.Errorf("%w: unknown blend mode %d", ErrMalformedLayer, int(m))
		}
		l.mode = m
		return nil
	}
}

// WithRect restricts drawing to part of the canvas.
func WithRect(r Rect) LayerOption {
	return func(l *Layer) error {
		for _, v := range []float64{r.X, r.Y, r.W, r.H} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: rect %+v is not finite", ErrMalformedLayer, r)
			}
		}
		if r.W < 0 || r.H < 0 {
			return fmt.Errorf("%w: rect %+v has negative size", ErrMalformedLayer, r)
		}
		l.rect = &r
		return nil
	}
}

// WithAlpha sets the opacity multiplier, in [0, 1].
func WithAlpha(a float64) LayerOption {
	return func(l *Layer) error {
		if math.IsNaN(a) || a < 0 || a > 1 {
			return fmt.Errorf("%w: alpha %v outside [0, 1]", ErrMalformedLayer, a)
		}
		l.alpha = a
		return nil
	}
}

// WithMask clips the layer by the alpha channel of src.
func WithMask(src Source, persistent bool) LayerOption {
	return func(l *Layer) error {
		if err := src.validate(); err != nil {
			return fmt.Errorf("mask: %w", err)
		}
		l.mask = &MaskSource{Source: src, Persistent: persistent}
		return nil
	}
}

// NewColorLayer returns a layer filled with a single colour.
func NewColorLayer(c color.Color, opts ...LayerOption) (Layer, error) {
	if c == nil {
		return Layer{}, fmt.Errorf("%w: nil color", ErrMalformedLayer)
	}
	return newLayer(ColorContent{Color: toNRGBA(c)}, opts)
}

// NewGradientLayer returns a layer filled with a gradient through colors.
func NewGradientLayer(kind GradientKind, colors []color.Color, opts ...LayerOption) (Layer, error) {
	if kind != GradientLinear && kind != GradientRadial {
		return Layer{}, fmt.Errorf("%w: %v", ErrInvalidGradientKind, kind)
	}
	if len(colors) == 0 {
		return Layer{}, fmt.Errorf("%w: gradient without colors", ErrMalformedLayer)
	}

	stops := make([]color.NRGBA, len(colors))
	for i, c := range colors {
		if c == nil {
			return Layer{}, fmt.Errorf("%w: gradient color %d is nil", ErrMalformedLayer, i)
		}
		stops[i] = toNRGBA(c)
	}

	return newLayer(GradientContent{Kind: kind, Colors: stops}, opts)
}

// NewImageLayer returns a layer drawing the bitmap named by src.
func NewImageLayer(src Source, opts ...LayerOption) (Layer, error) {
	if err := src.validate(); err != nil {
		return Layer{}, err
	}
	return newLayer(ImageContent{Source: src}, opts)
}

func newLayer(c Content, opts []LayerOption) (Layer, error) {
	l := Layer{mode: BlendNormal, alpha: 1, content: c}
	for _, opt := range opts {
		if err := opt(&l); err != nil {
			return Layer{}, err
		}
	}
	return l, nil
}

// LayerStack is an ordered list of layers (first painted first), the size of
// the canvas they're painted on and the key the result is cached under.
type LayerStack struct {
	Key    string
	Size   Size
	Layers []Layer
}

// NewLayerStack validates and returns a layer stack.
func NewLayerStack(key string, size Size, layers []Layer) (*LayerStack, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: layer stack requires a key", ErrMalformedLayer)
	}
	if !size.valid() {
		return nil, fmt.Errorf("%w: %vx%v", ErrInvalidSize, size.Width, size.Height)
	}
	for i, l := range layers {
		if l.content == nil {
			return nil, &LayerError{Key: key, Index: i, Err: fmt.Errorf("%w: layer draws nothing", ErrMalformedLayer)}
		}
	}
	return &LayerStack{Key: key, Size: size, Layers: append([]Layer(nil), layers...)}, nil
}
