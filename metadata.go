package compositor

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"sort"
)

// Property keys understood by LayerFromMap.
const (
	KeyMode              = "mode"
	KeyRect              = "rect"
	KeyImage             = "image"
	KeyImageName         = "imageName"
	KeyImagePath         = "imagePath"
	KeyColor             = "color"
	KeyColorHex          = "colorHex"
	KeyAlpha             = "alpha"
	KeyMaskImage         = "maskImage"
	KeyMaskImageName     = "maskImageName"
	KeyMaskImagePath     = "maskImagePath"
	KeyPersistentMask    = "persistentMask"
	KeyGradient          = "gradient"
	KeyGradientColors    = "gradientColors"
	KeyGradientColorsHex = "gradientColorsHex"
)

var knownKeys = map[string]bool{
	KeyMode: true, KeyRect: true, KeyImage: true, KeyImageName: true, KeyImagePath: true,
	KeyColor: true, KeyColorHex: true, KeyAlpha: true, KeyMaskImage: true,
	KeyMaskImageName: true, KeyMaskImagePath: true, KeyPersistentMask: true,
	KeyGradient: true, KeyGradientColors: true, KeyGradientColorsHex: true,
}

// LayerFromMap builds a layer from a loosely typed property map, as found in
// decoded JSON or plist style configuration.
//
// A layer draws exactly one of an image (image / imageName / imagePath), a
// colour (color / colorHex) or a gradient (gradient + gradientColors /
// gradientColorsHex). Anything else is ErrMalformedLayer.
func LayerFromMap(m map[string]interface{}) (Layer, error) {
	var unknown []string
	for k := range m {
		if !knownKeys[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Layer{}, fmt.Errorf("%w: unknown keys %v", ErrMalformedLayer, unknown)
	}

	hasImage := has(m, KeyImage) || has(m, KeyImageName) || has(m, KeyImagePath)
	hasColor := has(m, KeyColor) || has(m, KeyColorHex)
	hasGradient := has(m, KeyGradient) || has(m, KeyGradientColors) || has(m, KeyGradientColorsHex)

	kinds := 0
	for _, b := range []bool{hasImage, hasColor, hasGradient} {
		if b {
			kinds++
		}
	}
	switch kinds {
	case 0:
		return Layer{}, fmt.Errorf("%w: layer draws nothing, expected an image, color or gradient", ErrMalformedLayer)
	case 1:
	default:
		return Layer{}, fmt.Errorf("%w: layer must draw only one of an image, color or gradient", ErrMalformedLayer)
	}

	opts, err := layerOptions(m)
	if err != nil {
		return Layer{}, err
	}

	switch {
	case hasImage:
		src, err := sourceFromMap(m, KeyImage, KeyImageName, KeyImagePath)
		if err != nil {
			return Layer{}, err
		}
		return NewImageLayer(src, opts...)
	case hasColor:
		c, err := colorFromMap(m)
		if err != nil {
			return Layer{}, err
		}
		return NewColorLayer(c, opts...)
	}

	kindName, err := stringValue(m, KeyGradient)
	if err != nil {
		return Layer{}, err
	}
	if !has(m, KeyGradient) {
		return Layer{}, fmt.Errorf("%w: gradient colors without a gradient kind", ErrMalformedLayer)
	}
	kind, err := ParseGradientKind(kindName)
	if err != nil {
		return Layer{}, err
	}
	stops, err := gradientColorsFromMap(m)
	if err != nil {
		return Layer{}, err
	}
	return NewGradientLayer(kind, stops, opts...)
}

// layerOptions collects the properties every kind of layer may carry.
func layerOptions(m map[string]interface{}) ([]LayerOption, error) {
	opts := []LayerOption{}

	if has(m, KeyMode) {
		name, err := stringValue(m, KeyMode)
		if err != nil {
			return nil, err
		}
		mode, err := ParseBlendMode(name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithMode(mode))
	}

	if has(m, KeyRect) {
		r, err := rectValue(m[KeyRect])
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithRect(r))
	}

	if has(m, KeyAlpha) {
		a, ok := number(m[KeyAlpha])
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a number, got %T", ErrMalformedLayer, KeyAlpha, m[KeyAlpha])
		}
		opts = append(opts, WithAlpha(a))
	}

	hasMask := has(m, KeyMaskImage) || has(m, KeyMaskImageName) || has(m, KeyMaskImagePath)
	persistent := false
	if has(m, KeyPersistentMask) {
		b, ok := m[KeyPersistentMask].(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a bool, got %T", ErrMalformedLayer, KeyPersistentMask, m[KeyPersistentMask])
		}
		if b && !hasMask {
			return nil, fmt.Errorf("%w: %s set without a mask image", ErrMalformedLayer, KeyPersistentMask)
		}
		persistent = b
	}
	if hasMask {
		src, err := sourceFromMap(m, KeyMaskImage, KeyMaskImageName, KeyMaskImagePath)
		if err != nil {
			return nil, fmt.Errorf("mask: %w", err)
		}
		opts = append(opts, WithMask(src, persistent))
	}

	return opts, nil
}

// sourceFromMap reads one of the three alternative ways of naming a bitmap.
func sourceFromMap(m map[string]interface{}, imageKey, nameKey, pathKey string) (Source, error) {
	src := Source{}
	if has(m, imageKey) {
		img, ok := m[imageKey].(image.Image)
		if !ok {
			return src, fmt.Errorf("%w: %s must be an image, got %T", ErrMalformedLayer, imageKey, m[imageKey])
		}
		src.Image = img
	}

	var err error
	if src.Name, err = stringValue(m, nameKey); err != nil {
		return src, err
	}
	if src.Path, err = stringValue(m, pathKey); err != nil {
		return src, err
	}

	return src, src.validate()
}

func colorFromMap(m map[string]interface{}) (color.Color, error) {
	if has(m, KeyColor) && has(m, KeyColorHex) {
		return nil, fmt.Errorf("%w: only one of %s and %s may be set", ErrMalformedLayer, KeyColor, KeyColorHex)
	}
	if has(m, KeyColorHex) {
		hex, err := stringValue(m, KeyColorHex)
		if err != nil {
			return nil, err
		}
		return ParseHexColor(hex)
	}
	return colorValue(m[KeyColor])
}

func gradientColorsFromMap(m map[string]interface{}) ([]color.Color, error) {
	if has(m, KeyGradientColors) && has(m, KeyGradientColorsHex) {
		return nil, fmt.Errorf("%w: only one of %s and %s may be set", ErrMalformedLayer, KeyGradientColors, KeyGradientColorsHex)
	}

	out := []color.Color{}
	switch v := m[KeyGradientColorsHex].(type) {
	case nil:
	case []string:
		for _, s := range v {
			c, err := ParseHexColor(s)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	case []interface{}:
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string, got %T", ErrMalformedLayer, KeyGradientColorsHex, i, e)
			}
			c, err := ParseHexColor(s)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of strings, got %T", ErrMalformedLayer, KeyGradientColorsHex, v)
	}

	switch v := m[KeyGradientColors].(type) {
	case nil:
	case []color.Color:
		out = append(out, v...)
	case []interface{}:
		for _, e := range v {
			c, err := colorValue(e)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	default:
		return nil, fmt.Errorf("%w: %s must be a list of colors, got %T", ErrMalformedLayer, KeyGradientColors, v)
	}
	return out, nil
}

// colorValue accepts a color.Color or [r, g, b(, a)] components in [0, 1].
func colorValue(v interface{}) (color.Color, error) {
	switch c := v.(type) {
	case color.Color:
		return c, nil
	case []float64:
		return unitColor(c)
	case []interface{}:
		components := make([]float64, len(c))
		for i, e := range c {
			f, ok := number(e)
			if !ok {
				return nil, fmt.Errorf("%w: component %d is %T", ErrInvalidColor, i, e)
			}
			components[i] = f
		}
		return unitColor(components)
	}
	return nil, fmt.Errorf("%w: unsupported color value %T", ErrInvalidColor, v)
}

// rectValue accepts [x, y, w, h], a Rect or {"x", "y", "width", "height"}.
func rectValue(v interface{}) (Rect, error) {
	switch r := v.(type) {
	case Rect:
		return r, nil
	case *Rect:
		if r != nil {
			return *r, nil
		}
	case image.Rectangle:
		return Rect{X: float64(r.Min.X), Y: float64(r.Min.Y), W: float64(r.Dx()), H: float64(r.Dy())}, nil
	case []interface{}:
		if len(r) == 4 {
			out := [4]float64{}
			for i, e := range r {
				f, ok := number(e)
				if !ok {
					return Rect{}, fmt.Errorf("%w: rect[%d] is %T", ErrMalformedLayer, i, e)
				}
				out[i] = f
			}
			return Rect{X: out[0], Y: out[1], W: out[2], H: out[3]}, nil
		}
	case map[string]interface{}:
		out := [4]float64{}
		for i, k := range []string{"x", "y", "width", "height"} {
			f, ok := number(r[k])
			if !ok {
				return Rect{}, fmt.Errorf("%w: rect.%s is %T", ErrMalformedLayer, k, r[k])
			}
			out[i] = f
		}
		return Rect{X: out[0], Y: out[1], W: out[2], H: out[3]}, nil
	}
	return Rect{}, fmt.Errorf("%w: unsupported rect value %T", ErrMalformedLayer, v)
}

// has reports whether key is present with a non-empty value.
func has(m map[string]interface{}, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

func stringValue(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrMalformedLayer, key, v)
	}
	return s, nil
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// stackDocument is the JSON representation of a LayerStack.
type stackDocument struct {
	Key    string                   `json:"key"`
	Width  float64                  `json:"width"`
	Height float64                  `json:"height"`
	Layers []map[string]interface{} `json:"layers"`
}

// DecodeStack parses a JSON layer stack document:
//
//	{"key": "badge", "width": 64, "height": 64, "layers": [{"colorHex": "#fc0"}]}
func DecodeStack(data []byte) (*LayerStack, error) {
	doc := &stackDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLayer, err)
	}

	layers := make([]Layer, len(doc.Layers))
	for i, m := range doc.Layers {
		l, err := LayerFromMap(m)
		if err != nil {
			return nil, &LayerError{Key: doc.Key, Index: i, Err: err}
		}
		layers[i] = l
	}

	return NewLayerStack(doc.Key, Size{Width: doc.Width, Height: doc.Height}, layers)
}

// EncodeStack returns the JSON document for a stack. In memory bitmaps have no
// JSON form, so stacks using them can't be encoded.
func EncodeStack(s *LayerStack) ([]byte, error) {
	doc := &stackDocument{Key: s.Key, Width: s.Size.Width, Height: s.Size.Height}

	for i, l := range s.Layers {
		m, err := layerToMap(l)
		if err != nil {
			return nil, &LayerError{Key: s.Key, Index: i, Err: err}
		}
		doc.Layers = append(doc.Layers, m)
	}

	return json.Marshal(doc)
}

func layerToMap(l Layer) (map[string]interface{}, error) {
	m := map[string]interface{}{}
	if l.mode != BlendNormal {
		m[KeyMode] = l.mode.String()
	}
	if l.rect != nil {
		m[KeyRect] = []float64{l.rect.X, l.rect.Y, l.rect.W, l.rect.H}
	}
	if l.alpha != 1 {
		m[KeyAlpha] = l.alpha
	}
	if l.mask != nil {
		if err := sourceToMap(m, l.mask.Source, KeyMaskImageName, KeyMaskImagePath); err != nil {
			return nil, err
		}
		if l.mask.Persistent {
			m[KeyPersistentMask] = true
		}
	}

	switch c := l.content.(type) {
	case ColorContent:
		m[KeyColorHex] = hexString(c.Color)
	case GradientContent:
		m[KeyGradient] = c.Kind.String()
		hexes := make([]string, len(c.Colors))
		for i, stop := range c.Colors {
			hexes[i] = hexString(stop)
		}
		m[KeyGradientColorsHex] = hexes
	case ImageContent:
		if err := sourceToMap(m, c.Source, KeyImageName, KeyImagePath); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func sourceToMap(m map[string]interface{}, src Source, nameKey, pathKey string) error {
	switch {
	case src.Name != "":
		m[nameKey] = src.Name
	case src.Path != "":
		m[pathKey] = src.Path
	default:
		return fmt.Errorf("%w: in memory images can't be encoded", ErrMalformedLayer)
	}
	return nil
}

func hexString(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
