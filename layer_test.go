package compositor

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestLayerFromMapKinds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	tests := []struct {
		name string
		in   map[string]interface{}
		want interface{}
	}{
		{"color hex", map[string]interface{}{KeyColorHex: "#ff0000"}, ColorContent{}},
		{"color value", map[string]interface{}{KeyColor: color.White}, ColorContent{}},
		{"color components", map[string]interface{}{KeyColor: []interface{}{1.0, 0.5, 0.0}}, ColorContent{}},
		{"image", map[string]interface{}{KeyImage: img}, ImageContent{}},
		{"image name", map[string]interface{}{KeyImageName: "badge"}, ImageContent{}},
		{"image path", map[string]interface{}{KeyImagePath: "/tmp/badge.png"}, ImageContent{}},
		{"gradient", map[string]interface{}{KeyGradient: "linear", KeyGradientColorsHex: []interface{}{"#000", "#fff"}}, GradientContent{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := LayerFromMap(tt.in)
			if err != nil {
				t.Fatalf("LayerFromMap() failed: %v", err)
			}
			switch tt.want.(type) {
			case ColorContent:
				if _, ok := l.Content().(ColorContent); !ok {
					t.Errorf("content is %T, want ColorContent", l.Content())
				}
			case ImageContent:
				if _, ok := l.Content().(ImageContent); !ok {
					t.Errorf("content is %T, want ImageContent", l.Content())
				}
			case GradientContent:
				if _, ok := l.Content().(GradientContent); !ok {
					t.Errorf("content is %T, want GradientContent", l.Content())
				}
			}
		})
	}
}

func TestLayerFromMapDefaults(t *testing.T) {
	l, err := LayerFromMap(map[string]interface{}{KeyColorHex: "#123456"})
	if err != nil {
		t.Fatalf("LayerFromMap() failed: %v", err)
	}

	if l.Alpha() != 1 {
		t.Errorf("alpha = %v, want 1", l.Alpha())
	}
	if l.Rect() != nil {
		t.Errorf("rect = %+v, want nil (full canvas)", l.Rect())
	}
	if l.Mode() != BlendNormal {
		t.Errorf("mode = %v, want normal", l.Mode())
	}
	if l.Mask() != nil {
		t.Errorf("mask = %+v, want nil", l.Mask())
	}

	want := color.NRGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff}
	if got := l.Content().(ColorContent).Color; got != want {
		t.Errorf("color = %v, want %v", got, want)
	}
}

func TestLayerFromMapOptionals(t *testing.T) {
	l, err := LayerFromMap(map[string]interface{}{
		KeyColorHex:       "#fff",
		KeyMode:           "multiply",
		KeyAlpha:          0.25,
		KeyRect:           []interface{}{1.0, 2.0, 3.0, 4.0},
		KeyMaskImagePath:  "/tmp/mask.png",
		KeyPersistentMask: true,
	})
	if err != nil {
		t.Fatalf("LayerFromMap() failed: %v", err)
	}

	if l.Mode() != BlendMultiply {
		t.Errorf("mode = %v, want multiply", l.Mode())
	}
	if l.Alpha() != 0.25 {
		t.Errorf("alpha = %v, want 0.25", l.Alpha())
	}
	if r := l.Rect(); r == nil || *r != (Rect{X: 1, Y: 2, W: 3, H: 4}) {
		t.Errorf("rect = %+v, want {1 2 3 4}", r)
	}
	m := l.Mask()
	if m == nil || m.Source.Path != "/tmp/mask.png" || !m.Persistent {
		t.Errorf("mask = %+v, want persistent /tmp/mask.png", m)
	}
}

func TestLayerFromMapErrors(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	tests := []struct {
		name string
		in   map[string]interface{}
		want error
	}{
		{"nothing to draw", map[string]interface{}{KeyAlpha: 0.5}, ErrMalformedLayer},
		{"empty", map[string]interface{}{}, ErrMalformedLayer},
		{"color and colorHex", map[string]interface{}{KeyColor: color.Black, KeyColorHex: "#000"}, ErrMalformedLayer},
		{"image and imageName", map[string]interface{}{KeyImage: img, KeyImageName: "badge"}, ErrMalformedLayer},
		{"imageName and imagePath", map[string]interface{}{KeyImageName: "a", KeyImagePath: "b"}, ErrMalformedLayer},
		{"image and color", map[string]interface{}{KeyImageName: "a", KeyColorHex: "#000"}, ErrMalformedLayer},
		{"color and gradient", map[string]interface{}{KeyColorHex: "#000", KeyGradient: "linear", KeyGradientColorsHex: []string{"#000"}}, ErrMalformedLayer},
		{"two mask sources", map[string]interface{}{KeyColorHex: "#000", KeyMaskImageName: "a", KeyMaskImagePath: "b"}, ErrMalformedLayer},
		{"persistent without mask", map[string]interface{}{KeyColorHex: "#000", KeyPersistentMask: true}, ErrMalformedLayer},
		{"unknown key", map[string]interface{}{KeyColorHex: "#000", "colour": "red"}, ErrMalformedLayer},
		{"alpha out of range", map[string]interface{}{KeyColorHex: "#000", KeyAlpha: 1.5}, ErrMalformedLayer},
		{"alpha not a number", map[string]interface{}{KeyColorHex: "#000", KeyAlpha: "half"}, ErrMalformedLayer},
		{"bad mode", map[string]interface{}{KeyColorHex: "#000", KeyMode: "sparkle"}, ErrMalformedLayer},
		{"bad rect", map[string]interface{}{KeyColorHex: "#000", KeyRect: []interface{}{1.0, 2.0}}, ErrMalformedLayer},
		{"negative rect", map[string]interface{}{KeyColorHex: "#000", KeyRect: []interface{}{0.0, 0.0, -1.0, 1.0}}, ErrMalformedLayer},
		{"bad hex", map[string]interface{}{KeyColorHex: "#ggg"}, ErrInvalidColor},
		{"bad hex length", map[string]interface{}{KeyColorHex: "#12345"}, ErrInvalidColor},
		{"bad gradient hex", map[string]interface{}{KeyGradient: "radial", KeyGradientColorsHex: []string{"#000", "nope"}}, ErrInvalidColor},
		{"component out of range", map[string]interface{}{KeyColor: []interface{}{2.0, 0.0, 0.0}}, ErrInvalidColor},
		{"bad gradient kind", map[string]interface{}{KeyGradient: "conic", KeyGradientColorsHex: []string{"#000"}}, ErrInvalidGradientKind},
		{"gradient without colors", map[string]interface{}{KeyGradient: "linear"}, ErrMalformedLayer},
		{"gradient colors without kind", map[string]interface{}{KeyGradientColorsHex: []string{"#000"}}, ErrMalformedLayer},
		{"both gradient color lists", map[string]interface{}{KeyGradient: "linear", KeyGradientColors: []color.Color{color.Black}, KeyGradientColorsHex: []string{"#000"}}, ErrMalformedLayer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LayerFromMap(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("LayerFromMap() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewLayerFactories(t *testing.T) {
	if _, err := NewImageLayer(Source{}); !errors.Is(err, ErrMalformedLayer) {
		t.Errorf("NewImageLayer(empty) error = %v, want ErrMalformedLayer", err)
	}
	if _, err := NewImageLayer(Source{Name: "a", Path: "b"}); !errors.Is(err, ErrMalformedLayer) {
		t.Errorf("NewImageLayer(name+path) error = %v, want ErrMalformedLayer", err)
	}
	if _, err := NewGradientLayer(GradientLinear, nil); !errors.Is(err, ErrMalformedLayer) {
		t.Errorf("NewGradientLayer(no colors) error = %v, want ErrMalformedLayer", err)
	}
	if _, err := NewGradientLayer(GradientKind(7), []color.Color{color.Black}); !errors.Is(err, ErrInvalidGradientKind) {
		t.Errorf("NewGradientLayer(bad kind) error = %v, want ErrInvalidGradientKind", err)
	}
	if _, err := NewColorLayer(color.Black, WithMask(Source{}, true)); !errors.Is(err, ErrMalformedLayer) {
		t.Errorf("NewColorLayer(empty mask) error = %v, want ErrMalformedLayer", err)
	}
	if _, err := NewColorLayer(color.Black, WithMode(BlendMode(-1))); !errors.Is(err, ErrMalformedLayer) {
		t.Errorf("NewColorLayer(bad mode) error = %v, want ErrMalformedLayer", err)
	}
}

func TestLayerIsImmutable(t *testing.T) {
	colors := []color.Color{color.Black, color.White}
	l := mustLayer(NewGradientLayer(GradientLinear, colors, WithRect(Rect{W: 1, H: 1})))

	colors[0] = color.White
	l.Content().(GradientContent).Colors[1] = color.NRGBA{}
	l.Rect().W = 100

	g := l.Content().(GradientContent)
	if g.Colors[0] != (color.NRGBA{A: 0xff}) || g.Colors[1] != (color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Errorf("gradient colors changed after construction: %v", g.Colors)
	}
	if l.Rect().W != 1 {
		t.Errorf("rect changed after construction: %+v", l.Rect())
	}
}

func TestNewLayerStack(t *testing.T) {
	l := mustLayer(NewColorLayer(color.Black))

	if _, err := NewLayerStack("", Size{Width: 1, Height: 1}, []Layer{l}); !errors.Is(err, ErrMalformedLayer) {
		t.Errorf("empty key error = %v, want ErrMalformedLayer", err)
	}
	if _, err := NewLayerStack("k", Size{Width: 0, Height: 1}, []Layer{l}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("zero width error = %v, want ErrInvalidSize", err)
	}

	var lerr *LayerError
	_, err := NewLayerStack("k", Size{Width: 1, Height: 1}, []Layer{l, {}})
	if !errors.As(err, &lerr) || lerr.Index != 1 || !errors.Is(err, ErrMalformedLayer) {
		t.Errorf("zero layer error = %v, want malformed layer 1", err)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#fff", color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{"f0c", color.NRGBA{R: 0xff, G: 0x00, B: 0xcc, A: 0xff}},
		{"#f0c8", color.NRGBA{R: 0xff, G: 0x00, B: 0xcc, A: 0x88}},
		{"#336699", color.NRGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff}},
		{"#33669980", color.NRGBA{R: 0x33, G: 0x66, B: 0x99, A: 0x80}},
		{" #ABCDEF ", color.NRGBA{R: 0xab, G: 0xcd, B: 0xef, A: 0xff}},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if err != nil {
			t.Errorf("ParseHexColor(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"", "#", "#12", "#12345", "#1234567", "#xyz", "#-12345"} {
		if _, err := ParseHexColor(in); !errors.Is(err, ErrInvalidColor) {
			t.Errorf("ParseHexColor(%q) error = %v, want ErrInvalidColor", in, err)
		}
	}
}

func TestParseBlendMode(t *testing.T) {
	tests := map[string]BlendMode{
		"":            BlendNormal,
		"normal":      BlendNormal,
		"sourceOver":  BlendNormal,
		"multiply":    BlendMultiply,
		"Overlay":     BlendOverlay,
		"color-dodge": BlendColorDodge,
		"COLOR_BURN":  BlendColorBurn,
		"plusLighter": BlendPlusLighter,
	}
	for in, want := range tests {
		got, err := ParseBlendMode(in)
		if err != nil {
			t.Errorf("ParseBlendMode(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseBlendMode(%q) = %v, want %v", in, got, want)
		}
	}

	for mode, name := range blendNames {
		got, err := ParseBlendMode(mode.String())
		if err != nil || got != mode {
			t.Errorf("ParseBlendMode(%q) = %v, %v, want %v", name, got, err, mode)
		}
	}
}

func TestParseGradientKind(t *testing.T) {
	if k, err := ParseGradientKind("Radial"); err != nil || k != GradientRadial {
		t.Errorf("ParseGradientKind(Radial) = %v, %v", k, err)
	}
	if _, err := ParseGradientKind("sweep"); !errors.Is(err, ErrInvalidGradientKind) {
		t.Errorf("ParseGradientKind(sweep) error = %v, want ErrInvalidGradientKind", err)
	}
}
