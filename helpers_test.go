package compositor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func newTestCompositor(t *testing.T, opts ...Option) *Compositor {
	t.Helper()
	opts = append([]Option{Directory(t.TempDir()), Logger(quietLogger())}, opts...)
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return c
}

func mustLayer(l Layer, err error) Layer {
	if err != nil {
		panic(err)
	}
	return l
}

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writeTestPNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
	return path
}

func abs(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func rgbaAt(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

// samePixels is true when a and b are RGBA bitmaps with equal bounds and pixels.
func samePixels(a, b image.Image) bool {
	ra, ok := a.(*image.RGBA)
	if !ok {
		return false
	}
	rb, ok := b.(*image.RGBA)
	if !ok {
		return false
	}
	return ra.Rect == rb.Rect && bytes.Equal(ra.Pix, rb.Pix)
}
