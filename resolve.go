package compositor

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// resolver loads bitmaps named by a Source. PNG and JPEG come via gg, the
// x/image decoders add BMP, TIFF and WebP.
type resolver struct {
	imageDir string
}

// image returns the bitmap for src, decoding it from disk where needed.
func (r *resolver) image(src Source) (image.Image, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}

	if src.Image != nil {
		return src.Image, nil
	}

	path := src.Path
	if src.Name != "" {
		var err error
		path, err = r.namedPath(src.Name)
		if err != nil {
			return nil, err
		}
	}

	img, err := gg.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageDecodeFailed, src, err)
	}
	return img, nil
}

// mask returns the alpha channel of the bitmap named by src.
func (r *resolver) mask(src Source) (*image.Alpha, error) {
	img, err := r.image(src)
	if err != nil {
		return nil, err
	}
	if a, ok := img.(*image.Alpha); ok && a.Rect.Min == (image.Point{}) {
		return a, nil
	}
	return gg.NewContextForImage(img).AsMask(), nil
}

// namedPath finds a named resource under the image directory, trying the
// name as given and then with a .png extension. Names must stay inside the
// directory: absolute names and names climbing out with ".." are refused.
func (r *resolver) namedPath(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: image name %q is outside the image directory", ErrMalformedLayer, name)
	}
	path := filepath.Join(r.imageDir, name)
	if filepath.Ext(name) != "" {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return path + ".png", nil
}
