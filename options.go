package compositor

import (
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
)

// Option is something that can be configured on a Compositor
type Option func(*Compositor) error

// Directory sets where rendered bitmaps are persisted, creating it if needed.
//
// If neither this nor WithStore is given a new Compositor uses a random temp
// directory.
func Directory(s string) Option {
	return func(c *Compositor) error {
		store, err := NewFileStore(s)
		if err != nil {
			return err
		}
		c.store = store
		return nil
	}
}

// WithStore persists rendered bitmaps somewhere other than a local directory.
func WithStore(s Store) Option {
	return func(c *Compositor) error {
		if s == nil {
			return fmt.Errorf("store must not be nil")
		}
		c.store = s
		return nil
	}
}

// ImageDirectory sets where named images (imageName / maskImageName) are found.
func ImageDirectory(s string) Option {
	return func(c *Compositor) error {
		info, err := os.Stat(s)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("given path %s is not a directory", s)
		}
		c.resolve.imageDir = s
		return nil
	}
}

// Scale sets pixels per device independent unit (default 1), so a 32x32
// stack renders at 64x64 pixels with Scale(2).
func Scale(f float64) Option {
	return func(c *Compositor) error {
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("scale must be greater than zero, given %v", f)
		}
		c.scale = f
		return nil
	}
}

// MaxPixels caps width x height of rendered canvases, larger sizes fail
// with ErrInvalidSize. The default is DefaultMaxPixels.
func MaxPixels(n int) Option {
	return func(c *Compositor) error {
		if n <= 0 {
			return fmt.Errorf("max pixels must be greater than zero, given %d", n)
		}
		c.maxPixels = n
		return nil
	}
}

// Logger sets where render and persistence events are reported.
func Logger(l logrus.FieldLogger) Option {
	return func(c *Compositor) error {
		if l != nil {
			c.log = l
		}
		return nil
	}
}

// Masks shares a persistent mask cache between compositors.
func Masks(m *MaskCache) Option {
	return func(c *Compositor) error {
		if m != nil {
			c.masks = m
		}
		return nil
	}
}

// Stacks sets the registry used to render keys that aren't cached yet.
func Stacks(r *Registry) Option {
	return func(c *Compositor) error {
		if r != nil {
			c.registry = r
		}
		return nil
	}
}
