package compositor

import (
	"errors"
	"image"
	"os"

	"github.com/sirupsen/logrus"
)

// Compositor renders layer stacks into bitmaps and memoises them by key.
//
// Rendering is a single ordered pass over the layers onto one canvas per
// call, so different keys render independently and may do so concurrently.
// Renders of the same key are collapsed into one by the RenderCache.
//
// A Compositor is intended to be built once at startup and handed to
// whatever needs images; tests build their own against temp directories.
type Compositor struct {
	cache    *RenderCache
	registry *Registry
	masks    *MaskCache
	resolve  *resolver
	store    Store

	scale     float64
	maxPixels int
	log       logrus.FieldLogger
}

// DefaultMaxPixels is the largest canvas, in pixels, a Compositor renders
// unless told otherwise with MaxPixels.
const DefaultMaxPixels = 4096 * 4096

// New creates a new compositor.
func New(opts ...Option) (*Compositor, error) {
	me := &Compositor{
		registry: NewRegistry(),
		masks:    NewMaskCache(),
		resolve:  &resolver{},
		scale:     1,
		maxPixels: DefaultMaxPixels,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		err := opt(me)
		if err != nil {
			return nil, err
		}
	}

	if me.store == nil {
		// if we don't have a folder, make one
		root, err := os.MkdirTemp("", "compositor")
		if err != nil {
			return nil, err
		}
		me.store = &FileStore{root: root}
	}
	me.cache = NewRenderCache(me, me.store, me.log)

	return me, nil
}

// ImageFor returns the bitmap cached for key. When nothing is cached but a
// stack is registered under key, it is rendered (and cached) first.
func (c *Compositor) ImageFor(key string) (image.Image, error) {
	img, err := c.cache.Get(key)
	if err == nil || !errors.Is(err, ErrCacheMiss) {
		return img, err
	}

	stack, ok := c.registry.Lookup(key)
	if !ok {
		return nil, err
	}
	return c.cache.GetOrRender(key, stack.Layers, stack.Size)
}

// ImageForLayers returns the bitmap cached for key, rendering layers at size
// and caching the result if there is none. The key and layers are validated
// as NewLayerStack does before anything is looked up.
func (c *Compositor) ImageForLayers(layers []Layer, size Size, key string) (image.Image, error) {
	s, err := NewLayerStack(key, size, layers)
	if err != nil {
		return nil, err
	}
	return c.cache.GetOrRender(s.Key, s.Layers, s.Size)
}

// ImageForStack registers s and returns its bitmap, rendering it if needed.
func (c *Compositor) ImageForStack(s *LayerStack) (image.Image, error) {
	c.registry.Register(s)
	return c.cache.GetOrRender(s.Key, s.Layers, s.Size)
}

// PathFor returns where the bitmap for key is (or would be) persisted.
func (c *Compositor) PathFor(key string) string { return c.cache.PathFor(key) }

// Cache returns the render cache, for eviction and inspection.
func (c *Compositor) Cache() *RenderCache { return c.cache }

// Registry returns the key to stack registry.
func (c *Compositor) Registry() *Registry { return c.registry }

// Masks returns the persistent mask cache.
func (c *Compositor) Masks() *MaskCache { return c.masks }

// Scale returns pixels per device independent unit.
func (c *Compositor) Scale() float64 { return c.scale }
