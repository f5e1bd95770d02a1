package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// RenderCache maps composition keys to rendered bitmaps, in memory and in a
// persisted Store.
//
// The cache never invalidates on its own: a key is expected to always name
// the same composition, callers pick a new key when the content changes.
type RenderCache struct {
	lock   *sync.Mutex
	images map[string]image.Image

	store    Store
	renderer Renderer
	inflight *singleflight.Group
	log      logrus.FieldLogger
}

// NewRenderCache returns an empty cache rendering misses with r and
// persisting results to s.
func NewRenderCache(r Renderer, s Store, log logrus.FieldLogger) *RenderCache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RenderCache{
		lock:     &sync.Mutex{},
		images:   map[string]image.Image{},
		store:    s,
		renderer: r,
		inflight: &singleflight.Group{},
		log:      log,
	}
}

// Get returns the bitmap for key from memory, else from the store (keeping it
// in memory from then on). It fails with ErrCacheMiss when neither has it.
//
// Every call returns a copy the caller is free to draw on, the cached
// bitmap itself is never handed out.
func (c *RenderCache) Get(key string) (image.Image, error) {
	img, err := c.get(key)
	if err != nil {
		return nil, err
	}
	return cloneImage(img), nil
}

func (c *RenderCache) get(key string) (image.Image, error) {
	if img, ok := c.memory(key); ok {
		return img, nil
	}

	img, err := c.store.Load(context.Background(), key)
	if errors.Is(err, ErrNotStored) {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	} else if err != nil {
		// an unreadable file is as good as no file, the next render replaces it
		c.log.WithError(err).WithFields(logrus.Fields{
			"key":  key,
			"path": c.store.Path(key),
		}).Warn("failed to load persisted render")
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}

	c.put(key, img)
	return img, nil
}

// GetOrRender is Get, but on a miss in both tiers renders layers at size,
// stores the result in both tiers and returns it.
//
// Concurrent calls for the same key share one render: later callers wait for
// the render already in flight and get its result (or its error). As with
// Get, each caller gets its own copy.
func (c *RenderCache) GetOrRender(key string, layers []Layer, size Size) (image.Image, error) {
	img, err := c.get(key)
	if err == nil {
		return cloneImage(img), nil
	} else if !errors.Is(err, ErrCacheMiss) {
		return nil, err
	}

	v, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		// a render that finished between our Get and now has already stored it
		if img, ok := c.memory(key); ok {
			return img, nil
		}

		rendered, err := c.renderer.Render(layers, size)
		if err != nil {
			return nil, withKey(key, err)
		}

		c.put(key, rendered)
		c.persist(key, rendered)
		return image.Image(rendered), nil
	})
	if err != nil {
		return nil, err
	}
	return cloneImage(v.(image.Image)), nil
}

// PathFor returns where the persisted bitmap for key lives, without loading
// or rendering anything.
func (c *RenderCache) PathFor(key string) string {
	return c.store.Path(key)
}

// Evict drops key from memory and from the store.
func (c *RenderCache) Evict(key string) error {
	c.lock.Lock()
	delete(c.images, key)
	c.lock.Unlock()

	return c.store.Remove(context.Background(), key)
}

// Clear drops every key from memory and from the store.
func (c *RenderCache) Clear() error {
	c.lock.Lock()
	c.images = map[string]image.Image{}
	c.lock.Unlock()

	return c.store.Clear(context.Background())
}

// Len returns how many bitmaps are held in memory.
func (c *RenderCache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.images)
}

func (c *RenderCache) memory(key string) (image.Image, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	img, ok := c.images[key]
	return img, ok
}

func (c *RenderCache) put(key string, img image.Image) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.images[key] = img
}

// persist writes to the store. Failures leave the key memory only and are
// reported, not returned.
func (c *RenderCache) persist(key string, img image.Image) {
	err := c.store.Save(context.Background(), key, img)
	if err != nil {
		c.log.WithError(fmt.Errorf("%w: %v", ErrPersistenceWriteFailed, err)).WithFields(logrus.Fields{
			"key":  key,
			"path": c.store.Path(key),
		}).Warn("render kept in memory only")
	}
}

// cloneImage returns a copy of img backed by its own pixels.
func cloneImage(img image.Image) image.Image {
	if rgba, ok := img.(*image.RGBA); ok {
		return &image.RGBA{
			Pix:    append([]uint8(nil), rgba.Pix...),
			Stride: rgba.Stride,
			Rect:   rgba.Rect,
		}
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
