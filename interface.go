package compositor

import (
	"context"
	"image"
)

// Renderer turns an ordered list of layers into a bitmap. *Compositor is the
// Renderer the cache uses outside of tests.
type Renderer interface {
	Render(layers []Layer, size Size) (*image.RGBA, error)
}

// Store is the persisted tier of the render cache: one bitmap per key.
//
// Implementations must make Save atomic, a concurrent Load sees either the
// previous bitmap or the new one, never a partial write.
type Store interface {
	// Path is where the bitmap for key lives (or would live). It is a pure
	// function of the key.
	Path(key string) string

	// Load returns the bitmap stored for key, or an error wrapping
	// ErrNotStored when there is none.
	Load(ctx context.Context, key string) (image.Image, error)

	// Save writes the bitmap for key, replacing any previous one.
	Save(ctx context.Context, key string, img image.Image) error

	// Remove deletes the bitmap for key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear deletes every bitmap in the store.
	Clear(ctx context.Context) error
}
