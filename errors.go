package compositor

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedLayer is returned when a layer names more than one thing to draw,
	// names nothing at all, or names one resource in more than one way.
	ErrMalformedLayer = errors.New("malformed layer")

	// ErrInvalidColor is returned for hex strings (or colour components) that don't parse.
	ErrInvalidColor = errors.New("invalid color")

	// ErrInvalidGradientKind is returned for gradient kinds other than linear / radial.
	ErrInvalidGradientKind = errors.New("invalid gradient kind")

	// ErrImageDecodeFailed is returned when an image or mask source can't be loaded.
	ErrImageDecodeFailed = errors.New("image decode failed")

	// ErrInvalidSize is returned for canvases without a positive width and height.
	ErrInvalidSize = errors.New("invalid size")

	// ErrCacheMiss is returned by lookup-only calls that find nothing in either tier.
	ErrCacheMiss = errors.New("cache miss")

	// ErrPersistenceWriteFailed marks a failed write to the persisted tier. It is
	// logged, never returned to callers of the cache.
	ErrPersistenceWriteFailed = errors.New("persistence write failed")

	// ErrNotStored is returned by a Store when it holds nothing for a key.
	ErrNotStored = errors.New("not stored")
)

// LayerError reports which layer of which composition failed to render.
type LayerError struct {
	Key   string
	Index int
	Err   error
}

// Error implements error
func (e *LayerError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("layer %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("render %q: layer %d: %v", e.Key, e.Index, e.Err)
}

// Unwrap returns the underlying cause
func (e *LayerError) Unwrap() error { return e.Err }

// withKey returns err with the composition key attached where it's a LayerError.
func withKey(key string, err error) error {
	var lerr *LayerError
	if errors.As(err, &lerr) {
		return &LayerError{Key: key, Index: lerr.Index, Err: lerr.Err}
	}
	return fmt.Errorf("render %q: %w", key, err)
}
