package compositor

import (
	"image"
	"sync"
)

// MaskCache holds decoded persistent masks by source identity for the life of
// the process. It is independent of any render key, so many stacks sharing a
// mask decode it once.
type MaskCache struct {
	lock  *sync.Mutex
	masks map[string]*image.Alpha
}

// NewMaskCache returns an empty mask cache.
func NewMaskCache() *MaskCache {
	return &MaskCache{
		lock:  &sync.Mutex{},
		masks: map[string]*image.Alpha{},
	}
}

// Load returns the mask cached under id, calling load and caching the result
// on first use. Load errors are not cached.
//
// Two callers racing on the same new id may both call load; the first result
// stored wins and both get it.
func (m *MaskCache) Load(id string, load func() (*image.Alpha, error)) (*image.Alpha, error) {
	m.lock.Lock()
	mask, ok := m.masks[id]
	m.lock.Unlock()
	if ok {
		return mask, nil
	}

	mask, err := load()
	if err != nil {
		return nil, err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if existing, ok := m.masks[id]; ok {
		return existing, nil
	}
	m.masks[id] = mask
	return mask, nil
}

// Forget drops one mask.
func (m *MaskCache) Forget(id string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.masks, id)
}

// Clear drops every mask.
func (m *MaskCache) Clear() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.masks = map[string]*image.Alpha{}
}

// Len returns how many masks are held.
func (m *MaskCache) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.masks)
}
