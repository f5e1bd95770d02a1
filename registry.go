package compositor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Registry maps keys to the layer stacks that render them, so a key alone is
// enough to produce an image on a cache miss.
type Registry struct {
	lock   *sync.RWMutex
	stacks map[string]*LayerStack
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{lock: &sync.RWMutex{}, stacks: map[string]*LayerStack{}}
}

// Register adds (or replaces) the stack under its key.
func (r *Registry) Register(s *LayerStack) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.stacks[s.Key] = s
}

// Lookup returns the stack registered for key.
func (r *Registry) Lookup(key string) (*LayerStack, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	s, ok := r.stacks[key]
	return s, ok
}

// Remove unregisters key.
func (r *Registry) Remove(key string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.stacks, key)
}

// Keys returns the registered keys, sorted.
func (r *Registry) Keys() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	keys := make([]string, 0, len(r.stacks))
	for k := range r.stacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadDir registers every *.json stack document in dir, returning how many
// were loaded. It stops at the first document that fails to decode.
func (r *Registry) LoadDir(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, err
	}
	sort.Strings(paths)

	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return i, err
		}
		s, err := DecodeStack(data)
		if err != nil {
			return i, fmt.Errorf("%s: %w", path, err)
		}
		r.Register(s)
	}
	return len(paths), nil
}
