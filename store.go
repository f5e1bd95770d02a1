package compositor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/oklog/ulid/v2"
)

const (
	fileExt    = ".png"
	tempPrefix = ".render-"
	tempExt    = ".tmp"
)

// FileName returns the stable, collision resistant file name a key is
// persisted under: the hex SHA-256 of the key plus ".png".
func FileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + fileExt
}

// FileStore persists rendered bitmaps as PNG files in one directory.
type FileStore struct {
	root string
}

// NewFileStore returns a store writing under root, creating it if needed.
func NewFileStore(root string) (*FileStore, error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if !info.IsDir() {
		return nil, fmt.Errorf("given path %s is not a directory", root)
	}
	return &FileStore{root: root}, nil
}

// Directory returns the directory bitmaps are written to.
func (s *FileStore) Directory() string { return s.root }

// Path implements Store
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.root, FileName(key))
}

// Load implements Store
func (s *FileStore) Load(_ context.Context, key string) (image.Image, error) {
	img, err := gg.LoadPNG(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotStored, key)
	}
	return img, err
}

// Save implements Store. The PNG is written to a temp file in the same
// directory and renamed over the final path.
func (s *FileStore) Save(_ context.Context, key string, img image.Image) error {
	tmp := filepath.Join(s.root, tempPrefix+ulid.Make().String()+tempExt)

	err := writePNG(tmp, img)
	if err != nil {
		os.Remove(tmp)
		return err
	}

	err = os.Rename(tmp, s.Path(key))
	if err != nil {
		os.Remove(tmp)
	}
	return err
}

// Remove implements Store
func (s *FileStore) Remove(_ context.Context, key string) error {
	err := os.Remove(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear implements Store. Only files the store itself writes are removed.
func (s *FileStore) Clear(_ context.Context) error {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !ownedFile(name) {
			continue
		}
		err := os.Remove(filepath.Join(s.root, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsFileName reports whether name has the form FileName gives keys: 64
// lower case hex digits plus ".png".
func IsFileName(name string) bool {
	digest, ok := strings.CutSuffix(name, fileExt)
	if !ok || len(digest) != sha256.Size*2 {
		return false
	}
	for _, r := range digest {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// ownedFile is true for cache files and leftover temp files.
func ownedFile(name string) bool {
	if strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, tempExt) {
		return true
	}
	return IsFileName(name)
}

// writePNG encodes img to path and syncs it before returning.
func writePNG(path string, img image.Image) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	err = png.Encode(f, img)
	if err == nil {
		err = f.Sync()
	}
	cerr := f.Close()
	if err != nil {
		return err
	}
	return cerr
}
