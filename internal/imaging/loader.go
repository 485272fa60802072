package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/rolabel-mcp/internal/voc"
)

// entry is one cached image together with the identity of the file it came
// from.
type entry struct {
	img      image.Image
	identity voc.ImageIdentity
	format   string
}

// ImageCache provides thread-safe caching of decoded images and their file
// identities, so an image is read from disk once no matter how many shapes
// are cropped from it or how often its annotation is saved.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Cached images remain in memory until removed via Evict() or Clear(). The
// annotation server evicts the previous image whenever the active image
// changes.
type ImageCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		entries: make(map[string]*entry),
	}
}

// Load returns the decoded image at path, reading it from disk on first use.
//
// Errors:
//   - the file does not exist or cannot be read
//   - the file is not a valid PNG, JPEG or GIF image
func (c *ImageCache) Load(path string) (image.Image, error) {
	e, err := c.get(path)
	if err != nil {
		return nil, err
	}
	return e.img, nil
}

// Identify returns the identity recorded in annotation files for the image at
// path: dimensions, channel depth, byte length and SHA-256 checksum.
//
// Depth is 1 for grayscale images and 3 otherwise.
func (c *ImageCache) Identify(path string) (voc.ImageIdentity, error) {
	e, err := c.get(path)
	if err != nil {
		return voc.ImageIdentity{}, err
	}
	return e.identity, nil
}

func (c *ImageCache) get(path string) (*entry, error) {
	c.mu.RLock()
	if e, ok := c.entries[path]; ok {
		c.mu.RUnlock()
		return e, nil
	}
	c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	sum := sha256.Sum256(data)
	bounds := img.Bounds()
	e := &entry{
		img:    img,
		format: format,
		identity: voc.ImageIdentity{
			Path:     path,
			Width:    bounds.Dx(),
			Height:   bounds.Dy(),
			Depth:    depthOf(img),
			Bytes:    int64(len(data)),
			Checksum: hex.EncodeToString(sum[:]),
		},
	}

	c.mu.Lock()
	c.entries[path] = e
	c.mu.Unlock()

	return e, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// ImageInfo contains metadata about an image file.
type ImageInfo struct {
	voc.ImageIdentity

	// Format is the decoder that recognized the file: "png", "jpeg" or "gif".
	Format string `json:"format"`

	// HasAlpha indicates whether the image has an alpha channel.
	HasAlpha bool `json:"has_alpha"`

	// Extension is the lowercase file extension.
	Extension string `json:"extension"`
}

// LoadImageInfo loads an image into the cache and describes it.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	e, err := cache.get(path)
	if err != nil {
		return nil, err
	}

	hasAlpha := false
	switch e.img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
	}

	return &ImageInfo{
		ImageIdentity: e.identity,
		Format:        e.format,
		HasAlpha:      hasAlpha,
		Extension:     strings.ToLower(filepath.Ext(path)),
	}, nil
}

func depthOf(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	}
	return 3
}
