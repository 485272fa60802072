// Package project resolves the files around an annotation session: the list of
// images in a directory, where each image's annotation file lives, and the
// predefined class names offered to annotators.
package project

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/rolabel-mcp/internal/voc"
)

// DefaultExtensions lists the image extensions scanned when none are configured.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"}

// Resolver maps image paths to annotation paths.
//
// With SaveDir empty the annotation is colocated with the image; otherwise it
// is written to SaveDir under the image's base name.
type Resolver struct {
	SaveDir string
}

// AnnotationPathFor returns the annotation path for imagePath.
func (r Resolver) AnnotationPathFor(imagePath string) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath)) + voc.Ext
	if r.SaveDir != "" {
		return filepath.Join(r.SaveDir, base)
	}
	return filepath.Join(filepath.Dir(imagePath), base)
}

// Exists reports whether path names an existing regular file.
func (r Resolver) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Annotated reports whether imagePath already has an annotation document. A
// file at the annotation path that is not an annotation document (another
// tool's .xml, say) does not count.
func (r Resolver) Annotated(imagePath string) bool {
	path := r.AnnotationPathFor(imagePath)
	return r.Exists(path) && voc.IsAnnotationFile(path)
}

// DefaultSaveDir returns the configured save directory, or "" when
// annotations are colocated with their images.
func (r Resolver) DefaultSaveDir() string {
	return r.SaveDir
}

// Workspace is an opened image directory.
type Workspace struct {
	Resolver

	// Dir is the scanned root directory.
	Dir string

	images  []string
	index   map[string]int
	classes []string
}

// Open scans dir recursively for images with the given extensions (matched
// case-insensitively; DefaultExtensions when empty) and orders them by path,
// ignoring case.
func Open(dir, saveDir string, extensions []string) (*Workspace, error) {
	images, err := ScanImages(dir, extensions)
	if err != nil {
		return nil, err
	}
	w := &Workspace{
		Resolver: Resolver{SaveDir: saveDir},
		Dir:      dir,
		images:   images,
		index:    make(map[string]int, len(images)),
	}
	for i, p := range images {
		w.index[p] = i
	}
	return w, nil
}

// ScanImages walks dir and returns every image file below it.
func ScanImages(dir string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	wanted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		wanted[ext] = true
	}

	var images []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if wanted[strings.ToLower(filepath.Ext(path))] {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	sort.SliceStable(images, func(i, j int) bool {
		return strings.ToLower(images[i]) < strings.ToLower(images[j])
	})
	return images, nil
}

// Images returns the scanned image paths in order.
func (w *Workspace) Images() []string {
	return append([]string(nil), w.images...)
}

// Index returns the position of imagePath, or -1.
func (w *Workspace) Index(imagePath string) int {
	if i, ok := w.index[imagePath]; ok {
		return i
	}
	return -1
}

// Next returns the image after imagePath. ok is false at the end of the list
// or when imagePath is not part of the workspace.
func (w *Workspace) Next(imagePath string) (string, bool) {
	i := w.Index(imagePath)
	if i < 0 || i+1 >= len(w.images) {
		return "", false
	}
	return w.images[i+1], true
}

// Prev returns the image before imagePath.
func (w *Workspace) Prev(imagePath string) (string, bool) {
	i := w.Index(imagePath)
	if i <= 0 {
		return "", false
	}
	return w.images[i-1], true
}

// SetClasses replaces the predefined class list.
func (w *Workspace) SetClasses(classes []string) {
	w.classes = append([]string(nil), classes...)
}

// Classes returns the predefined class list.
func (w *Workspace) Classes() []string {
	return append([]string(nil), w.classes...)
}

// LoadClasses reads one class name per line, skipping blank lines and
// duplicates. A missing file yields an empty list.
func LoadClasses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open class list: %w", err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var classes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		classes = append(classes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class list: %w", err)
	}
	return classes, nil
}
