package voc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/rolabel-mcp/internal/shape"
)

// sniffLimit bounds how much of a file IsAnnotationFile reads.
const sniffLimit = 1024

// Load reads and decodes the annotation file at path. Open and read failures
// are reported as *FormatError as well, since the document is unreadable.
func Load(path string) (*AnnotationFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: "cannot open", Err: err}
	}
	defer fh.Close()

	f, err := Decode(fh)
	if err != nil {
		return nil, withPath(err, path)
	}
	return f, nil
}

// Save encodes f and replaces path atomically: the document is written to a
// temporary file in the same directory and renamed over the target, so readers
// see either the previous file or the complete new one.
//
// Encoding problems are returned as *FormatError; filesystem failures
// (missing directory, permissions) are returned wrapped as-is.
func Save(path string, f *AnnotationFile) error {
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		return withPath(err, path)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		cleanup()
		return fmt.Errorf("failed to write annotation: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync annotation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close annotation: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace annotation: %w", err)
	}
	return nil
}

// LoadShapes decodes path and returns its shapes.
func LoadShapes(path string) ([]*shape.Shape, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return f.Shapes(), nil
}

// SaveShapes writes shapes for the given image to path.
func SaveShapes(path string, shapes []*shape.Shape, img ImageIdentity, verified bool, defaults shape.Defaults) error {
	f, err := FromShapes(shapes, img, verified, defaults)
	if err != nil {
		return withPath(err, path)
	}
	return Save(path, f)
}

// IsAnnotationFile reports whether path looks like an annotation document: it
// must carry the Ext extension and its first element must be <annotation>.
// Only the head of the file is read.
func IsAnnotationFile(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), Ext) {
		return false
	}
	fh, err := os.Open(path)
	if err != nil {
		return false
	}
	defer fh.Close()

	dec := xml.NewDecoder(io.LimitReader(fh, sniffLimit))
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local == "annotation"
		}
	}
}
