package mapdoc

import (
	"fmt"
	"os"
	"path/filepath"
)

// DocumentWriter persists a rendered document so a renderer can load it
type DocumentWriter interface {
	WriteDocument(doc *Document) error
}

// FileWriter writes documents to a single HTML file. Writes go to a sibling
// temp file first and are renamed into place, so readers never observe a
// partially written page.
type FileWriter struct {
	Path string
}

// NewFileWriter creates a FileWriter; an empty path uses the OS temp dir
func NewFileWriter(path string) *FileWriter {
	if path == "" {
		path = filepath.Join(os.TempDir(), "map_weather_app_map.html")
	}
	return &FileWriter{Path: path}
}

// WriteDocument implements DocumentWriter
func (w *FileWriter) WriteDocument(doc *Document) error {
	if doc == nil {
		return &RenderError{Stage: "persist", Err: fmt.Errorf("nil document")}
	}

	dir := filepath.Dir(w.Path)
	tmp, err := os.CreateTemp(dir, ".map-*.html")
	if err != nil {
		return &RenderError{Stage: "persist", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(doc.HTML); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &RenderError{Stage: "persist", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &RenderError{Stage: "persist", Err: err}
	}
	if err := os.Rename(tmpName, w.Path); err != nil {
		os.Remove(tmpName)
		return &RenderError{Stage: "persist", Err: err}
	}
	return nil
}
