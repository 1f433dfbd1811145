package app

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dshills/keymacro/internal/surface"
)

// Document is a text file loaded into an editing buffer.
type Document struct {
	// Path is the absolute file path.
	Path string

	// Name is the display name.
	Name string

	Buffer *surface.Buffer
}

// OpenDocument loads path into a new buffer with the cursor at offset 0.
// A missing file opens as an empty document and is created on Save.
func OpenDocument(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &OperationError{Op: "open", Target: path, Err: err}
	}

	content, err := os.ReadFile(abs)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &OperationError{Op: "open", Target: path, Err: err}
	}

	return &Document{
		Path:   abs,
		Name:   filepath.Base(abs),
		Buffer: surface.NewBuffer(string(content)),
	}, nil
}

// Save writes the buffer back to the file.
func (d *Document) Save() error {
	return d.SaveText(d.Buffer.Text())
}

// SaveText writes text to the document's file, replacing it atomically.
func (d *Document) SaveText(text string) error {
	return d.WriteTo(d.Path, text)
}

// WriteTo writes text to path through a temporary file and a rename.
func (d *Document) WriteTo(path, text string) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return &OperationError{Op: "save", Target: path, Err: err}
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return &OperationError{Op: "save", Target: path, Err: err}
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return &OperationError{Op: "save", Target: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &OperationError{Op: "save", Target: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &OperationError{Op: "save", Target: path, Err: err}
	}
	return nil
}
