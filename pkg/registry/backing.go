package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/platinummonkey/axle/pkg/identity"
)

// FileBacking is the durable XML document behind one registry. The document
// is the single source of truth; the in-memory snapshot is a cache rebuilt
// wholesale from it. Every commit rewrites the whole document.
type FileBacking struct {
	dir  string
	file string
}

// NewFileBacking prepares the backing directory for a registry: creates it if
// needed, seeds the data file from the bundled template on first use, and
// drops a reference copy of the schema file alongside it. A registry without
// a backing directory cannot support read-modify-write and fails with
// ErrMissingStoreBacking.
func NewFileBacking(dir, file string, template, schema []byte, schemaFile string) (*FileBacking, error) {
	if dir == "" {
		return nil, fmt.Errorf("registry data directory not configured: %w", identity.ErrMissingStoreBacking)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	b := &FileBacking{dir: dir, file: file}
	if _, err := os.Stat(b.Path()); os.IsNotExist(err) {
		if err := b.Write(template); err != nil {
			return nil, fmt.Errorf("failed to seed registry from template: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat registry data file: %w", err)
	}
	schemaPath := filepath.Join(dir, schemaFile)
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		if err := os.WriteFile(schemaPath, schema, 0644); err != nil {
			return nil, fmt.Errorf("failed to write schema file: %w", err)
		}
	}
	return b, nil
}

// Path returns the absolute path of the data file.
func (b *FileBacking) Path() string {
	return filepath.Join(b.dir, b.file)
}

// Read returns the current contents of the data file.
func (b *FileBacking) Read() ([]byte, error) {
	data, err := os.ReadFile(b.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read registry data file: %w", err)
	}
	return data, nil
}

// Write replaces the data file contents atomically: the new document is
// written to a temp file in the same directory and renamed over the old one,
// so readers never observe a half-written document.
func (b *FileBacking) Write(data []byte) error {
	tmp, err := os.CreateTemp(b.dir, b.file+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write registry document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace registry document: %w", err)
	}
	return nil
}

// ModTime returns the last modification time of the data file, used by the
// change watcher's interval polling.
func (b *FileBacking) ModTime() (time.Time, error) {
	info, err := os.Stat(b.Path())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat registry data file: %w", err)
	}
	return info.ModTime(), nil
}
