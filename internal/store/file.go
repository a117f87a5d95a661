package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/raphaelgruber/linkograph/internal/models"
)

// Format is a file encoding.
type Format string

// Supported file formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension; anything but .yaml/.yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadCollection reads an input collection fully into memory.
func LoadCollection(path string) (models.Collection, error) {
	data, err := readJSON(path)
	if err != nil {
		return nil, persistErr("load", path, err)
	}
	var c models.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, persistErr("load", path, err)
	}
	return c, nil
}

func readJSON(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if FormatFor(path) == FormatYAML {
		return yamlToJSON(data)
	}
	return data, nil
}

// FileStore writes a linked collection to a JSON or YAML file. Writes go to a temp
// file in the same directory which is then renamed over the target, so readers never
// see a partial file and an existing file survives a failed write.
type FileStore struct {
	path   string
	format Format
	perm   os.FileMode
}

// Compile-time check that FileStore implements Store.
var _ Store = (*FileStore)(nil)

// NewFileStore creates a file store for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, format: FormatFor(path), perm: 0o644}
}

func (s *FileStore) String() string { return s.path }

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// Save encodes the collection and atomically replaces the target file. It holds an
// exclusive lock on "<target>.lock" while writing and removes the lock file after.
func (s *FileStore) Save(ctx context.Context, collection models.LinkedCollection) error {
	data, err := encodeJSON(collection)
	if err != nil {
		return persistErr("save", s.path, fmt.Errorf("encode: %w", err))
	}
	if s.format == FormatYAML {
		if data, err = jsonToYAML(data); err != nil {
			return persistErr("save", s.path, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return persistErr("save", s.path, err)
	}

	lockPath := s.path + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return persistErr("lock", s.path, err)
	}
	if !locked {
		return persistErr("lock", s.path, ErrLocked)
	}
	defer func() {
		_ = os.Remove(lockPath)
		_ = lock.Unlock()
	}()

	if err := writeFileAtomic(s.path, data, s.perm); err != nil {
		return persistErr("save", s.path, err)
	}
	return nil
}

// Load reads a linked collection written by Save.
func (s *FileStore) Load(_ context.Context) (models.LinkedCollection, error) {
	data, err := readJSON(s.path)
	if err != nil {
		return nil, persistErr("load", s.path, err)
	}
	var c models.LinkedCollection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, persistErr("load", s.path, err)
	}
	return c, nil
}

// encodeJSON indents v with two spaces and a trailing newline. HTML escaping is off
// so move values keep characters such as < > & as they were read.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
