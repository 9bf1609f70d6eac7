package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
)

// FileFormat selects the on-disk encoding of a FileBackend.
type FileFormat string

const (
	FormatJSON FileFormat = "json"
	FormatYAML FileFormat = "yaml"
)

// FormatForPath picks the encoding from a file extension. Anything that is
// not .yaml or .yml is JSON.
func FormatForPath(path string) FileFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// FileBackend stores the snapshot in a single file. Writes go to a
// temporary file in the same directory which is then renamed over the old
// one, so a crash never leaves a half-written snapshot.
type FileBackend struct {
	path   string
	format FileFormat
	mu     sync.Mutex
}

// NewFileBackend creates a backend for path. The parent directory is
// created on first save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path, format: FormatForPath(path)}
}

// Path returns the snapshot file path.
func (f *FileBackend) Path() string {
	return f.path
}

// Load reads and decodes the snapshot file. A missing file is an empty
// snapshot.
func (f *FileBackend) Load(_ context.Context) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, deskerrors.ErrPersistenceFailure("load", err)
	}
	return decodeSnapshot(data, f.format)
}

// Save encodes s and atomically replaces the snapshot file.
func (f *FileBackend) Save(_ context.Context, s *Snapshot) error {
	data, err := encodeSnapshot(s, f.format)
	if err != nil {
		return deskerrors.ErrPersistenceFailure("save", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeAtomic(f.path, data); err != nil {
		return deskerrors.ErrPersistenceFailure("save", err)
	}
	return nil
}

// Close does nothing; the file is not held open between calls.
func (f *FileBackend) Close() error { return nil }

func encodeSnapshot(s *Snapshot, format FileFormat) ([]byte, error) {
	if format == FormatYAML {
		return yaml.Marshal(s)
	}
	return json.MarshalIndent(s, "", "  ")
}

// decodeSnapshot checks the schema version before decoding the body, so a
// file written by a newer release is rejected with a clear error instead of
// a decode failure on an unknown layout.
func decodeSnapshot(data []byte, format FileFormat) (*Snapshot, error) {
	var version int64
	if format == FormatJSON {
		if !gjson.ValidBytes(data) {
			return nil, deskerrors.ErrPersistenceFailure("load", fmt.Errorf("snapshot is not valid JSON"))
		}
		version = gjson.GetBytes(data, "version").Int()
	} else {
		var head struct {
			Version int64 `yaml:"version"`
		}
		if err := yaml.Unmarshal(data, &head); err != nil {
			return nil, deskerrors.ErrPersistenceFailure("load", err)
		}
		version = head.Version
	}
	if version > SchemaVersion {
		return nil, deskerrors.ErrSchemaVersion(int(version), SchemaVersion)
	}

	var s Snapshot
	var err error
	if format == FormatYAML {
		err = yaml.Unmarshal(data, &s)
	} else {
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, deskerrors.ErrPersistenceFailure("load", err)
	}
	if err := s.Normalize(); err != nil {
		return nil, err
	}
	return &s, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
