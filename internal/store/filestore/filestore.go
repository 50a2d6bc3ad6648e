// Package filestore persists the profile set to a single gob file.
package filestore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/kozaktomas/face-recognition/internal/store"
)

const formatVersion = 1

// fileFormat is the on-disk layout.
type fileFormat struct {
	Version  int
	Profiles []store.Profile
}

// FileStore reads and writes profiles from a gob file. Writes go to a temporary
// file that is synced and renamed over the target, so readers never see a partial set.
type FileStore struct {
	path string
}

// New creates a file store for path.
func New(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads all profiles. A missing file is an empty set.
func (f *FileStore) Load(ctx context.Context) ([]store.Profile, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var ff fileFormat
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ff); err != nil {
		return nil, fmt.Errorf("decode profiles file: %w", err)
	}
	if ff.Version != formatVersion {
		return nil, fmt.Errorf("unsupported profiles file version %d", ff.Version)
	}
	return ff.Profiles, nil
}

// Save atomically replaces the file with the given profiles.
func (f *FileStore) Save(ctx context.Context, profiles []store.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(fileFormat{Version: formatVersion, Profiles: profiles}); err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create profiles directory: %w", err)
		}
	}
	if err := renameio.WriteFile(f.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write profiles file: %w", err)
	}
	return nil
}
