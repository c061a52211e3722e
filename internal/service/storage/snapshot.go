// Package storage persists incident snapshots as JPEG files.
package storage

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	"weaponwatch/internal/logger"
)

// JPEGQuality is used for snapshots and the live stream.
const JPEGQuality = 85

// SnapshotStore writes each snapshot once under dir, named after the incident image reference.
type SnapshotStore struct {
	dir    string
	logger *logger.Logger
}

// NewSnapshotStore creates dir if needed.
func NewSnapshotStore(dir string, logger *logger.Logger) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating snapshot directory: %w", err)
	}
	return &SnapshotStore{dir: dir, logger: logger}, nil
}

// Dir returns the snapshot directory.
func (s *SnapshotStore) Dir() string {
	return s.dir
}

// Save encodes img as the file named by ref's last path element (e.g. "/incidents/<id>.jpg").
// The file is written to a temporary name first so readers never see a partial image.
func (s *SnapshotStore) Save(ref string, img image.Image) error {
	name := filepath.Base(filepath.FromSlash(ref))
	if name == "." || name == string(filepath.Separator) || !strings.HasSuffix(name, ".jpg") {
		return fmt.Errorf("invalid snapshot reference %q", ref)
	}

	full := filepath.Join(s.dir, name)
	if _, err := os.Stat(full); err == nil {
		return fmt.Errorf("snapshot %s already exists", name)
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeJPEG(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("error encoding snapshot %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing snapshot %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("error saving snapshot %s: %w", name, err)
	}

	s.logger.Info("📸 Saved snapshot %s", name)
	return nil
}

// EncodeJPEG writes img to w at JPEGQuality.
func EncodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
}
