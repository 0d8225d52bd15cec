package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/shared/paths"
)

const (
	defaultFileMode = os.FileMode(0o0644)
	defaultDirMode  = os.FileMode(0o0755)
)

// Disk stores icons as PNG files under <dataDir>/icons
type Disk struct {
	dir string
}

// NewDisk creates the icons directory below dataDir if needed
func NewDisk(dataDir string) (*Disk, error) {
	base, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to resolve %s: %w", dataDir, err)
	}

	dir := paths.Icons(base)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dir, defaultDirMode); err != nil {
			return nil, fmt.Errorf("storage: failed to create %s: %w", dir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("storage: failed to stat %s: %w", dir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: %s is not a directory", dir)
	}

	return &Disk{dir: dir}, nil
}

// Dir returns the icons directory
func (d *Disk) Dir() string {
	return d.dir
}

// Path returns the file an app's icon is stored in
func (d *Disk) Path(appID string) (string, error) {
	if err := ValidateAppID(appID); err != nil {
		return "", err
	}
	return paths.IconFile(d.dir, appID)
}

// Load reads the stored icon
func (d *Disk) Load(ctx context.Context, appID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.Path(appID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, appID)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: failed to read %s: %w", path, err)
	}
	return data, nil
}

// Save atomically replaces the stored icon. Readers see either the old file
// or the new one, never a partial write.
func (d *Disk) Save(ctx context.Context, appID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.Path(appID)
	if err != nil {
		return err
	}

	if err := renameio.WriteFile(path, data, defaultFileMode, renameio.WithTempDir(d.dir)); err != nil {
		return fmt.Errorf("storage: failed to write %s: %w", path, err)
	}
	return nil
}

// Delete removes the stored icon. Deleting a missing icon is not an error.
func (d *Disk) Delete(ctx context.Context, appID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.Path(appID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: failed to delete %s: %w", path, err)
	}
	return nil
}
