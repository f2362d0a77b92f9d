package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Disk stores submissions as plain files below a root directory.
type Disk struct {
	root   string
	logger zerolog.Logger
}

// NewDisk constructs a disk store rooted at dir. The directory is created lazily.
func NewDisk(dir string, logger zerolog.Logger) *Disk {
	if strings.TrimSpace(dir) == "" {
		dir = "documents"
	}
	return &Disk{
		root:   dir,
		logger: logger.With().Str("component", "disk_storage").Logger(),
	}
}

// Root returns the directory files are written to.
func (d *Disk) Root() string {
	return d.root
}

// Save writes the reader to root/name and returns the resulting path.
func (d *Disk) Save(ctx context.Context, name string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}

	path := filepath.Join(d.root, base)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	d.logger.Debug().Str("path", path).Msg("submission stored")
	return path, nil
}
