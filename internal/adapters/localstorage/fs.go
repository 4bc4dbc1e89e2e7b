package localstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"appeearsfetch/internal/core/ports"
)

// ChunkSize is the copy buffer size for streamed writes.
const ChunkSize = 8192

var _ ports.Storage = (*LocalStorage)(nil)

// LocalStorage implements ports.Storage for the local filesystem.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

// Init creates the destination directory.
func (s *LocalStorage) Init(ctx context.Context) error {
	if err := os.MkdirAll(s.BaseDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.BaseDir, err)
	}
	return nil
}

// Path returns the destination path for a remote file name. Only the base name
// is kept, so names cannot escape BaseDir.
func (s *LocalStorage) Path(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + filepath.ToSlash(name)))
	if base == "/" || base == "." || base == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(s.BaseDir, base), nil
}

// SaveFile streams reader into a temporary file next to the destination and
// renames it into place once complete. An existing file is overwritten.
func (s *LocalStorage) SaveFile(ctx context.Context, name string, reader io.Reader, size int64) (string, int64, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", 0, err
	}

	tmp := filepath.Join(s.BaseDir, "."+filepath.Base(path)+"."+uuid.NewString()+".part")
	file, err := os.Create(tmp)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file %s: %w", tmp, err)
	}

	// hide *os.File's ReadFrom so the copy goes through the fixed-size buffer
	written, err := io.CopyBuffer(struct{ io.Writer }{file}, &ctxReader{ctx: ctx, r: reader}, make([]byte, ChunkSize))
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("short write: got %d of %d bytes", written, size)
	}
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return "", written, errors.Join(fmt.Errorf("failed to write %s: %w", path, err), os.Remove(tmp))
	}

	if err := os.Rename(tmp, path); err != nil {
		return "", written, errors.Join(fmt.Errorf("failed to move file into place: %w", err), os.Remove(tmp))
	}
	return path, written, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
