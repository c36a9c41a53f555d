package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	carterrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/errors"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// File implements Storage with one JSON document per name inside a directory.
// Writes go to a temporary file first and are renamed into place.
type File struct {
	dir string
}

var _ Storage = (*File)(nil)

// NewFile creates the directory if needed and returns a file-backed storage rooted there.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cart storage dir %s: %w", dir, err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(name string) string {
	return filepath.Join(f.dir, unsafeNameChars.ReplaceAllString(name, "_")+".json")
}

func (f *File) Load(ctx context.Context, name string) (cart.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return cart.Snapshot{}, err
	}
	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return cart.Snapshot{}, carterrors.ErrRecordNotFound
	}
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("read cart file failed: %w", err)
	}
	return decode(data)
}

func (f *File) Save(ctx context.Context, name string, snapshot cart.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(snapshot)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".cart-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cart file failed: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cart file failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync cart file failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cart file failed: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(name)); err != nil {
		return fmt.Errorf("replace cart file failed: %w", err)
	}
	return nil
}

func (f *File) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cart file failed: %w", err)
	}
	return nil
}
