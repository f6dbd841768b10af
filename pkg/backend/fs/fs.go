// Package fs provides a Backend backed by the local filesystem.
//
// Locations map directly to paths under a configured root directory.
// Containers are directories, data objects are regular files.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/voservices/vospace/pkg/backend"
)

// Backend stores bytes on the local filesystem.
type Backend struct {
	root string
}

// New creates a filesystem backend rooted at dir, creating the directory
// if necessary.
func New(dir string) (*Backend, error) {
	if dir == "" {
		return nil, fmt.Errorf("filesystem backend: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backend root %s: %w", dir, err)
	}
	return &Backend{root: dir}, nil
}

var _ backend.Backend = (*Backend)(nil)

// resolve maps a location under the backend root. Locations are already
// sanitized by the store's URI-to-location mapping; Clean guards against
// traversal all the same.
func (b *Backend) resolve(location string) string {
	return filepath.Join(b.root, filepath.Clean("/"+location))
}

func (b *Backend) CreateContainer(ctx context.Context, location string) error {
	return os.MkdirAll(b.resolve(location), 0o755)
}

func (b *Backend) Touch(ctx context.Context, location string) error {
	p := b.resolve(location)
	if _, err := os.Stat(p); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (b *Backend) CreateLink(ctx context.Context, location, target string) error {
	p := b.resolve(location)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.Symlink(b.resolve(target), p)
}

func (b *Backend) Size(ctx context.Context, location string) (int64, error) {
	info, err := os.Stat(b.resolve(location))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, nil
	}
	return info.Size(), nil
}

func (b *Backend) CopyBytes(ctx context.Context, src, dst string) error {
	return copyTree(b.resolve(src), b.resolve(dst))
}

func (b *Backend) MoveBytes(ctx context.Context, src, dst string) error {
	sp, dp := b.resolve(src), b.resolve(dst)
	if err := os.MkdirAll(filepath.Dir(dp), 0o755); err != nil {
		return err
	}
	if err := os.Rename(sp, dp); err == nil || os.IsNotExist(err) {
		return nil
	}
	// Rename fails across filesystems; fall back to copy and remove.
	if err := copyTree(sp, dp); err != nil {
		return err
	}
	return os.RemoveAll(sp)
}

func (b *Backend) RemoveBytes(ctx context.Context, location string) error {
	return os.RemoveAll(b.resolve(location))
}

func (b *Backend) Read(ctx context.Context, location string) (io.ReadCloser, error) {
	return os.Open(b.resolve(location))
}

func (b *Backend) Write(ctx context.Context, location string, r io.Reader) (int64, error) {
	p := b.resolve(location)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(p)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}

	return filepath.Walk(src, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if fi.IsDir() {
			return os.MkdirAll(target, fi.Mode())
		}
		return copyFile(p, target, fi.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
