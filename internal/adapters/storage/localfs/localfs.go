package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"comfyworker/internal/ports"
)

// LocalFS implements ports.StorageProvider using the local filesystem.
// It stores objects under a configured root directory, typically a shared
// mount the caller can read from.
type LocalFS struct {
	root string
}

func New(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	dst, err := filepath.Abs(filepath.Join(l.root, filepath.FromSlash(in.ObjectKey)))
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.PutObjectOutput{}, err
	}

	outF, err := os.Create(dst)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	defer outF.Close()

	n, err := io.Copy(outF, in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}

	return ports.PutObjectOutput{
		ObjectKey: in.ObjectKey,
		Size:      n,
		URL:       "file://" + filepath.ToSlash(dst),
	}, nil
}
