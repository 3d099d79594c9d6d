package ports

import (
	"context"
	"io"
)

type PutObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	// En s3 es la key dentro del bucket; en gdrive el fileId real.
	ObjectKey string
	Size      int64
	// URL is the locator handed back to the job caller.
	URL string
}

// StorageProvider: implementaciones (localfs, gdrive, s3)
type StorageProvider interface {
	Provider() string
	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
}
