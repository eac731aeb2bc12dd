package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobChecker verifies that an uploaded object is durably present.
type BlobChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver exports settled marketplace records to cold storage.
type Archiver interface {
	ArchiveOrders(ctx context.Context, before time.Time) (int64, error)
	ArchiveAuctions(ctx context.Context, before time.Time) (int64, error)
}
