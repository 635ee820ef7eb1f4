package upload

import (
	"context"
	"io"

	"cryptflow/internal/storage"
)

// Backend is the part of the object store the upload pipeline writes to.
// storage.Backend implementations satisfy it.
type Backend interface {
	InitiateUpload(ctx context.Context, key string, metadata map[string]string) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64, isLast bool) (storage.PartRecord, error)
	CompleteUpload(ctx context.Context, key, uploadID string, parts []storage.PartRecord) error
	AbortUpload(ctx context.Context, key, uploadID string) error
}
