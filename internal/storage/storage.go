// Package storage defines the object store operations the transfer pipelines
// depend on. Swap implementations by changing the concrete type injected at
// startup: the S3 client (internal/s3), MinIO, or the in-memory store used for
// development and tests.
package storage

import (
	"context"
	"io"
	"strings"
)

// PartRecord identifies one uploaded part of a multipart upload.
type PartRecord struct {
	Number int
	Size   int64
	ETag   string
}

// Backend is the full set of operations a store must provide.
// Each call is independent; retries belong to the implementation.
type Backend interface {
	// InitiateUpload starts a multipart upload and fixes the object metadata.
	InitiateUpload(ctx context.Context, key string, metadata map[string]string) (string, error)
	// UploadPart sends one part of size bytes read from body.
	UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64, isLast bool) (PartRecord, error)
	// CompleteUpload assembles the parts, which must be in increasing number order.
	CompleteUpload(ctx context.Context, key, uploadID string, parts []PartRecord) error
	// AbortUpload discards an unfinished upload and its parts.
	AbortUpload(ctx context.Context, key, uploadID string) error
	// GetMetadata returns the object's metadata with lower-cased keys.
	GetMetadata(ctx context.Context, key string) (map[string]string, error)
	// GetObject opens the raw object body.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// NormalizeMetadata lower-cases metadata keys. Stores differ in how they
// canonicalise user metadata headers.
func NormalizeMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}
