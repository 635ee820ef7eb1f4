package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"cryptflow/internal/errs"
)

// minioCore is the part of minio.Core the backend uses.
type minioCore interface {
	NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error)
	PutObjectPart(ctx context.Context, bucket, object, uploadID string, partID int, data io.Reader, size int64, opts minio.PutObjectPartOptions) (minio.ObjectPart, error)
	CompleteMultipartUpload(ctx context.Context, bucket, object, uploadID string, parts []minio.CompletePart, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (io.ReadCloser, minio.ObjectInfo, http.Header, error)
}

var _ minioCore = (*minio.Core)(nil)

// MinioBackend implements Backend on a MinIO (or any S3-compatible) server
// through the low-level minio.Core multipart API.
type MinioBackend struct {
	core   minioCore
	bucket string
}

// NewMinioBackend creates a MinIO client and makes sure the bucket exists.
func NewMinioBackend(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioBackend, error) {
	core, err := minio.NewCore(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := core.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := core.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
	}

	return &MinioBackend{core: core, bucket: bucket}, nil
}

func (b *MinioBackend) InitiateUpload(ctx context.Context, key string, metadata map[string]string) (string, error) {
	uploadID, err := b.core.NewMultipartUpload(ctx, b.bucket, key, minio.PutObjectOptions{
		UserMetadata: metadata,
		ContentType:  "application/octet-stream",
	})
	if err != nil {
		return "", b.wrap("initiateUpload", key, err)
	}
	return uploadID, nil
}

func (b *MinioBackend) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64, isLast bool) (PartRecord, error) {
	part, err := b.core.PutObjectPart(ctx, b.bucket, key, uploadID, partNumber, body, size, minio.PutObjectPartOptions{})
	if err != nil {
		return PartRecord{}, b.wrap("uploadPart", key, err)
	}
	return PartRecord{Number: part.PartNumber, Size: size, ETag: part.ETag}, nil
}

func (b *MinioBackend) CompleteUpload(ctx context.Context, key, uploadID string, parts []PartRecord) error {
	completed := make([]minio.CompletePart, len(parts))
	for i, p := range parts {
		completed[i] = minio.CompletePart{PartNumber: p.Number, ETag: p.ETag}
	}
	if _, err := b.core.CompleteMultipartUpload(ctx, b.bucket, key, uploadID, completed, minio.PutObjectOptions{}); err != nil {
		return b.wrap("completeUpload", key, err)
	}
	return nil
}

func (b *MinioBackend) AbortUpload(ctx context.Context, key, uploadID string) error {
	if err := b.core.AbortMultipartUpload(ctx, b.bucket, key, uploadID); err != nil {
		return b.wrap("abortUpload", key, err)
	}
	return nil
}

func (b *MinioBackend) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	info, err := b.core.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, b.wrap("getMetadata", key, err)
	}
	return NormalizeMetadata(info.UserMetadata), nil
}

func (b *MinioBackend) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	body, _, _, err := b.core.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.wrap("getObject", key, err)
	}
	return body, nil
}

func (b *MinioBackend) wrap(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return errs.New(op, errs.ErrNotFound, err).WithKey(key)
	}
	return errs.Transport(op, key, err)
}
