package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"cryptflow/internal/errs"
	"cryptflow/internal/storage"
)

// S3API is the subset of the S3 client used by Client.
type S3API interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// Client is a storage.Backend on Amazon S3 or an S3-compatible endpoint.
type Client struct {
	api    S3API
	bucket string
}

var _ storage.Backend = (*Client)(nil)

// NewClient builds an S3 client. Static credentials are used when given,
// otherwise the default chain is only accepted inside ECS.
func NewClient(ctx context.Context, region, bucket, accessKey, secretKey, endpoint string) (*Client, error) {
	var cfg aws.Config
	var err error

	if accessKey != "" && secretKey != "" {
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		)
	} else if os.Getenv("ECS_CONTAINER_METADATA_URI_V4") != "" {
		cfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(region))
	} else {
		err = fmt.Errorf("no AWS credentials provided")
	}
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return NewClientWithAPI(s3Client, bucket), nil
}

// NewClientWithAPI wraps an existing S3 API implementation.
func NewClientWithAPI(api S3API, bucket string) *Client {
	return &Client{api: api, bucket: bucket}
}

// InitiateUpload creates a multipart upload and returns the upload ID.
// The metadata is fixed here, before any part is sent.
func (c *Client) InitiateUpload(ctx context.Context, key string, metadata map[string]string) (string, error) {
	result, err := c.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String("application/octet-stream"),
		Metadata:    metadata,
	})
	if err != nil {
		return "", wrapError("initiateUpload", key, err)
	}
	if result.UploadId == nil {
		return "", errs.Transport("initiateUpload", key, errors.New("response has no upload id"))
	}
	return *result.UploadId, nil
}

// UploadPart sends one part. isLast is informational for S3.
func (c *Client) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64, isLast bool) (storage.PartRecord, error) {
	result, err := c.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(int32(partNumber)),
		ContentLength: aws.Int64(size),
		Body:          body,
	})
	if err != nil {
		return storage.PartRecord{}, wrapError("uploadPart", key, err)
	}
	return storage.PartRecord{
		Number: partNumber,
		Size:   size,
		ETag:   aws.ToString(result.ETag),
	}, nil
}

// CompleteUpload completes a multipart upload
func (c *Client) CompleteUpload(ctx context.Context, key, uploadID string, parts []storage.PartRecord) error {
	completedParts := make([]s3Types.CompletedPart, len(parts))
	for i, part := range parts {
		completedParts[i] = s3Types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(int32(part.Number)),
		}
	}

	_, err := c.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &s3Types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		return wrapError("completeUpload", key, err)
	}
	return nil
}

// AbortUpload aborts a multipart upload
func (c *Client) AbortUpload(ctx context.Context, key, uploadID string) error {
	_, err := c.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return wrapError("abortUpload", key, err)
	}
	return nil
}

func (c *Client) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	result, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapError("getMetadata", key, err)
	}
	return storage.NormalizeMetadata(result.Metadata), nil
}

// GetObject opens the object body. The caller closes it.
func (c *Client) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapError("getObject", key, err)
	}
	return result.Body, nil
}

func wrapError(op, key string, err error) error {
	if isNotFound(err) {
		return errs.New(op, errs.ErrNotFound, err).WithKey(key)
	}
	return errs.Classify(context.Background(), op, key, err)
}

func isNotFound(err error) bool {
	var noSuchKey *s3Types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *s3Types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
