// Package download serves stored objects back in plaintext.
package download

import (
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"cryptflow/internal/envelope"
	"cryptflow/internal/errs"
)

const (
	contentTypeMetadataKey = "contenttype"
	defaultContentType     = "application/octet-stream"

	// object keys are "<uuid>-<file name>"
	keyPrefixLen = 36 + 1
)

// Backend is the read side of the object store.
type Backend interface {
	GetMetadata(ctx context.Context, key string) (map[string]string, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// Object is an opened, decrypting object. Body decrypts lazily as it is read
// and must be closed.
type Object struct {
	Key         string
	FileName    string
	ContentType string
	Metadata    map[string]string
	Body        io.ReadCloser
}

type Service struct {
	backend Backend
	cipher  *envelope.Cipher
	log     logrus.FieldLogger
}

func NewService(backend Backend, cipher *envelope.Cipher, log logrus.FieldLogger) *Service {
	return &Service{backend: backend, cipher: cipher, log: log}
}

// Download opens key for reading. A missing object fails with
// errs.ErrNotFound, an object without a wrapped key with
// errs.ErrMissingEncryptionKey and a key that does not unwrap with
// errs.ErrKeyUnwrap.
func (s *Service) Download(ctx context.Context, key string) (*Object, error) {
	log := s.log.WithField("object_key", key)

	metadata, err := s.backend.GetMetadata(ctx, key)
	if err != nil {
		return nil, errs.Classify(ctx, "getMetadata", key, err)
	}

	km, err := s.cipher.UnwrapMetadata(ctx, metadata)
	if err != nil {
		log.WithError(err).Warn("object key material unusable")
		return nil, withKey(errs.Classify(ctx, "download", key, err), key)
	}
	defer km.Zero()

	raw, err := s.backend.GetObject(ctx, key)
	if err != nil {
		return nil, errs.Classify(ctx, "getObject", key, err)
	}

	plain, err := envelope.NewDecryptReader(&contextReader{ctx: ctx, r: raw}, km)
	if err != nil {
		raw.Close()
		return nil, errs.New("download", errs.ErrKeyUnwrap, err).WithKey(key)
	}

	contentType := metadata[contentTypeMetadataKey]
	if contentType == "" {
		contentType = defaultContentType
	}

	log.Debug("object opened")
	return &Object{
		Key:         key,
		FileName:    FileName(key),
		ContentType: contentType,
		Metadata:    metadata,
		Body:        &readCloser{Reader: plain, Closer: raw},
	}, nil
}

// FileName returns the caller supplied name an object key was built from.
func FileName(key string) string {
	if len(key) > keyPrefixLen && key[keyPrefixLen-1] == '-' && strings.Count(key[:keyPrefixLen-1], "-") == 4 {
		return key[keyPrefixLen:]
	}
	return key
}

func withKey(err error, key string) error {
	if e, ok := err.(*errs.Error); ok && e.Key == "" {
		e.Key = key
	}
	return err
}

type readCloser struct {
	io.Reader
	io.Closer
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, errs.New("read", errs.ErrCancelled, err)
	}
	return r.r.Read(p)
}
