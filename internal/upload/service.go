package upload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	utils "cryptflow/internal"
	"cryptflow/internal/envelope"
	"cryptflow/internal/errs"
	"cryptflow/internal/pool"
)

// ContentTypeMetadataKey holds the sniffed plaintext content type.
const ContentTypeMetadataKey = "contenttype"

type Service struct {
	backend Backend
	cipher  *envelope.Cipher
	pool    *pool.BufferPool
	opts    Options
	log     logrus.FieldLogger
}

func NewService(backend Backend, cipher *envelope.Cipher, opts Options, log logrus.FieldLogger) (*Service, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upload options: %w", err)
	}
	return &Service{
		backend: backend,
		cipher:  cipher,
		pool:    pool.NewBufferPool(opts.PartSize),
		opts:    opts,
		log:     log,
	}, nil
}

// Options returns the options the service was built with.
func (s *Service) Options() Options { return s.opts }

// Upload encrypts src and stores it as a new object named after fileName.
// It returns the object key. The object is retrievable iff Upload succeeds;
// on any failure or cancellation the multipart upload is aborted first.
func (s *Service) Upload(ctx context.Context, src io.Reader, fileName string) (string, error) {
	name := utils.SanitizeFileName(fileName)
	if name == "" {
		return "", errs.New("upload", errs.ErrValidation, fmt.Errorf("unusable file name %q", fileName))
	}
	key := uuid.NewString() + "-" + name
	log := s.log.WithField("object_key", key)

	// an entropy failure is an internal fault, not a store or caller one
	km, err := s.cipher.Generate()
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	defer km.Zero()

	wrapped, err := s.cipher.WrapMetadata(ctx, km)
	if err != nil {
		return "", errs.Classify(ctx, "wrapKey", key, err)
	}

	br := bufio.NewReaderSize(&sourceReader{ctx: ctx, r: src}, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", classifySource(ctx, key, err)
	}

	metadata := map[string]string{
		envelope.MetadataKey:   wrapped,
		ContentTypeMetadataKey: mimetype.Detect(head).String(),
	}

	tx := NewTransaction(s.backend, key, metadata, s.opts, s.log)
	asm := NewPartAssembler(tx, s.pool)
	defer asm.Release()

	if err := s.stream(ctx, tx, asm, km, br); err != nil {
		err = classifySource(ctx, key, err)
		parts := len(tx.Parts())
		_ = tx.Abort(ctx)
		log.WithError(err).WithField("parts", parts).Warn("upload failed")
		return "", err
	}

	log.WithFields(logrus.Fields{
		"upload_id": tx.UploadID(),
		"size":      asm.Written(),
	}).Info("upload completed")
	return key, nil
}

func (s *Service) stream(ctx context.Context, tx *Transaction, asm *PartAssembler, km *envelope.KeyMaterial, src io.Reader) error {
	enc, err := envelope.NewEncryptWriter(asm.Writer(ctx), km)
	if err != nil {
		return err
	}
	km.Zero()

	n, err := io.Copy(enc, src)
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New("upload", errs.ErrEmptyUpload, nil).WithKey(tx.Key())
	}

	if err := enc.Close(); err != nil {
		return err
	}
	if _, err := asm.Flush(ctx); err != nil {
		return err
	}
	return tx.Complete(ctx)
}

// sourceReader stops reading once ctx is done and marks read failures of
// the caller's stream as bad input.
type sourceReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *sourceReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF {
		return n, &sourceError{err: err}
	}
	return n, err
}

type sourceError struct{ err error }

func (e *sourceError) Error() string { return "read source: " + e.err.Error() }
func (e *sourceError) Unwrap() error { return e.err }

func classifySource(ctx context.Context, key string, err error) error {
	var srcErr *sourceError
	if ctx.Err() == nil && errors.As(err, &srcErr) && errs.KindOf(err) == nil {
		return errs.New("readSource", errs.ErrValidation, srcErr.err).WithKey(key)
	}
	return errs.Classify(ctx, "upload", key, err)
}
