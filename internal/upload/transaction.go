package upload

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"cryptflow/internal/errs"
	"cryptflow/internal/storage"
)

// Transaction variants. Only active carries an upload ID and parts, so a
// part can never be sent for an upload that was not initiated.
type (
	txState interface{ state() State }

	idle   struct{}
	active struct {
		uploadID string
		parts    []storage.PartRecord
	}
	completing struct{ uploadID string }
	completed  struct{ uploadID string }
	aborted    struct{ uploadID string }
)

func (idle) state() State       { return StateIdle }
func (active) state() State     { return StateActive }
func (completing) state() State { return StateCompleting }
func (completed) state() State  { return StateCompleted }
func (aborted) state() State    { return StateAborted }

// Transaction owns one multipart upload: lazy initiation, part numbering,
// ETag bookkeeping and the final complete or abort. It is not safe for
// concurrent use.
type Transaction struct {
	backend      Backend
	key          string
	metadata     map[string]string
	maxParts     int
	abortTimeout time.Duration
	log          logrus.FieldLogger

	st txState
}

// NewTransaction creates an idle transaction. Nothing is sent to the store
// until the first part.
func NewTransaction(backend Backend, key string, metadata map[string]string, opts Options, log logrus.FieldLogger) *Transaction {
	return &Transaction{
		backend:      backend,
		key:          key,
		metadata:     metadata,
		maxParts:     opts.MaxParts(),
		abortTimeout: opts.AbortTimeout,
		log:          log.WithField("object_key", key),
		st:           idle{},
	}
}

// Key returns the object key.
func (t *Transaction) Key() string { return t.key }

// State returns the current lifecycle phase.
func (t *Transaction) State() State { return t.st.state() }

// UploadID returns the remote upload ID, or "" while idle.
func (t *Transaction) UploadID() string {
	switch s := t.st.(type) {
	case *active:
		return s.uploadID
	case completing:
		return s.uploadID
	case completed:
		return s.uploadID
	case aborted:
		return s.uploadID
	}
	return ""
}

// Parts returns a copy of the parts uploaded so far.
func (t *Transaction) Parts() []storage.PartRecord {
	if s, ok := t.st.(*active); ok {
		return append([]storage.PartRecord(nil), s.parts...)
	}
	return nil
}

// EnsureActive initiates the remote upload on first use and returns its ID.
func (t *Transaction) EnsureActive(ctx context.Context) (string, error) {
	switch s := t.st.(type) {
	case *active:
		return s.uploadID, nil
	case idle:
		uploadID, err := t.backend.InitiateUpload(ctx, t.key, t.metadata)
		if err != nil {
			return "", errs.Classify(ctx, "initiateUpload", t.key, err)
		}
		t.st = &active{uploadID: uploadID}
		t.log.WithField("upload_id", uploadID).Debug("multipart upload initiated")
		return uploadID, nil
	default:
		return "", errs.New("initiateUpload", errs.ErrTransactionClosed, nil).WithKey(t.key)
	}
}

// UploadPart sends body as part partNumber. Part numbers start at 1 and must
// be consecutive. The part limit is checked before anything is sent.
func (t *Transaction) UploadPart(ctx context.Context, body []byte, partNumber int, isLast bool) (storage.PartRecord, error) {
	if partNumber > t.maxParts {
		return storage.PartRecord{}, errs.New("uploadPart", errs.ErrPartLimitExceeded,
			fmt.Errorf("part %d exceeds limit of %d", partNumber, t.maxParts)).WithKey(t.key)
	}
	if _, err := t.EnsureActive(ctx); err != nil {
		return storage.PartRecord{}, err
	}
	s := t.st.(*active)
	if want := len(s.parts) + 1; partNumber != want {
		return storage.PartRecord{}, fmt.Errorf("upload %s: part %d sent out of order, expected %d", t.key, partNumber, want)
	}

	part, err := t.backend.UploadPart(ctx, t.key, s.uploadID, partNumber, bytes.NewReader(body), int64(len(body)), isLast)
	if err != nil {
		return storage.PartRecord{}, errs.Classify(ctx, "uploadPart", t.key, err)
	}
	s.parts = append(s.parts, part)

	t.log.WithFields(logrus.Fields{
		"upload_id":   s.uploadID,
		"part_number": partNumber,
		"size":        len(body),
	}).Debug("part uploaded")
	return part, nil
}

// Complete assembles the uploaded parts into the object. If the store rejects
// the request the transaction stays active so Abort can clean up.
func (t *Transaction) Complete(ctx context.Context) error {
	switch s := t.st.(type) {
	case *active:
		if len(s.parts) == 0 {
			return errs.New("completeUpload", errs.ErrEmptyUpload, nil).WithKey(t.key)
		}
		t.st = completing{uploadID: s.uploadID}
		if err := t.backend.CompleteUpload(ctx, t.key, s.uploadID, s.parts); err != nil {
			t.st = s
			return errs.Classify(ctx, "completeUpload", t.key, err)
		}
		t.st = completed{uploadID: s.uploadID}
		t.log.WithFields(logrus.Fields{
			"upload_id": s.uploadID,
			"parts":     len(s.parts),
		}).Debug("multipart upload completed")
		return nil
	case idle:
		return errs.New("completeUpload", errs.ErrEmptyUpload, nil).WithKey(t.key)
	default:
		return errs.New("completeUpload", errs.ErrTransactionClosed, nil).WithKey(t.key)
	}
}

// Abort discards the upload. An idle transaction is closed locally without a
// remote call. The remote abort runs on a context detached from ctx's
// cancellation, bounded by the abort timeout, and the transaction is aborted
// even if that call fails.
func (t *Transaction) Abort(ctx context.Context) error {
	switch s := t.st.(type) {
	case idle:
		t.st = aborted{}
		return nil
	case *active:
		t.st = aborted{uploadID: s.uploadID}

		abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.abortTimeout)
		defer cancel()

		log := t.log.WithFields(logrus.Fields{
			"upload_id": s.uploadID,
			"parts":     len(s.parts),
		})
		if err := t.backend.AbortUpload(abortCtx, t.key, s.uploadID); err != nil {
			log.WithError(err).Warn("failed to abort multipart upload")
			return errs.Classify(abortCtx, "abortUpload", t.key, err)
		}
		log.Info("multipart upload aborted")
		return nil
	default:
		return errs.New("abortUpload", errs.ErrTransactionClosed, nil).WithKey(t.key)
	}
}
