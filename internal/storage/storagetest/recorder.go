// Package storagetest provides a recording, fault-injecting storage.Backend
// for pipeline tests.
package storagetest

import (
	"context"
	"io"
	"sync"

	"cryptflow/internal/storage"
)

// Call is one recorded backend invocation.
type Call struct {
	Op         string
	Key        string
	UploadID   string
	PartNumber int
	Size       int64
	IsLast     bool
	Parts      []storage.PartRecord
	Metadata   map[string]string
}

// Recorder wraps a Backend, records every call and lets tests override any
// operation through its function fields. A nil hook delegates to Next.
type Recorder struct {
	Next storage.Backend

	InitiateUploadFunc func(ctx context.Context, key string, metadata map[string]string) (string, error)
	UploadPartFunc     func(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64, isLast bool) (storage.PartRecord, error)
	CompleteUploadFunc func(ctx context.Context, key, uploadID string, parts []storage.PartRecord) error
	AbortUploadFunc    func(ctx context.Context, key, uploadID string) error

	mu    sync.Mutex
	calls []Call
}

// NewRecorder wraps next.
func NewRecorder(next storage.Backend) *Recorder {
	return &Recorder{Next: next}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns a copy of all recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded calls of one operation.
func (r *Recorder) CallsTo(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times op was called.
func (r *Recorder) Count(op string) int {
	return len(r.CallsTo(op))
}

func (r *Recorder) InitiateUpload(ctx context.Context, key string, metadata map[string]string) (string, error) {
	r.record(Call{Op: "InitiateUpload", Key: key, Metadata: metadata})
	if r.InitiateUploadFunc != nil {
		return r.InitiateUploadFunc(ctx, key, metadata)
	}
	return r.Next.InitiateUpload(ctx, key, metadata)
}

func (r *Recorder) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64, isLast bool) (storage.PartRecord, error) {
	r.record(Call{Op: "UploadPart", Key: key, UploadID: uploadID, PartNumber: partNumber, Size: size, IsLast: isLast})
	if r.UploadPartFunc != nil {
		return r.UploadPartFunc(ctx, key, uploadID, partNumber, body, size, isLast)
	}
	return r.Next.UploadPart(ctx, key, uploadID, partNumber, body, size, isLast)
}

func (r *Recorder) CompleteUpload(ctx context.Context, key, uploadID string, parts []storage.PartRecord) error {
	r.record(Call{Op: "CompleteUpload", Key: key, UploadID: uploadID, Parts: append([]storage.PartRecord(nil), parts...)})
	if r.CompleteUploadFunc != nil {
		return r.CompleteUploadFunc(ctx, key, uploadID, parts)
	}
	return r.Next.CompleteUpload(ctx, key, uploadID, parts)
}

func (r *Recorder) AbortUpload(ctx context.Context, key, uploadID string) error {
	r.record(Call{Op: "AbortUpload", Key: key, UploadID: uploadID})
	if r.AbortUploadFunc != nil {
		return r.AbortUploadFunc(ctx, key, uploadID)
	}
	return r.Next.AbortUpload(ctx, key, uploadID)
}

func (r *Recorder) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	r.record(Call{Op: "GetMetadata", Key: key})
	return r.Next.GetMetadata(ctx, key)
}

func (r *Recorder) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	r.record(Call{Op: "GetObject", Key: key})
	return r.Next.GetObject(ctx, key)
}

var _ storage.Backend = (*Recorder)(nil)
