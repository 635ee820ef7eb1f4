package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"

	"cryptflow/internal/errs"
)

// MemoryBackend is an in-memory Backend for local development and tests.
// It enforces the multipart rules of S3: parts must be completed in order with
// matching ETags, and every part except the last must be at least MinPartSize.
type MemoryBackend struct {
	// MinPartSize is the smallest accepted non-final part. Zero disables the check.
	MinPartSize int64

	mu      sync.Mutex
	uploads map[string]*pendingUpload
	objects map[string]*memoryObject
}

type pendingUpload struct {
	key      string
	metadata map[string]string
	parts    map[int][]byte
}

type memoryObject struct {
	data     []byte
	metadata map[string]string
}

// NewMemoryBackend creates an empty store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		uploads: make(map[string]*pendingUpload),
		objects: make(map[string]*memoryObject),
	}
}

func (m *MemoryBackend) InitiateUpload(ctx context.Context, key string, metadata map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	uploadID := uuid.NewString()
	m.uploads[uploadID] = &pendingUpload{
		key:      key,
		metadata: NormalizeMetadata(metadata),
		parts:    make(map[int][]byte),
	}
	return uploadID, nil
}

func (m *MemoryBackend) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64, isLast bool) (PartRecord, error) {
	if err := ctx.Err(); err != nil {
		return PartRecord{}, err
	}
	data, err := io.ReadAll(io.LimitReader(body, size))
	if err != nil {
		return PartRecord{}, errs.Transport("uploadPart", key, err)
	}
	if int64(len(data)) != size {
		return PartRecord{}, errs.Transport("uploadPart", key, fmt.Errorf("short part body: %d of %d bytes", len(data), size))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	up, err := m.upload(key, uploadID)
	if err != nil {
		return PartRecord{}, err
	}
	up.parts[partNumber] = data
	return PartRecord{Number: partNumber, Size: size, ETag: etag(data)}, nil
}

func (m *MemoryBackend) CompleteUpload(ctx context.Context, key, uploadID string, parts []PartRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	up, err := m.upload(key, uploadID)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return errs.Transport("completeUpload", key, fmt.Errorf("no parts"))
	}

	var body bytes.Buffer
	for i, p := range parts {
		if i > 0 && p.Number <= parts[i-1].Number {
			return errs.Transport("completeUpload", key, fmt.Errorf("part %d out of order", p.Number))
		}
		data, ok := up.parts[p.Number]
		if !ok {
			return errs.Transport("completeUpload", key, fmt.Errorf("part %d was never uploaded", p.Number))
		}
		if etag(data) != p.ETag {
			return errs.Transport("completeUpload", key, fmt.Errorf("part %d etag mismatch", p.Number))
		}
		if m.MinPartSize > 0 && i < len(parts)-1 && int64(len(data)) < m.MinPartSize {
			return errs.Transport("completeUpload", key, fmt.Errorf("part %d smaller than %d bytes", p.Number, m.MinPartSize))
		}
		body.Write(data)
	}

	m.objects[key] = &memoryObject{data: body.Bytes(), metadata: up.metadata}
	delete(m.uploads, uploadID)
	return nil
}

func (m *MemoryBackend) AbortUpload(ctx context.Context, key, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.upload(key, uploadID); err != nil {
		return err
	}
	delete(m.uploads, uploadID)
	return nil
}

func (m *MemoryBackend) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, errs.New("getMetadata", errs.ErrNotFound, nil).WithKey(key)
	}
	out := make(map[string]string, len(obj.metadata))
	for k, v := range obj.metadata {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryBackend) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, errs.New("getObject", errs.ErrNotFound, nil).WithKey(key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// PutRaw stores an object directly, bypassing the multipart flow.
func (m *MemoryBackend) PutRaw(key string, data []byte, metadata map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &memoryObject{data: append([]byte(nil), data...), metadata: NormalizeMetadata(metadata)}
}

// Raw returns the stored bytes of an object.
func (m *MemoryBackend) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Keys lists stored object keys in sorted order.
func (m *MemoryBackend) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PendingUploads returns the number of initiated but unfinished uploads.
func (m *MemoryBackend) PendingUploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

func (m *MemoryBackend) upload(key, uploadID string) (*pendingUpload, error) {
	up, ok := m.uploads[uploadID]
	if !ok || up.key != key {
		return nil, errs.Transport("multipart", key, fmt.Errorf("no such upload %q", uploadID))
	}
	return up, nil
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
