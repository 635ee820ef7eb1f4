package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptflow/internal/errs"
)

func uploadParts(t *testing.T, m *MemoryBackend, key string, chunks ...string) (string, []PartRecord) {
	t.Helper()
	ctx := context.Background()
	uploadID, err := m.InitiateUpload(ctx, key, map[string]string{"EncryptionKey": "abc"})
	require.NoError(t, err)

	var parts []PartRecord
	for i, c := range chunks {
		p, err := m.UploadPart(ctx, key, uploadID, i+1, bytes.NewReader([]byte(c)), int64(len(c)), i == len(chunks)-1)
		require.NoError(t, err)
		parts = append(parts, p)
	}
	return uploadID, parts
}

func TestMemoryBackend_RoundTrip(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	uploadID, parts := uploadParts(t, m, "k", "hello ", "world")
	require.NoError(t, m.CompleteUpload(ctx, "k", uploadID, parts))

	md, err := m.GetMetadata(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"encryptionkey": "abc"}, md)

	body, err := m.GetObject(ctx, "k")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, 0, m.PendingUploads())
}

func TestMemoryBackend_CompleteRejectsOutOfOrder(t *testing.T) {
	m := NewMemoryBackend()
	uploadID, parts := uploadParts(t, m, "k", "a", "b")

	err := m.CompleteUpload(context.Background(), "k", uploadID, []PartRecord{parts[1], parts[0]})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrTransport)
}

func TestMemoryBackend_CompleteRejectsSmallParts(t *testing.T) {
	m := NewMemoryBackend()
	m.MinPartSize = 4
	uploadID, parts := uploadParts(t, m, "k", "ab", "cd")

	err := m.CompleteUpload(context.Background(), "k", uploadID, parts)
	require.Error(t, err)
}

func TestMemoryBackend_CompleteRejectsBadETag(t *testing.T) {
	m := NewMemoryBackend()
	uploadID, parts := uploadParts(t, m, "k", "abc")
	parts[0].ETag = `"bogus"`

	require.Error(t, m.CompleteUpload(context.Background(), "k", uploadID, parts))
}

func TestMemoryBackend_Abort(t *testing.T) {
	m := NewMemoryBackend()
	uploadID, _ := uploadParts(t, m, "k", "abc")
	require.Equal(t, 1, m.PendingUploads())

	require.NoError(t, m.AbortUpload(context.Background(), "k", uploadID))
	assert.Equal(t, 0, m.PendingUploads())
	assert.Error(t, m.AbortUpload(context.Background(), "k", uploadID))
}

func TestMemoryBackend_NotFound(t *testing.T) {
	m := NewMemoryBackend()

	_, err := m.GetMetadata(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = m.GetObject(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryBackend_ShortPartBody(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()
	uploadID, err := m.InitiateUpload(ctx, "k", nil)
	require.NoError(t, err)

	_, err = m.UploadPart(ctx, "k", uploadID, 1, bytes.NewReader([]byte("ab")), 10, true)
	assert.ErrorIs(t, err, errs.ErrTransport)
}

func TestMemoryBackend_PutRawAndKeys(t *testing.T) {
	m := NewMemoryBackend()
	m.PutRaw("b", []byte("2"), nil)
	m.PutRaw("a", []byte("1"), map[string]string{"X": "y"})

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	raw, ok := m.Raw("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), raw)
}

func TestNormalizeMetadata(t *testing.T) {
	got := NormalizeMetadata(map[string]string{"Encryptionkey": "k", "Content-Type": "x"})
	assert.Equal(t, map[string]string{"encryptionkey": "k", "content-type": "x"}, got)
}
