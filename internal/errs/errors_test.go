package errs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transport("uploadPart", "abc-file.bin", cause)

	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "uploadPart abc-file.bin: object store request failed: connection reset", err.Error())
}

func TestError_MessageWithoutKey(t *testing.T) {
	err := New("upload", ErrEmptyUpload, nil)
	assert.Equal(t, "upload: validation failed: upload contained no data", err.Error())
}

func TestEmptyUploadIsValidation(t *testing.T) {
	err := New("upload", ErrEmptyUpload, nil)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, ErrEmptyUpload, KindOf(err))
	assert.True(t, IsClientFault(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		cancel bool
		err    error
		kind   error
	}{
		{name: "nil", err: nil, kind: nil},
		{name: "plain error becomes transport", err: errors.New("boom"), kind: ErrTransport},
		{name: "classified keeps kind", err: New("getMetadata", ErrNotFound, nil), kind: ErrNotFound},
		{name: "context canceled", err: context.Canceled, kind: ErrCancelled},
		{name: "deadline exceeded", err: context.DeadlineExceeded, kind: ErrCancelled},
		{name: "done context wins", cancel: true, err: New("uploadPart", ErrTransport, nil), kind: ErrCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			got := Classify(ctx, "upload", "key", tt.err)
			if tt.kind == nil {
				require.NoError(t, got)
				return
			}
			require.Error(t, got)
			assert.Equal(t, tt.kind, KindOf(got))
		})
	}
}

func TestIsClientFault(t *testing.T) {
	assert.True(t, IsClientFault(New("upload", ErrPartLimitExceeded, nil)))
	assert.True(t, IsClientFault(New("download", ErrNotFound, nil)))
	assert.False(t, IsClientFault(New("download", ErrKeyUnwrap, nil)))
	assert.False(t, IsClientFault(Transport("uploadPart", "k", errors.New("x"))))
}
