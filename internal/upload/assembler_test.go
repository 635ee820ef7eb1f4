package upload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptflow/internal/errs"
	"cryptflow/internal/pool"
)

func TestPartAssembler_HoldsFullBufferUntilMoreData(t *testing.T) {
	ctx := context.Background()
	tx, rec, mem := newTransaction(t, smallOptions(4, 100))
	bp := pool.NewBufferPool(4)
	asm := NewPartAssembler(tx, bp)
	defer asm.Release()

	n, err := asm.Write(ctx, []byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 0, rec.Count("UploadPart"), "a full buffer waits for more data")

	_, err = asm.Write(ctx, []byte("e"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count("UploadPart"))

	part, err := asm.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, part.Number)
	assert.Equal(t, int64(1), part.Size)
	assert.Equal(t, int64(5), asm.Written())

	require.NoError(t, tx.Complete(ctx))
	raw, _ := mem.Raw("key")
	assert.Equal(t, "abcde", string(raw))
}

func TestPartAssembler_ExactMultipleEndsWithFullPart(t *testing.T) {
	ctx := context.Background()
	tx, rec, _ := newTransaction(t, smallOptions(4, 100))
	asm := NewPartAssembler(tx, pool.NewBufferPool(4))
	defer asm.Release()

	_, err := asm.Write(ctx, []byte("abcdefgh"))
	require.NoError(t, err)
	_, err = asm.Flush(ctx)
	require.NoError(t, err)

	calls := rec.CallsTo("UploadPart")
	require.Len(t, calls, 2)
	assert.Equal(t, int64(4), calls[1].Size)
	assert.True(t, calls[1].IsLast)
}

func TestPartAssembler_LargeWriteSplits(t *testing.T) {
	ctx := context.Background()
	tx, rec, _ := newTransaction(t, smallOptions(4, 100))
	asm := NewPartAssembler(tx, pool.NewBufferPool(4))
	defer asm.Release()

	_, err := asm.Writer(ctx).Write([]byte("0123456789abcdefghi"))
	require.NoError(t, err)
	_, err = asm.Flush(ctx)
	require.NoError(t, err)

	var sizes []int64
	for _, c := range rec.CallsTo("UploadPart") {
		sizes = append(sizes, c.Size)
	}
	assert.Equal(t, []int64{4, 4, 4, 4, 3}, sizes)
}

func TestPartAssembler_EmptyFlush(t *testing.T) {
	tx, rec, _ := newTransaction(t, smallOptions(4, 100))
	bp := pool.NewBufferPool(4)
	asm := NewPartAssembler(tx, bp)

	_, err := asm.Flush(context.Background())
	assert.ErrorIs(t, err, errs.ErrEmptyUpload)
	assert.Empty(t, rec.Calls())
	assert.Zero(t, bp.Outstanding())
}

func TestPartAssembler_ReleaseReturnsBuffer(t *testing.T) {
	tx, _, _ := newTransaction(t, smallOptions(4, 100))
	bp := pool.NewBufferPool(4)
	asm := NewPartAssembler(tx, bp)

	_, err := asm.Write(context.Background(), []byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), bp.Outstanding())

	asm.Release()
	asm.Release()
	assert.Zero(t, bp.Outstanding())
}
