package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBufferPool(t *testing.T) {
	bp := NewBufferPool(1024)
	require.NotNil(t, bp)
	assert.Equal(t, 1024, bp.Size())
	assert.Equal(t, int64(0), bp.Outstanding())
}

func TestNewBufferPool_InvalidSize(t *testing.T) {
	assert.Panics(t, func() { NewBufferPool(0) })
}

func TestBufferPool_GetPut(t *testing.T) {
	bp := NewBufferPool(4096)

	buf := getUsed(t, bp)
	assert.Equal(t, int64(1), bp.Outstanding())

	bp.Put(buf)
	assert.Equal(t, int64(0), bp.Outstanding())
}

func TestBufferPool_BufferReuse(t *testing.T) {
	bp := NewBufferPool(4096)

	buf1 := bp.Get()
	buf1 = append(buf1, []byte("first use")...)
	bp.Put(buf1)

	buf2 := bp.Get()
	assert.Equal(t, 4096, cap(buf2))
	assert.Equal(t, 0, len(buf2))

	bp.Put(buf2)
	assert.Equal(t, int64(0), bp.Outstanding())
}

func TestBufferPool_ForeignBufferDropped(t *testing.T) {
	bp := NewBufferPool(64)

	_ = bp.Get()
	bp.Put(make([]byte, 0, 128))
	assert.Equal(t, int64(0), bp.Outstanding())

	buf := bp.Get()
	assert.Equal(t, 64, cap(buf))
	bp.Put(buf)
}

func TestBufferPool_PutNil(t *testing.T) {
	bp := NewBufferPool(64)
	bp.Put(nil)
	assert.Equal(t, int64(0), bp.Outstanding())
}

// getUsed rents a buffer and fills it, checking the loan contract.
func getUsed(t *testing.T, bp *BufferPool) []byte {
	t.Helper()
	buf := bp.Get()
	require.Equal(t, bp.Size(), cap(buf))
	require.Equal(t, 0, len(buf))
	return append(buf, []byte("test data")...)
}

func BenchmarkBufferPool_GetPut(b *testing.B) {
	bp := NewBufferPool(5 * 1024 * 1024)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := bp.Get()
			bp.Put(buf)
		}
	})
}
