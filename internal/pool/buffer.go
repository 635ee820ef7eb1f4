// Package pool provides reusable fixed-capacity byte buffers for multipart
// part assembly.
//
// A part buffer is several megabytes, so renting it from a sync.Pool instead of
// allocating one per part keeps steady-state uploads allocation free.
package pool

import (
	"sync"
	"sync/atomic"
)

// BufferPool hands out buffers of exactly one capacity.
// It is safe for concurrent use.
type BufferPool struct {
	size        int
	pool        sync.Pool
	outstanding atomic.Int64
}

// NewBufferPool creates a pool of buffers with capacity size.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		panic("pool: buffer size must be positive")
	}
	bp := &BufferPool{size: size}
	bp.pool.New = func() interface{} {
		buf := make([]byte, 0, size)
		return &buf
	}
	return bp
}

// Size returns the capacity of the buffers handed out by this pool.
func (bp *BufferPool) Size() int {
	return bp.size
}

// Get returns a zero-length buffer with capacity Size().
// The caller is responsible for calling Put to return the buffer to the pool.
func (bp *BufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	bp.outstanding.Add(1)
	return (*bufPtr)[:0]
}

// Put returns a buffer to the pool. The buffer must not be used afterwards.
// Buffers of a foreign capacity are dropped.
func (bp *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	bp.outstanding.Add(-1)
	if cap(buf) != bp.size {
		return
	}
	buf = buf[:0]
	bp.pool.Put(&buf)
}

// Outstanding returns the number of buffers currently on loan.
func (bp *BufferPool) Outstanding() int64 {
	return bp.outstanding.Load()
}
