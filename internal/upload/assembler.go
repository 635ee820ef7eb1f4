package upload

import (
	"context"
	"io"

	"cryptflow/internal/errs"
	"cryptflow/internal/pool"
	"cryptflow/internal/storage"
)

// PartAssembler cuts a byte stream into parts for a Transaction.
//
// Every part but the last is exactly the pool's buffer size. A full buffer is
// only sent once more bytes arrive, so the final part always holds between 1
// and PartSize bytes. Parts are sent synchronously from Write, which gives
// the caller backpressure.
type PartAssembler struct {
	tx   *Transaction
	pool *pool.BufferPool

	buf   []byte
	next  int
	total int64
}

// NewPartAssembler creates an assembler feeding tx with buffers from p.
func NewPartAssembler(tx *Transaction, p *pool.BufferPool) *PartAssembler {
	return &PartAssembler{tx: tx, pool: p, next: 1}
}

// Write buffers p, sending each full buffer that is followed by more data.
func (a *PartAssembler) Write(ctx context.Context, p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if a.buf == nil {
			a.buf = a.pool.Get()
		}
		if len(a.buf) == cap(a.buf) {
			if _, err := a.send(ctx, false); err != nil {
				return written, err
			}
		}

		n := copy(a.buf[len(a.buf):cap(a.buf)], p)
		a.buf = a.buf[:len(a.buf)+n]
		a.total += int64(n)
		written += n
		p = p[n:]
	}
	return written, nil
}

// Flush sends the buffered remainder as the last part. It fails with
// errs.ErrEmptyUpload if nothing was ever written.
func (a *PartAssembler) Flush(ctx context.Context) (storage.PartRecord, error) {
	if a.total == 0 {
		return storage.PartRecord{}, errs.New("flush", errs.ErrEmptyUpload, nil).WithKey(a.tx.Key())
	}
	return a.send(ctx, true)
}

// Written returns the number of bytes accepted so far.
func (a *PartAssembler) Written() int64 { return a.total }

// Release returns the buffer to the pool. It is safe to call more than once.
func (a *PartAssembler) Release() {
	if a.buf != nil {
		a.pool.Put(a.buf)
		a.buf = nil
	}
}

func (a *PartAssembler) send(ctx context.Context, isLast bool) (storage.PartRecord, error) {
	part, err := a.tx.UploadPart(ctx, a.buf, a.next, isLast)
	if err != nil {
		return storage.PartRecord{}, err
	}
	a.next++
	a.buf = a.buf[:0]
	return part, nil
}

// Writer binds ctx to the assembler so it can sit behind an io.Writer chain.
func (a *PartAssembler) Writer(ctx context.Context) io.Writer {
	return &assemblerWriter{ctx: ctx, a: a}
}

type assemblerWriter struct {
	ctx context.Context
	a   *PartAssembler
}

func (w *assemblerWriter) Write(p []byte) (int, error) {
	return w.a.Write(w.ctx, p)
}
