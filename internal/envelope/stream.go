package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"

	"cryptflow/internal/errs"
)

const (
	blockSize = aes.BlockSize
	chunkSize = 2048 * blockSize
)

// EncryptWriter encrypts everything written to it with AES-256-CBC and
// PKCS#7 padding. Close writes the final padded block; it does not close the
// underlying writer.
type EncryptWriter struct {
	w       io.Writer
	mode    cipher.BlockMode
	pending []byte
	out     []byte
	closed  bool
}

// NewEncryptWriter returns a writer that encrypts into w. km may be zeroed
// once this returns.
func NewEncryptWriter(w io.Writer, km *KeyMaterial) (*EncryptWriter, error) {
	block, err := aes.NewCipher(km.Key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &EncryptWriter{
		w:       w,
		mode:    cipher.NewCBCEncrypter(block, km.IV[:]),
		pending: make([]byte, 0, blockSize),
		out:     make([]byte, chunkSize),
	}, nil
}

func (e *EncryptWriter) Write(p []byte) (int, error) {
	if e.closed {
		return 0, errors.New("envelope: write to closed encrypt writer")
	}
	written := len(p)

	// top up a partial block first
	if len(e.pending) > 0 {
		n := copy(e.pending[len(e.pending):blockSize], p)
		e.pending = e.pending[:len(e.pending)+n]
		p = p[n:]
		if len(e.pending) < blockSize {
			return written, nil
		}
		if err := e.encrypt(e.pending); err != nil {
			return 0, err
		}
		e.pending = e.pending[:0]
	}

	for len(p) >= blockSize {
		n := min(len(p)-len(p)%blockSize, chunkSize)
		if err := e.encrypt(p[:n]); err != nil {
			return 0, err
		}
		p = p[n:]
	}

	e.pending = append(e.pending, p...)
	return written, nil
}

// Close pads and encrypts the remaining bytes. Calling Close twice is a no-op.
func (e *EncryptWriter) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	pad := blockSize - len(e.pending)
	for i := 0; i < pad; i++ {
		e.pending = append(e.pending, byte(pad))
	}
	return e.encrypt(e.pending)
}

func (e *EncryptWriter) encrypt(src []byte) error {
	dst := e.out[:len(src)]
	e.mode.CryptBlocks(dst, src)
	_, err := e.w.Write(dst)
	return err
}

// CiphertextSize returns the encrypted length of n plaintext bytes.
func CiphertextSize(n int64) int64 {
	return n - n%blockSize + blockSize
}

// decryptReader decrypts an AES-256-CBC stream, always holding back the last
// ciphertext block until EOF so the padding can be checked.
type decryptReader struct {
	r       io.Reader
	mode    cipher.BlockMode
	pending []byte
	plain   []byte
	out     []byte
	eof     bool
	err     error
}

// NewDecryptReader returns a reader that decrypts r lazily. Bad padding or a
// ciphertext that is not a whole number of blocks fails with
// errs.ErrCorruptObject.
func NewDecryptReader(r io.Reader, km *KeyMaterial) (io.Reader, error) {
	block, err := aes.NewCipher(km.Key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &decryptReader{
		r:       r,
		mode:    cipher.NewCBCDecrypter(block, km.IV[:]),
		pending: make([]byte, 0, chunkSize),
		plain:   make([]byte, chunkSize),
	}, nil
}

func (d *decryptReader) Read(p []byte) (int, error) {
	for len(d.out) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		d.fill()
	}
	n := copy(p, d.out)
	d.out = d.out[n:]
	return n, nil
}

func (d *decryptReader) fill() {
	if d.eof {
		d.err = d.finish()
		return
	}

	n, err := d.r.Read(d.pending[len(d.pending):cap(d.pending)])
	d.pending = d.pending[:len(d.pending)+n]
	switch {
	case err == io.EOF:
		d.eof = true
	case err != nil:
		d.err = err
		return
	}

	full := len(d.pending) - len(d.pending)%blockSize
	if full <= blockSize {
		return
	}
	k := full - blockSize
	d.mode.CryptBlocks(d.plain[:k], d.pending[:k])
	d.out = d.plain[:k]
	rest := copy(d.pending, d.pending[k:])
	d.pending = d.pending[:rest]
}

func (d *decryptReader) finish() error {
	if len(d.pending) != blockSize {
		return errs.New("decrypt", errs.ErrCorruptObject,
			fmt.Errorf("ciphertext is not a whole number of blocks"))
	}
	last := d.plain[:blockSize]
	d.mode.CryptBlocks(last, d.pending)
	d.pending = d.pending[:0]

	pad := int(last[blockSize-1])
	if pad == 0 || pad > blockSize {
		return errs.New("decrypt", errs.ErrCorruptObject, errors.New("invalid padding"))
	}
	for _, b := range last[blockSize-pad:] {
		if int(b) != pad {
			return errs.New("decrypt", errs.ErrCorruptObject, errors.New("invalid padding"))
		}
	}
	d.out = last[:blockSize-pad]
	return io.EOF
}
