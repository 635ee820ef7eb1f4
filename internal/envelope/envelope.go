// Package envelope implements per-object envelope encryption.
//
// Each object gets a fresh AES-256 key and CBC IV. The object body is
// encrypted with them, and the key material is wrapped by a
// keyprotect.Protector and stored in the object metadata under MetadataKey.
// The wrapped payload is key (32 bytes) followed by IV (16 bytes); objects
// already in the store depend on that layout.
package envelope

import (
	"context"
	"crypto/aes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"cryptflow/internal/errs"
	"cryptflow/internal/keyprotect"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32

	// IVSize is the CBC initialisation vector length.
	IVSize = aes.BlockSize

	// MetadataKey is the object metadata entry holding the base64 wrapped key.
	MetadataKey = "encryptionkey"

	wrappedPayloadSize = KeySize + IVSize
)

// KeyMaterial is the per-object key and IV. It never leaves the process in
// the clear; call Zero once the cipher streams are built.
type KeyMaterial struct {
	Key [KeySize]byte
	IV  [IVSize]byte
}

// Zero wipes the key material.
func (km *KeyMaterial) Zero() {
	clear(km.Key[:])
	clear(km.IV[:])
}

// Cipher generates, wraps and unwraps per-object key material.
type Cipher struct {
	protector keyprotect.Protector
	rand      io.Reader
}

// NewCipher creates a Cipher that protects keys with p.
func NewCipher(p keyprotect.Protector) *Cipher {
	return NewCipherWithRand(p, rand.Reader)
}

// NewCipherWithRand is NewCipher drawing key material from r instead of
// crypto/rand.
func NewCipherWithRand(p keyprotect.Protector, r io.Reader) *Cipher {
	return &Cipher{protector: p, rand: r}
}

// Generate returns fresh random key material.
func (c *Cipher) Generate() (*KeyMaterial, error) {
	km := &KeyMaterial{}
	if _, err := io.ReadFull(c.rand, km.Key[:]); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if _, err := io.ReadFull(c.rand, km.IV[:]); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	return km, nil
}

// Wrap protects key‖iv and returns the blob to persist.
func (c *Cipher) Wrap(ctx context.Context, km *KeyMaterial) ([]byte, error) {
	payload := make([]byte, 0, wrappedPayloadSize)
	payload = append(payload, km.Key[:]...)
	payload = append(payload, km.IV[:]...)
	defer clear(payload)

	wrapped, err := c.protector.Protect(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("protect key: %w", err)
	}
	return wrapped, nil
}

// Unwrap recovers key material from a wrapped blob. A protector rejection or
// a payload that is not exactly key‖iv fails with errs.ErrKeyUnwrap.
func (c *Cipher) Unwrap(ctx context.Context, wrapped []byte) (*KeyMaterial, error) {
	payload, err := c.protector.Unprotect(ctx, wrapped)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.New("unwrapKey", errs.ErrCancelled, err)
		}
		return nil, errs.New("unwrapKey", errs.ErrKeyUnwrap, err)
	}
	defer clear(payload)

	if len(payload) != wrappedPayloadSize {
		return nil, errs.New("unwrapKey", errs.ErrKeyUnwrap,
			fmt.Errorf("unwrapped %d bytes, want %d", len(payload), wrappedPayloadSize))
	}

	km := &KeyMaterial{}
	copy(km.Key[:], payload[:KeySize])
	copy(km.IV[:], payload[KeySize:])
	return km, nil
}

// WrapMetadata wraps km and returns it as the metadata entry value.
func (c *Cipher) WrapMetadata(ctx context.Context, km *KeyMaterial) (string, error) {
	wrapped, err := c.Wrap(ctx, km)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// UnwrapMetadata reads the wrapped key from object metadata.
// Metadata keys must already be lower-cased.
func (c *Cipher) UnwrapMetadata(ctx context.Context, metadata map[string]string) (*KeyMaterial, error) {
	encoded, ok := metadata[MetadataKey]
	if !ok || encoded == "" {
		return nil, errs.New("unwrapKey", errs.ErrMissingEncryptionKey, nil)
	}
	wrapped, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errs.New("unwrapKey", errs.ErrKeyUnwrap, errors.New("wrapped key is not valid base64"))
	}
	return c.Unwrap(ctx, wrapped)
}
