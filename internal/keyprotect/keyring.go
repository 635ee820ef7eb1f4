// Package keyprotect wraps and unwraps per-object data keys.
//
// The upload and download pipelines only see the Protector interface. The
// implementation shipped here is a local key ring: every master key derives a
// purpose-bound sealing key with HKDF-SHA256, and wrapped blobs are sealed
// with XChaCha20-Poly1305. Master keys are loaded from the environment or
// from AWS Secrets Manager.
//
// Wrapped blob layout:
//
//	version (1) | key fingerprint (4) | nonce (24) | ciphertext + tag
package keyprotect

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Protector is the key protection service.
// Unprotect(Protect(x)) == x; Unprotect fails on tampered input or when the
// blob was protected under a different key or purpose.
type Protector interface {
	Protect(ctx context.Context, plaintext []byte) ([]byte, error)
	Unprotect(ctx context.Context, protected []byte) ([]byte, error)
}

const (
	// MasterKeySize is the minimum length of a master key.
	MasterKeySize = 32

	blobVersion     = 1
	fingerprintSize = 4
	headerSize      = 1 + fingerprintSize + chacha20poly1305.NonceSizeX
)

var (
	// ErrNoKeys is returned when a key ring is built without master keys.
	ErrNoKeys = errors.New("keyprotect: no master keys configured")

	// ErrUnknownKey is returned when a blob was protected by a key that is not
	// in the ring.
	ErrUnknownKey = errors.New("keyprotect: blob protected by unknown key")

	// ErrInvalidBlob is returned for truncated, tampered or foreign blobs.
	ErrInvalidBlob = errors.New("keyprotect: invalid protected blob")
)

type ringKey struct {
	fingerprint [fingerprintSize]byte
	aead        cipher.AEAD
}

// KeyRing is a Protector over one or more master keys. The first key is
// current and protects new blobs; the rest are only used to unprotect, which
// allows rotation without rewriting stored objects.
type KeyRing struct {
	purpose []byte
	keys    []ringKey
	rand    io.Reader
}

var _ Protector = (*KeyRing)(nil)

// NewKeyRing derives the sealing keys for purpose from the master keys.
func NewKeyRing(purpose string, masterKeys ...[]byte) (*KeyRing, error) {
	if len(masterKeys) == 0 {
		return nil, ErrNoKeys
	}

	kr := &KeyRing{purpose: []byte(purpose), rand: rand.Reader}
	for i, master := range masterKeys {
		if len(master) < MasterKeySize {
			return nil, fmt.Errorf("keyprotect: master key %d is %d bytes, need at least %d", i, len(master), MasterKeySize)
		}

		subkey := make([]byte, chacha20poly1305.KeySize)
		if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, kr.purpose), subkey); err != nil {
			return nil, fmt.Errorf("keyprotect: derive key %d: %w", i, err)
		}
		aead, err := chacha20poly1305.NewX(subkey)
		if err != nil {
			return nil, fmt.Errorf("keyprotect: init cipher %d: %w", i, err)
		}

		kr.keys = append(kr.keys, ringKey{fingerprint: Fingerprint(master), aead: aead})
	}
	return kr, nil
}

// Protect seals plaintext under the current key.
func (kr *KeyRing) Protect(ctx context.Context, plaintext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current := kr.keys[0]

	out := make([]byte, headerSize, headerSize+len(plaintext)+current.aead.Overhead())
	out[0] = blobVersion
	copy(out[1:], current.fingerprint[:])
	nonce := out[1+fingerprintSize : headerSize]
	if _, err := io.ReadFull(kr.rand, nonce); err != nil {
		return nil, fmt.Errorf("keyprotect: generate nonce: %w", err)
	}

	return current.aead.Seal(out, nonce, plaintext, kr.purpose), nil
}

// Unprotect opens a blob produced by Protect with any key of the ring.
func (kr *KeyRing) Unprotect(ctx context.Context, protected []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(protected) < headerSize+chacha20poly1305.Overhead || protected[0] != blobVersion {
		return nil, ErrInvalidBlob
	}

	fp := protected[1 : 1+fingerprintSize]
	for _, k := range kr.keys {
		if !bytes.Equal(k.fingerprint[:], fp) {
			continue
		}
		plaintext, err := k.aead.Open(nil, protected[1+fingerprintSize:headerSize], protected[headerSize:], kr.purpose)
		if err != nil {
			return nil, ErrInvalidBlob
		}
		return plaintext, nil
	}
	return nil, ErrUnknownKey
}

// Fingerprint identifies a master key without revealing it.
func Fingerprint(master []byte) [fingerprintSize]byte {
	sum := blake2b.Sum256(master)
	var fp [fingerprintSize]byte
	copy(fp[:], sum[:fingerprintSize])
	return fp
}

// GenerateKey returns a fresh random master key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, MasterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("keyprotect: generate key: %w", err)
	}
	return key, nil
}

// EncodeKey renders a master key the way ParseKeys reads it.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// ParseKeys decodes a comma separated list of base64 master keys, current
// key first. Blank entries are skipped.
func ParseKeys(s string) ([][]byte, error) {
	var keys [][]byte
	for i, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, err := base64.StdEncoding.DecodeString(field)
		if err != nil {
			return nil, fmt.Errorf("keyprotect: key %d is not valid base64: %w", i, err)
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	return keys, nil
}
