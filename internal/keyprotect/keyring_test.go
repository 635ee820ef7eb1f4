package keyprotect

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, MasterKeySize)
}

func TestKeyRing_RoundTrip(t *testing.T) {
	kr, err := NewKeyRing("encryptionkey", testKey(1))
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0xAB}, 48)
	blob, err := kr.Protect(context.Background(), payload)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), string(payload))

	got, err := kr.Unprotect(context.Background(), blob)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestKeyRing_FreshNoncePerCall(t *testing.T) {
	kr, err := NewKeyRing("p", testKey(1))
	require.NoError(t, err)

	a, err := kr.Protect(context.Background(), []byte("same"))
	require.NoError(t, err)
	b, err := kr.Protect(context.Background(), []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestKeyRing_RejectsWrongContext(t *testing.T) {
	ctx := context.Background()
	kr, err := NewKeyRing("encryptionkey", testKey(1))
	require.NoError(t, err)
	blob, err := kr.Protect(ctx, []byte("secret key material"))
	require.NoError(t, err)

	t.Run("different key", func(t *testing.T) {
		other, err := NewKeyRing("encryptionkey", testKey(2))
		require.NoError(t, err)
		_, err = other.Unprotect(ctx, blob)
		assert.ErrorIs(t, err, ErrUnknownKey)
	})

	t.Run("different purpose", func(t *testing.T) {
		other, err := NewKeyRing("thumbnails", testKey(1))
		require.NoError(t, err)
		_, err = other.Unprotect(ctx, blob)
		assert.ErrorIs(t, err, ErrInvalidBlob)
	})

	t.Run("tampered", func(t *testing.T) {
		tampered := append([]byte(nil), blob...)
		tampered[len(tampered)-1] ^= 0x01
		_, err := kr.Unprotect(ctx, tampered)
		assert.ErrorIs(t, err, ErrInvalidBlob)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := kr.Unprotect(ctx, blob[:headerSize])
		assert.ErrorIs(t, err, ErrInvalidBlob)
	})

	t.Run("bad version", func(t *testing.T) {
		bad := append([]byte(nil), blob...)
		bad[0] = 9
		_, err := kr.Unprotect(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidBlob)
	})
}

func TestKeyRing_Rotation(t *testing.T) {
	ctx := context.Background()
	old, err := NewKeyRing("p", testKey(1))
	require.NoError(t, err)
	blob, err := old.Protect(ctx, []byte("payload"))
	require.NoError(t, err)

	rotated, err := NewKeyRing("p", testKey(2), testKey(1))
	require.NoError(t, err)

	got, err := rotated.Unprotect(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	fresh, err := rotated.Protect(ctx, []byte("payload"))
	require.NoError(t, err)
	fp := Fingerprint(testKey(2))
	assert.Equal(t, fp[:], fresh[1:1+fingerprintSize])
}

func TestNewKeyRing_Validation(t *testing.T) {
	_, err := NewKeyRing("p")
	assert.ErrorIs(t, err, ErrNoKeys)

	_, err = NewKeyRing("p", []byte("short"))
	assert.Error(t, err)
}

func TestKeyRing_CancelledContext(t *testing.T) {
	kr, err := NewKeyRing("p", testKey(1))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = kr.Protect(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseKeys(t *testing.T) {
	k1, k2 := testKey(1), testKey(2)

	keys, err := ParseKeys(EncodeKey(k1) + ", " + EncodeKey(k2) + ",")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{k1, k2}, keys)

	_, err = ParseKeys("  ")
	assert.ErrorIs(t, err, ErrNoKeys)

	_, err = ParseKeys("not base64!")
	assert.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)

	assert.Len(t, a, MasterKeySize)
	assert.NotEqual(t, a, b)
}

type mockSecretsManager struct {
	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return m.GetSecretValueFunc(ctx, params)
}

func TestLoadSecretsManagerKeys(t *testing.T) {
	k1 := testKey(7)
	secret := EncodeKey(k1)

	tests := []struct {
		name    string
		output  *secretsmanager.GetSecretValueOutput
		err     error
		want    [][]byte
		wantErr error
	}{
		{
			name:   "string secret",
			output: &secretsmanager.GetSecretValueOutput{SecretString: &secret},
			want:   [][]byte{k1},
		},
		{
			name:   "binary secret",
			output: &secretsmanager.GetSecretValueOutput{SecretBinary: k1},
			want:   [][]byte{k1},
		},
		{
			name:    "empty secret",
			output:  &secretsmanager.GetSecretValueOutput{},
			wantErr: ErrNoKeys,
		},
		{
			name:    "not found",
			err:     &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "not found"},
			wantErr: ErrSecretNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			api := &mockSecretsManager{
				GetSecretValueFunc: func(_ context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
					gotID = *params.SecretId
					return tt.output, tt.err
				},
			}

			keys, err := LoadSecretsManagerKeys(context.Background(), api, "cryptflow/keyring")
			assert.Equal(t, "cryptflow/keyring", gotID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestLoadSecretsManagerKeys_OtherError(t *testing.T) {
	api := &mockSecretsManager{
		GetSecretValueFunc: func(context.Context, *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	_, err := LoadSecretsManagerKeys(context.Background(), api, "id")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSecretNotFound)
}
