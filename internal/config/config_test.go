package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptflow/internal/upload"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "STORAGE_BACKEND", "S3_REGION", "KEY_PURPOSE", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendS3, cfg.StorageBackend)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "cryptflow/encryptionkey", cfg.KeyPurpose)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "MINIO")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("KEYRING_KEYS", "abc")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendMinio, cfg.StorageBackend)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, "abc", cfg.KeyringKeys)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("API_KEY=from-dotenv\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("API_KEY", "")
	// godotenv does not override variables that are already set, even empty ones
	require.NoError(t, os.Unsetenv("API_KEY"))

	cfg := Load()
	assert.Equal(t, "from-dotenv", cfg.APIKey)
	require.NoError(t, os.Unsetenv("API_KEY"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"s3 ok", Config{StorageBackend: BackendS3, S3Bucket: "b", KeyringKeys: "k"}, false},
		{"s3 missing bucket", Config{StorageBackend: BackendS3, KeyringKeys: "k"}, true},
		{"minio missing creds", Config{StorageBackend: BackendMinio, KeyringKeys: "k"}, true},
		{"memory with secret id", Config{StorageBackend: BackendMemory, KeyringSecretID: "id"}, false},
		{"no keys", Config{StorageBackend: BackendMemory}, true},
		{"unknown backend", Config{StorageBackend: "ftp", KeyringKeys: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := &Config{LogLevel: "debug", LogFormat: "json"}
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = (&Config{LogLevel: "loud"}).NewLogger()
	assert.Error(t, err)
}

func TestLoadTransferConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TRANSFER_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	tc, err := LoadTransferConfig()
	require.NoError(t, err)
	assert.Equal(t, upload.DefaultOptions(), tc.UploadOptions())
}

func TestLoadTransferConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transfer.yaml")
	content := "part_size_mb: 8\nmax_object_size_mb: 1024\nabort_timeout_seconds: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("TRANSFER_CONFIG_PATH", path)

	tc, err := LoadTransferConfig()
	require.NoError(t, err)

	opts := tc.UploadOptions()
	assert.Equal(t, 8*1024*1024, opts.PartSize)
	assert.Equal(t, int64(1024*1024*1024), opts.MaxObjectSize)
	assert.Equal(t, 10*time.Second, opts.AbortTimeout)
	assert.Equal(t, 128, opts.MaxParts())
}

func TestLoadTransferConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"part too small", "part_size_mb: 1\n"},
		{"max below part", "part_size_mb: 10\nmax_object_size_mb: 5\n"},
		{"bad timeout", "abort_timeout_seconds: 0\n"},
		{"more parts than the store allows", "part_size_mb: 5\nmax_object_size_mb: 100000\n"},
		{"not yaml", "part_size_mb: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "transfer.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			t.Setenv("TRANSFER_CONFIG_PATH", path)

			_, err := LoadTransferConfig()
			assert.Error(t, err)
		})
	}
}

func TestTransferConfig_PartCountLimit(t *testing.T) {
	tc := DefaultTransferConfig()
	tc.MaxObjectSizeMB = 5 * upload.MaxPartCount
	require.NoError(t, tc.Validate())
	assert.Equal(t, upload.MaxPartCount, tc.UploadOptions().MaxParts())

	tc.MaxObjectSizeMB++
	assert.ErrorContains(t, tc.Validate(), "parts")

	tc.PartSizeMB = 6
	assert.NoError(t, tc.Validate())
}
