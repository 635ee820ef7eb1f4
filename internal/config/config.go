package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"cryptflow/internal/upload"
)

// Storage backends selectable with STORAGE_BACKEND.
const (
	BackendS3     = "s3"
	BackendMinio  = "minio"
	BackendMemory = "memory"
)

type Config struct {
	Port      string
	APIKey    string
	LogLevel  string
	LogFormat string

	// CORSAllowedOrigins is parsed from a comma separated CORS_ALLOWED_ORIGINS
	CORSAllowedOrigins []string

	StorageBackend string

	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	AWSAccessKey string
	AWSSecretKey string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// KeyringKeys is a comma separated list of base64 master keys, current first
	KeyringKeys     string
	KeyringSecretID string
	KeyPurpose      string
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		APIKey:    getEnv("API_KEY", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendS3)),

		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3Region:     getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		AWSAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "cryptflow"),
		MinioUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",

		KeyringKeys:     getEnv("KEYRING_KEYS", ""),
		KeyringSecretID: getEnv("KEYRING_SECRET_ID", ""),
		KeyPurpose:      getEnv("KEY_PURPOSE", "cryptflow/encryptionkey"),
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required for the s3 backend")
		}
	case BackendMinio:
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.KeyringKeys == "" && c.KeyringSecretID == "" {
		return errors.New("either KEYRING_KEYS or KEYRING_SECRET_ID must be set")
	}
	return nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)

	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

type TransferConfig struct {
	PartSizeMB          int64 `yaml:"part_size_mb"`
	MaxObjectSizeMB     int64 `yaml:"max_object_size_mb"`
	AbortTimeoutSeconds int   `yaml:"abort_timeout_seconds"`
}

// minPartSizeMB is the S3 minimum for every part but the last.
const minPartSizeMB = 5

// DefaultTransferConfig is used when no transfer config file exists.
// Zero MaxObjectSizeMB keeps the built-in 5 GiB + 256 byte limit.
func DefaultTransferConfig() *TransferConfig {
	return &TransferConfig{
		PartSizeMB:          minPartSizeMB,
		AbortTimeoutSeconds: int(upload.DefaultAbortTimeout / time.Second),
	}
}

func LoadTransferConfig() (*TransferConfig, error) {
	configPath := getEnv("TRANSFER_CONFIG_PATH", "transfer-config.yaml")

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultTransferConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer config: %w", err)
	}

	config := DefaultTransferConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse transfer config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer config %s: %w", configPath, err)
	}
	return config, nil
}

func (tc *TransferConfig) Validate() error {
	if tc.PartSizeMB < minPartSizeMB {
		return fmt.Errorf("part_size_mb must be at least %d, got %d", minPartSizeMB, tc.PartSizeMB)
	}
	if tc.MaxObjectSizeMB != 0 && tc.MaxObjectSizeMB < tc.PartSizeMB {
		return fmt.Errorf("max_object_size_mb (%d) must not be smaller than part_size_mb (%d)", tc.MaxObjectSizeMB, tc.PartSizeMB)
	}
	if tc.AbortTimeoutSeconds <= 0 {
		return fmt.Errorf("abort_timeout_seconds must be positive, got %d", tc.AbortTimeoutSeconds)
	}
	if parts := tc.UploadOptions().MaxParts(); parts > upload.MaxPartCount {
		return fmt.Errorf("max_object_size_mb (%d) needs %d parts of %d MB, the store allows %d",
			tc.MaxObjectSizeMB, parts, tc.PartSizeMB, upload.MaxPartCount)
	}
	return nil
}

// UploadOptions converts the transfer config into pipeline options.
func (tc *TransferConfig) UploadOptions() upload.Options {
	opts := upload.DefaultOptions()
	opts.PartSize = int(tc.PartSizeMB * 1024 * 1024)
	if tc.MaxObjectSizeMB > 0 {
		opts.MaxObjectSize = tc.MaxObjectSizeMB * 1024 * 1024
	}
	opts.AbortTimeout = time.Duration(tc.AbortTimeoutSeconds) * time.Second
	return opts
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
