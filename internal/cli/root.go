// Package cli holds the cryptflow command tree. It follows the standard
// cobra layout: one file per command, each registering itself with rootCmd.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cryptflow/internal/config"
	"cryptflow/internal/download"
	"cryptflow/internal/envelope"
	"cryptflow/internal/keyprotect"
	"cryptflow/internal/s3"
	"cryptflow/internal/storage"
	"cryptflow/internal/upload"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "cryptflow",
	Short:         "Encrypted streaming file store",
	Long:          `Streams files into S3 compatible object storage with per-object envelope encryption.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree. It is called once from main. SIGINT and
// SIGTERM cancel the command context so an interrupted upload is aborted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// app is everything a command needs to move files in and out of the store.
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	backend   storage.Backend
	uploads   *upload.Service
	downloads *download.Service
}

// newBackend is swapped out in tests.
var newBackend = func(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendS3:
		return s3.NewClient(ctx, cfg.S3Region, cfg.S3Bucket, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.S3Endpoint)
	case config.BackendMinio:
		return storage.NewMinioBackend(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	case config.BackendMemory:
		return storage.NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

func newApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	log.SetOutput(cmd.ErrOrStderr())

	transferConfig, err := config.LoadTransferConfig()
	if err != nil {
		return nil, err
	}

	protector, err := newProtector(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up key protection: %w", err)
	}
	cipher := envelope.NewCipher(protector)

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up %s backend: %w", cfg.StorageBackend, err)
	}

	uploads, err := upload.NewService(backend, cipher, transferConfig.UploadOptions(), log)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"backend":   cfg.StorageBackend,
		"part_size": transferConfig.PartSizeMB,
	}).Debug("storage configured")

	return &app{
		cfg:       cfg,
		log:       log,
		backend:   backend,
		uploads:   uploads,
		downloads: download.NewService(backend, cipher, log),
	}, nil
}

func newProtector(ctx context.Context, cfg *config.Config) (*keyprotect.KeyRing, error) {
	if cfg.KeyringKeys != "" {
		keys, err := keyprotect.ParseKeys(cfg.KeyringKeys)
		if err != nil {
			return nil, err
		}
		return keyprotect.NewKeyRing(cfg.KeyPurpose, keys...)
	}

	api, err := keyprotect.NewSecretsManagerAPI(ctx, cfg.S3Region)
	if err != nil {
		return nil, err
	}
	keys, err := keyprotect.LoadSecretsManagerKeys(ctx, api, cfg.KeyringSecretID)
	if err != nil {
		return nil, err
	}
	return keyprotect.NewKeyRing(cfg.KeyPurpose, keys...)
}
