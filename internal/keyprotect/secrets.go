package keyprotect

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

// ErrSecretNotFound is returned when the key ring secret does not exist.
var ErrSecretNotFound = errors.New("keyprotect: key ring secret not found")

// SecretsManagerAPI is the part of the Secrets Manager client used to load
// master keys.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var _ SecretsManagerAPI = (*secretsmanager.Client)(nil)

// NewSecretsManagerAPI creates a Secrets Manager client from the default AWS
// configuration chain.
func NewSecretsManagerAPI(ctx context.Context, region string) (*secretsmanager.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// LoadSecretsManagerKeys reads master keys from a secret. A string secret
// holds the same comma separated base64 list as KEYRING_KEYS; a binary
// secret is a single raw key.
func LoadSecretsManagerKeys(ctx context.Context, api SecretsManagerAPI, secretID string) ([][]byte, error) {
	out, err := api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, secretID)
		}
		return nil, fmt.Errorf("keyprotect: get secret %s: %w", secretID, err)
	}

	if out.SecretString != nil {
		return ParseKeys(*out.SecretString)
	}
	if len(out.SecretBinary) > 0 {
		return [][]byte{out.SecretBinary}, nil
	}
	return nil, ErrNoKeys
}
