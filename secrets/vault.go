// Package secrets reads credentials from HashiCorp Vault.
package secrets

import (
	"context"
	"errors"
	"fmt"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"
)

// ErrSecretNotFound is returned when the path or field does not exist
var ErrSecretNotFound = errors.New("secret not found")

// DefaultMount is the KV v2 mount used when none is configured
const DefaultMount = "secret"

// GeminiPath holds the Gemini API key under field "api_key"
const GeminiPath = "hr-policy-advisor/gemini"

// KVGetter reads a KV v2 secret. *vault.KVv2 implements it.
type KVGetter interface {
	Get(ctx context.Context, secretPath string) (*vault.KVSecret, error)
}

// Reader reads secrets by path
type Reader interface {
	Read(ctx context.Context, path string) (map[string]any, error)
}

// VaultReader reads KV v2 secrets
type VaultReader struct {
	kv     KVGetter
	logger zerolog.Logger
}

// NewVaultReader connects to address with token and reads from mount
func NewVaultReader(address, token, mount string, logger zerolog.Logger) (*VaultReader, error) {
	cfg := vault.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}
	if mount == "" {
		mount = DefaultMount
	}

	logger.Info().Str("address", cfg.Address).Str("mount", mount).Msg("Vault client configured")
	return NewVaultReaderWith(client.KVv2(mount), logger), nil
}

// NewVaultReaderWith wraps an existing KV v2 getter
func NewVaultReaderWith(kv KVGetter, logger zerolog.Logger) *VaultReader {
	return &VaultReader{kv: kv, logger: logger}
}

// Read returns the data of the latest version at path
func (r *VaultReader) Read(ctx context.Context, path string) (map[string]any, error) {
	secret, err := r.kv.Get(ctx, path)
	if errors.Is(err, vault.ErrSecretNotFound) {
		r.logger.Warn().Str("path", path).Msg("Secret not found")
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrSecretNotFound
	}
	return secret.Data, nil
}

var _ Reader = (*VaultReader)(nil)

// String reads one string field of the secret at path
func String(ctx context.Context, r Reader, path, field string) (string, error) {
	data, err := r.Read(ctx, path)
	if err != nil {
		return "", err
	}
	v, ok := data[field].(string)
	if !ok || v == "" {
		return "", ErrSecretNotFound
	}
	return v, nil
}

// GeminiAPIKey reads the Gemini key from Vault, falling back to the given
// value when Vault has none. A nil reader returns the fallback.
func GeminiAPIKey(ctx context.Context, r Reader, fallback string) (string, error) {
	if r == nil {
		return fallback, nil
	}
	key, err := String(ctx, r, GeminiPath, "api_key")
	if errors.Is(err, ErrSecretNotFound) {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	return key, nil
}
