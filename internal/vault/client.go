// Package vault resolves secrets from HashiCorp Vault, used to keep the
// identity provider client secret out of configuration files.
package vault

import (
	"context"
	"errors"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/benyonsports/docstore/internal/config"
	"github.com/benyonsports/docstore/internal/observability"
)

// Errors returned by secret resolution.
var (
	// ErrSecretNotFound indicates the path holds no secret.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrFieldNotFound indicates the secret exists but lacks the field.
	ErrFieldNotFound = errors.New("secret field not found")
)

// Client reads secrets from Vault.
type Client interface {
	// IsEnabled reports whether a Vault backend is configured.
	IsEnabled() bool

	// ReadKVSecret reads one string field from a KV v2 secret at the
	// given mount-relative path.
	ReadKVSecret(ctx context.Context, path, field string) (string, error)
}

// client implements Client over the Vault API.
type client struct {
	api    *vaultapi.Client
	logger observability.Logger
}

var _ Client = (*client)(nil)

// NewClient creates a Vault client from configuration. When Vault is
// disabled the returned client answers IsEnabled false and fails reads.
func NewClient(cfg config.VaultConfig, logger observability.Logger) (Client, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	if !cfg.Enabled {
		return &client{logger: logger}, nil
	}

	apiConfig := vaultapi.DefaultConfig()
	apiConfig.Address = cfg.Addr
	if timeout := cfg.Timeout.Duration(); timeout > 0 {
		apiConfig.Timeout = timeout
	}

	api, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}

	if cfg.Token != "" {
		api.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		api.SetNamespace(cfg.Namespace)
	}

	return &client{api: api, logger: logger}, nil
}

// IsEnabled reports whether a Vault backend is configured.
func (c *client) IsEnabled() bool {
	return c.api != nil
}

// ReadKVSecret reads one string field from a KV v2 secret.
func (c *client) ReadKVSecret(ctx context.Context, path, field string) (string, error) {
	if c.api == nil {
		return "", errors.New("vault is not enabled")
	}

	secret, err := c.api.KVv2("secret").Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	value, ok := secret.Data[field].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrFieldNotFound, field, path)
	}

	c.logger.Debug("resolved secret from vault", observability.String("path", path))
	return value, nil
}
