// Package hashicorpvault provides a KeySource that reads the pipeline's
// master keys from a HashiCorp Vault KV v2 secret.
package hashicorpvault

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/vault/api"

	"github.com/hengadev/auditx"
)

const (
	defaultMount      = "secret"
	defaultSecretPath = "auditx/keys"

	encryptionKeyField = "encryption_key"
	signingKeyField    = "signing_key"
)

// KeySource implements auditx.KeySource over a Vault KV v2 secret. The secret
// holds base64-encoded key material under the encryption_key and signing_key
// fields; a missing field means that capability is not provisioned.
type KeySource struct {
	client *api.Client
	mount  string
	path   string
}

// Config holds configuration for the Vault key source. Connection settings
// come from the standard VAULT_* environment variables (VAULT_ADDR,
// VAULT_TOKEN, VAULT_NAMESPACE, or VAULT_ROLE_ID/VAULT_SECRET_ID for AppRole
// login).
type Config struct {
	// Mount is the KV v2 mount point. Defaults to "secret".
	Mount string

	// SecretPath is the path of the secret under the mount. Defaults to
	// "auditx/keys".
	SecretPath string
}

// New creates a Vault-backed key source.
func New(cfg Config) (*KeySource, error) {
	config := api.DefaultConfig()
	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		config.Address = addr
	}
	config.HttpClient.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
		client.SetNamespace(namespace)
	}

	// AppRole authentication
	roleID := os.Getenv("VAULT_ROLE_ID")
	secretID := os.Getenv("VAULT_SECRET_ID")
	if roleID != "" && secretID != "" {
		data := map[string]interface{}{
			"role_id":   roleID,
			"secret_id": secretID,
		}

		resp, err := client.Logical().Write("auth/approle/login", data)
		if err != nil {
			return nil, fmt.Errorf("failed to login with AppRole: %w", err)
		}
		if resp.Auth == nil {
			return nil, fmt.Errorf("no auth info returned from AppRole login")
		}
		client.SetToken(resp.Auth.ClientToken)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = defaultMount
	}
	path := cfg.SecretPath
	if path == "" {
		path = defaultSecretPath
	}

	return &KeySource{client: client, mount: mount, path: path}, nil
}

// EncryptionKey implements auditx.KeySource.
func (v *KeySource) EncryptionKey(ctx context.Context) ([]byte, error) {
	return v.readKey(ctx, encryptionKeyField, "encryption", auditx.EncryptionKeyLength)
}

// SigningKey implements auditx.KeySource.
func (v *KeySource) SigningKey(ctx context.Context) ([]byte, error) {
	return v.readKey(ctx, signingKeyField, "signing", auditx.SigningKeyLength)
}

func (v *KeySource) readKey(ctx context.Context, field, purpose string, wantLen int) ([]byte, error) {
	secret, err := v.client.KVv2(v.mount).Get(ctx, v.path)
	if err != nil {
		return nil, fmt.Errorf("reading vault secret %s/%s: %w", v.mount, v.path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	raw, ok := secret.Data[field]
	if !ok {
		return nil, nil
	}
	encoded, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: vault field %q is not a string", auditx.ErrInvalidConfiguration, field)
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: vault field %q is not valid base64: %w", auditx.ErrInvalidConfiguration, field, err)
	}
	if len(key) != wantLen {
		return nil, auditx.NewKeyLengthError(purpose, wantLen, len(key))
	}
	return key, nil
}
