package cryptoutils

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/tdf-pipeline/interfaces"
)

// FilePrivateKeyProvider reads the signing key from a PEM file once and caches it.
type FilePrivateKeyProvider struct {
	path string

	mu  sync.Mutex
	key crypto.PrivateKey
}

// NewFilePrivateKeyProvider creates a provider for the PEM file at path.
func NewFilePrivateKeyProvider(path string) *FilePrivateKeyProvider {
	return &FilePrivateKeyProvider{path: path}
}

// PrivateKey returns interfaces.ErrKeyNotFound when the file does not exist.
func (p *FilePrivateKeyProvider) PrivateKey(_ context.Context) (crypto.PrivateKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key != nil {
		return p.key, nil
	}

	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrKeyNotFound, p.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	key, err := PrivateKeyPEM(data).GetPrivateKey()
	if err != nil {
		return nil, err
	}
	p.key = key
	return key, nil
}

// DefaultVaultField is the secret field holding the PEM key when none is given.
const DefaultVaultField = "private_key"

// VaultPrivateKeyProvider reads the signing key from a Vault KV v2 secret.
type VaultPrivateKeyProvider struct {
	client    *api.Client
	mountPath string
	dataPath  string
	field     string
	log       *slog.Logger

	mu  sync.Mutex
	key crypto.PrivateKey
}

// NewVaultPrivateKeyProvider creates a provider reading <mountPath>/data/<dataPath>
// from the Vault server at address. The token is taken from VAULT_TOKEN.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: secret path within the mount (e.g. "tdf/signing")
//   - field: secret field holding the PEM key, DefaultVaultField when empty
func NewVaultPrivateKeyProvider(address, mountPath, dataPath, field string, log *slog.Logger) (*VaultPrivateKeyProvider, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if field == "" {
		field = DefaultVaultField
	}

	return &VaultPrivateKeyProvider{
		client:    client,
		mountPath: strings.Trim(mountPath, "/"),
		dataPath:  strings.Trim(dataPath, "/"),
		field:     field,
		log:       log,
	}, nil
}

// PrivateKey fetches and caches the key. A missing secret or field yields
// interfaces.ErrKeyNotFound.
func (p *VaultPrivateKeyProvider) PrivateKey(ctx context.Context) (crypto.PrivateKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key != nil {
		return p.key, nil
	}

	path := fmt.Sprintf("%s/data/%s", p.mountPath, p.dataPath)
	secret, err := p.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		p.log.Error("Failed to read signing key from Vault", slog.String("path", path), "err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: vault secret %s", interfaces.ErrKeyNotFound, path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}

	content, ok := data[p.field]
	if !ok {
		return nil, fmt.Errorf("%w: field %q of vault secret %s", interfaces.ErrKeyNotFound, p.field, path)
	}
	pemString, ok := content.(string)
	if !ok {
		return nil, fmt.Errorf("invalid content format in Vault data")
	}

	key, err := PrivateKeyPEM(pemString).GetPrivateKey()
	if err != nil {
		return nil, err
	}

	p.log.Info("Loaded signing key from Vault", slog.String("path", path))
	p.key = key
	return key, nil
}

// PrivateKeyProviderFor creates a provider from a key URI:
//
//	file:///path/key.pem
//	vault://host:8200/<mount>/<path>?field=<field>[&insecure=true]
//
// insecure selects plain HTTP for the Vault connection.
func PrivateKeyProviderFor(uri string, log *slog.Logger) (interfaces.PrivateKeyProvider, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file":
		if parsed.Path == "" {
			return nil, fmt.Errorf("%w: empty file path", interfaces.ErrInvalidLocationURI)
		}
		return NewFilePrivateKeyProvider(parsed.Path), nil

	case "vault":
		mount, dataPath, _ := strings.Cut(strings.TrimPrefix(parsed.Path, "/"), "/")
		if parsed.Host == "" || mount == "" || dataPath == "" {
			return nil, fmt.Errorf("%w: expected vault://host/<mount>/<path>", interfaces.ErrInvalidLocationURI)
		}

		scheme := "https"
		if parsed.Query().Get("insecure") == "true" {
			scheme = "http"
		}
		return NewVaultPrivateKeyProvider(scheme+"://"+parsed.Host, mount, dataPath, parsed.Query().Get("field"), log)

	default:
		return nil, fmt.Errorf("%w: unsupported private key URI %q", interfaces.ErrInvalidLocationURI, uri)
	}
}
