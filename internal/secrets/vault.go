package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"go.uber.org/zap"
)

// secretFetcher is the part of *azsecrets.Client the vault client uses
type secretFetcher interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// VaultClient reads secrets from Azure Key Vault with an optional TTL cache.
// Safe for concurrent use.
type VaultClient struct {
	client    secretFetcher
	vaultName string
	logger    *zap.Logger
	cache     *secretCache
}

// VaultConfig holds configuration for the vault client
type VaultConfig struct {
	VaultName    string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NewVaultClient creates a new Azure Key Vault client.
// Authentication uses DefaultAzureCredential: environment variables, managed
// identity or the Azure CLI login.
func NewVaultClient(cfg *VaultConfig, logger *zap.Logger) (*VaultClient, error) {
	if cfg.VaultName == "" {
		return nil, fmt.Errorf("vault name is required")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", cfg.VaultName)
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	logger.Info("Azure Key Vault client initialized",
		zap.String("vault_url", vaultURL),
		zap.Bool("cache_enabled", cfg.CacheEnabled),
	)

	return newVaultClient(client, cfg, logger), nil
}

func newVaultClient(client secretFetcher, cfg *VaultConfig, logger *zap.Logger) *VaultClient {
	v := &VaultClient{
		client:    client,
		vaultName: cfg.VaultName,
		logger:    logger,
	}
	if cfg.CacheEnabled {
		ttl := cfg.CacheTTL
		if ttl == 0 {
			ttl = 5 * time.Minute
		}
		v.cache = newSecretCache(ttl)
	}
	return v
}

// GetSecret retrieves the latest version of a secret
func (v *VaultClient) GetSecret(ctx context.Context, secretName string) (string, error) {
	if value, ok := v.cache.get(secretName); ok {
		return value, nil
	}

	resp, err := v.client.GetSecret(ctx, secretName, "", nil)
	if err != nil {
		v.logger.Error("Failed to get secret from Key Vault",
			zap.String("secret_name", secretName),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to get secret '%s': %w", secretName, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret '%s' has no value", secretName)
	}

	v.cache.put(secretName, *resp.Value)
	return *resp.Value, nil
}

// ClearCache drops all cached secrets
func (v *VaultClient) ClearCache() {
	v.cache.clear()
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// secretCache is a mutex-guarded TTL map. A nil cache stores nothing.
type secretCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedSecret
}

func newSecretCache(ttl time.Duration) *secretCache {
	return &secretCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedSecret),
	}
}

func (c *secretCache) get(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return "", false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, name)
		return "", false
	}
	return entry.value, true
}

func (c *secretCache) put(name, value string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = cachedSecret{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *secretCache) clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedSecret)
}
