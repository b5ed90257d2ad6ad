package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	values map[string]string
	calls  int
}

func (f *fakeFetcher) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.calls++
	v, ok := f.values[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, errors.New("SecretNotFound")
	}
	var resp azsecrets.GetSecretResponse
	resp.Value = &v
	return resp, nil
}

func TestVaultClient_CachesUntilTTL(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]string{"POSTGRES-MAIN-PASSWORD": "pw"}}
	v := newVaultClient(fetcher, &VaultConfig{VaultName: "kv", CacheEnabled: true, CacheTTL: time.Minute}, zap.NewNop())

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	v.cache.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		got, err := v.GetSecret(context.Background(), "POSTGRES-MAIN-PASSWORD")
		require.NoError(t, err)
		assert.Equal(t, "pw", got)
	}
	assert.Equal(t, 1, fetcher.calls)

	now = now.Add(2 * time.Minute)
	_, err := v.GetSecret(context.Background(), "POSTGRES-MAIN-PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)

	v.ClearCache()
	_, err = v.GetSecret(context.Background(), "POSTGRES-MAIN-PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.calls)
}

func TestVaultClient_NoCache(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]string{"a": "1"}}
	v := newVaultClient(fetcher, &VaultConfig{VaultName: "kv"}, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := v.GetSecret(context.Background(), "a")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, fetcher.calls)

	_, err := v.GetSecret(context.Background(), "missing")
	assert.Error(t, err)
}

func TestProvider_EnvironmentSource(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "from-env")

	p, err := NewProvider(&ProviderConfig{Source: SourceAuto, Environment: "development"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, SourceEnvironment, p.Source())

	got, err := p.GetSecretOrEnv(context.Background(), "POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	_, err = p.GetSecret(context.Background(), "UNSET_VARIABLE_FOR_TEST")
	assert.Error(t, err)
}

func TestProvider_VaultFallback(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]string{"POSTGRES-MAIN-USER": "vault-user"}}
	p := &Provider{
		source:      SourceVault,
		vaultClient: newVaultClient(fetcher, &VaultConfig{VaultName: "kv"}, zap.NewNop()),
		logger:      zap.NewNop(),
	}

	got, err := p.GetSecretOrEnv(context.Background(), "POSTGRES-MAIN-USER", "REPORTS_TEST_UNSET_USER")
	require.NoError(t, err)
	assert.Equal(t, "vault-user", got)
}

func TestResolveSource(t *testing.T) {
	assert.Equal(t, SourceEnvironment, resolveSource(SourceAuto, ""))
	assert.Equal(t, SourceVault, resolveSource(SourceAuto, "production"))
	assert.Equal(t, SourceEnvironment, resolveSource(SourceEnvironment, "production"))
}

func TestNewProvider_VaultRequiresName(t *testing.T) {
	_, err := NewProvider(&ProviderConfig{Source: SourceVault}, zap.NewNop())
	assert.Error(t, err)
}
