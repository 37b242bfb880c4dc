package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestChainFirstNonEmptyWins(t *testing.T) {
	v := viper.New()
	v.Set("ai.gemini.api_key", "from-config")

	env := &EnvProvider{Keys: []string{"GEMINI_API_KEY"}, Getenv: fakeEnv(map[string]string{"GEMINI_API_KEY": "from-env"})}
	chain := NewChain(env, NewConfigProvider("ai.gemini.api_key", v))

	key, source, err := chain.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
	assert.Equal(t, env.Name(), source)
}

func TestChainFallsBackInOrder(t *testing.T) {
	v := viper.New()
	v.Set("ai.gemini.api_key", "from-config")

	env := &EnvProvider{Keys: []string{"GEMINI_API_KEY"}, Getenv: fakeEnv(nil)}
	chain := NewChain(env, nil, NewConfigProvider("ai.gemini.api_key", v))

	key, source, err := chain.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)
	assert.Equal(t, "config(ai.gemini.api_key)", source)
	assert.Len(t, chain.Providers(), 2, "nil providers are skipped")
}

func TestEnvProviderAlternativeKeys(t *testing.T) {
	env := &EnvProvider{
		Keys:   []string{"GEMINI_API_KEY", "GOOGLE_AI_API_KEY"},
		Getenv: fakeEnv(map[string]string{"GEMINI_API_KEY": "   ", "GOOGLE_AI_API_KEY": "alt"}),
	}
	v, err := env.Lookup()
	require.NoError(t, err)
	assert.Equal(t, "alt", v, "blank values are skipped")
}

func TestSecretsFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".secrets.env")
	require.NoError(t, os.WriteFile(path, []byte("GEMINI_API_KEY=from-secrets\n"), 0o600))

	v, err := NewSecretsFileProvider(path, "GEMINI_API_KEY").Lookup()
	require.NoError(t, err)
	assert.Equal(t, "from-secrets", v)

	missing, err := NewSecretsFileProvider(filepath.Join(dir, "none.env"), "GEMINI_API_KEY").Lookup()
	require.NoError(t, err, "missing secrets file is not an error")
	assert.Empty(t, missing)
}

func TestChainNotFound(t *testing.T) {
	chain := NewChain(
		&EnvProvider{Keys: []string{"GEMINI_API_KEY"}, Getenv: fakeEnv(nil)},
		StaticProvider{Label: "flag"},
	)

	_, _, err := chain.Resolve()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "env(GEMINI_API_KEY)")
	assert.Contains(t, err.Error(), "flag")
}

type failingProvider struct{}

func (failingProvider) Lookup() (string, error) { return "", errors.New("vault sealed") }
func (failingProvider) Name() string            { return "vault" }

func TestChainSkipsFailingProvider(t *testing.T) {
	chain := NewChain(failingProvider{}, StaticProvider{Value: "k"})
	key, _, err := chain.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "k", key)

	chain = NewChain(failingProvider{})
	_, _, err = chain.Resolve()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "vault sealed")
}

func TestChainValidatorSkipsPlaceholders(t *testing.T) {
	notPlaceholder := func(v string) bool { return v != "your-api-key" }
	chain := NewChain(
		StaticProvider{Label: "config", Value: "your-api-key"},
		StaticProvider{Label: "secrets", Value: "real-key"},
	).WithValidator(notPlaceholder)

	key, source, err := chain.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "real-key", key)
	assert.Equal(t, "secrets", source)

	chain = NewChain(StaticProvider{Label: "config", Value: "your-api-key"}).WithValidator(notPlaceholder)
	_, _, err = chain.Resolve()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestChainPrependKeepsValidator(t *testing.T) {
	base := NewChain(StaticProvider{Label: "config", Value: "cfg-key"}).
		WithValidator(func(v string) bool { return v != "PLACEHOLDER" })

	key, source, err := base.Prepend(StaticProvider{Label: "flag", Value: "flag-key"}).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "flag-key", key)
	assert.Equal(t, "flag", source)

	key, _, err = base.Prepend(StaticProvider{Label: "flag", Value: "PLACEHOLDER"}).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "cfg-key", key)
	assert.Len(t, base.Providers(), 1, "Prepend leaves the original chain untouched")
}
