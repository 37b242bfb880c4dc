// Package credentials resolves API keys through an explicit, ordered list of
// sources. The first source returning a non-empty value wins.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrNotFound is returned when no provider in a chain has the credential.
var ErrNotFound = errors.New("credential not found")

// ErrInvalid marks a value rejected by the chain's validator.
var ErrInvalid = errors.New("credential rejected as a placeholder")

// Provider looks up a single credential.
type Provider interface {
	// Lookup returns the credential or "" when this source does not have it.
	Lookup() (string, error)
	// Name describes the source for diagnostics.
	Name() string
}

// EnvProvider reads the first non-empty variable among Keys.
type EnvProvider struct {
	Keys   []string
	Getenv func(string) string
}

// NewEnvProvider creates a provider over the given environment variables.
func NewEnvProvider(keys ...string) *EnvProvider {
	return &EnvProvider{Keys: keys, Getenv: os.Getenv}
}

// Lookup implements Provider.
func (p *EnvProvider) Lookup() (string, error) {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, k := range p.Keys {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v, nil
		}
	}
	return "", nil
}

// Name implements Provider.
func (p *EnvProvider) Name() string {
	return "env(" + strings.Join(p.Keys, ",") + ")"
}

// ConfigProvider reads a key from the loaded viper configuration.
type ConfigProvider struct {
	Key string
	v   *viper.Viper
}

// NewConfigProvider creates a provider reading key from the global viper
// instance, or from v when non-nil.
func NewConfigProvider(key string, v *viper.Viper) *ConfigProvider {
	return &ConfigProvider{Key: key, v: v}
}

// Lookup implements Provider.
func (p *ConfigProvider) Lookup() (string, error) {
	if p.v != nil {
		return strings.TrimSpace(p.v.GetString(p.Key)), nil
	}
	return strings.TrimSpace(viper.GetString(p.Key)), nil
}

// Name implements Provider.
func (p *ConfigProvider) Name() string { return "config(" + p.Key + ")" }

// SecretsFileProvider reads a key from a dotenv-formatted secrets file.
// A missing file is not an error.
type SecretsFileProvider struct {
	Path string
	Keys []string
}

// NewSecretsFileProvider creates a provider over a dotenv secrets file.
func NewSecretsFileProvider(path string, keys ...string) *SecretsFileProvider {
	return &SecretsFileProvider{Path: path, Keys: keys}
}

// Lookup implements Provider.
func (p *SecretsFileProvider) Lookup() (string, error) {
	if p.Path == "" {
		return "", nil
	}
	if _, err := os.Stat(p.Path); os.IsNotExist(err) {
		return "", nil
	}
	values, err := godotenv.Read(p.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read secrets file %s: %w", p.Path, err)
	}
	for _, k := range p.Keys {
		if v := strings.TrimSpace(values[k]); v != "" {
			return v, nil
		}
	}
	return "", nil
}

// Name implements Provider.
func (p *SecretsFileProvider) Name() string { return "secrets(" + p.Path + ")" }

// StaticProvider returns a fixed value; useful for flags and tests.
type StaticProvider struct {
	Value string
	Label string
}

// Lookup implements Provider.
func (p StaticProvider) Lookup() (string, error) { return p.Value, nil }

// Name implements Provider.
func (p StaticProvider) Name() string {
	if p.Label == "" {
		return "static"
	}
	return p.Label
}

// Chain tries providers in order.
type Chain struct {
	providers []Provider
	valid     func(string) bool
}

// NewChain builds a chain from providers, skipping nil entries.
func NewChain(providers ...Provider) *Chain {
	c := &Chain{}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// WithValidator makes Resolve skip values rejected by valid, such as
// placeholder keys left in a config file.
func (c *Chain) WithValidator(valid func(string) bool) *Chain {
	c.valid = valid
	return c
}

// Prepend returns a new chain that tries p first, keeping the validator.
func (c *Chain) Prepend(p Provider) *Chain {
	next := NewChain(append([]Provider{p}, c.providers...)...)
	next.valid = c.valid
	return next
}

// Resolve returns the first non-empty credential. Provider errors are
// collected and reported only when nothing was found.
func (c *Chain) Resolve() (string, string, error) {
	var errs []error
	for _, p := range c.providers {
		v, err := p.Lookup()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if v == "" {
			continue
		}
		if c.valid != nil && !c.valid(v) {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), ErrInvalid))
			continue
		}
		return v, p.Name(), nil
	}
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	err := fmt.Errorf("%w (tried %s)", ErrNotFound, strings.Join(names, ", "))
	if len(errs) > 0 {
		err = errors.Join(append([]error{err}, errs...)...)
	}
	return "", "", err
}

// Providers returns the chain's providers in lookup order.
func (c *Chain) Providers() []Provider {
	out := make([]Provider, len(c.providers))
	copy(out, c.providers)
	return out
}
