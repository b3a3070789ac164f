package judge

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// DefaultProviderName is used when no provider is configured.
const DefaultProviderName = "openai"

// Registry resolves judge providers by case-insensitive name.
type Registry struct {
	byName   map[string]Provider
	fallback string
}

func NewRegistry(defaultProvider string) *Registry {
	fallback := providerKey(defaultProvider)
	if fallback == "" {
		fallback = DefaultProviderName
	}
	return &Registry{byName: map[string]Provider{}, fallback: fallback}
}

// Settings configures the built-in providers.
type Settings struct {
	Provider string
	Endpoint string
	Model    string
	APIKey   string
}

// NewRegistryFromSettings registers the openai SDK judge and the local
// OpenAI-compatible judge; Settings.Provider picks the default.
func NewRegistryFromSettings(settings Settings) *Registry {
	r := NewRegistry(settings.Provider)
	for _, p := range []Provider{
		NewOpenAIProvider(settings.APIKey, settings.Endpoint, settings.Model),
		NewLocalProvider(settings.Endpoint, settings.Model, settings.APIKey),
	} {
		_ = r.Register(p)
	}
	return r
}

// Register adds provider under its Name, replacing an earlier one.
func (r *Registry) Register(provider Provider) error {
	switch {
	case r == nil:
		return errors.New("judge registry is nil")
	case provider == nil:
		return errors.New("judge provider is nil")
	}
	key := providerKey(provider.Name())
	if key == "" {
		return errors.New("judge provider has an empty name")
	}
	r.byName[key] = provider
	return nil
}

// Provider returns the named provider, or the default one for an empty name.
func (r *Registry) Provider(name string) (Provider, error) {
	if r == nil {
		return nil, errors.New("judge registry is nil")
	}
	key := providerKey(name)
	if key == "" {
		key = r.fallback
	}
	if p, ok := r.byName[key]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q (have %s)", ErrProviderNotRegistered, key, strings.Join(r.ProviderNames(), ", "))
}

func (r *Registry) DefaultProvider() string {
	if r == nil {
		return ""
	}
	return r.fallback
}

// ProviderNames lists registered names in sorted order.
func (r *Registry) ProviderNames() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.byName))
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
