package judge

import (
	"context"
	"errors"
	"testing"
)

type namedProvider struct {
	name string
}

func (p namedProvider) Name() string { return p.name }

func (p namedProvider) Judge(context.Context, Request) (*Verdict, error) {
	return &Verdict{SameStory: true, Confidence: 1, ProviderName: p.name}, nil
}

func TestRegistryResolvesDefaultAndNamedProviders(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(" Stub ")
	if err := registry.Register(namedProvider{name: "stub"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Register(namedProvider{name: "other"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	provider, err := registry.Provider("")
	if err != nil {
		t.Fatalf("Provider failed: %v", err)
	}
	if provider.Name() != "stub" {
		t.Fatalf("unexpected default provider: %s", provider.Name())
	}

	provider, err = registry.Provider("OTHER")
	if err != nil {
		t.Fatalf("Provider failed: %v", err)
	}
	if provider.Name() != "other" {
		t.Fatalf("unexpected named provider: %s", provider.Name())
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	t.Parallel()

	registry := NewRegistryFromSettings(Settings{Provider: "local"})
	if names := registry.ProviderNames(); len(names) != 2 || names[0] != "local" || names[1] != "openai" {
		t.Fatalf("unexpected provider names: %v", names)
	}
	if _, err := registry.Provider("anthropic"); !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("expected ErrProviderNotRegistered, got %v", err)
	}
	if err := registry.Register(nil); err == nil {
		t.Fatalf("expected nil provider registration to fail")
	}
}
