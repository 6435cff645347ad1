package providers

import (
	"context"
	"testing"

	"hermes/pkg/errors"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	provider := &fakeProvider{name: "alpha"}

	if err := registry.Register(Registration{Provider: provider, Enabled: true, Priority: 1}); err != nil {
		t.Fatalf("failed to register provider: %v", err)
	}

	got, ok := registry.Get("alpha")
	if !ok {
		t.Fatal("expected provider to be present")
	}
	if got.Name() != "alpha" {
		t.Fatalf("unexpected provider: %s", got.Name())
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Registration{Provider: &fakeProvider{name: "alpha"}, Enabled: true}); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	err := registry.Register(Registration{Provider: &fakeProvider{name: "alpha"}, Enabled: true})
	if !errors.Is(err, errors.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRegistryRejectsNilProvider(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register(Registration{Provider: nil, Enabled: true})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRegistryDisabledBehavesLikeUnknown(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Registration{Provider: &fakeProvider{name: "alpha"}, Enabled: false}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, ok := registry.Get("alpha"); ok {
		t.Fatal("disabled provider must be invisible to Get")
	}

	_, err := registry.Lookup("alpha")
	if !errors.Is(err, errors.ErrProviderNotRegistered) {
		t.Fatalf("expected ErrProviderNotRegistered, got %v", err)
	}

	_, err = registry.Lookup("never-registered")
	if !errors.Is(err, errors.ErrProviderNotRegistered) {
		t.Fatalf("expected identical error for unknown name, got %v", err)
	}
}

func TestRegistryPrimaryPicksLowestPriority(t *testing.T) {
	registry := NewRegistry()
	mustRegister(t, registry, &fakeProvider{name: "slow"}, true, 10)
	mustRegister(t, registry, &fakeProvider{name: "fast"}, true, 1)
	mustRegister(t, registry, &fakeProvider{name: "disabled-best"}, false, 0)

	primary, ok := registry.Primary()
	if !ok {
		t.Fatal("expected a primary provider")
	}
	if primary.Name() != "fast" {
		t.Fatalf("expected fast to be primary, got %s", primary.Name())
	}
}

func TestRegistryPrimaryTieBreaksOnName(t *testing.T) {
	registry := NewRegistry()
	mustRegister(t, registry, &fakeProvider{name: "bravo"}, true, 1)
	mustRegister(t, registry, &fakeProvider{name: "alpha"}, true, 1)

	primary, ok := registry.Primary()
	if !ok {
		t.Fatal("expected a primary provider")
	}
	if primary.Name() != "alpha" {
		t.Fatalf("expected alpha on tie, got %s", primary.Name())
	}
}

func TestRegistryPrimaryEmptyWhenAllDisabled(t *testing.T) {
	registry := NewRegistry()
	mustRegister(t, registry, &fakeProvider{name: "alpha"}, false, 1)

	if _, ok := registry.Primary(); ok {
		t.Fatal("expected no primary when every provider is disabled")
	}
}

func TestRegistryUnregisterUnknownIsNoOp(t *testing.T) {
	registry := NewRegistry()
	mustRegister(t, registry, &fakeProvider{name: "alpha"}, true, 1)

	registry.Unregister("ghost")
	registry.Unregister("alpha")

	if _, ok := registry.Get("alpha"); ok {
		t.Fatal("expected alpha to be gone after unregister")
	}
}

func TestRegistryAllReportsCapabilities(t *testing.T) {
	registry := NewRegistry()
	mustRegister(t, registry, &fakeProvider{name: "plain"}, true, 2)
	mustRegister(t, registry, &fakeStreamingProvider{fakeProvider: fakeProvider{name: "streamy"}}, false, 1)

	infos := registry.All()
	if len(infos) != 2 {
		t.Fatalf("expected 2 registrations, got %d", len(infos))
	}

	// Sorted by priority: streamy first despite being disabled
	if infos[0].Name != "streamy" || !infos[0].SupportsStreaming || infos[0].Enabled {
		t.Fatalf("unexpected first info: %+v", infos[0])
	}
	if infos[1].Name != "plain" || infos[1].SupportsStreaming || infos[1].SupportsVision {
		t.Fatalf("unexpected second info: %+v", infos[1])
	}
}

func TestRegistryReset(t *testing.T) {
	registry := NewRegistry()
	mustRegister(t, registry, &fakeProvider{name: "alpha"}, true, 1)

	registry.Reset()

	if len(registry.All()) != 0 {
		t.Fatal("expected empty registry after reset")
	}
	if err := registry.Register(Registration{Provider: &fakeProvider{name: "alpha"}, Enabled: true}); err != nil {
		t.Fatalf("re-register after reset failed: %v", err)
	}
}

func TestRegistryListModelsBestEffort(t *testing.T) {
	registry := NewRegistry()
	mustRegister(t, registry, &fakeProvider{name: "good", models: []ModelInfo{{Name: "m1"}}}, true, 1)
	mustRegister(t, registry, &fakeProvider{name: "broken", listErr: errors.ErrProviderTransport}, true, 2)
	mustRegister(t, registry, &fakeProvider{name: "hidden"}, false, 3)

	result := registry.ListModels(context.Background())

	if len(result) != 2 {
		t.Fatalf("expected 2 providers in listing, got %d", len(result))
	}
	if len(result["good"]) != 1 {
		t.Fatalf("expected 1 model for good, got %d", len(result["good"]))
	}
	if models, ok := result["broken"]; !ok || len(models) != 0 {
		t.Fatalf("expected empty slice for broken provider, got %v (present=%v)", models, ok)
	}
	if _, ok := result["hidden"]; ok {
		t.Fatal("disabled provider must not appear in listing")
	}
}

func mustRegister(t *testing.T, registry *Registry, provider Provider, enabled bool, priority int) {
	t.Helper()
	if err := registry.Register(Registration{Provider: provider, Enabled: enabled, Priority: priority}); err != nil {
		t.Fatalf("failed to register %s: %v", provider.Name(), err)
	}
}

// fakeProvider is a minimal in-memory Provider for registry tests.
type fakeProvider struct {
	name      string
	models    []ModelInfo
	listErr   error
	textCalls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GenerateText(_ context.Context, req TextRequest) (*TextResult, error) {
	f.textCalls++
	return &TextResult{Provider: f.name, Model: req.Model, Text: "ok"}, nil
}

func (f *fakeProvider) GenerateStructured(_ context.Context, req StructuredRequest) (*StructuredResult, error) {
	return &StructuredResult{Provider: f.name, Model: req.Model, Data: map[string]interface{}{}, Valid: true}, nil
}

func (f *fakeProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.models, nil
}

// fakeStreamingProvider adds the streaming capability to fakeProvider.
type fakeStreamingProvider struct {
	fakeProvider
	events []StreamEvent
}

func (f *fakeStreamingProvider) GenerateTextStream(_ context.Context, _ TextRequest) (*Stream, error) {
	ch := make(chan StreamEvent, len(f.events))
	for _, event := range f.events {
		ch <- event
	}
	close(ch)
	return NewStream(ch), nil
}
