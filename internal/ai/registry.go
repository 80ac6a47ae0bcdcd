package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Binding is everything one request needs to reach a vendor: the resolved
// credential travels here explicitly rather than living in a shared client.
type Binding struct {
	Model           string
	BaseURL         string
	APIKey          string
	Headers         map[string]string
	MaxOutputTokens int
}

type ProviderFactory func(ctx context.Context, b Binding) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, b Binding) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, b)
}

// NewDefaultRegistry registers every known provider. The wire protocol is
// chosen here, once per provider; callers never branch on vendor again.
// The http client carries no credentials and is shared.
func NewDefaultRegistry(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{}
	}
	r := NewRegistry()
	for _, info := range providers {
		r.Register(info.Name, wireFactory(info, client))
	}
	return r
}

func wireFactory(info ProviderInfo, client *http.Client) ProviderFactory {
	switch info.Wire {
	case WireAnthropic:
		return func(_ context.Context, b Binding) (Provider, error) {
			return NewAnthropicProvider(b, client), nil
		}
	case WireGoogle:
		return func(_ context.Context, b Binding) (Provider, error) {
			return NewGoogleProvider(b, client), nil
		}
	case WireOllama:
		return func(_ context.Context, b Binding) (Provider, error) {
			return NewOllamaProvider(b, client), nil
		}
	default:
		name := info.Name
		return func(_ context.Context, b Binding) (Provider, error) {
			return NewOpenAIProvider(name, b, client), nil
		}
	}
}
