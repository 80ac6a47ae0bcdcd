package ai

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"go.uber.org/zap"
)

type CredentialSource string

const (
	SourceUser CredentialSource = "user"
	SourceEnv  CredentialSource = "env"
)

type Credential struct {
	Key    string
	Source CredentialSource
}

// CredentialResolver finds a usable key for (provider, user). userID 0 means
// no user context. A missing key is (Credential{}, false, nil), not an error.
type CredentialResolver interface {
	Resolve(ctx context.Context, provider string, userID uint64) (Credential, bool, error)
	IsConfigured(ctx context.Context, provider string, userID uint64) bool
}

// Endpoint is the per-provider, credential-free part of a binding.
type Endpoint struct {
	BaseURL string
	Headers map[string]string
}

// Client is a provider handle bound to one model and one resolved credential.
// It is built per request and must not be shared across users.
type Client struct {
	Model  Model
	Info   ProviderInfo
	Source CredentialSource
	Provider
	Stream StreamProvider
}

type Factory struct {
	catalog       *Catalog
	registry      *Registry
	resolver      CredentialResolver
	endpoints     map[string]Endpoint
	fallbackModel string
}

func NewFactory(catalog *Catalog, registry *Registry, resolver CredentialResolver, endpoints map[string]Endpoint, fallbackModel string) *Factory {
	if endpoints == nil {
		endpoints = map[string]Endpoint{}
	}
	return &Factory{
		catalog:       catalog,
		registry:      registry,
		resolver:      resolver,
		endpoints:     endpoints,
		fallbackModel: fallbackModel,
	}
}

func (f *Factory) Catalog() *Catalog { return f.catalog }

// ForModel resolves model and credential and builds a fresh provider handle.
func (f *Factory) ForModel(ctx context.Context, modelID string, userID uint64) (*Client, error) {
	m, ok := f.catalog.Lookup(modelID)
	if !ok {
		return nil, &ModelNotFoundError{ID: modelID}
	}
	info, ok := LookupProvider(m.Provider)
	if !ok {
		return nil, errors.Errorf("model %s references unknown provider %s", m.ID, m.Provider)
	}

	cred, found, err := f.resolver.Resolve(ctx, info.Name, userID)
	if err != nil {
		if errors.Is(err, ErrCredentialUnreadable) {
			log.L().Warn("stored api key could not be decrypted",
				zap.String("provider", info.Name),
				zap.Uint64("user_id", userID),
				zap.Error(err))
			return nil, newCredentialMissing(info, err)
		}
		return nil, errors.Wrapf(err, "resolve %s credential", info.Name)
	}
	if found && cred.Source == SourceUser && !info.AcceptsUserKey {
		return nil, errors.Wrapf(ErrUserKeyUnsupported, "%s", info.DisplayName)
	}
	if !found && info.RequiresKey {
		return nil, newCredentialMissing(info, nil)
	}

	ep := f.endpoints[info.Name]
	p, err := f.registry.Get(ctx, info.Name, Binding{
		Model:           m.Name,
		BaseURL:         ep.BaseURL,
		APIKey:          cred.Key,
		Headers:         ep.Headers,
		MaxOutputTokens: m.MaxOutputTokens,
	})
	if err != nil {
		return nil, err
	}
	sp, ok := p.(StreamProvider)
	if !ok {
		return nil, errors.Errorf("provider %s does not support streaming", info.Name)
	}

	return &Client{
		Model:    m,
		Info:     info,
		Source:   cred.Source,
		Provider: p,
		Stream:   sp,
	}, nil
}

// FallbackModel suggests a model the user can run right now, preferring the
// configured fallback. Providers in exclude are skipped.
func (f *Factory) FallbackModel(ctx context.Context, userID uint64, exclude string) (Model, bool) {
	var candidates []Model
	if m, ok := f.catalog.Lookup(f.fallbackModel); ok {
		candidates = append(candidates, m)
	}
	candidates = append(candidates, f.catalog.All()...)

	for _, m := range candidates {
		if m.Provider == exclude {
			continue
		}
		info, ok := LookupProvider(m.Provider)
		if !ok || !info.RequiresKey {
			continue
		}
		if f.resolver.IsConfigured(ctx, m.Provider, userID) {
			return m, true
		}
	}
	return Model{}, false
}
