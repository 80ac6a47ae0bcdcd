package ai

import (
	"context"
	"testing"

	errors "github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	creds map[string]Credential
	err   error
}

func (r *fakeResolver) Resolve(_ context.Context, provider string, _ uint64) (Credential, bool, error) {
	if r.err != nil {
		return Credential{}, false, r.err
	}
	c, ok := r.creds[provider]
	return c, ok, nil
}

func (r *fakeResolver) IsConfigured(_ context.Context, provider string, _ uint64) bool {
	_, ok := r.creds[provider]
	return ok
}

type bindingRecorder struct {
	bindings []Binding
}

func (b *bindingRecorder) registry() *Registry {
	reg := NewRegistry()
	for _, info := range Providers() {
		reg.Register(info.Name, func(_ context.Context, bd Binding) (Provider, error) {
			b.bindings = append(b.bindings, bd)
			return NewOpenAIProvider("fake", bd, nil), nil
		})
	}
	return reg
}

type unreadable struct{}

func (unreadable) Error() string        { return "iv:ciphertext is corrupt" }
func (unreadable) Is(target error) bool { return target == ErrCredentialUnreadable }

func TestFactoryUnknownModel(t *testing.T) {
	f := NewFactory(DefaultCatalog(), NewRegistry(), &fakeResolver{}, nil, "")
	_, err := f.ForModel(context.Background(), "gpt-99", 1)
	require.ErrorIs(t, err, ErrModelNotFound)

	var mnf *ModelNotFoundError
	require.ErrorAs(t, err, &mnf)
	require.Equal(t, "gpt-99", mnf.ID)
}

func TestFactoryCredentialMissing(t *testing.T) {
	f := NewFactory(DefaultCatalog(), NewRegistry(), &fakeResolver{}, nil, "")
	_, err := f.ForModel(context.Background(), "claude-sonnet-4", 1)

	var cm *CredentialMissingError
	require.ErrorAs(t, err, &cm)
	require.Equal(t, ProviderAnthropic, cm.Provider)
	require.Equal(t, "Anthropic", cm.DisplayName)
	require.Equal(t, "ANTHROPIC_API_KEY", cm.Setting)
	require.NotEmpty(t, cm.HelpURL)
}

func TestFactoryDecryptionFailureBecomesCredentialMissing(t *testing.T) {
	f := NewFactory(DefaultCatalog(), NewRegistry(), &fakeResolver{err: unreadable{}}, nil, "")
	_, err := f.ForModel(context.Background(), "gpt-4o", 1)

	var cm *CredentialMissingError
	require.ErrorAs(t, err, &cm)
	require.ErrorIs(t, err, ErrCredentialUnreadable)
}

func TestFactoryOtherResolverErrorIsNotCredentialMissing(t *testing.T) {
	f := NewFactory(DefaultCatalog(), NewRegistry(), &fakeResolver{err: errors.New("db down")}, nil, "")
	_, err := f.ForModel(context.Background(), "gpt-4o", 1)
	require.Error(t, err)

	var cm *CredentialMissingError
	require.False(t, errors.As(err, &cm))
}

func TestFactoryBindsCredentialPerRequest(t *testing.T) {
	rec := &bindingRecorder{}
	resolver := &fakeResolver{creds: map[string]Credential{
		ProviderOpenRouter: {Key: "user-key", Source: SourceUser},
	}}
	f := NewFactory(DefaultCatalog(), rec.registry(), resolver, map[string]Endpoint{
		ProviderOpenRouter: {BaseURL: "https://gateway.test/v1", Headers: map[string]string{"X-Title": "studio"}},
	}, "")

	c1, err := f.ForModel(context.Background(), "deepseek-r1", 1)
	require.NoError(t, err)
	resolver.creds[ProviderOpenRouter] = Credential{Key: "other-user-key", Source: SourceUser}
	c2, err := f.ForModel(context.Background(), "deepseek-r1", 2)
	require.NoError(t, err)

	require.NotSame(t, c1.Provider, c2.Provider)
	require.Equal(t, SourceUser, c1.Source)
	require.Len(t, rec.bindings, 2)
	require.Equal(t, "user-key", rec.bindings[0].APIKey)
	require.Equal(t, "other-user-key", rec.bindings[1].APIKey)
	require.Equal(t, "deepseek/deepseek-r1", rec.bindings[0].Model)
	require.Equal(t, "https://gateway.test/v1", rec.bindings[0].BaseURL)
}

func TestFactoryUserKeyRejectedForProcessWideProvider(t *testing.T) {
	resolver := &fakeResolver{creds: map[string]Credential{
		ProviderOllama: {Key: "nope", Source: SourceUser},
	}}
	f := NewFactory(DefaultCatalog(), NewDefaultRegistry(nil), resolver, nil, "")
	_, err := f.ForModel(context.Background(), "llama3-local", 1)
	require.ErrorIs(t, err, ErrUserKeyUnsupported)
}

func TestFactoryKeylessProvider(t *testing.T) {
	f := NewFactory(DefaultCatalog(), NewDefaultRegistry(nil), &fakeResolver{}, nil, "")
	c, err := f.ForModel(context.Background(), "llama3-local", 0)
	require.NoError(t, err)
	require.IsType(t, &OllamaProvider{}, c.Provider)
}

func TestFactoryDispatchesByWire(t *testing.T) {
	resolver := &fakeResolver{creds: map[string]Credential{
		ProviderOpenAI:     {Key: "a", Source: SourceEnv},
		ProviderAnthropic:  {Key: "b", Source: SourceEnv},
		ProviderGoogle:     {Key: "c", Source: SourceEnv},
		ProviderOpenRouter: {Key: "d", Source: SourceEnv},
	}}
	f := NewFactory(DefaultCatalog(), NewDefaultRegistry(nil), resolver, nil, "")

	cases := map[string]any{
		"gpt-4o":          &OpenAIProvider{},
		"claude-sonnet-4": &AnthropicProvider{},
		"gemini-2.5-pro":  &GoogleProvider{},
		"deepseek-r1":     &OpenAIProvider{},
	}
	for id, want := range cases {
		c, err := f.ForModel(context.Background(), id, 0)
		require.NoError(t, err, id)
		require.IsType(t, want, c.Provider, id)
	}
}

func TestFactoryFallbackModel(t *testing.T) {
	resolver := &fakeResolver{creds: map[string]Credential{
		ProviderGoogle: {Key: "g", Source: SourceEnv},
		ProviderOpenAI: {Key: "o", Source: SourceEnv},
	}}
	f := NewFactory(DefaultCatalog(), NewRegistry(), resolver, nil, "gemini-2.0-flash")

	m, ok := f.FallbackModel(context.Background(), 1, ProviderAnthropic)
	require.True(t, ok)
	require.Equal(t, "gemini-2.0-flash", m.ID)

	m, ok = f.FallbackModel(context.Background(), 1, ProviderGoogle)
	require.True(t, ok)
	require.Equal(t, ProviderOpenAI, m.Provider)

	f = NewFactory(DefaultCatalog(), NewRegistry(), &fakeResolver{}, nil, "gemini-2.0-flash")
	_, ok = f.FallbackModel(context.Background(), 1, "")
	require.False(t, ok)
}
