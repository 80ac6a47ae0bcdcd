package apikey

import (
	"context"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ai-studio/internal/ai"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&UserAPIKey{}))
	return db
}

type fixture struct {
	repo     *Repo
	cipher   *Cipher
	resolver *Resolver
	svc      *Service
}

func newFixture(t *testing.T, env map[string]string) fixture {
	t.Helper()
	repo := NewRepo(openTestDB(t))
	c := newTestCipher(t, "server-secret")
	res := NewResolver(repo, c, env)
	return fixture{repo: repo, cipher: c, resolver: res, svc: NewService(repo, c, res)}
}

func TestResolverPrefersUserKey(t *testing.T) {
	f := newFixture(t, map[string]string{ai.ProviderOpenAI: "env-key"})
	ctx := context.Background()
	require.NoError(t, f.svc.Save(ctx, 7, ai.ProviderOpenAI, "user-key"))

	cred, found, err := f.resolver.Resolve(ctx, ai.ProviderOpenAI, 7)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "user-key", cred.Key)
	require.Equal(t, ai.SourceUser, cred.Source)

	// another user falls back to the environment
	cred, found, err = f.resolver.Resolve(ctx, ai.ProviderOpenAI, 8)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "env-key", cred.Key)
	require.Equal(t, ai.SourceEnv, cred.Source)

	// no user context
	cred, _, err = f.resolver.Resolve(ctx, ai.ProviderOpenAI, 0)
	require.NoError(t, err)
	require.Equal(t, "env-key", cred.Key)
}

func TestResolverNoKeyIsNotAnError(t *testing.T) {
	f := newFixture(t, map[string]string{ai.ProviderOpenAI: "  "})

	_, found, err := f.resolver.Resolve(context.Background(), ai.ProviderOpenAI, 7)
	require.NoError(t, err)
	require.False(t, found)
	require.False(t, f.resolver.IsConfigured(context.Background(), ai.ProviderOpenAI, 7))
}

func TestResolverCorruptStoredKey(t *testing.T) {
	f := newFixture(t, map[string]string{ai.ProviderAnthropic: "env-key"})
	ctx := context.Background()
	require.NoError(t, f.repo.Upsert(ctx, 7, ai.ProviderAnthropic, "deadbeef"))

	_, found, err := f.resolver.Resolve(ctx, ai.ProviderAnthropic, 7)
	require.False(t, found)
	var de *DecryptionError
	require.ErrorAs(t, err, &de)
	require.False(t, f.resolver.IsConfigured(ctx, ai.ProviderAnthropic, 7))
}

func TestResolverWithFactory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	factory := ai.NewFactory(ai.DefaultCatalog(), ai.NewDefaultRegistry(nil), f.resolver, nil, "")

	_, err := factory.ForModel(ctx, "gpt-4o", 7)
	var cm *ai.CredentialMissingError
	require.ErrorAs(t, err, &cm)
	require.Equal(t, "OPENAI_API_KEY", cm.Setting)

	require.NoError(t, f.svc.Save(ctx, 7, ai.ProviderOpenAI, "user-key"))
	c, err := factory.ForModel(ctx, "gpt-4o", 7)
	require.NoError(t, err)
	require.Equal(t, ai.SourceUser, c.Source)
	require.Equal(t, "user-key", c.Provider.(*ai.OpenAIProvider).APIKey)

	// rotated secret: treated as missing, not a crash
	rotated := NewResolver(f.repo, newTestCipher(t, "rotated"), nil)
	factory = ai.NewFactory(ai.DefaultCatalog(), ai.NewDefaultRegistry(nil), rotated, nil, "")
	_, err = factory.ForModel(ctx, "gpt-4o", 7)
	require.ErrorAs(t, err, &cm)
	require.ErrorIs(t, err, ai.ErrCredentialUnreadable)
}

func TestConfiguredProviders(t *testing.T) {
	f := newFixture(t, map[string]string{ai.ProviderGoogle: "g"})
	ctx := context.Background()
	require.NoError(t, f.svc.Save(ctx, 7, ai.ProviderAnthropic, "a"))

	require.ElementsMatch(t,
		[]string{ai.ProviderGoogle, ai.ProviderAnthropic, ai.ProviderOllama},
		f.resolver.ConfiguredProviders(ctx, 7))
	require.ElementsMatch(t,
		[]string{ai.ProviderGoogle, ai.ProviderOllama},
		f.resolver.ConfiguredProviders(ctx, 8))
}
