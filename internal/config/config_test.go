package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STUDIO_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 50, cfg.ChatContextWindowSize)
	require.Equal(t, 60*time.Second, cfg.ChatMaxDuration)
	require.Equal(t, cfg.JWTSecret, cfg.EncryptionSecret)
	require.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouterBaseURL)
	require.Equal(t, 2, cfg.WorkerConcurrency)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STUDIO_CONFIG", "")
	t.Setenv("CHAT_CONTEXT_WINDOW_SIZE", "10")
	t.Setenv("CHAT_MAX_DURATION", "5s")
	t.Setenv("API_KEY_ENCRYPTION_SECRET", "another-secret")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("WORKER_CONCURRENCY", "500")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 10, cfg.ChatContextWindowSize)
	require.Equal(t, 5*time.Second, cfg.ChatMaxDuration)
	require.Equal(t, "another-secret", cfg.EncryptionSecret)
	require.Equal(t, "sk-ant", cfg.ProviderKeys()["anthropic"])
	require.Equal(t, 50, cfg.WorkerConcurrency)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.env")
	require.NoError(t, os.WriteFile(path, []byte("DEFAULT_MODEL=claude-sonnet-4\nGITHUB_TOKEN=ghp_x\n"), 0o600))
	t.Setenv("STUDIO_CONFIG", path)
	t.Setenv("GITHUB_TOKEN", "ghp_env")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "claude-sonnet-4", cfg.DefaultModel)
	require.Equal(t, "ghp_env", cfg.GitHubToken)
}
