package apikey

import (
	"context"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/ai"
)

// Resolver implements ai.CredentialResolver: a user's stored key wins over
// the shared key from the environment.
type Resolver struct {
	repo    *Repo
	cipher  *Cipher
	envKeys map[string]string
}

func NewResolver(repo *Repo, c *Cipher, envKeys map[string]string) *Resolver {
	keys := make(map[string]string, len(envKeys))
	for p, k := range envKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[p] = k
		}
	}
	return &Resolver{repo: repo, cipher: c, envKeys: keys}
}

// Resolve returns found=false with a nil error when neither source has a key.
// A stored key that cannot be decrypted is a *DecryptionError and does not
// fall back to the environment.
func (r *Resolver) Resolve(ctx context.Context, provider string, userID uint64) (ai.Credential, bool, error) {
	if userID != 0 {
		row, err := r.repo.Get(ctx, userID, provider)
		switch {
		case err == nil:
			key, err := r.cipher.Decrypt(row.EncryptedKey)
			if err != nil {
				return ai.Credential{}, false, err
			}
			return ai.Credential{Key: key, Source: ai.SourceUser}, true, nil
		case !errors.Is(err, ErrNotFound):
			return ai.Credential{}, false, errors.Wrap(err, "load user api key")
		}
	}

	if key, ok := r.envKeys[provider]; ok {
		return ai.Credential{Key: key, Source: ai.SourceEnv}, true, nil
	}
	return ai.Credential{}, false, nil
}

func (r *Resolver) IsConfigured(ctx context.Context, provider string, userID uint64) bool {
	_, found, err := r.Resolve(ctx, provider, userID)
	return err == nil && found
}

// ConfiguredProviders lists providers that can run for this user, keyless
// ones included.
func (r *Resolver) ConfiguredProviders(ctx context.Context, userID uint64) []string {
	var out []string
	for _, p := range ai.Providers() {
		if !p.RequiresKey || r.IsConfigured(ctx, p.Name, userID) {
			out = append(out, p.Name)
		}
	}
	return out
}

func (r *Resolver) hasEnvKey(provider string) bool {
	_, ok := r.envKeys[provider]
	return ok
}
