package apikey

import (
	"context"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/ai"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrEmptyKey        = errors.New("api key is empty")
)

// ProviderStatus never carries key material.
type ProviderStatus struct {
	Provider       string `json:"provider"`
	DisplayName    string `json:"display_name"`
	HelpURL        string `json:"help_url,omitempty"`
	RequiresKey    bool   `json:"requires_key"`
	AcceptsUserKey bool   `json:"accepts_user_key"`
	HasUserKey     bool   `json:"has_user_key"`
	HasEnvKey      bool   `json:"has_env_key"`
	Configured     bool   `json:"configured"`
}

type Service struct {
	repo     *Repo
	cipher   *Cipher
	resolver *Resolver
}

func NewService(repo *Repo, c *Cipher, resolver *Resolver) *Service {
	return &Service{repo: repo, cipher: c, resolver: resolver}
}

func (s *Service) Save(ctx context.Context, userID uint64, provider, plaintext string) error {
	info, ok := ai.LookupProvider(provider)
	if !ok {
		return errors.Wrapf(ErrUnknownProvider, "%q", provider)
	}
	if !info.AcceptsUserKey {
		return errors.Wrapf(ai.ErrUserKeyUnsupported, "%s", info.DisplayName)
	}
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return ErrEmptyKey
	}

	enc, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return errors.Wrap(err, "encrypt api key")
	}
	if err := s.repo.Upsert(ctx, userID, info.Name, enc); err != nil {
		return errors.Wrap(err, "save api key")
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID uint64) ([]ProviderStatus, error) {
	stored, err := s.repo.ListProviders(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list api keys")
	}
	has := make(map[string]bool, len(stored))
	for _, p := range stored {
		has[p] = true
	}

	out := make([]ProviderStatus, 0, len(ai.Providers()))
	for _, p := range ai.Providers() {
		out = append(out, ProviderStatus{
			Provider:       p.Name,
			DisplayName:    p.DisplayName,
			HelpURL:        p.HelpURL,
			RequiresKey:    p.RequiresKey,
			AcceptsUserKey: p.AcceptsUserKey,
			HasUserKey:     has[p.Name],
			HasEnvKey:      s.resolver.hasEnvKey(p.Name),
			Configured:     !p.RequiresKey || s.resolver.IsConfigured(ctx, p.Name, userID),
		})
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, userID uint64, provider string) error {
	info, ok := ai.LookupProvider(provider)
	if !ok {
		return errors.Wrapf(ErrUnknownProvider, "%q", provider)
	}
	return s.repo.Delete(ctx, userID, info.Name)
}
