package main

import (
	"context"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/ai"
	"github.com/suPer8Hu/ai-studio/internal/apikey"
	"github.com/suPer8Hu/ai-studio/internal/chat"
	"github.com/suPer8Hu/ai-studio/internal/config"
	"github.com/suPer8Hu/ai-studio/internal/db"
	"github.com/suPer8Hu/ai-studio/internal/github"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"github.com/suPer8Hu/ai-studio/internal/project"
	"github.com/suPer8Hu/ai-studio/internal/store/redisstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app is the dependency graph shared by serve and worker.
type app struct {
	cfg      config.Config
	db       *gorm.DB
	factory  *ai.Factory
	chat     *chat.Service
	projects *project.Service
	keys     *apikey.Service
	github   *github.Client
	redis    *redisstore.Store
}

func providerEndpoints(cfg config.Config) map[string]ai.Endpoint {
	orHeaders := map[string]string{}
	if cfg.OpenRouterSiteURL != "" {
		orHeaders["HTTP-Referer"] = cfg.OpenRouterSiteURL
	}
	if cfg.OpenRouterAppName != "" {
		orHeaders["X-Title"] = cfg.OpenRouterAppName
	}
	return map[string]ai.Endpoint{
		ai.ProviderOpenAI:     {BaseURL: cfg.OpenAIBaseURL},
		ai.ProviderAnthropic:  {BaseURL: cfg.AnthropicBaseURL},
		ai.ProviderGoogle:     {BaseURL: cfg.GoogleBaseURL},
		ai.ProviderOllama:     {BaseURL: cfg.OllamaBaseURL},
		ai.ProviderOpenRouter: {BaseURL: cfg.OpenRouterBaseURL, Headers: orHeaders},
	}
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	cipher, err := apikey.NewCipher(cfg.EncryptionSecret)
	if err != nil {
		return nil, errors.Wrap(err, "init key cipher")
	}
	keyRepo := apikey.NewRepo(gdb)
	resolver := apikey.NewResolver(keyRepo, cipher, cfg.ProviderKeys())

	factory := ai.NewFactory(ai.DefaultCatalog(), ai.NewDefaultRegistry(nil), resolver,
		providerEndpoints(cfg), cfg.FallbackModel)

	chatSvc := chat.NewService(chat.NewRepo(gdb), factory, chat.Options{
		ContextWindow: cfg.ChatContextWindowSize,
		MaxDuration:   cfg.ChatMaxDuration,
		DefaultModel:  cfg.DefaultModel,
	})

	gh := github.NewClient(cfg.GitHubBaseURL, cfg.GitHubToken, nil)
	if cfg.GitHubCacheTTL > 0 {
		gh.TTL = cfg.GitHubCacheTTL
	}

	a := &app{
		cfg:      cfg,
		db:       gdb,
		factory:  factory,
		chat:     chatSvc,
		projects: project.NewService(project.NewRepo(gdb), gh),
		keys:     apikey.NewService(keyRepo, cipher, resolver),
		github:   gh,
	}

	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rds.Ping(pctx); err != nil {
			log.L().Warn("redis unavailable, github cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = rds.Close()
		} else {
			gh.Cache = rds
			a.redis = rds
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
