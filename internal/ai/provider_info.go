package ai

import "strings"

// Wire is the HTTP protocol family a provider speaks.
type Wire string

const (
	WireOpenAI    Wire = "openai"
	WireAnthropic Wire = "anthropic"
	WireGoogle    Wire = "google"
	WireOllama    Wire = "ollama"
)

const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

type ProviderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	// Setting is the environment variable holding the shared credential.
	Setting string `json:"setting,omitempty"`
	HelpURL string `json:"help_url,omitempty"`
	Wire    Wire   `json:"wire"`
	// RequiresKey is false for local runtimes.
	RequiresKey bool `json:"requires_key"`
	// AcceptsUserKey is false for providers that only run with the
	// process-wide configuration; a stored user key for them is rejected.
	AcceptsUserKey bool `json:"accepts_user_key"`
}

var providers = []ProviderInfo{
	{
		Name:           ProviderOpenAI,
		DisplayName:    "OpenAI",
		Setting:        "OPENAI_API_KEY",
		HelpURL:        "https://platform.openai.com/api-keys",
		Wire:           WireOpenAI,
		RequiresKey:    true,
		AcceptsUserKey: true,
	},
	{
		Name:           ProviderAnthropic,
		DisplayName:    "Anthropic",
		Setting:        "ANTHROPIC_API_KEY",
		HelpURL:        "https://console.anthropic.com/settings/keys",
		Wire:           WireAnthropic,
		RequiresKey:    true,
		AcceptsUserKey: true,
	},
	{
		Name:           ProviderGoogle,
		DisplayName:    "Google AI",
		Setting:        "GOOGLE_GENERATIVE_AI_API_KEY",
		HelpURL:        "https://aistudio.google.com/app/apikey",
		Wire:           WireGoogle,
		RequiresKey:    true,
		AcceptsUserKey: true,
	},
	{
		Name:           ProviderOpenRouter,
		DisplayName:    "OpenRouter",
		Setting:        "OPENROUTER_API_KEY",
		HelpURL:        "https://openrouter.ai/keys",
		Wire:           WireOpenAI,
		RequiresKey:    true,
		AcceptsUserKey: true,
	},
	{
		Name:        ProviderOllama,
		DisplayName: "Ollama",
		Wire:        WireOllama,
	},
}

func Providers() []ProviderInfo {
	return append([]ProviderInfo(nil), providers...)
}

func LookupProvider(name string) (ProviderInfo, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderInfo{}, false
}
