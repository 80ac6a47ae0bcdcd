package ai

type Capability string

const (
	CapText            Capability = "text"
	CapCode            Capability = "code"
	CapVision          Capability = "vision"
	CapReasoning       Capability = "reasoning"
	CapFunctionCalling Capability = "function-calling"
	CapStreaming       Capability = "streaming"
	CapAgentic         Capability = "agentic"
)

type Category string

const (
	CategoryFlagship    Category = "flagship"
	CategoryFast        Category = "fast"
	CategorySpecialized Category = "specialized"
)

// Pricing is USD per million tokens.
type Pricing struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

type Model struct {
	ID              string       `json:"id"`
	Provider        string       `json:"provider"`
	Name            string       `json:"name"`
	DisplayName     string       `json:"display_name"`
	Category        Category     `json:"category"`
	ContextWindow   int          `json:"context_window"`
	MaxOutputTokens int          `json:"max_output_tokens"`
	Capabilities    []Capability `json:"capabilities"`
	Pricing         *Pricing     `json:"pricing,omitempty"`
}

func (m Model) Has(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Catalog is a read-only list of models. Lookups are linear scans.
type Catalog struct {
	models []Model
}

func NewCatalog(models []Model) *Catalog {
	return &Catalog{models: append([]Model(nil), models...)}
}

func (c *Catalog) All() []Model {
	return append([]Model(nil), c.models...)
}

func (c *Catalog) Lookup(id string) (Model, bool) {
	for _, m := range c.models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

func (c *Catalog) ByProvider(provider string) []Model {
	return c.filter(func(m Model) bool { return m.Provider == provider })
}

func (c *Catalog) ByCapability(capability Capability) []Model {
	return c.filter(func(m Model) bool { return m.Has(capability) })
}

func (c *Catalog) ByCategory(category Category) []Model {
	return c.filter(func(m Model) bool { return m.Category == category })
}

type CategoryGroup struct {
	Category Category `json:"category"`
	Models   []Model  `json:"models"`
}

// Categories groups models for presentation, flagship first. Empty groups are omitted.
func (c *Catalog) Categories() []CategoryGroup {
	var out []CategoryGroup
	for _, cat := range []Category{CategoryFlagship, CategoryFast, CategorySpecialized} {
		if ms := c.ByCategory(cat); len(ms) > 0 {
			out = append(out, CategoryGroup{Category: cat, Models: ms})
		}
	}
	return out
}

func (c *Catalog) filter(keep func(Model) bool) []Model {
	out := []Model{}
	for _, m := range c.models {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func DefaultCatalog() *Catalog {
	return NewCatalog(defaultModels)
}

var defaultModels = []Model{
	{
		ID:              "gpt-4o",
		Provider:        ProviderOpenAI,
		Name:            "gpt-4o",
		DisplayName:     "GPT-4o",
		Category:        CategoryFlagship,
		ContextWindow:   128000,
		MaxOutputTokens: 16384,
		Capabilities:    []Capability{CapText, CapCode, CapVision, CapFunctionCalling, CapStreaming},
		Pricing:         &Pricing{Input: 2.5, Output: 10},
	},
	{
		ID:              "gpt-4.1",
		Provider:        ProviderOpenAI,
		Name:            "gpt-4.1",
		DisplayName:     "GPT-4.1",
		Category:        CategoryFlagship,
		ContextWindow:   1047576,
		MaxOutputTokens: 32768,
		Capabilities:    []Capability{CapText, CapCode, CapVision, CapFunctionCalling, CapStreaming, CapAgentic},
		Pricing:         &Pricing{Input: 2, Output: 8},
	},
	{
		ID:              "gpt-4o-mini",
		Provider:        ProviderOpenAI,
		Name:            "gpt-4o-mini",
		DisplayName:     "GPT-4o mini",
		Category:        CategoryFast,
		ContextWindow:   128000,
		MaxOutputTokens: 16384,
		Capabilities:    []Capability{CapText, CapCode, CapVision, CapFunctionCalling, CapStreaming},
		Pricing:         &Pricing{Input: 0.15, Output: 0.6},
	},
	{
		ID:              "o3-mini",
		Provider:        ProviderOpenAI,
		Name:            "o3-mini",
		DisplayName:     "o3-mini",
		Category:        CategorySpecialized,
		ContextWindow:   200000,
		MaxOutputTokens: 100000,
		Capabilities:    []Capability{CapText, CapCode, CapReasoning, CapFunctionCalling, CapStreaming},
		Pricing:         &Pricing{Input: 1.1, Output: 4.4},
	},
	{
		ID:              "claude-sonnet-4",
		Provider:        ProviderAnthropic,
		Name:            "claude-sonnet-4-20250514",
		DisplayName:     "Claude Sonnet 4",
		Category:        CategoryFlagship,
		ContextWindow:   200000,
		MaxOutputTokens: 64000,
		Capabilities:    []Capability{CapText, CapCode, CapVision, CapReasoning, CapFunctionCalling, CapStreaming, CapAgentic},
		Pricing:         &Pricing{Input: 3, Output: 15},
	},
	{
		ID:              "claude-3-5-haiku",
		Provider:        ProviderAnthropic,
		Name:            "claude-3-5-haiku-20241022",
		DisplayName:     "Claude 3.5 Haiku",
		Category:        CategoryFast,
		ContextWindow:   200000,
		MaxOutputTokens: 8192,
		Capabilities:    []Capability{CapText, CapCode, CapFunctionCalling, CapStreaming},
		Pricing:         &Pricing{Input: 0.8, Output: 4},
	},
	{
		ID:              "gemini-2.5-pro",
		Provider:        ProviderGoogle,
		Name:            "gemini-2.5-pro",
		DisplayName:     "Gemini 2.5 Pro",
		Category:        CategoryFlagship,
		ContextWindow:   1048576,
		MaxOutputTokens: 65536,
		Capabilities:    []Capability{CapText, CapCode, CapVision, CapReasoning, CapFunctionCalling, CapStreaming},
		Pricing:         &Pricing{Input: 1.25, Output: 10},
	},
	{
		ID:              "gemini-2.0-flash",
		Provider:        ProviderGoogle,
		Name:            "gemini-2.0-flash",
		DisplayName:     "Gemini 2.0 Flash",
		Category:        CategoryFast,
		ContextWindow:   1048576,
		MaxOutputTokens: 8192,
		Capabilities:    []Capability{CapText, CapCode, CapVision, CapFunctionCalling, CapStreaming},
		Pricing:         &Pricing{Input: 0.1, Output: 0.4},
	},
	{
		ID:              "deepseek-r1",
		Provider:        ProviderOpenRouter,
		Name:            "deepseek/deepseek-r1",
		DisplayName:     "DeepSeek R1",
		Category:        CategorySpecialized,
		ContextWindow:   163840,
		MaxOutputTokens: 32768,
		Capabilities:    []Capability{CapText, CapCode, CapReasoning, CapStreaming},
		Pricing:         &Pricing{Input: 0.55, Output: 2.19},
	},
	{
		ID:              "qwen-coder",
		Provider:        ProviderOpenRouter,
		Name:            "qwen/qwen-2.5-coder-32b-instruct",
		DisplayName:     "Qwen 2.5 Coder 32B",
		Category:        CategorySpecialized,
		ContextWindow:   32768,
		MaxOutputTokens: 8192,
		Capabilities:    []Capability{CapText, CapCode, CapStreaming},
		Pricing:         &Pricing{Input: 0.07, Output: 0.16},
	},
	{
		ID:              "llama-3.3-70b",
		Provider:        ProviderOpenRouter,
		Name:            "meta-llama/llama-3.3-70b-instruct",
		DisplayName:     "Llama 3.3 70B",
		Category:        CategoryFast,
		ContextWindow:   131072,
		MaxOutputTokens: 16384,
		Capabilities:    []Capability{CapText, CapCode, CapFunctionCalling, CapStreaming},
		Pricing:         &Pricing{Input: 0.12, Output: 0.3},
	},
	{
		ID:              "llama3-local",
		Provider:        ProviderOllama,
		Name:            "llama3:latest",
		DisplayName:     "Llama 3 (local)",
		Category:        CategorySpecialized,
		ContextWindow:   8192,
		MaxOutputTokens: 2048,
		Capabilities:    []Capability{CapText, CapCode, CapStreaming},
	},
}
