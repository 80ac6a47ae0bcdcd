package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-studio/internal/ai"
	"github.com/suPer8Hu/ai-studio/internal/common"
)

// ListModels filters the catalog by the optional provider, capability and
// category query parameters. Unknown filter values match nothing.
func (h *Handler) ListModels(c *gin.Context) {
	provider := c.Query("provider")
	capability := ai.Capability(c.Query("capability"))
	category := ai.Category(c.Query("category"))

	models := []ai.Model{}
	byProvider := map[string]int{}
	for _, m := range h.Factory.Catalog().All() {
		if provider != "" && m.Provider != provider {
			continue
		}
		if capability != "" && !m.Has(capability) {
			continue
		}
		if category != "" && m.Category != category {
			continue
		}
		models = append(models, m)
		byProvider[m.Provider]++
	}

	common.OK(c, gin.H{
		"models":      models,
		"total":       len(models),
		"by_provider": byProvider,
		"categories":  ai.NewCatalog(models).Categories(),
		"providers":   ai.Providers(),
	})
}
