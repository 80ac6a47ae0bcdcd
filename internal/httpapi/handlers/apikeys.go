package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-studio/internal/common"
)

type saveKeyReq struct {
	Provider string `json:"provider" binding:"required"`
	Key      string `json:"apiKey" binding:"required"`
}

func (h *Handler) ListAPIKeys(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	statuses, err := h.APIKeys.List(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"providers": statuses})
}

func (h *Handler) SaveAPIKey(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var req saveKeyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	if err := h.APIKeys.Save(c.Request.Context(), uid, req.Provider, req.Key); err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"provider": req.Provider, "saved": true})
}

func (h *Handler) DeleteAPIKey(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	provider := c.Query("provider")
	if provider == "" {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, "provider required")
		return
	}
	if err := h.APIKeys.Delete(c.Request.Context(), uid, provider); err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"provider": provider, "deleted": true})
}
