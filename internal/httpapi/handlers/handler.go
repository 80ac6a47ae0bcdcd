package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-studio/internal/ai"
	"github.com/suPer8Hu/ai-studio/internal/apikey"
	"github.com/suPer8Hu/ai-studio/internal/chat"
	"github.com/suPer8Hu/ai-studio/internal/common"
	"github.com/suPer8Hu/ai-studio/internal/github"
	"github.com/suPer8Hu/ai-studio/internal/httpapi/middleware"
	"github.com/suPer8Hu/ai-studio/internal/project"
)

type Handler struct {
	ChatSvc  *chat.Service
	Projects *project.Service
	APIKeys  *apikey.Service
	Factory  *ai.Factory
	GitHub   *github.Client
}

func NewHandler(chatSvc *chat.Service, projects *project.Service, keys *apikey.Service, factory *ai.Factory, gh *github.Client) *Handler {
	return &Handler{
		ChatSvc:  chatSvc,
		Projects: projects,
		APIKeys:  keys,
		Factory:  factory,
		GitHub:   gh,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func currentUser(c *gin.Context) (uint64, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "unauthorized")
		return 0, false
	}
	return uid, true
}
