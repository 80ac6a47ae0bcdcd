package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-studio/internal/common"
	"github.com/suPer8Hu/ai-studio/internal/github"
)

// repoFromQuery parses ?url= and writes the error response itself.
func (h *Handler) repoFromQuery(c *gin.Context, uid uint64) (owner, repo string, ok bool) {
	if h.GitHub == nil {
		common.Fail(c, http.StatusServiceUnavailable, common.CodeUnavailable, "github is not configured")
		return "", "", false
	}
	owner, repo, err := github.ParseRepoURL(c.Query("url"))
	if err != nil {
		h.fail(c, uid, err)
		return "", "", false
	}
	return owner, repo, true
}

func (h *Handler) GitHubRepo(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	owner, name, ok := h.repoFromQuery(c, uid)
	if !ok {
		return
	}

	repo, err := h.GitHub.GetRepo(c.Request.Context(), owner, name)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"repo": repo})
}

func (h *Handler) GitHubContents(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	owner, name, ok := h.repoFromQuery(c, uid)
	if !ok {
		return
	}

	entries, err := h.GitHub.ListContents(c.Request.Context(), owner, name, c.Query("path"))
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"entries": entries})
}

func (h *Handler) GitHubFile(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	owner, name, ok := h.repoFromQuery(c, uid)
	if !ok {
		return
	}
	path := c.Query("path")
	if path == "" {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, "path required")
		return
	}

	f, err := h.GitHub.GetFile(c.Request.Context(), owner, name, path)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"file": f})
}
