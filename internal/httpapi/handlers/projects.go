package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-studio/internal/common"
	"github.com/suPer8Hu/ai-studio/internal/project"
)

func (h *Handler) ListProjects(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ps, err := h.Projects.List(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"projects": ps})
}

func (h *Handler) CreateProject(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var in project.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err)
		return
	}
	p, err := h.Projects.Create(c.Request.Context(), uid, in)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"project": p})
}

func (h *Handler) GetProject(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	p, err := h.Projects.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"project": p})
}

func (h *Handler) UpdateProject(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var in project.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err)
		return
	}
	p, err := h.Projects.Update(c.Request.Context(), uid, c.Param("id"), in)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"project": p})
}

func (h *Handler) DeleteProject(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.Projects.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

type importReq struct {
	RepoURL string `json:"repo_url" binding:"required,max=512"`
	Path    string `json:"path"`
}

func (h *Handler) ImportProjectFiles(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var req importReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	res, err := h.Projects.ImportFromGitHub(c.Request.Context(), uid, c.Param("id"), req.RepoURL, req.Path)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) CreateFile(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var in project.FileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err)
		return
	}
	f, err := h.Projects.CreateFile(c.Request.Context(), uid, in)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"file": f})
}

func (h *Handler) UpdateFile(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var in project.FilePatch
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFailed(c, err)
		return
	}
	f, err := h.Projects.UpdateFile(c.Request.Context(), uid, c.Param("id"), in)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"file": f})
}

func (h *Handler) DeleteFile(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.Projects.DeleteFile(c.Request.Context(), uid, c.Param("id")); err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}
